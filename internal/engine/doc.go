// Package engine рендерит шаблоны pipeline и вычисляет условия стадий.
//
// Шаблоны используются в конфигурации:
//   - тег образа:            "{{ .Build }}-{{ short .Commit }}"
//   - сообщение о доступе:   "open {{ .NodeURL }}"
//   - условие стадии (when): "ne .Env.SKIP_VERIFY \"true\""
package engine
