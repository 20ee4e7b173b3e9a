package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
)

// Context — контекст для рендеринга шаблонов.
//
// Используется в Go templates для доступа к данным:
//   - {{ .Build }}, {{ .Pipeline }}, {{ .Revision }}, {{ .Commit }}
//   - {{ .Image }} — полная ссылка на образ
//   - {{ .NodeURL }} — адрес сервиса после деплоя
//   - {{ (index .Stages "build-image").Status }}
//   - {{ .Env.VAR_NAME }}
type Context struct {
	Build     int64  `json:"build"`
	Pipeline  string `json:"pipeline"`
	Revision  string `json:"revision"`
	Commit    string `json:"commit"`
	Image     string `json:"image"`
	Namespace string `json:"namespace"`
	Service   string `json:"service"`
	NodeURL   string `json:"node_url"`

	// Stages — результаты выполненных стадий.
	Stages map[string]*StageContext `json:"stages"`

	// Env — именованные значения окружения run (без секретов).
	Env map[string]string `json:"env"`
}

// StageContext — результат стадии для использования в шаблонах.
type StageContext struct {
	// Status — passed, failed, skipped.
	Status string `json:"status"`

	// Output — захваченный вывод.
	Output string `json:"output"`
}

// NewContext создаёт новый контекст для сборки.
func NewContext(pipeline string, build int64) *Context {
	return &Context{
		Build:    build,
		Pipeline: pipeline,
		Stages:   make(map[string]*StageContext),
		Env:      make(map[string]string),
	}
}

// AddStageResult добавляет результат стадии в контекст.
func (c *Context) AddStageResult(stage, status, output string) {
	c.Stages[stage] = &StageContext{
		Status: status,
		Output: output,
	}
}

// SetEnv устанавливает именованное значение.
func (c *Context) SetEnv(key, value string) {
	c.Env[key] = value
}

// Clone возвращает глубокую копию контекста.
func (c *Context) Clone() *Context {
	out := *c
	out.Stages = make(map[string]*StageContext, len(c.Stages))
	for k, v := range c.Stages {
		sc := *v
		out.Stages[k] = &sc
	}
	out.Env = make(map[string]string, len(c.Env))
	for k, v := range c.Env {
		out.Env[k] = v
	}
	return &out
}

// templateFuncs — дополнительные функции для шаблонов.
var templateFuncs = template.FuncMap{
	// json — сериализует значение в JSON строку
	"json": func(v any) string {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("error: %v", err)
		}
		return string(b)
	},

	// default — возвращает значение по умолчанию, если первый аргумент пустой
	"default": func(def, val any) any {
		if val == nil {
			return def
		}
		if s, ok := val.(string); ok && s == "" {
			return def
		}
		return val
	},

	// coalesce — возвращает первое непустое значение
	"coalesce": func(values ...any) any {
		for _, v := range values {
			if v != nil {
				if s, ok := v.(string); ok && s == "" {
					continue
				}
				return v
			}
		}
		return nil
	},

	// toJSON — алиас для json
	"toJSON": func(v any) string {
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	},

	// fromJSON — парсит JSON строку
	"fromJSON": func(s string) any {
		var result any
		if err := json.Unmarshal([]byte(s), &result); err != nil {
			return nil
		}
		return result
	},

	// join — объединяет слайс строк
	"join": func(sep string, items []string) string {
		return strings.Join(items, sep)
	},

	// split — разбивает строку на слайс
	"split": func(sep, s string) []string {
		return strings.Split(s, sep)
	},

	// contains — проверяет, содержит ли строка подстроку
	"contains": strings.Contains,

	// hasPrefix — проверяет префикс строки
	"hasPrefix": strings.HasPrefix,

	// hasSuffix — проверяет суффикс строки
	"hasSuffix": strings.HasSuffix,

	// lower — приводит к нижнему регистру
	"lower": strings.ToLower,

	// upper — приводит к верхнему регистру
	"upper": strings.ToUpper,

	// trim — удаляет пробелы по краям
	"trim": strings.TrimSpace,

	// replace — заменяет подстроку
	"replace": strings.ReplaceAll,

	// short — первые 7 символов (короткий commit sha)
	"short": func(s string) string {
		if len(s) > 7 {
			return s[:7]
		}
		return s
	},
}

// Render рендерит строковый шаблон с контекстом.
//
// Шаблон может содержать Go template выражения:
//
//	{{ .Build }}
//	{{ .Env.REGISTRY }}
//	{{ if .NodeURL }}...{{ end }}
func Render(tmpl string, ctx *Context) (string, error) {
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}

	t, err := template.New("").Funcs(templateFuncs).Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateParse, err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}

	return buf.String(), nil
}

// RenderMap рендерит значения map (labels, annotations, env деплоя).
func RenderMap(values map[string]string, ctx *Context) (map[string]string, error) {
	if values == nil {
		return nil, nil
	}
	result := make(map[string]string, len(values))
	for key, val := range values {
		rendered, err := Render(val, ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		result[key] = rendered
	}
	return result, nil
}

// RenderCondition рендерит и вычисляет условие.
// Возвращает true, если условие выполняется.
func RenderCondition(condition string, ctx *Context) (bool, error) {
	if condition == "" {
		return true, nil
	}

	tmpl := fmt.Sprintf(`{{if %s}}true{{else}}false{{end}}`, condition)

	result, err := Render(tmpl, ctx)
	if err != nil {
		return false, err
	}

	return result == "true", nil
}

// MustRender рендерит шаблон и паникует при ошибке.
// Используется только для тестов.
func MustRender(tmpl string, ctx *Context) string {
	result, err := Render(tmpl, ctx)
	if err != nil {
		panic(err)
	}
	return result
}
