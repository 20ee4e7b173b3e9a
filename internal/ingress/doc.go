// Package ingress хранит таблицу маршрутизации host+path → service:port.
//
// Таблица читается из YAML, отвечает на запрос Route(host, path)
// и превращается в объекты networking.k8s.io/v1 Ingress для применения в кластере.
//
// Правила сопоставления:
//   - host сравнивается без учёта регистра; пустой host в правиле подходит любому
//   - Exact совпадает только с полным путём и имеет приоритет над Prefix
//   - Prefix сравнивается по элементам пути: /foo подходит /foo и /foo/bar, но не /foobar
//   - из нескольких Prefix выигрывает самый длинный
package ingress
