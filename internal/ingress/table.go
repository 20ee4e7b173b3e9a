package ingress

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// PathType — способ сопоставления пути.
type PathType string

const (
	PathPrefix PathType = "Prefix"
	PathExact  PathType = "Exact"
)

// Rule — одно правило маршрутизации.
type Rule struct {
	Host           string   `yaml:"host" json:"host"`
	Path           string   `yaml:"path" json:"path"`
	PathType       PathType `yaml:"pathType" json:"path_type"`
	BackendService string   `yaml:"backendService" json:"backend_service"`
	BackendPort    int32    `yaml:"backendPort" json:"backend_port"`
}

// Backend — сервис и порт, куда уходит запрос.
type Backend struct {
	Service string `json:"service"`
	Port    int32  `json:"port"`
}

func (b Backend) String() string {
	return b.Service + ":" + strconv.Itoa(int(b.Port))
}

// Table — таблица маршрутизации.
type Table struct {
	Name      string `yaml:"name"`
	Namespace string `yaml:"namespace"`
	Class     string `yaml:"ingressClassName"`
	Rules     []Rule `yaml:"rules"`
}

// Load читает таблицу из YAML файла.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routing table: %w", err)
	}
	return Parse(data)
}

// Parse разбирает YAML таблицы и валидирует правила.
func Parse(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse routing table: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate проверяет правила и нормализует PathType.
func (t *Table) Validate() error {
	for i := range t.Rules {
		r := &t.Rules[i]

		switch strings.ToLower(string(r.PathType)) {
		case "", "prefix":
			r.PathType = PathPrefix
		case "exact":
			r.PathType = PathExact
		default:
			return fmt.Errorf("%w: rule %d: unknown pathType %q", ErrInvalidRule, i, r.PathType)
		}
		if !strings.HasPrefix(r.Path, "/") {
			return fmt.Errorf("%w: rule %d: path %q must start with /", ErrInvalidRule, i, r.Path)
		}
		if r.BackendService == "" {
			return fmt.Errorf("%w: rule %d: backendService is required", ErrInvalidRule, i)
		}
		if r.BackendPort < 1 || r.BackendPort > 65535 {
			return fmt.Errorf("%w: rule %d: backendPort %d out of range", ErrInvalidRule, i, r.BackendPort)
		}
	}
	return nil
}

// Hosts возвращает список хостов в порядке первого появления.
func (t *Table) Hosts() []string {
	seen := make(map[string]bool)
	var hosts []string
	for _, r := range t.Rules {
		if !seen[r.Host] {
			seen[r.Host] = true
			hosts = append(hosts, r.Host)
		}
	}
	return hosts
}

// Route находит backend для запроса.
//
// Сначала просматриваются правила с совпадающим host, затем правила без host.
func (t *Table) Route(host, path string) (Backend, error) {
	host = normalizeHost(host)
	if path == "" {
		path = "/"
	}

	if r := t.match(path, func(r *Rule) bool { return r.Host != "" && strings.EqualFold(r.Host, host) }); r != nil {
		return Backend{Service: r.BackendService, Port: r.BackendPort}, nil
	}
	if r := t.match(path, func(r *Rule) bool { return r.Host == "" }); r != nil {
		return Backend{Service: r.BackendService, Port: r.BackendPort}, nil
	}
	return Backend{}, fmt.Errorf("%w: %s%s", ErrNoRoute, host, path)
}

// match выбирает лучшее правило среди отфильтрованных:
// первое Exact, иначе самый длинный Prefix.
func (t *Table) match(path string, filter func(*Rule) bool) *Rule {
	var (
		best    *Rule
		bestLen = -1
	)
	for i := range t.Rules {
		r := &t.Rules[i]
		if !filter(r) {
			continue
		}
		if r.PathType == PathExact {
			if r.Path == path {
				return r
			}
			continue
		}
		if n := len(strings.TrimSuffix(r.Path, "/")); n > bestLen && prefixMatch(r.Path, path) {
			best = r
			bestLen = n
		}
	}
	return best
}

// prefixMatch сравнивает путь по элементам, разделённым '/'.
func prefixMatch(prefix, path string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return true
	}
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	rest := path[len(prefix):]
	return rest == "" || rest[0] == '/'
}

// normalizeHost убирает порт и скобки IPv6, приводит к нижнему регистру.
func normalizeHost(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	} else {
		host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	}
	return strings.ToLower(strings.TrimSuffix(host, "."))
}
