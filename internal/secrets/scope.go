package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// Scope — секреты одной стадии.
//
// Значения доступны только через Get/File до вызова Release.
// Release затирает значения и удаляет созданные файлы; повторный вызов безопасен.
type Scope struct {
	mu        sync.Mutex
	stage     string
	values    map[string][]byte
	tempDir   string
	dir       string
	released  bool
	onRelease func()
}

// Get возвращает значение секрета по имени.
func (s *Scope) Get(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return "", ErrScopeReleased
	}
	v, ok := s.values[name]
	if !ok {
		return "", fmt.Errorf("%s: %w", name, ErrNotInScope)
	}
	return string(v), nil
}

// Has возвращает true, если секрет с таким именем есть в scope.
func (s *Scope) Has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.values[name]
	return ok && !s.released
}

// File записывает секрет во временный файл (0600) и возвращает путь.
// Файл удаляется при Release.
func (s *Scope) File(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return "", ErrScopeReleased
	}
	v, ok := s.values[name]
	if !ok {
		return "", fmt.Errorf("%s: %w", name, ErrNotInScope)
	}

	if s.dir == "" {
		dir, err := os.MkdirTemp(s.tempDir, "shipyard-"+s.stage+"-")
		if err != nil {
			return "", fmt.Errorf("create scope dir: %w", err)
		}
		s.dir = dir
	}

	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, v, 0o600); err != nil {
		return "", fmt.Errorf("write secret file: %w", err)
	}
	return path, nil
}

// Redact заменяет значения секретов в тексте на "****".
//
// Маскируется любое непустое значение и его вариант без окружающих
// пробелов. Длинные значения заменяются первыми.
func (s *Scope) Redact(text string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var needles []string
	for _, v := range s.values {
		for _, n := range []string{string(v), strings.TrimSpace(string(v))} {
			if n != "" && !slices.Contains(needles, n) {
				needles = append(needles, n)
			}
		}
	}
	slices.SortFunc(needles, func(a, b string) int { return len(b) - len(a) })

	for _, n := range needles {
		text = strings.ReplaceAll(text, n, "****")
	}
	return text
}

// Release затирает значения и удаляет файлы.
func (s *Scope) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return
	}
	s.released = true

	for name, v := range s.values {
		for i := range v {
			v[i] = 0
		}
		delete(s.values, name)
	}
	if s.dir != "" {
		_ = os.RemoveAll(s.dir)
		s.dir = ""
	}
	if s.onRelease != nil {
		s.onRelease()
	}
}

// Released возвращает true после Release.
func (s *Scope) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}
