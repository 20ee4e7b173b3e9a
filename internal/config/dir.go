package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Dir — каталог с файлами pipeline (<name>.yaml или <name>.yml).
type Dir string

// DirFromEnv возвращает PIPELINES_DIR или ./pipelines.
func DirFromEnv() Dir {
	if v := os.Getenv("PIPELINES_DIR"); v != "" {
		return Dir(v)
	}
	return Dir("pipelines")
}

// Path возвращает путь к файлу pipeline.
func (d Dir) Path(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: bad pipeline name %q", ErrInvalidConfig, name)
	}
	for _, ext := range []string{".yaml", ".yml"} {
		path := filepath.Join(string(d), name+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("pipeline %s in %s: %w", name, string(d), ErrConfigNotFound)
}

// Load загружает pipeline по имени.
func (d Dir) Load(name string, opts ...Option) (Environment, error) {
	path, err := d.Path(name)
	if err != nil {
		return Environment{}, err
	}
	return Load(path, opts...)
}

// Names возвращает имена всех pipeline в каталоге, отсортированные.
func (d Dir) Names() ([]string, error) {
	entries, err := os.ReadDir(string(d))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read pipelines dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ext)
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}
