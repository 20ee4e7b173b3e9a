package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Provider разрешает ключ в значение секрета.
type Provider interface {
	// Scheme возвращает схему, которую обслуживает провайдер.
	Scheme() string

	// Resolve возвращает значение секрета.
	Resolve(ctx context.Context, key string) ([]byte, error)
}

// EnvProvider читает секреты из переменных окружения.
type EnvProvider struct {
	// Lookup по умолчанию os.LookupEnv.
	Lookup func(string) (string, bool)
}

func (p EnvProvider) Scheme() string { return "env" }

func (p EnvProvider) Resolve(_ context.Context, key string) ([]byte, error) {
	lookup := p.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	v, ok := lookup(key)
	if !ok {
		return nil, fmt.Errorf("env %s: %w", key, ErrSecretNotFound)
	}
	return []byte(v), nil
}

// FileProvider читает секреты из файлов.
//
// Ключ — абсолютный путь либо путь относительно Dir.
type FileProvider struct {
	Dir string
}

func (p FileProvider) Scheme() string { return "file" }

func (p FileProvider) Resolve(_ context.Context, key string) ([]byte, error) {
	path := key
	if p.Dir != "" && !strings.HasPrefix(key, "/") {
		path = p.Dir + "/" + key
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file %s: %w", path, ErrSecretNotFound)
		}
		return nil, fmt.Errorf("read secret file: %w", err)
	}
	return data, nil
}
