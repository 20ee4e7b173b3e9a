package domain

import (
	"errors"
	"strings"
)

// ErrInvalidCredentialRef — ссылка на секрет не в формате "scheme:key".
var ErrInvalidCredentialRef = errors.New("invalid credential reference")

// CredentialRef — ссылка на секрет вида "scheme:key".
//
// Примеры:
//
//	env:REGISTRY_PASSWORD
//	file:/run/secrets/kubeconfig
//	aws:prod/registry#password
//
// В run хранится только сама ссылка. Значение разрешается
// внутри стадии, которая его запросила.
type CredentialRef string

// Parse разбивает ссылку на схему и ключ.
func (c CredentialRef) Parse() (scheme, key string, err error) {
	scheme, key, ok := strings.Cut(string(c), ":")
	if !ok || scheme == "" || key == "" {
		return "", "", ErrInvalidCredentialRef
	}
	return scheme, key, nil
}

// IsZero возвращает true для пустой ссылки.
func (c CredentialRef) IsZero() bool {
	return c == ""
}

func (c CredentialRef) String() string {
	return string(c)
}
