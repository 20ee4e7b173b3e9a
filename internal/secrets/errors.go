package secrets

import "errors"

var (
	// ErrUnknownScheme — нет провайдера для схемы ссылки.
	ErrUnknownScheme = errors.New("unknown credential scheme")

	// ErrSecretNotFound — провайдер не нашёл секрет.
	ErrSecretNotFound = errors.New("secret not found")

	// ErrNotInScope — стадия запросила секрет, который не объявляла.
	ErrNotInScope = errors.New("credential not declared for this stage")

	// ErrScopeReleased — обращение к уже закрытому scope.
	ErrScopeReleased = errors.New("credential scope released")
)
