package config

import "errors"

var (
	// ErrInvalidConfig — конфигурация pipeline не прошла валидацию.
	ErrInvalidConfig = errors.New("invalid pipeline config")

	// ErrConfigNotFound — файл pipeline не найден.
	ErrConfigNotFound = errors.New("pipeline config not found")
)
