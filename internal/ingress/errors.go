package ingress

import "errors"

var (
	// ErrNoRoute — ни одно правило не подошло.
	ErrNoRoute = errors.New("no route for request")

	// ErrInvalidRule — правило таблицы некорректно.
	ErrInvalidRule = errors.New("invalid routing rule")
)
