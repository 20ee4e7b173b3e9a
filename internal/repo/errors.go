package repo

import "errors"

var (
	// ErrNotFound — run с таким ID или ключом идемпотентности нет.
	ErrNotFound = errors.New("run not found")

	// ErrAlreadyExists — run с тем же pipeline и ключом идемпотентности уже создан.
	ErrAlreadyExists = errors.New("run with this idempotency key already exists")

	// ErrInvalidState — run уже не в PENDING (забран другим агентом или завершён).
	ErrInvalidState = errors.New("run is not pending")
)
