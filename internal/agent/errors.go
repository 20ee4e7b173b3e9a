package agent

import "errors"

// Ошибки агента.
var (
	// ErrRunNotFound — run не найден в БД.
	ErrRunNotFound = errors.New("run not found")

	// ErrRunNotPending — run не в статусе PENDING или уже забран другим агентом.
	ErrRunNotPending = errors.New("run is not in PENDING status")

	// ErrRunAlreadyActive — run уже выполняется этим агентом.
	ErrRunAlreadyActive = errors.New("run already being processed")
)
