package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrStageTimeout — стадия не уложилась в отведённое время.
	ErrStageTimeout = errors.New("stage timed out")

	// ErrStageCancelled — run отменён во время стадии.
	ErrStageCancelled = errors.New("stage cancelled")

	// ErrStagePanic — стадия завершилась паникой.
	ErrStagePanic = errors.New("stage panicked")

	// ErrWorkspace — не удалось подготовить рабочую директорию.
	ErrWorkspace = errors.New("prepare workspace")

	// ErrRecordFailed — не удалось сохранить run.
	ErrRecordFailed = errors.New("record run")
)
