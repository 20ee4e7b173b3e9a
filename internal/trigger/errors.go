package trigger

import "errors"

var (
	// ErrInvalidSchedule — некорректное cron-выражение.
	ErrInvalidSchedule = errors.New("invalid schedule")

	// ErrAlreadyStarted — Start вызван повторно.
	ErrAlreadyStarted = errors.New("trigger already started")
)
