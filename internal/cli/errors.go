package cli

import "errors"

var (
	// ErrRunFailed — локальный run завершился с outcome failure.
	ErrRunFailed = errors.New("run failed")
)
