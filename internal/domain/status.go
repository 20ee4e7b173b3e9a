package domain

// RunStatus — статус выполнения pipeline run.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ FAILED
type RunStatus string

const (
	// RunStatusPending — run создан, но агент ещё не взял его в работу.
	RunStatusPending RunStatus = "PENDING"

	// RunStatusRunning — стадии выполняются.
	RunStatusRunning RunStatus = "RUNNING"

	// RunStatusSucceeded — все стадии прошли.
	RunStatusSucceeded RunStatus = "SUCCEEDED"

	// RunStatusFailed — одна из стадий упала (или run прерван).
	RunStatusFailed RunStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный (run завершён).
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusFailed:
		return true
	default:
		return false
	}
}

// Outcome — итог завершённого run.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// StageStatus — статус результата стадии.
type StageStatus string

const (
	// StageStatusPassed — стадия завершилась без ошибок.
	StageStatusPassed StageStatus = "passed"

	// StageStatusFailed — стадия завершилась ошибкой или по таймауту.
	StageStatusFailed StageStatus = "failed"

	// StageStatusSkipped — стадия не запускалась, т.к. раньше упала другая.
	StageStatusSkipped StageStatus = "skipped"
)

// FailureReason уточняет, почему стадия упала.
type FailureReason string

const (
	ReasonNone      FailureReason = ""
	ReasonError     FailureReason = "error"
	ReasonTimeout   FailureReason = "timeout"
	ReasonCancelled FailureReason = "cancelled"
	ReasonPanic     FailureReason = "panic"
)

// ParseRunStatus парсит строку в RunStatus.
func ParseRunStatus(s string) RunStatus {
	switch s {
	case "RUNNING":
		return RunStatusRunning
	case "SUCCEEDED":
		return RunStatusSucceeded
	case "FAILED":
		return RunStatusFailed
	default:
		return RunStatusPending
	}
}
