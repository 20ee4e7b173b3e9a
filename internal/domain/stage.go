package domain

import "time"

// StageName — имя стадии pipeline.
type StageName string

// Стадии в порядке выполнения.
const (
	StageValidateEnvironment StageName = "validate-environment"
	StageCheckoutSource      StageName = "checkout-source"
	StageBuildImage          StageName = "build-image"
	StagePushImage           StageName = "push-image"
	StageDeployToCluster     StageName = "deploy-to-cluster"
	StageVerifyDeployment    StageName = "verify-deployment"
)

// Post-стадии.
const (
	StageReportAccess       StageName = "report-access"
	StageCollectDiagnostics StageName = "collect-diagnostics"
	StageCleanup            StageName = "cleanup"
)

// StageOrder — фиксированный порядок основных стадий.
var StageOrder = []StageName{
	StageValidateEnvironment,
	StageCheckoutSource,
	StageBuildImage,
	StagePushImage,
	StageDeployToCluster,
	StageVerifyDeployment,
}

// Phase — фаза run, к которой относится результат стадии.
type Phase string

const (
	PhaseMain Phase = "main"
	PhasePost Phase = "post"
)

// PostCondition — когда выполняется post-стадия.
type PostCondition string

const (
	PostAlways    PostCondition = "always"
	PostOnSuccess PostCondition = "on_success"
	PostOnFailure PostCondition = "on_failure"
)

// Applies возвращает true, если post-стадия должна выполниться при данном итоге.
func (c PostCondition) Applies(outcome Outcome) bool {
	switch c {
	case PostAlways:
		return true
	case PostOnSuccess:
		return outcome == OutcomeSuccess
	case PostOnFailure:
		return outcome == OutcomeFailure
	default:
		return false
	}
}

// StageResult — результат выполнения одной стадии в рамках run.
//
// Создаётся при старте стадии, после завершения не меняется.
type StageResult struct {
	// Stage — имя стадии.
	Stage StageName `json:"stage"`

	// Status — passed, failed или skipped.
	Status StageStatus `json:"status"`

	// Output — захваченный вывод стадии.
	Output string `json:"output,omitempty"`

	// Error — текст ошибки для failed.
	Error string `json:"error,omitempty"`

	// Reason — причина падения (error, timeout, cancelled, panic).
	Reason FailureReason `json:"reason,omitempty"`

	// AllowFailure — стадия была помечена как допускающая падение.
	AllowFailure bool `json:"allow_failure,omitempty"`

	StartedAt  *time.Time    `json:"started_at,omitempty"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Skipped создаёт результат для стадии, которая не запускалась.
func Skipped(name StageName) StageResult {
	return StageResult{Stage: name, Status: StageStatusSkipped}
}

// Failed возвращает true, если стадия упала.
func (r StageResult) Failed() bool {
	return r.Status == StageStatusFailed
}
