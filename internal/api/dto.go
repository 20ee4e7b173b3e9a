package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Shipyard/internal/domain"
	"github.com/shaiso/Shipyard/internal/ingress"
)

// Run DTOs

// CreateRunRequest — запрос на ручной запуск pipeline.
type CreateRunRequest struct {
	Pipeline       string `json:"pipeline"`
	Revision       string `json:"revision,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// RunResponse — ответ с run.
type RunResponse struct {
	ID             uuid.UUID         `json:"id"`
	BuildNumber    int64             `json:"build_number"`
	Pipeline       string            `json:"pipeline"`
	Revision       string            `json:"revision,omitempty"`
	Trigger        string            `json:"trigger,omitempty"`
	Status         string            `json:"status"`
	Outcome        string            `json:"outcome,omitempty"`
	Environment    map[string]string `json:"environment,omitempty"`
	Error          string            `json:"error,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	StartedAt      *time.Time        `json:"started_at,omitempty"`
	FinishedAt     *time.Time        `json:"finished_at,omitempty"`
	DurationMS     int64             `json:"duration_ms,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// RunFromDomain конвертирует domain.PipelineRun в RunResponse.
func RunFromDomain(r *domain.PipelineRun) RunResponse {
	return RunResponse{
		ID:             r.ID,
		BuildNumber:    r.BuildNumber,
		Pipeline:       r.Pipeline,
		Revision:       r.Revision,
		Trigger:        r.Trigger,
		Status:         string(r.Status),
		Outcome:        string(r.Outcome),
		Environment:    r.Environment,
		Error:          r.Error,
		IdempotencyKey: r.IdempotencyKey,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
		DurationMS:     r.Duration().Milliseconds(),
		CreatedAt:      r.CreatedAt,
	}
}

// Stage DTOs

// StageResponse — результат стадии.
type StageResponse struct {
	Stage        string     `json:"stage"`
	Status       string     `json:"status"`
	Reason       string     `json:"reason,omitempty"`
	Output       string     `json:"output,omitempty"`
	Error        string     `json:"error,omitempty"`
	AllowFailure bool       `json:"allow_failure,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	DurationMS   int64      `json:"duration_ms"`
}

// StagesResponse — результаты основных и post стадий run.
type StagesResponse struct {
	RunID  uuid.UUID       `json:"run_id"`
	Stages []StageResponse `json:"stages"`
	Post   []StageResponse `json:"post"`
}

// StageFromDomain конвертирует domain.StageResult в StageResponse.
func StageFromDomain(s domain.StageResult) StageResponse {
	return StageResponse{
		Stage:        string(s.Stage),
		Status:       string(s.Status),
		Reason:       string(s.Reason),
		Output:       s.Output,
		Error:        s.Error,
		AllowFailure: s.AllowFailure,
		StartedAt:    s.StartedAt,
		FinishedAt:   s.FinishedAt,
		DurationMS:   s.Duration.Milliseconds(),
	}
}

func stagesFromDomain(results []domain.StageResult) []StageResponse {
	out := make([]StageResponse, len(results))
	for i, s := range results {
		out[i] = StageFromDomain(s)
	}
	return out
}

// Hook DTOs

// PushHookRequest — событие push из репозитория исходников.
type PushHookRequest struct {
	Pipeline   string `json:"pipeline"`
	Repository string `json:"repository"`
	Branch     string `json:"branch,omitempty"`
	Commit     string `json:"commit"`
}

// Ingress DTOs

// RouteResponse — результат сопоставления запроса с таблицей маршрутизации.
type RouteResponse struct {
	Host    string          `json:"host"`
	Path    string          `json:"path"`
	Backend ingress.Backend `json:"backend"`
	Target  string          `json:"target"`
}
