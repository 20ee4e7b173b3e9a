package domain

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrRunFinished — попытка изменить завершённый run.
var ErrRunFinished = errors.New("pipeline run already finished")

// PipelineRun — одно выполнение pipeline для конкретной сборки.
//
// Run создаётся когда:
// - Пользователь запускает pipeline вручную (через API/CLI)
// - Приходит push-хук из репозитория
// - Trigger обнаруживает новый коммит при опросе
//
// Пока run выполняется, им владеет оркестратор. После завершения
// (SUCCEEDED/FAILED) run заморожен: Append* возвращают ErrRunFinished.
type PipelineRun struct {
	mu sync.Mutex

	// ID — уникальный идентификатор run.
	ID uuid.UUID `json:"id"`

	// BuildNumber — монотонно растущий номер сборки.
	BuildNumber int64 `json:"build_number"`

	// Pipeline — имя pipeline (из конфигурационного файла).
	Pipeline string `json:"pipeline"`

	// Environment — именованные значения окружения.
	// Содержит только ссылки на секреты, но не сами значения.
	Environment map[string]string `json:"environment,omitempty"`

	// Revision — ревизия исходников (ветка, тег или коммит).
	Revision string `json:"revision,omitempty"`

	// Trigger — источник запуска: manual, push, poll.
	Trigger string `json:"trigger,omitempty"`

	// Status — текущий статус выполнения.
	Status RunStatus `json:"status"`

	// Outcome — итог (success/failure), заполняется при завершении.
	Outcome Outcome `json:"outcome,omitempty"`

	// Stages — результаты основных стадий в порядке их определения.
	Stages []StageResult `json:"stages,omitempty"`

	// Post — результаты post-стадий.
	Post []StageResult `json:"post,omitempty"`

	// Error — текст ошибки упавшей стадии.
	Error string `json:"error,omitempty"`

	// IdempotencyKey — ключ идемпотентности, например "{repo}@{commit}".
	IdempotencyKey string `json:"idempotency_key,omitempty"`

	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NewPipelineRun создаёт run в статусе PENDING.
func NewPipelineRun(pipeline string, buildNumber int64, env map[string]string) *PipelineRun {
	copied := make(map[string]string, len(env))
	for k, v := range env {
		copied[k] = v
	}
	return &PipelineRun{
		ID:          uuid.New(),
		BuildNumber: buildNumber,
		Pipeline:    pipeline,
		Environment: copied,
		Status:      RunStatusPending,
		CreatedAt:   time.Now(),
	}
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если run ещё не завершён.
func (r *PipelineRun) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// IsFinished возвращает true, если run завершён.
func (r *PipelineRun) IsFinished() bool {
	return r.Status.IsTerminal()
}

// MarkRunning переводит run в статус RUNNING.
func (r *PipelineRun) MarkRunning() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	r.Status = RunStatusRunning
	r.StartedAt = &now
}

// AppendStage добавляет результат основной стадии.
func (r *PipelineRun) AppendStage(res StageResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Status.IsTerminal() {
		return ErrRunFinished
	}
	r.Stages = append(r.Stages, res)
	return nil
}

// AppendPost добавляет результат post-стадии.
func (r *PipelineRun) AppendPost(res StageResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Status.IsTerminal() {
		return ErrRunFinished
	}
	r.Post = append(r.Post, res)
	return nil
}

// Finish замораживает run с указанным итогом.
func (r *PipelineRun) Finish(outcome Outcome, errText string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	r.Outcome = outcome
	r.FinishedAt = &now
	r.Error = errText
	if outcome == OutcomeSuccess {
		r.Status = RunStatusSucceeded
	} else {
		r.Status = RunStatusFailed
	}
}

// StageResult возвращает результат стадии по имени.
func (r *PipelineRun) StageResult(name StageName) (StageResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, res := range r.Stages {
		if res.Stage == name {
			return res, true
		}
	}
	for _, res := range r.Post {
		if res.Stage == name {
			return res, true
		}
	}
	return StageResult{}, false
}

// CommitKey возвращает ключ идемпотентности для сборки коммита: "{repo}@{commit}".
func CommitKey(repo, commit string) string {
	return repo + "@" + commit
}
