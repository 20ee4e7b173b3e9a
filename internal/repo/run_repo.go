package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Shipyard/internal/domain"
)

// pgUniqueViolation — код ошибки PostgreSQL для нарушения уникальности.
const pgUniqueViolation = "23505"

// RunRepo — репозиторий для работы с pipeline runs и результатами стадий.
//
// Реализует orchestrator.Recorder.
type RunRepo struct {
	pool *pgxpool.Pool
}

// NewRunRepo создаёт новый RunRepo.
func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

const runColumns = `id, build_number, pipeline, environment, revision, trigger, status,
		       outcome, error, idempotency_key, started_at, finished_at, created_at`

// Create создаёт новый run.
//
// Если BuildNumber == 0, номер сборки берётся из последовательности
// pipeline_runs_build_number_seq и записывается в run.
// При конфликте ключа идемпотентности возвращает ErrAlreadyExists.
func (r *RunRepo) Create(ctx context.Context, run *domain.PipelineRun) error {
	envJSON, err := json.Marshal(run.Environment)
	if err != nil {
		return fmt.Errorf("marshal environment: %w", err)
	}

	var build *int64
	if run.BuildNumber > 0 {
		build = &run.BuildNumber
	}

	query := `
		INSERT INTO pipeline_runs (id, build_number, pipeline, environment, revision, trigger,
		                           status, idempotency_key, created_at)
		VALUES ($1, COALESCE($2, nextval('pipeline_runs_build_number_seq')), $3, $4, $5, $6, $7, $8, $9)
		RETURNING build_number
	`
	err = r.pool.QueryRow(ctx, query,
		run.ID,
		build,
		run.Pipeline,
		envJSON,
		nullString(run.Revision),
		nullString(run.Trigger),
		run.Status,
		nullString(run.IdempotencyKey),
		run.CreatedAt,
	).Scan(&run.BuildNumber)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetByID возвращает run по ID вместе с результатами стадий.
func (r *RunRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PipelineRun, error) {
	query := `SELECT ` + runColumns + ` FROM pipeline_runs WHERE id = $1`

	run, err := scanRun(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}

	run.Stages, run.Post, err = r.ListStages(ctx, id)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// GetByIdempotencyKey возвращает run по ключу идемпотентности.
func (r *RunRepo) GetByIdempotencyKey(ctx context.Context, pipeline, key string) (*domain.PipelineRun, error) {
	query := `SELECT ` + runColumns + ` FROM pipeline_runs WHERE pipeline = $1 AND idempotency_key = $2`
	return scanRun(r.pool.QueryRow(ctx, query, pipeline, key))
}

// List возвращает список runs с фильтрацией, новые первыми.
func (r *RunRepo) List(ctx context.Context, filter RunFilter) ([]*domain.PipelineRun, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT ` + runColumns + `
		FROM pipeline_runs
		WHERE ($1::text IS NULL OR pipeline = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query,
		nullString(filter.Pipeline),
		nullString(string(filter.Status)),
		limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return collectRuns(rows)
}

// ListPending возвращает runs в статусе PENDING, старые первыми.
func (r *RunRepo) ListPending(ctx context.Context, limit int) ([]*domain.PipelineRun, error) {
	query := `
		SELECT ` + runColumns + `
		FROM pipeline_runs
		WHERE status = 'PENDING'
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending runs: %w", err)
	}
	return collectRuns(rows)
}

// Claim атомарно переводит run из PENDING в RUNNING.
//
// Возвращает ErrInvalidState, если run уже забрал другой агент.
func (r *RunRepo) Claim(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE pipeline_runs
		SET status = 'RUNNING', started_at = now()
		WHERE id = $1 AND status = 'PENDING'
	`
	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("claim run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

// UpdateRun сохраняет статус, итог и окружение run.
func (r *RunRepo) UpdateRun(ctx context.Context, run *domain.PipelineRun) error {
	envJSON, err := json.Marshal(run.Environment)
	if err != nil {
		return fmt.Errorf("marshal environment: %w", err)
	}

	query := `
		UPDATE pipeline_runs
		SET status = $2, outcome = $3, error = $4, environment = $5,
		    started_at = $6, finished_at = $7
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		run.ID,
		run.Status,
		nullString(string(run.Outcome)),
		nullString(run.Error),
		envJSON,
		run.StartedAt,
		run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordStage сохраняет результат стадии. Повторная запись перезаписывает результат.
func (r *RunRepo) RecordStage(ctx context.Context, runID uuid.UUID, phase domain.Phase, seq int, res domain.StageResult) error {
	query := `
		INSERT INTO stage_results (run_id, phase, seq, stage, status, reason, output, error,
		                           allow_failure, started_at, finished_at, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (run_id, phase, seq) DO UPDATE
		SET stage = EXCLUDED.stage, status = EXCLUDED.status, reason = EXCLUDED.reason,
		    output = EXCLUDED.output, error = EXCLUDED.error,
		    allow_failure = EXCLUDED.allow_failure, started_at = EXCLUDED.started_at,
		    finished_at = EXCLUDED.finished_at, duration_ms = EXCLUDED.duration_ms
	`
	_, err := r.pool.Exec(ctx, query,
		runID,
		phase,
		seq,
		res.Stage,
		res.Status,
		nullString(string(res.Reason)),
		nullString(res.Output),
		nullString(res.Error),
		res.AllowFailure,
		res.StartedAt,
		res.FinishedAt,
		res.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("record stage %s: %w", res.Stage, err)
	}
	return nil
}

// ListStages возвращает результаты основных и post стадий в порядке выполнения.
func (r *RunRepo) ListStages(ctx context.Context, runID uuid.UUID) (main, post []domain.StageResult, err error) {
	query := `
		SELECT phase, stage, status, reason, output, error, allow_failure,
		       started_at, finished_at, duration_ms
		FROM stage_results
		WHERE run_id = $1
		ORDER BY phase, seq
	`
	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, nil, fmt.Errorf("list stages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			phase      domain.Phase
			res        domain.StageResult
			reason     *string
			output     *string
			stageError *string
			durationMS int64
		)
		if err := rows.Scan(
			&phase,
			&res.Stage,
			&res.Status,
			&reason,
			&output,
			&stageError,
			&res.AllowFailure,
			&res.StartedAt,
			&res.FinishedAt,
			&durationMS,
		); err != nil {
			return nil, nil, fmt.Errorf("scan stage: %w", err)
		}
		res.Reason = domain.FailureReason(deref(reason))
		res.Output = deref(output)
		res.Error = deref(stageError)
		res.Duration = time.Duration(durationMS) * time.Millisecond

		if phase == domain.PhasePost {
			post = append(post, res)
		} else {
			main = append(main, res)
		}
	}
	return main, post, rows.Err()
}

// --- Helpers ---

// RunFilter — параметры фильтрации runs.
type RunFilter struct {
	Pipeline string
	Status   domain.RunStatus
	Limit    int
	Offset   int
}

// scanRun сканирует одну строку в PipelineRun.
func scanRun(row pgx.Row) (*domain.PipelineRun, error) {
	var (
		run            domain.PipelineRun
		envJSON        []byte
		revision       *string
		trigger        *string
		outcome        *string
		runError       *string
		idempotencyKey *string
	)

	err := row.Scan(
		&run.ID,
		&run.BuildNumber,
		&run.Pipeline,
		&envJSON,
		&revision,
		&trigger,
		&run.Status,
		&outcome,
		&runError,
		&idempotencyKey,
		&run.StartedAt,
		&run.FinishedAt,
		&run.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	if envJSON != nil {
		if err := json.Unmarshal(envJSON, &run.Environment); err != nil {
			return nil, fmt.Errorf("unmarshal environment: %w", err)
		}
	}

	run.Revision = deref(revision)
	run.Trigger = deref(trigger)
	run.Outcome = domain.Outcome(deref(outcome))
	run.Error = deref(runError)
	run.IdempotencyKey = deref(idempotencyKey)

	return &run, nil
}

func collectRuns(rows pgx.Rows) ([]*domain.PipelineRun, error) {
	defer rows.Close()

	var runs []*domain.PipelineRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// isUniqueViolation проверяет, что ошибка — нарушение уникального индекса.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
