package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/shaiso/Shipyard/internal/domain"
	"github.com/shaiso/Shipyard/internal/repo"
)

// ListRuns возвращает список runs с фильтрацией.
// GET /api/v1/runs?pipeline=...&status=...&limit=...&offset=...
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repo.RunFilter{
		Pipeline: q.Get("pipeline"),
		Status:   domain.RunStatus(q.Get("status")),
		Limit:    parseInt(q.Get("limit"), 50),
		Offset:   parseInt(q.Get("offset"), 0),
	}

	runs, err := h.runs.List(r.Context(), filter)
	if HandleError(w, h.logger, err, "") {
		return
	}

	result := make([]RunResponse, len(runs))
	for i, run := range runs {
		result[i] = RunFromDomain(run)
	}

	List(w, result, len(result))
}

// CreateRun создаёт PENDING run для pipeline.
// POST /api/v1/runs
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.Pipeline == "" {
		BadRequest(w, "pipeline is required")
		return
	}

	run := domain.NewPipelineRun(req.Pipeline, 0, nil)
	run.Revision = req.Revision
	run.Trigger = "manual"
	run.IdempotencyKey = req.IdempotencyKey

	h.submit(w, r, run)
}

// GetRun возвращает run по ID.
// GET /api/v1/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	run, err := h.runs.GetByID(r.Context(), id)
	if HandleError(w, h.logger, err, "run not found") {
		return
	}

	Success(w, RunFromDomain(run))
}

// ListRunStages возвращает результаты стадий run.
// GET /api/v1/runs/{id}/stages
func (h *Handler) ListRunStages(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	// Проверяем, что run существует
	if _, err := h.runs.GetByID(r.Context(), id); HandleError(w, h.logger, err, "run not found") {
		return
	}

	main, post, err := h.runs.ListStages(r.Context(), id)
	if HandleError(w, h.logger, err, "") {
		return
	}

	Success(w, StagesResponse{
		RunID:  id,
		Stages: stagesFromDomain(main),
		Post:   stagesFromDomain(post),
	})
}

// submit сохраняет новый run и публикует run.requested.
//
// Если run с тем же ключом идемпотентности уже есть, возвращает его (200)
// вместо создания нового.
func (h *Handler) submit(w http.ResponseWriter, r *http.Request, run *domain.PipelineRun) {
	if _, err := h.pipelines.Path(run.Pipeline); HandleError(w, h.logger, err, "") {
		return
	}

	if run.IdempotencyKey != "" {
		existing, err := h.runs.GetByIdempotencyKey(r.Context(), run.Pipeline, run.IdempotencyKey)
		if err == nil {
			Success(w, RunFromDomain(existing))
			return
		}
		if !errors.Is(err, repo.ErrNotFound) {
			InternalError(w, h.logger, err)
			return
		}
	}

	if err := h.runs.Create(r.Context(), run); err != nil {
		// Параллельный запрос с тем же ключом успел раньше
		if errors.Is(err, repo.ErrAlreadyExists) && run.IdempotencyKey != "" {
			existing, err := h.runs.GetByIdempotencyKey(r.Context(), run.Pipeline, run.IdempotencyKey)
			if HandleError(w, h.logger, err, "run not found") {
				return
			}
			Success(w, RunFromDomain(existing))
			return
		}
		HandleError(w, h.logger, err, "")
		return
	}

	h.logger.Info("run created",
		"run_id", run.ID,
		"pipeline", run.Pipeline,
		"build", run.BuildNumber,
		"trigger", run.Trigger,
	)

	// Публикуем событие в очередь
	if h.publisher != nil {
		if err := h.publisher.PublishRunRequested(r.Context(), run); err != nil {
			h.logger.Warn("failed to publish run.requested", "run_id", run.ID, "error", err)
		}
	}

	Created(w, RunFromDomain(run))
}

// parseInt парсит строку в int с дефолтным значением.
func parseInt(s string, defaultVal int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}
