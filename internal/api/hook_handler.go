package api

import (
	"encoding/json"
	"net/http"

	"github.com/shaiso/Shipyard/internal/domain"
)

// PushHook создаёт run для нового коммита.
// POST /api/v1/hooks/push
//
// Повторная доставка хука для того же коммита возвращает уже созданный run.
func (h *Handler) PushHook(w http.ResponseWriter, r *http.Request) {
	var req PushHookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.Pipeline == "" || req.Repository == "" || req.Commit == "" {
		BadRequest(w, "pipeline, repository and commit are required")
		return
	}

	run := domain.NewPipelineRun(req.Pipeline, 0, nil)
	run.Revision = req.Commit
	run.Trigger = "push"
	run.IdempotencyKey = domain.CommitKey(req.Repository, req.Commit)

	h.submit(w, r, run)
}
