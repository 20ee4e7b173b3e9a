package api

import (
	"net/http"
)

// RouteIngress показывает, какой сервис получит запрос.
// GET /api/v1/ingress/route?host=...&path=...
func (h *Handler) RouteIngress(w http.ResponseWriter, r *http.Request) {
	if h.routes == nil {
		NotFound(w, "routing table is not configured")
		return
	}

	host := r.URL.Query().Get("host")
	path := r.URL.Query().Get("path")
	if path == "" {
		path = "/"
	}

	backend, err := h.routes.Route(host, path)
	if HandleError(w, h.logger, err, "") {
		return
	}

	Success(w, RouteResponse{
		Host:    host,
		Path:    path,
		Backend: backend,
		Target:  backend.String(),
	})
}
