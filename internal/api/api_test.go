package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/shaiso/Shipyard/internal/config"
	"github.com/shaiso/Shipyard/internal/domain"
	"github.com/shaiso/Shipyard/internal/ingress"
	"github.com/shaiso/Shipyard/internal/repo"
	"github.com/shaiso/Shipyard/internal/telemetry"
)

// --- Fakes ---

type fakeRuns struct {
	mu     sync.Mutex
	runs   []*domain.PipelineRun
	stages map[uuid.UUID][2][]domain.StageResult
	build  int64
	filter repo.RunFilter
}

func (f *fakeRuns) Create(_ context.Context, run *domain.PipelineRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.runs {
		if run.IdempotencyKey != "" && r.Pipeline == run.Pipeline && r.IdempotencyKey == run.IdempotencyKey {
			return repo.ErrAlreadyExists
		}
	}
	f.build++
	run.BuildNumber = f.build
	f.runs = append(f.runs, run)
	return nil
}

func (f *fakeRuns) GetByID(_ context.Context, id uuid.UUID) (*domain.PipelineRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (f *fakeRuns) GetByIdempotencyKey(_ context.Context, pipeline, key string) (*domain.PipelineRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.runs {
		if r.Pipeline == pipeline && r.IdempotencyKey == key {
			return r, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (f *fakeRuns) List(_ context.Context, filter repo.RunFilter) ([]*domain.PipelineRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter = filter
	var out []*domain.PipelineRun
	for _, r := range f.runs {
		if filter.Pipeline != "" && r.Pipeline != filter.Pipeline {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeRuns) ListStages(_ context.Context, runID uuid.UUID) (main, post []domain.StageResult, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.stages[runID]
	return s[0], s[1], nil
}

func (f *fakeRuns) snapshot() ([]*domain.PipelineRun, repo.RunFilter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*domain.PipelineRun(nil), f.runs...), f.filter
}

type fakePublisher struct {
	mu        sync.Mutex
	requested []uuid.UUID
}

func (p *fakePublisher) PublishRunRequested(_ context.Context, run *domain.PipelineRun) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requested = append(p.requested, run.ID)
	return nil
}

const routingTable = `
rules:
  - host: www.example.com
    path: /admin
    pathType: Exact
    backendService: admin
    backendPort: 80
  - host: www.example.com
    path: /
    pathType: Prefix
    backendService: www
    backendPort: 80
  - host: api.example.com
    path: /
    pathType: Prefix
    backendService: api
    backendPort: 80
`

func (p *fakePublisher) ids() []uuid.UUID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]uuid.UUID(nil), p.requested...)
}

type testServer struct {
	*httptest.Server
	runs      *fakeRuns
	publisher *fakePublisher
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "webapp.yaml"), []byte("name: webapp\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	table, err := ingress.Parse([]byte(routingTable))
	if err != nil {
		t.Fatalf("parse table: %v", err)
	}

	runs := &fakeRuns{stages: make(map[uuid.UUID][2][]domain.StageResult)}
	pub := &fakePublisher{}
	h := NewHandler(Config{
		Runs:      runs,
		Publisher: pub,
		Pipelines: config.Dir(dir),
		Routes:    table,
	})

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &testServer{Server: srv, runs: runs, publisher: pub}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, s.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var out bytes.Buffer
	out.ReadFrom(resp.Body)
	return resp, out.Bytes()
}

func decodeData[T any](t *testing.T, body []byte) T {
	t.Helper()
	var resp struct {
		Data T `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
	return resp.Data
}

// --- Runs ---

func TestCreateRun(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodPost, "/api/v1/runs", CreateRunRequest{Pipeline: "webapp", Revision: "main"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, body)
	}

	run := decodeData[RunResponse](t, body)
	if run.Status != string(domain.RunStatusPending) {
		t.Errorf("expected PENDING, got %s", run.Status)
	}
	if run.BuildNumber != 1 {
		t.Errorf("expected build 1, got %d", run.BuildNumber)
	}
	if run.Trigger != "manual" || run.Revision != "main" {
		t.Errorf("unexpected run: %+v", run)
	}
	if ids := s.publisher.ids(); len(ids) != 1 || ids[0] != run.ID {
		t.Errorf("expected run.requested for %s, got %v", run.ID, ids)
	}
}

func TestCreateRun_Invalid(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body any
		want int
	}{
		{"empty pipeline", CreateRunRequest{}, http.StatusBadRequest},
		{"unknown pipeline", CreateRunRequest{Pipeline: "missing"}, http.StatusNotFound},
		{"path traversal", CreateRunRequest{Pipeline: "../etc/passwd"}, http.StatusBadRequest},
		{"not json", "{", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := s.do(t, http.MethodPost, "/api/v1/runs", tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, resp.StatusCode, body)
			}
		})
	}

	if runs, _ := s.runs.snapshot(); len(runs) != 0 {
		t.Errorf("no runs should be created, got %d", len(runs))
	}
}

func TestGetRun(t *testing.T) {
	s := newTestServer(t)
	run := domain.NewPipelineRun("webapp", 3, map[string]string{"image": "registry/webapp:3"})
	s.runs.runs = append(s.runs.runs, run)

	resp, body := s.do(t, http.MethodGet, "/api/v1/runs/"+run.ID.String(), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	got := decodeData[RunResponse](t, body)
	if got.ID != run.ID || got.Environment["image"] != "registry/webapp:3" {
		t.Errorf("unexpected run: %+v", got)
	}

	resp, _ = s.do(t, http.MethodGet, "/api/v1/runs/"+uuid.NewString(), nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}

	resp, _ = s.do(t, http.MethodGet, "/api/v1/runs/not-a-uuid", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestListRuns_Filter(t *testing.T) {
	s := newTestServer(t)
	s.runs.runs = append(s.runs.runs,
		domain.NewPipelineRun("webapp", 1, nil),
		domain.NewPipelineRun("other", 1, nil),
	)

	resp, body := s.do(t, http.MethodGet, "/api/v1/runs?pipeline=webapp&status=PENDING&limit=5&offset=-1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	runs := decodeData[[]RunResponse](t, body)
	if len(runs) != 1 || runs[0].Pipeline != "webapp" {
		t.Errorf("unexpected runs: %+v", runs)
	}
	want := repo.RunFilter{Pipeline: "webapp", Status: domain.RunStatusPending, Limit: 5, Offset: 0}
	if _, filter := s.runs.snapshot(); filter != want {
		t.Errorf("filter = %+v, want %+v", filter, want)
	}
}

func TestListRunStages(t *testing.T) {
	s := newTestServer(t)
	run := domain.NewPipelineRun("webapp", 1, nil)
	s.runs.runs = append(s.runs.runs, run)
	s.runs.stages[run.ID] = [2][]domain.StageResult{
		{
			{Stage: domain.StageBuildImage, Status: domain.StageStatusFailed, Reason: domain.ReasonError, Error: "exit 1", Duration: 1500 * time.Millisecond},
			domain.Skipped(domain.StagePushImage),
		},
		{
			{Stage: domain.StageCleanup, Status: domain.StageStatusPassed},
		},
	}

	resp, body := s.do(t, http.MethodGet, "/api/v1/runs/"+run.ID.String()+"/stages", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	got := decodeData[StagesResponse](t, body)
	if len(got.Stages) != 2 || len(got.Post) != 1 {
		t.Fatalf("unexpected stages: %+v", got)
	}
	if got.Stages[0].DurationMS != 1500 || got.Stages[0].Reason != "error" {
		t.Errorf("unexpected build result: %+v", got.Stages[0])
	}
	if got.Stages[1].Status != string(domain.StageStatusSkipped) {
		t.Errorf("expected skipped push, got %+v", got.Stages[1])
	}
}

// --- Hooks ---

func TestPushHook_Idempotent(t *testing.T) {
	s := newTestServer(t)
	hook := PushHookRequest{
		Pipeline:   "webapp",
		Repository: "https://git.example.com/team/webapp.git",
		Branch:     "main",
		Commit:     "4f2a9c1",
	}

	resp, body := s.do(t, http.MethodPost, "/api/v1/hooks/push", hook)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, body)
	}
	first := decodeData[RunResponse](t, body)
	if first.IdempotencyKey != "https://git.example.com/team/webapp.git@4f2a9c1" {
		t.Errorf("unexpected key %q", first.IdempotencyKey)
	}
	if first.Revision != "4f2a9c1" || first.Trigger != "push" {
		t.Errorf("unexpected run: %+v", first)
	}

	resp, body = s.do(t, http.MethodPost, "/api/v1/hooks/push", hook)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on redelivery, got %d", resp.StatusCode)
	}
	second := decodeData[RunResponse](t, body)
	if second.ID != first.ID {
		t.Errorf("redelivery created new run %s", second.ID)
	}
	if runs, _ := s.runs.snapshot(); len(runs) != 1 || len(s.publisher.ids()) != 1 {
		t.Errorf("expected one run and one event, got %d and %d", len(runs), len(s.publisher.ids()))
	}
}

func TestPushHook_MissingFields(t *testing.T) {
	s := newTestServer(t)

	resp, _ := s.do(t, http.MethodPost, "/api/v1/hooks/push", PushHookRequest{Pipeline: "webapp", Repository: "repo"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

// --- Ingress ---

func TestRouteIngress(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		host string
		path string
		want string
		code int
	}{
		{"www.example.com", "/admin", "admin:80", http.StatusOK},
		{"www.example.com", "/anything-else", "www:80", http.StatusOK},
		{"api.example.com", "/x", "api:80", http.StatusOK},
		{"unknown.example.com", "/", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.host+tt.path, func(t *testing.T) {
			resp, body := s.do(t, http.MethodGet, "/api/v1/ingress/route?host="+tt.host+"&path="+tt.path, nil)
			if resp.StatusCode != tt.code {
				t.Fatalf("expected %d, got %d: %s", tt.code, resp.StatusCode, body)
			}
			if tt.code != http.StatusOK {
				return
			}
			got := decodeData[RouteResponse](t, body)
			if got.Target != tt.want {
				t.Errorf("route(%s, %s) = %s, want %s", tt.host, tt.path, got.Target, tt.want)
			}
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := Recovery(NewHandler(Config{}).logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), string(ErrCodeInternalError)) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestLoggingMiddleware_RecordsStatus(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	reg := prometheus.NewRegistry()

	mux := http.NewServeMux()
	mux.Handle("GET /runs/{id}", Logging(logger, telemetry.NewHTTPMetrics(reg))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		NotFound(w, "run not found")
	})))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/3b9f6c1e", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	for _, want := range []string{"status=404", "level=WARN", `route="GET /runs/{id}"`, "path=/runs/3b9f6c1e"} {
		if !strings.Contains(logs.String(), want) {
			t.Errorf("log line should contain %q: %s", want, logs.String())
		}
	}

	scrape := httptest.NewRecorder()
	telemetry.Handler(reg).ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(scrape.Body)
	if !strings.Contains(string(body), `shipyard_http_requests_total{code="404",route="GET /runs/{id}"} 1`) {
		t.Errorf("request metric missing:\n%s", body)
	}
}

func TestLoggingMiddleware_DefaultStatus(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	h := Logging(logger, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	for _, want := range []string{"status=200", "level=INFO", "route=unmatched"} {
		if !strings.Contains(logs.String(), want) {
			t.Errorf("log line should contain %q: %s", want, logs.String())
		}
	}
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   ErrorCode
	}{
		{"not found", repo.ErrNotFound, http.StatusNotFound, ErrCodeNotFound},
		{"pipeline missing", fmt.Errorf("pipeline webapp: %w", config.ErrConfigNotFound), http.StatusNotFound, ErrCodePipelineNotFound},
		{"bad pipeline", config.ErrInvalidConfig, http.StatusBadRequest, ErrCodeInvalidPipeline},
		{"no route", ingress.ErrNoRoute, http.StatusNotFound, ErrCodeNoRoute},
		{"duplicate key", repo.ErrAlreadyExists, http.StatusConflict, ErrCodeConflict},
		{"run finished", fmt.Errorf("append stage: %w", domain.ErrRunFinished), http.StatusConflict, ErrCodeRunFinished},
		{"not pending", repo.ErrInvalidState, http.StatusConflict, ErrCodeRunNotPending},
		{"unexpected", errors.New("connection reset"), http.StatusInternalServerError, ErrCodeInternalError},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			if !HandleError(rec, logger, tt.err, "") {
				t.Fatal("expected error to be handled")
			}
			if rec.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, rec.Code)
			}
			var resp ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Error.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, resp.Error.Code)
			}
		})
	}

	if HandleError(httptest.NewRecorder(), logger, nil, "") {
		t.Error("nil error must not be handled")
	}
}
