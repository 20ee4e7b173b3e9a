package trigger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shaiso/Shipyard/internal/config"
	"github.com/shaiso/Shipyard/internal/domain"
	"github.com/shaiso/Shipyard/internal/repo"
	"github.com/shaiso/Shipyard/internal/secrets"
)

// --- Fakes ---

type fakeStore struct {
	mu   sync.Mutex
	runs []*domain.PipelineRun
}

func (s *fakeStore) Create(_ context.Context, run *domain.PipelineRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.runs {
		if r.Pipeline == run.Pipeline && r.IdempotencyKey == run.IdempotencyKey {
			return repo.ErrAlreadyExists
		}
	}
	run.BuildNumber = int64(len(s.runs) + 1)
	s.runs = append(s.runs, run)
	return nil
}

func (s *fakeStore) GetByIdempotencyKey(_ context.Context, pipeline, key string) (*domain.PipelineRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.runs {
		if r.Pipeline == pipeline && r.IdempotencyKey == key {
			return r, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (s *fakeStore) all() []*domain.PipelineRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.PipelineRun(nil), s.runs...)
}

type fakePublisher struct {
	mu    sync.Mutex
	count int
}

func (p *fakePublisher) PublishRunRequested(context.Context, *domain.PipelineRun) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count++
	return nil
}

type call struct {
	url, branch, token string
}

type fakeSource struct {
	mu      sync.Mutex
	commits map[string]string
	calls   []call
}

func (f *fakeSource) LatestCommit(_ context.Context, url, branch, token string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{url, branch, token})
	commit, ok := f.commits[url]
	if !ok {
		return "", errors.New("repository " + url + " unreachable with " + token)
	}
	return commit, nil
}

func (f *fakeSource) setCommit(url, commit string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits[url] = commit
}

func writePipeline(t *testing.T, dir, name, sourceURL string) {
	t.Helper()
	data := "name: " + name + `
image:
  registry: registry.example.com
  repository: team/` + name + `
cluster:
  name: kind
source:
  url: ` + sourceURL + `
  revision: main
credentials:
  git_token: env:GIT_TOKEN
`
	if err := os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTestTrigger(t *testing.T, src *fakeSource) (*Trigger, *fakeStore, *fakePublisher, string) {
	t.Helper()
	dir := t.TempDir()
	store := &fakeStore{}
	pub := &fakePublisher{}
	mgr := secrets.NewManager(secrets.Config{
		Providers: []secrets.Provider{secrets.EnvProvider{Lookup: func(key string) (string, bool) {
			if key == "GIT_TOKEN" {
				return "ghp-secret-token", true
			}
			return "", false
		}}},
	})
	trg := New(Config{
		Store:     store,
		Publisher: pub,
		Source:    src,
		Secrets:   mgr,
		Pipelines: config.Dir(dir),
	})
	return trg, store, pub, dir
}

// --- Tests ---

func TestTick_NewCommitCreatesRun(t *testing.T) {
	src := &fakeSource{commits: map[string]string{"https://git.example.com/team/webapp.git": "4f2a9c1"}}
	trg, store, pub, dir := newTestTrigger(t, src)
	writePipeline(t, dir, "webapp", "https://git.example.com/team/webapp.git")

	if err := trg.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	runs := store.all()
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	run := runs[0]
	if run.Revision != "4f2a9c1" || run.Trigger != "poll" || run.Status != domain.RunStatusPending {
		t.Errorf("unexpected run: %+v", run)
	}
	if run.IdempotencyKey != "https://git.example.com/team/webapp.git@4f2a9c1" {
		t.Errorf("unexpected key %q", run.IdempotencyKey)
	}
	if pub.count != 1 {
		t.Errorf("expected 1 run.requested, got %d", pub.count)
	}
	if got := src.calls[0]; got.branch != "main" || got.token != "ghp-secret-token" {
		t.Errorf("unexpected LatestCommit call: %+v", got)
	}
	if trg.secrets.Active() != 0 {
		t.Errorf("credential scope not released")
	}
}

func TestTick_SameCommitIsIdempotent(t *testing.T) {
	const url = "https://git.example.com/team/webapp.git"
	src := &fakeSource{commits: map[string]string{url: "4f2a9c1"}}
	trg, store, pub, dir := newTestTrigger(t, src)
	writePipeline(t, dir, "webapp", url)

	for range 3 {
		if err := trg.Tick(context.Background()); err != nil {
			t.Fatalf("Tick: %v", err)
		}
	}
	if n := len(store.all()); n != 1 {
		t.Fatalf("expected 1 run after repeated ticks, got %d", n)
	}

	src.setCommit(url, "9be01d7")
	if err := trg.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	runs := store.all()
	if len(runs) != 2 || runs[1].Revision != "9be01d7" {
		t.Fatalf("expected run for new commit, got %d runs", len(runs))
	}
	if pub.count != 2 {
		t.Errorf("expected 2 events, got %d", pub.count)
	}
}

func TestTick_FailureDoesNotBlockOthers(t *testing.T) {
	src := &fakeSource{commits: map[string]string{"https://git.example.com/team/api.git": "aa11"}}
	trg, store, _, dir := newTestTrigger(t, src)
	writePipeline(t, dir, "api", "https://git.example.com/team/api.git")
	writePipeline(t, dir, "broken", "https://git.example.com/team/gone.git")
	if err := os.WriteFile(filepath.Join(dir, "invalid.yaml"), []byte("name: [\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := trg.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	runs := store.all()
	if len(runs) != 1 || runs[0].Pipeline != "api" {
		t.Fatalf("expected run for api only, got %+v", runs)
	}
}

func TestTick_SkipsPipelineWithoutSource(t *testing.T) {
	src := &fakeSource{commits: map[string]string{}}
	trg, store, _, dir := newTestTrigger(t, src)
	writePipeline(t, dir, "local", "")

	if err := trg.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(store.all()) != 0 || len(src.calls) != 0 {
		t.Error("pipeline without source.url must not be polled")
	}
}

func TestLatestCommit_RedactsToken(t *testing.T) {
	src := &fakeSource{commits: map[string]string{}}
	trg, _, _, dir := newTestTrigger(t, src)
	writePipeline(t, dir, "webapp", "https://git.example.com/team/webapp.git")

	env, err := config.Dir(dir).Load("webapp", config.WithBuildNumber(1))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	_, err = trg.latestCommit(context.Background(), env)
	if err == nil {
		t.Fatal("expected error")
	}
	if strings.Contains(err.Error(), "ghp-secret-token") {
		t.Errorf("token leaked into error: %v", err)
	}
}

// --- Schedule ---

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"*/5 * * * *", false},
		{"@every 30s", false},
		{"@hourly", false},
		{"not a cron", true},
		{"* * * * * *", true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := ParseSchedule(tt.expr)
			if (err != nil) != tt.wantErr {
				t.Fatalf("wantErr=%v, got %v", tt.wantErr, err)
			}
			if err != nil && !errors.Is(err, ErrInvalidSchedule) {
				t.Errorf("expected ErrInvalidSchedule, got %v", err)
			}
		})
	}
}

func TestNextRun(t *testing.T) {
	from := time.Date(2026, 3, 10, 12, 7, 30, 0, time.UTC)
	next, err := NextRun("*/15 * * * *", from)
	if err != nil {
		t.Fatalf("NextRun: %v", err)
	}
	if want := time.Date(2026, 3, 10, 12, 15, 0, 0, time.UTC); !next.Equal(want) {
		t.Errorf("next = %s, want %s", next, want)
	}
}

// --- Leader ---

type fakeLeader struct {
	lead     bool
	tries    atomic.Int32
	released atomic.Bool
}

func (l *fakeLeader) TryLead(context.Context) (bool, error) {
	l.tries.Add(1)
	return l.lead, nil
}

func (l *fakeLeader) Release() { l.released.Store(true) }

func TestLeadAndTick_NotLeader(t *testing.T) {
	src := &fakeSource{commits: map[string]string{"https://git.example.com/team/webapp.git": "4f2a9c1"}}
	trg, store, _, dir := newTestTrigger(t, src)
	writePipeline(t, dir, "webapp", "https://git.example.com/team/webapp.git")

	follower := &fakeLeader{lead: false}
	trg.leadAndTick(context.Background(), follower)
	if len(store.all()) != 0 {
		t.Fatal("follower must not create runs")
	}

	leader := &fakeLeader{lead: true}
	trg.leadAndTick(context.Background(), leader)
	if len(store.all()) != 1 {
		t.Fatal("leader should create run")
	}
}

func TestStartStop(t *testing.T) {
	src := &fakeSource{commits: map[string]string{}}
	trg, _, _, _ := newTestTrigger(t, src)
	leader := &fakeLeader{lead: true}

	if err := trg.Start(context.Background(), "bad schedule", leader); !errors.Is(err, ErrInvalidSchedule) {
		t.Fatalf("expected ErrInvalidSchedule, got %v", err)
	}

	if err := trg.Start(context.Background(), "@every 1h", leader); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := trg.Start(context.Background(), "@every 1h", leader); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}

	trg.Stop()
	if !leader.released.Load() {
		t.Error("leadership should be released on Stop")
	}
	// Повторный Stop безопасен
	trg.Stop()
}
