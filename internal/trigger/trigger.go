package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/Shipyard/internal/config"
	"github.com/shaiso/Shipyard/internal/domain"
	"github.com/shaiso/Shipyard/internal/repo"
	"github.com/shaiso/Shipyard/internal/secrets"
)

// Store — хранилище runs (реализуется repo.RunRepo).
type Store interface {
	Create(ctx context.Context, run *domain.PipelineRun) error
	GetByIdempotencyKey(ctx context.Context, pipeline, key string) (*domain.PipelineRun, error)
}

// Publisher публикует run.requested (реализуется mq.Publisher).
type Publisher interface {
	PublishRunRequested(ctx context.Context, run *domain.PipelineRun) error
}

// CommitSource возвращает последний коммит ветки (реализуется source.Git).
type CommitSource interface {
	LatestCommit(ctx context.Context, url, branch, token string) (string, error)
}

// Trigger — опрос репозиториев и создание runs для новых коммитов.
type Trigger struct {
	store     Store
	publisher Publisher
	source    CommitSource
	secrets   *secrets.Manager
	pipelines config.Dir
	logger    *slog.Logger

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
	leader Leader
}

// Config — конфигурация Trigger.
type Config struct {
	Store     Store
	Publisher Publisher // опционально
	Source    CommitSource

	// Secrets — разрешение git_token (default: env и file провайдеры).
	Secrets *secrets.Manager

	// Pipelines — каталог с конфигурациями pipeline.
	Pipelines config.Dir

	Logger *slog.Logger
}

// New создаёт новый Trigger.
func New(cfg Config) *Trigger {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mgr := cfg.Secrets
	if mgr == nil {
		mgr = secrets.NewManager(secrets.Config{Logger: logger})
	}
	return &Trigger{
		store:     cfg.Store,
		publisher: cfg.Publisher,
		source:    cfg.Source,
		secrets:   mgr,
		pipelines: cfg.Pipelines,
		logger:    logger,
	}
}

// Start запускает опрос по расписанию.
//
// Тик выполняется, только если leader.TryLead вернул true.
// Тики не перекрываются: если опрос идёт дольше интервала, следующий
// тик пропускается.
func (t *Trigger) Start(ctx context.Context, schedule string, leader Leader) error {
	if _, err := ParseSchedule(schedule); err != nil {
		return err
	}
	if leader == nil {
		leader = Always{}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cron != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddJob(schedule, cron.FuncJob(func() { t.leadAndTick(ctx, leader) })); err != nil {
		cancel()
		return fmt.Errorf("%w %q: %v", ErrInvalidSchedule, schedule, err)
	}
	c.Start()

	t.cron = c
	t.cancel = cancel
	t.leader = leader

	t.logger.Info("trigger started", "schedule", schedule, "pipelines_dir", string(t.pipelines))
	return nil
}

// Stop останавливает опрос, ждёт текущий тик и отпускает лидерство.
func (t *Trigger) Stop() {
	t.mu.Lock()
	c, cancel, leader := t.cron, t.cancel, t.leader
	t.cron, t.cancel, t.leader = nil, nil, nil
	t.mu.Unlock()

	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()
	leader.Release()

	t.logger.Info("trigger stopped")
}

// leadAndTick выполняет тик, если экземпляр — лидер.
func (t *Trigger) leadAndTick(ctx context.Context, leader Leader) {
	ok, err := leader.TryLead(ctx)
	if err != nil {
		t.logger.Error("leader election failed", "error", err)
		return
	}
	if !ok {
		// не лидер — пропускаем тик
		t.logger.Debug("not a leader, skipping tick")
		return
	}
	if err := t.Tick(ctx); err != nil {
		t.logger.Error("trigger tick failed", "error", err)
	}
}

// Tick выполняет один опрос.
//
// 1. Находит pipelines в каталоге
// 2. Для каждого pipeline с source.url получает последний коммит ветки
// 3. Создаёт PENDING run, если для коммита ещё нет run
// 4. Публикует run.requested
//
// Ошибки одного pipeline не блокируют обработку остальных.
func (t *Trigger) Tick(ctx context.Context) error {
	names, err := t.pipelines.Names()
	if err != nil {
		return fmt.Errorf("list pipelines: %w", err)
	}

	var polled, created int
	for _, name := range names {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		ok, err := t.processPipeline(ctx, name)
		if err != nil {
			t.logger.Error("failed to poll pipeline", "pipeline", name, "error", err)
			continue
		}
		polled++
		if ok {
			created++
		}
	}

	t.logger.Info("trigger tick completed",
		"pipelines", len(names),
		"polled", polled,
		"runs_created", created,
	)
	return nil
}

// processPipeline опрашивает репозиторий pipeline.
// Возвращает true, если run был создан (не был дубликатом).
func (t *Trigger) processPipeline(ctx context.Context, name string) (bool, error) {
	// Номер сборки ещё неизвестен; для чтения source он не важен
	env, err := t.pipelines.Load(name, config.WithBuildNumber(1))
	if err != nil {
		return false, fmt.Errorf("load pipeline: %w", err)
	}

	src := env.Source()
	if src.URL == "" {
		t.logger.Debug("pipeline has no source url, skipping", "pipeline", name)
		return false, nil
	}

	commit, err := t.latestCommit(ctx, env)
	if err != nil {
		return false, err
	}

	// Ключ без userinfo: токен из URL не должен попасть в БД
	repoURL := env.Redacted()["source_url"]
	key := domain.CommitKey(repoURL, commit)

	existing, err := t.store.GetByIdempotencyKey(ctx, name, key)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return false, fmt.Errorf("check idempotency: %w", err)
	}
	if existing != nil {
		t.logger.Debug("commit already has a run",
			"pipeline", name,
			"commit", commit,
			"run_id", existing.ID,
		)
		return false, nil
	}

	run := domain.NewPipelineRun(name, 0, nil)
	run.Revision = commit
	run.Trigger = "poll"
	run.IdempotencyKey = key

	if err := t.store.Create(ctx, run); err != nil {
		if errors.Is(err, repo.ErrAlreadyExists) {
			return false, nil
		}
		return false, fmt.Errorf("create run: %w", err)
	}

	t.logger.Info("created run for new commit",
		"run_id", run.ID,
		"pipeline", name,
		"build", run.BuildNumber,
		"branch", src.Revision,
		"commit", commit,
	)

	if t.publisher != nil {
		if err := t.publisher.PublishRunRequested(ctx, run); err != nil {
			// Не фатальная ошибка — run уже создан в БД,
			// agent заберёт его через polling
			t.logger.Warn("failed to publish run.requested", "run_id", run.ID, "error", err)
		}
	}
	return true, nil
}

// latestCommit запрашивает коммит ветки с токеном из scope секретов.
func (t *Trigger) latestCommit(ctx context.Context, env config.Environment) (string, error) {
	scope, err := t.secrets.Acquire(ctx, "trigger", env.Credentials(config.CredGitToken))
	if err != nil {
		return "", fmt.Errorf("acquire credentials: %w", err)
	}
	defer scope.Release()

	var token string
	if scope.Has(config.CredGitToken) {
		if token, err = scope.Get(config.CredGitToken); err != nil {
			return "", err
		}
	}

	src := env.Source()
	commit, err := t.source.LatestCommit(ctx, src.URL, src.Revision, token)
	if err != nil {
		return "", fmt.Errorf("latest commit: %s", scope.Redact(err.Error()))
	}
	return commit, nil
}
