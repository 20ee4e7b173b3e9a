package agent

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Shipyard/internal/config"
	"github.com/shaiso/Shipyard/internal/domain"
	"github.com/shaiso/Shipyard/internal/mq"
)

// Default configuration values.
const (
	defaultPollInterval = 10 * time.Second
	defaultBatchSize    = 10
	defaultPrefetch     = 1
)

// Store — хранилище runs (реализуется repo.RunRepo).
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PipelineRun, error)
	ListPending(ctx context.Context, limit int) ([]*domain.PipelineRun, error)
	Claim(ctx context.Context, id uuid.UUID) error
}

// Executor выполняет run (реализуется orchestrator.Orchestrator).
type Executor interface {
	Execute(ctx context.Context, run *domain.PipelineRun, env config.Environment) error

	// Reject завершает run, для которого не загрузилось окружение.
	Reject(ctx context.Context, run *domain.PipelineRun, cause error) error
}

// Events публикует события о завершении runs (реализуется mq.Publisher).
type Events interface {
	PublishRunFinished(ctx context.Context, run *domain.PipelineRun) error
}

// LoadFunc загружает конфигурацию pipeline по имени.
type LoadFunc func(pipeline string, opts ...config.Option) (config.Environment, error)

// Agent выполняет pipeline runs.
type Agent struct {
	store    Store
	executor Executor
	load     LoadFunc
	events   Events

	conn     *mq.Connection
	consumer *mq.Consumer

	// active — runs, выполняющиеся этим агентом (runID → start time).
	active   map[uuid.UUID]time.Time
	activeMu sync.Mutex

	pollInterval time.Duration
	batchSize    int

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// Config — конфигурация Agent.
type Config struct {
	Store    Store
	Executor Executor

	// Load — загрузка pipeline (обычно config.Dir.Load).
	Load LoadFunc

	// Publisher — публикация run.finished (опционально).
	Publisher Events

	// Conn — соединение RabbitMQ. Если nil, агент работает только через polling.
	Conn *mq.Connection

	// Polling configuration
	PollInterval time.Duration // интервал polling (default: 10s)
	BatchSize    int           // количество runs за один poll (default: 10)

	Logger *slog.Logger
}

// New создаёт новый Agent.
func New(cfg Config) *Agent {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	load := cfg.Load
	if load == nil {
		load = config.DirFromEnv().Load
	}

	return &Agent{
		store:        cfg.Store,
		executor:     cfg.Executor,
		load:         load,
		events:       cfg.Publisher,
		conn:         cfg.Conn,
		active:       make(map[uuid.UUID]time.Time),
		pollInterval: pollInterval,
		batchSize:    batchSize,
		logger:       logger,
	}
}

// Start запускает Agent.
//
// Запускает:
//   - Consumer для runs.requested (если есть соединение RabbitMQ)
//   - Polling горутину для fallback
func (a *Agent) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.cancelFunc = cancel

	a.logger.Info("starting agent",
		"poll_interval", a.pollInterval,
		"batch_size", a.batchSize,
		"mq", a.conn != nil,
	)

	if a.conn != nil {
		a.consumer = mq.NewConsumer(a.conn, a.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueRunsRequested),
			Handler:  a.handleRunRequested,
			Prefetch: defaultPrefetch,
		})

		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("run consumer error", "error", err)
			}
		}()
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.pollLoop(ctx)
	}()

	a.logger.Info("agent started")
	return nil
}

// Stop останавливает Agent и ждёт завершения выполняющихся runs.
//
// Отмена контекста прерывает текущую стадию; post-фаза (cleanup)
// всё равно выполняется оркестратором.
func (a *Agent) Stop() {
	a.logger.Info("stopping agent...")

	if a.cancelFunc != nil {
		a.cancelFunc()
	}
	if a.consumer != nil {
		a.consumer.Stop()
	}

	a.wg.Wait()
	a.logger.Info("agent stopped")
}

// pollLoop — цикл polling для fallback.
func (a *Agent) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу при старте (подхватываем runs, созданные пока агент был выключен)
	a.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.poll(ctx)
		}
	}
}

// poll выполняет один цикл polling.
func (a *Agent) poll(ctx context.Context) {
	runs, err := a.store.ListPending(ctx, a.batchSize)
	if err != nil {
		a.logger.Error("failed to list pending runs", "error", err)
		return
	}
	if len(runs) == 0 {
		return
	}

	a.logger.Debug("poll found pending runs", "count", len(runs))

	for _, run := range runs {
		if ctx.Err() != nil {
			return
		}
		if err := a.processRun(ctx, run.ID); err != nil && !expected(err) {
			a.logger.Error("failed to process run from poll", "run_id", run.ID, "error", err)
		}
	}
}

// markActive добавляет run в активные.
func (a *Agent) markActive(id uuid.UUID) error {
	a.activeMu.Lock()
	defer a.activeMu.Unlock()

	if _, exists := a.active[id]; exists {
		return ErrRunAlreadyActive
	}
	a.active[id] = time.Now()
	return nil
}

func (a *Agent) unmarkActive(id uuid.UUID) {
	a.activeMu.Lock()
	defer a.activeMu.Unlock()
	delete(a.active, id)
}

// ActiveRuns возвращает количество runs, выполняющихся агентом.
func (a *Agent) ActiveRuns() int {
	a.activeMu.Lock()
	defer a.activeMu.Unlock()
	return len(a.active)
}

// expected — ошибки, при которых сообщение подтверждается без повтора.
func expected(err error) bool {
	return errors.Is(err, ErrRunNotFound) ||
		errors.Is(err, ErrRunNotPending) ||
		errors.Is(err, ErrRunAlreadyActive)
}
