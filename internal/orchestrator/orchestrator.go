package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Shipyard/internal/config"
	"github.com/shaiso/Shipyard/internal/domain"
	"github.com/shaiso/Shipyard/internal/engine"
	"github.com/shaiso/Shipyard/internal/secrets"
	"github.com/shaiso/Shipyard/internal/stages"
	"github.com/shaiso/Shipyard/internal/telemetry"
)

// Default configuration values.
const (
	defaultPostTimeout = 5 * time.Minute
	defaultGracePeriod = 5 * time.Second
)

// Recorder сохраняет прогресс run (реализуется repo.RunRepo).
type Recorder interface {
	// UpdateRun сохраняет статус и итог run.
	UpdateRun(ctx context.Context, run *domain.PipelineRun) error

	// RecordStage сохраняет результат стадии.
	RecordStage(ctx context.Context, runID uuid.UUID, phase domain.Phase, seq int, res domain.StageResult) error
}

// Orchestrator выполняет pipeline run.
//
// Стадии выполняются строго последовательно. Каждая стадия получает
// собственный scope секретов, который закрывается при любом исходе.
// Несколько runs могут выполняться одним Orchestrator параллельно:
// у каждого своё окружение, State и scope.
type Orchestrator struct {
	pipeline stages.Pipeline
	secrets  *secrets.Manager
	recorder Recorder
	metrics  *telemetry.Metrics

	postTimeout time.Duration
	gracePeriod time.Duration

	logger *slog.Logger
}

// Config — конфигурация Orchestrator.
type Config struct {
	// Pipeline — стадии и post-стадии.
	Pipeline stages.Pipeline

	// Secrets — менеджер секретов (default: env и file провайдеры).
	Secrets *secrets.Manager

	// Recorder — сохранение прогресса (опционально).
	Recorder Recorder

	// Metrics — метрики (опционально).
	Metrics *telemetry.Metrics

	// PostTimeout — общий лимит времени post-фазы (default: 5m).
	PostTimeout time.Duration

	// GracePeriod — сколько ждать стадию после отмены её контекста (default: 5s).
	// Если стадия не вернулась, её результат фиксируется без вывода.
	GracePeriod time.Duration

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mgr := cfg.Secrets
	if mgr == nil {
		mgr = secrets.NewManager(secrets.Config{Logger: logger})
	}

	postTimeout := cfg.PostTimeout
	if postTimeout <= 0 {
		postTimeout = defaultPostTimeout
	}

	grace := cfg.GracePeriod
	if grace <= 0 {
		grace = defaultGracePeriod
	}

	return &Orchestrator{
		pipeline:    cfg.Pipeline,
		secrets:     mgr,
		recorder:    cfg.Recorder,
		metrics:     cfg.Metrics,
		postTimeout: postTimeout,
		gracePeriod: grace,
		logger:      logger,
	}
}

// Run создаёт run для окружения и выполняет его.
func (o *Orchestrator) Run(ctx context.Context, env config.Environment) (*domain.PipelineRun, error) {
	run := domain.NewPipelineRun(env.Pipeline(), env.BuildNumber(), env.Redacted())
	run.Revision = env.Source().Revision
	run.Trigger = "manual"

	if err := o.Execute(ctx, run, env); err != nil {
		return run, err
	}
	return run, nil
}

// Execute выполняет существующий run.
//
// Падение стадии не является ошибкой Execute: оно отражается в run
// (Outcome, StageResult). Ошибка возвращается только при проблемах
// сохранения итога.
func (o *Orchestrator) Execute(ctx context.Context, run *domain.PipelineRun, env config.Environment) error {
	if run.IsFinished() {
		return domain.ErrRunFinished
	}

	logger := telemetry.WithBuild(telemetry.WithRunID(o.logger, run.ID.String()), env.Pipeline(), env.BuildNumber())
	logger.Info("run started",
		"image", env.Image().Ref(),
		"cluster", env.Cluster().Name,
	)

	run.MarkRunning()
	o.metrics.RunStarted()
	o.updateRun(ctx, run, logger)

	rs := newRunState(run, env, logger)

	workspace, owned, err := prepareWorkspace(env.Workspace())
	rs.state = stages.NewState(workspace, owned)
	if err != nil {
		logger.Error("failed to prepare workspace", "workspace", env.Workspace(), "error", err)
		rs.fail(fmt.Errorf("%w: %w", ErrWorkspace, err).Error())
	}

	o.runStages(ctx, rs)
	o.runPost(ctx, rs)

	run.Finish(rs.outcome, rs.errText)
	o.metrics.RunFinished(string(rs.outcome))

	logger.Info("run finished",
		"outcome", rs.outcome,
		"duration", run.Duration(),
		"error", rs.errText,
	)

	if o.recorder != nil {
		if err := o.recorder.UpdateRun(context.WithoutCancel(ctx), run); err != nil {
			return fmt.Errorf("%w: %w", ErrRecordFailed, err)
		}
	}
	return nil
}

// Reject завершает run, для которого не удалось получить окружение
// (например, файл pipeline не найден или не прошёл валидацию).
//
// Первая стадия фиксируется как failed с причиной cause, остальные как
// skipped. Post-стадии, применимые при failure, фиксируются как skipped
// и не запускаются.
func (o *Orchestrator) Reject(ctx context.Context, run *domain.PipelineRun, cause error) error {
	if run.IsFinished() {
		return domain.ErrRunFinished
	}

	logger := telemetry.WithBuild(telemetry.WithRunID(o.logger, run.ID.String()), run.Pipeline, run.BuildNumber)
	logger.Error("run rejected", "error", cause)

	run.MarkRunning()
	o.metrics.RunStarted()

	rs := newRunState(run, config.Environment{}, logger)
	for i, stage := range o.pipeline.Stages {
		if i == 0 {
			res := failedResult(stage.Name(), domain.ReasonError, fmt.Errorf("%w: %w", stages.ErrEnvironmentInvalid, cause))
			o.record(ctx, rs, domain.PhaseMain, res)
			rs.fail(fmt.Sprintf("%s: %s", res.Stage, res.Error))
			continue
		}
		o.record(ctx, rs, domain.PhaseMain, domain.Skipped(stage.Name()))
	}
	if rs.errText == "" {
		rs.fail(cause.Error())
	}

	for _, group := range o.postGroups() {
		for _, p := range group {
			if !p.When.Applies(rs.outcome) {
				continue
			}
			res := domain.Skipped(p.Stage.Name())
			res.Output = "pipeline environment unavailable"
			o.record(ctx, rs, domain.PhasePost, res)
		}
	}

	run.Finish(rs.outcome, rs.errText)
	o.metrics.RunFinished(string(rs.outcome))

	if o.recorder != nil {
		if err := o.recorder.UpdateRun(context.WithoutCancel(ctx), run); err != nil {
			return fmt.Errorf("%w: %w", ErrRecordFailed, err)
		}
	}
	return nil
}

// runStages выполняет основные стадии с fail-fast.
func (o *Orchestrator) runStages(ctx context.Context, rs *runState) {
	for _, stage := range o.pipeline.Stages {
		name := stage.Name()

		if rs.failed() {
			o.record(ctx, rs, domain.PhaseMain, domain.Skipped(name))
			continue
		}

		guard := rs.env.Guard(name)
		if guard.When != "" {
			ok, err := engine.RenderCondition(guard.When, rs.template)
			if err != nil {
				res := failedResult(name, domain.ReasonError, fmt.Errorf("evaluate condition: %w", err))
				res.AllowFailure = guard.AllowFailure
				o.record(ctx, rs, domain.PhaseMain, res)
				if !guard.AllowFailure {
					rs.fail(fmt.Sprintf("%s: %s", name, res.Error))
				}
				continue
			}
			if !ok {
				rs.logger.Info("stage skipped by condition", "stage", name, "when", guard.When)
				res := domain.Skipped(name)
				res.Output = "condition is false: " + guard.When
				o.record(ctx, rs, domain.PhaseMain, res)
				continue
			}
		}

		res := o.runStage(ctx, rs, stage, guard.Timeout)
		res.AllowFailure = guard.AllowFailure
		o.record(ctx, rs, domain.PhaseMain, res)

		if res.Failed() {
			if guard.AllowFailure {
				rs.logger.Warn("stage failed, continuing", "stage", name, "error", res.Error)
				continue
			}
			rs.fail(fmt.Sprintf("%s: %s", name, res.Error))
		}
	}
}

// runPost выполняет post-фазу: сначала условные стадии, затем always.
//
// Post-фаза работает на контексте, не зависящем от отмены run,
// и не меняет итог run.
func (o *Orchestrator) runPost(ctx context.Context, rs *runState) {
	postCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.postTimeout)
	defer cancel()

	for _, group := range o.postGroups() {
		for _, p := range group {
			if !p.When.Applies(rs.outcome) {
				continue
			}
			guard := rs.env.Guard(p.Stage.Name())
			res := o.runStage(postCtx, rs, p.Stage, guard.Timeout)
			if res.Failed() {
				rs.logger.Warn("post stage failed", "stage", res.Stage, "error", res.Error)
			}
			o.record(postCtx, rs, domain.PhasePost, res)
		}
	}
}

// postGroups делит post-стадии на условные и always, в порядке выполнения.
func (o *Orchestrator) postGroups() [][]stages.PostStage {
	var conditional, always []stages.PostStage
	for _, p := range o.pipeline.Post {
		if p.When == domain.PostAlways {
			always = append(always, p)
		} else {
			conditional = append(conditional, p)
		}
	}
	return [][]stages.PostStage{conditional, always}
}

// record добавляет результат в run, шаблонный контекст, метрики и Recorder.
func (o *Orchestrator) record(ctx context.Context, rs *runState, phase domain.Phase, res domain.StageResult) {
	var (
		seq int
		err error
	)
	if phase == domain.PhasePost {
		seq = len(rs.run.Post)
		err = rs.run.AppendPost(res)
	} else {
		seq = len(rs.run.Stages)
		err = rs.run.AppendStage(res)
	}
	if err != nil {
		rs.logger.Error("failed to append stage result", "stage", res.Stage, "error", err)
		return
	}

	rs.sync(res)
	if res.Status != domain.StageStatusSkipped {
		o.metrics.ObserveStage(string(res.Stage), string(res.Status), res.Duration)
	}

	if o.recorder == nil {
		return
	}
	if err := o.recorder.RecordStage(context.WithoutCancel(ctx), rs.run.ID, phase, seq, res); err != nil {
		rs.logger.Error("failed to record stage result", "stage", res.Stage, "error", err)
	}
}

func (o *Orchestrator) updateRun(ctx context.Context, run *domain.PipelineRun, logger *slog.Logger) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.UpdateRun(ctx, run); err != nil {
		logger.Error("failed to update run", "error", err)
	}
}

// ActiveScopes возвращает количество незакрытых scope секретов.
func (o *Orchestrator) ActiveScopes() int64 {
	return o.secrets.Active()
}
