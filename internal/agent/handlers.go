package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/shaiso/Shipyard/internal/config"
	"github.com/shaiso/Shipyard/internal/domain"
	"github.com/shaiso/Shipyard/internal/mq"
	"github.com/shaiso/Shipyard/internal/repo"
	"github.com/shaiso/Shipyard/internal/telemetry"
)

// handleRunRequested обрабатывает событие из очереди runs.requested.
func (a *Agent) handleRunRequested(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.RunRequestedPayload](&delivery.Message)
	if err != nil {
		a.logger.Error("failed to parse run.requested payload", "error", err)
		return fmt.Errorf("%w: %w", mq.ErrPermanent, err)
	}
	if payload.RunID == uuid.Nil {
		return fmt.Errorf("%w: empty run_id", mq.ErrPermanent)
	}

	a.logger.Debug("received run.requested event",
		"run_id", payload.RunID,
		"pipeline", payload.Pipeline,
		"build", payload.BuildNumber,
	)

	if err := a.processRun(ctx, payload.RunID); err != nil {
		// Ожидаемые ситуации — не возвращаем ошибку (ack)
		if expected(err) {
			a.logger.Debug("run not processed", "run_id", payload.RunID, "reason", err)
			return nil
		}
		return err
	}
	return nil
}

// processRun забирает run, загружает pipeline и выполняет его.
func (a *Agent) processRun(ctx context.Context, id uuid.UUID) error {
	if err := a.markActive(id); err != nil {
		return err
	}
	defer a.unmarkActive(id)

	// 1. Загружаем run из БД
	run, err := a.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return fmt.Errorf("get run: %w", err)
	}
	if run.Status != domain.RunStatusPending {
		return ErrRunNotPending
	}

	// 2. Забираем run атомарно
	if err := a.store.Claim(ctx, id); err != nil {
		if errors.Is(err, repo.ErrInvalidState) {
			return ErrRunNotPending
		}
		return fmt.Errorf("claim run: %w", err)
	}

	logger := telemetry.WithBuild(telemetry.WithRunID(a.logger, id.String()), run.Pipeline, run.BuildNumber)

	// 3. Загружаем конфигурацию pipeline
	env, err := a.load(run.Pipeline,
		config.WithBuildNumber(run.BuildNumber),
		config.WithRevision(run.Revision),
	)
	if err != nil {
		logger.Error("failed to load pipeline", "error", err)
		if err := a.executor.Reject(ctx, run, fmt.Errorf("load pipeline %s: %w", run.Pipeline, err)); err != nil {
			return fmt.Errorf("reject run: %w", err)
		}
		a.publishFinished(ctx, run)
		return nil
	}
	run.Environment = env.Redacted()

	// 4. Выполняем
	if err := a.executor.Execute(ctx, run, env); err != nil {
		logger.Error("run execution error", "error", err)
	}

	a.publishFinished(ctx, run)
	return nil
}

// publishFinished публикует run.finished. Ошибка публикации не влияет на run.
func (a *Agent) publishFinished(ctx context.Context, run *domain.PipelineRun) {
	if a.events == nil {
		return
	}
	if err := a.events.PublishRunFinished(context.WithoutCancel(ctx), run); err != nil {
		a.logger.Warn("failed to publish run.finished", "run_id", run.ID, "error", err)
	}
}
