package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/shaiso/Shipyard/internal/domain"
	"github.com/shaiso/Shipyard/internal/stages"
	"github.com/shaiso/Shipyard/internal/telemetry"
)

// stageReturn — результат горутины стадии.
type stageReturn struct {
	out      *stages.Output
	err      error
	panicked bool
}

// runStage выполняет одну стадию под охраной.
//
// Гарантии:
//   - scope секретов закрывается на любом пути выхода
//   - при timeout > 0 стадия принудительно завершается по истечении времени,
//     даже если тело не проверяет ctx
//   - паника в теле стадии превращается в failed результат
//   - вывод и ошибка очищаются от значений секретов
func (o *Orchestrator) runStage(ctx context.Context, rs *runState, stage stages.Stage, timeout time.Duration) domain.StageResult {
	name := stage.Name()
	logger := telemetry.WithStage(rs.logger, string(name))

	started := time.Now()
	res := domain.StageResult{Stage: name, StartedAt: &started}
	finish := func(status domain.StageStatus, reason domain.FailureReason, out string, err error) domain.StageResult {
		now := time.Now()
		res.FinishedAt = &now
		res.Duration = now.Sub(started)
		res.Status = status
		res.Reason = reason
		res.Output = out
		if err != nil {
			res.Error = err.Error()
		}
		return res
	}

	if err := ctx.Err(); err != nil {
		return finish(domain.StageStatusFailed, domain.ReasonCancelled, "", fmt.Errorf("%w: %w", ErrStageCancelled, err))
	}

	scope, err := o.secrets.Acquire(ctx, string(name), rs.env.Credentials(stage.Credentials()...))
	if err != nil {
		logger.Error("failed to acquire credentials", "error", err)
		return finish(domain.StageStatusFailed, domain.ReasonError, "", err)
	}
	defer scope.Release()

	var (
		stageCtx context.Context
		cancel   context.CancelFunc
	)
	if timeout > 0 {
		stageCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		stageCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	exec := &stages.Execution{
		RunID:       rs.run.ID,
		Env:         rs.env,
		Credentials: scope,
		State:       rs.state,
		Template:    rs.template.Clone(),
		Logger:      logger,
	}

	logger.Info("stage started", "timeout", timeout)

	done := make(chan stageReturn, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("stage panicked", "panic", r, "stack", string(debug.Stack()))
				done <- stageReturn{err: fmt.Errorf("%w: %v", ErrStagePanic, r), panicked: true}
			}
		}()
		out, err := stage.Execute(stageCtx, exec)
		done <- stageReturn{out: out, err: err}
	}()

	var ret stageReturn
	select {
	case ret = <-done:
	case <-stageCtx.Done():
		select {
		case ret = <-done:
		case <-time.After(o.gracePeriod):
			logger.Warn("stage did not stop after cancellation", "grace", o.gracePeriod)
			ret = stageReturn{err: stageCtx.Err()}
		}
	}

	text := ""
	if ret.out != nil {
		text = scope.Redact(ret.out.Text)
	}

	if ret.err == nil {
		logger.Info("stage passed", "duration", time.Since(started))
		return finish(domain.StageStatusPassed, domain.ReasonNone, text, nil)
	}

	reason := domain.ReasonError
	switch {
	case ret.panicked:
		reason = domain.ReasonPanic
	case ctx.Err() != nil:
		reason = domain.ReasonCancelled
		ret.err = fmt.Errorf("%w: %w", ErrStageCancelled, ret.err)
	case timeout > 0 && errors.Is(stageCtx.Err(), context.DeadlineExceeded):
		reason = domain.ReasonTimeout
		ret.err = fmt.Errorf("%w after %s: %w", ErrStageTimeout, timeout, ret.err)
	}

	redacted := errors.New(scope.Redact(ret.err.Error()))
	logger.Error("stage failed", "reason", reason, "error", redacted, "duration", time.Since(started))
	return finish(domain.StageStatusFailed, reason, text, redacted)
}

// failedResult создаёт failed результат для стадии, которая не запускалась.
func failedResult(name domain.StageName, reason domain.FailureReason, err error) domain.StageResult {
	now := time.Now()
	return domain.StageResult{
		Stage:      name,
		Status:     domain.StageStatusFailed,
		Reason:     reason,
		Error:      err.Error(),
		StartedAt:  &now,
		FinishedAt: &now,
	}
}
