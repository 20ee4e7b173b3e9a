package orchestrator

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/shaiso/Shipyard/internal/config"
	"github.com/shaiso/Shipyard/internal/domain"
	"github.com/shaiso/Shipyard/internal/engine"
	"github.com/shaiso/Shipyard/internal/stages"
)

// runState — состояние одного выполняющегося run.
//
// Принадлежит горутине Execute; стадии получают копию шаблонного контекста.
type runState struct {
	run      *domain.PipelineRun
	env      config.Environment
	state    *stages.State
	template *engine.Context
	logger   *slog.Logger

	outcome domain.Outcome
	errText string
}

func newRunState(run *domain.PipelineRun, env config.Environment, logger *slog.Logger) *runState {
	tmpl := engine.NewContext(env.Pipeline(), env.BuildNumber())
	tmpl.Revision = env.Source().Revision
	tmpl.Image = env.Image().Ref()
	tmpl.Namespace = env.Cluster().Namespace
	tmpl.Service = env.Deploy().Name
	for k, v := range env.Values() {
		tmpl.SetEnv(k, v)
	}

	return &runState{
		run:      run,
		env:      env,
		template: tmpl,
		logger:   logger,
		outcome:  domain.OutcomeSuccess,
	}
}

// fail переводит run в failure. Сохраняется первая причина.
func (rs *runState) fail(errText string) {
	if rs.outcome == domain.OutcomeFailure {
		return
	}
	rs.outcome = domain.OutcomeFailure
	rs.errText = errText
}

func (rs *runState) failed() bool {
	return rs.outcome == domain.OutcomeFailure
}

// sync переносит результат стадии и артефакты State в шаблонный контекст.
func (rs *runState) sync(res domain.StageResult) {
	rs.template.AddStageResult(string(res.Stage), string(res.Status), res.Output)
	if rs.state == nil {
		return
	}
	if commit := rs.state.Commit(); commit != "" {
		rs.template.Commit = commit
	}
	if url := rs.state.AccessURL(); url != "" {
		rs.template.NodeURL = url
	}
}

// prepareWorkspace создаёт рабочую директорию.
// owned == true, если директория создана здесь и должна быть удалена при cleanup.
func prepareWorkspace(dir string) (string, bool, error) {
	info, err := os.Stat(dir)
	switch {
	case err == nil:
		if !info.IsDir() {
			return dir, false, fmt.Errorf("%s is not a directory", dir)
		}
		return dir, false, nil
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return dir, false, err
		}
		return dir, true, nil
	default:
		return dir, false, err
	}
}
