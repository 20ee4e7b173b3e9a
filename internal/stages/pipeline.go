package stages

import (
	"github.com/shaiso/Shipyard/internal/container"
	"github.com/shaiso/Shipyard/internal/domain"
	"github.com/shaiso/Shipyard/internal/kube"
	"github.com/shaiso/Shipyard/internal/runner"
	"github.com/shaiso/Shipyard/internal/source"
)

// PostStage — post-стадия с условием выполнения.
type PostStage struct {
	When  domain.PostCondition
	Stage Stage
}

// Pipeline — статически определённый набор стадий.
type Pipeline struct {
	Stages []Stage
	Post   []PostStage
}

// Deps — внешние зависимости стадий.
type Deps struct {
	Images container.ImageService
	Kube   kube.Connector
	Source source.Checkouter
	Runner runner.Runner

	// DiagnosticsTailLines — сколько строк логов собирать с пода. 0 — 100.
	DiagnosticsTailLines int64
}

// Default возвращает pipeline в фиксированном порядке:
// validate → checkout → build → push → deploy → verify,
// post: on_success report-access, on_failure collect-diagnostics, always cleanup.
func Default(d Deps) Pipeline {
	if d.Runner == nil {
		d.Runner = runner.Shell{}
	}
	return Pipeline{
		Stages: []Stage{
			&ValidateEnvironment{Images: d.Images, Runner: d.Runner, Kube: d.Kube},
			&CheckoutSource{Source: d.Source},
			&BuildImage{Images: d.Images},
			&PushImage{Images: d.Images},
			&DeployToCluster{Kube: d.Kube},
			&VerifyDeployment{Kube: d.Kube},
		},
		Post: []PostStage{
			{When: domain.PostOnSuccess, Stage: &ReportAccess{Kube: d.Kube}},
			{When: domain.PostOnFailure, Stage: &CollectDiagnostics{Kube: d.Kube, TailLines: d.DiagnosticsTailLines}},
			{When: domain.PostAlways, Stage: &Cleanup{Images: d.Images}},
		},
	}
}

// Names возвращает имена основных стадий в порядке выполнения.
func (p Pipeline) Names() []domain.StageName {
	names := make([]domain.StageName, 0, len(p.Stages))
	for _, s := range p.Stages {
		names = append(names, s.Name())
	}
	return names
}
