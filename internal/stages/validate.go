package stages

import (
	"context"
	"errors"
	"fmt"

	"github.com/shaiso/Shipyard/internal/config"
	"github.com/shaiso/Shipyard/internal/container"
	"github.com/shaiso/Shipyard/internal/domain"
	"github.com/shaiso/Shipyard/internal/kube"
	"github.com/shaiso/Shipyard/internal/runner"
)

// ValidateEnvironment проверяет, что всё нужное для run доступно.
//
// Проверки:
//   - инструменты из validate.tools есть в PATH
//   - команды validate.checks завершаются с кодом 0
//   - Docker демон отвечает
//   - API сервер кластера отвечает
type ValidateEnvironment struct {
	Images container.ImageService
	Runner runner.Runner
	Kube   kube.Connector
}

func (s *ValidateEnvironment) Name() domain.StageName { return domain.StageValidateEnvironment }

func (s *ValidateEnvironment) Credentials() []string { return []string{config.CredKubeconfig} }

func (s *ValidateEnvironment) Execute(ctx context.Context, exec *Execution) (*Output, error) {
	var out output
	var problems []error

	out.printf("image: %s", exec.Env.Image().Ref())
	out.printf("cluster: %s (namespace %s)", exec.Env.Cluster().Name, exec.Env.Cluster().Namespace)

	for _, tool := range exec.Env.RequiredTools() {
		path, err := s.Runner.LookPath(tool)
		if err != nil {
			out.printf("tool %s: missing", tool)
			problems = append(problems, fmt.Errorf("tool %s: %w", tool, err))
			continue
		}
		out.printf("tool %s: %s", tool, path)
	}

	for _, check := range exec.Env.Checks() {
		res := s.Runner.Run(ctx, check, "", nil)
		if res.ExitCode != 0 {
			out.printf("check %q: exit %d", check, res.ExitCode)
			out.write(tail(res.Output(), 20))
			problems = append(problems, fmt.Errorf("check %q exited with %d", check, res.ExitCode))
			continue
		}
		out.printf("check %q: ok", check)
	}

	if err := s.Images.Ping(ctx); err != nil {
		out.printf("docker: %v", err)
		problems = append(problems, err)
	} else {
		out.printf("docker: ok")
	}

	cluster, err := connect(ctx, s.Kube, exec)
	if err != nil {
		out.printf("kubernetes: %v", err)
		problems = append(problems, err)
	} else if version, err := cluster.ServerVersion(); err != nil {
		out.printf("kubernetes: %v", err)
		problems = append(problems, err)
	} else {
		out.printf("kubernetes: %s", version)
	}

	if len(problems) > 0 {
		return out.result(), fmt.Errorf("%w: %w", ErrEnvironmentInvalid, errors.Join(problems...))
	}
	return out.result(), nil
}
