package stages

import (
	"context"
	"fmt"

	"github.com/shaiso/Shipyard/internal/config"
	"github.com/shaiso/Shipyard/internal/domain"
	"github.com/shaiso/Shipyard/internal/kube"
)

// VerifyDeployment проверяет, что готовых подов не меньше, чем реплик,
// и определяет адрес сервиса.
type VerifyDeployment struct {
	Kube kube.Connector
}

func (s *VerifyDeployment) Name() domain.StageName { return domain.StageVerifyDeployment }

func (s *VerifyDeployment) Credentials() []string { return []string{config.CredKubeconfig} }

func (s *VerifyDeployment) Execute(ctx context.Context, exec *Execution) (*Output, error) {
	var out output
	d := exec.Env.Deploy()

	cluster, err := connect(ctx, s.Kube, exec)
	if err != nil {
		return out.result(), fmt.Errorf("%w: %w", ErrVerifyFailed, err)
	}

	pods, err := cluster.Pods(ctx, map[string]string{kube.LabelApp: d.Name})
	if err != nil {
		return out.result(), fmt.Errorf("%w: %w", ErrVerifyFailed, err)
	}

	var ready int32
	for _, p := range pods {
		out.write(p.String())
		if p.Ready {
			ready++
		}
	}
	out.printf("%d/%d pods ready", ready, d.Replicas)
	if ready < d.Replicas {
		return out.result(), fmt.Errorf("%w: %d of %d pods ready", ErrVerifyFailed, ready, d.Replicas)
	}

	url, err := cluster.AccessURL(ctx, d.Name)
	if err != nil {
		return out.result(), fmt.Errorf("%w: %w", ErrVerifyFailed, err)
	}
	exec.State.SetAccessURL(url)
	out.printf("service endpoint: %s", url)
	return out.result(), nil
}
