package stages

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/shaiso/Shipyard/internal/config"
	"github.com/shaiso/Shipyard/internal/domain"
	"github.com/shaiso/Shipyard/internal/ingress"
	"github.com/shaiso/Shipyard/internal/kube"
)

// DeployToCluster генерирует Deployment и Service, записывает дескриптор
// в <workspace>/deploy/manifest.yaml, применяет его и ждёт rollout.
//
// Если задан ingress файл, таблица маршрутизации применяется после сервиса.
// Время стадии ограничивает оркестратор (по умолчанию 10 минут).
type DeployToCluster struct {
	Kube kube.Connector
}

func (s *DeployToCluster) Name() domain.StageName { return domain.StageDeployToCluster }

func (s *DeployToCluster) Credentials() []string { return []string{config.CredKubeconfig} }

func (s *DeployToCluster) Execute(ctx context.Context, exec *Execution) (*Output, error) {
	var out output

	w, err := workload(exec)
	if err != nil {
		return out.result(), fmt.Errorf("%w: %w", ErrDeployFailed, err)
	}
	deployment, err := kube.BuildDeployment(w)
	if err != nil {
		return out.result(), fmt.Errorf("%w: %w", ErrDeployFailed, err)
	}
	service := kube.BuildService(w)

	workspace, _ := exec.State.Workspace()
	manifest := filepath.Join(workspace, "deploy", "manifest.yaml")
	if err := kube.WriteManifests(manifest, deployment, service); err != nil {
		return out.result(), fmt.Errorf("%w: %w", ErrDeployFailed, err)
	}
	exec.State.SetManifest(manifest)
	out.printf("wrote %s", manifest)

	cluster, err := connect(ctx, s.Kube, exec)
	if err != nil {
		return out.result(), fmt.Errorf("%w: %w", ErrDeployFailed, err)
	}

	if err := cluster.ApplyDeployment(ctx, deployment); err != nil {
		return out.result(), fmt.Errorf("%w: %w", ErrDeployFailed, err)
	}
	out.printf("deployment/%s applied (image %s, replicas %d)", w.Name, w.Image, w.Replicas)

	if err := cluster.ApplyService(ctx, service); err != nil {
		return out.result(), fmt.Errorf("%w: %w", ErrDeployFailed, err)
	}
	out.printf("service/%s applied (%s)", w.Name, service.Spec.Type)

	if path := exec.Env.IngressFile(); path != "" {
		table, err := ingress.Load(path)
		if err != nil {
			return out.result(), fmt.Errorf("%w: %w", ErrDeployFailed, err)
		}
		ing := table.Ingress()
		if ing.Namespace == "" {
			ing.Namespace = w.Namespace
		}
		if err := cluster.ApplyIngress(ctx, ing); err != nil {
			return out.result(), fmt.Errorf("%w: %w", ErrDeployFailed, err)
		}
		out.printf("ingress/%s applied (%d hosts)", ing.Name, len(ing.Spec.Rules))
	}

	if err := cluster.WaitForRollout(ctx, w.Name); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return out.result(), fmt.Errorf("%w: %w", ErrRolloutTimeout, err)
		}
		return out.result(), fmt.Errorf("%w: %w", ErrDeployFailed, err)
	}
	out.printf("deployment/%s successfully rolled out", w.Name)
	return out.result(), nil
}
