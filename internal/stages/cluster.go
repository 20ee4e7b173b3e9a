package stages

import (
	"context"
	"fmt"

	"github.com/shaiso/Shipyard/internal/config"
	"github.com/shaiso/Shipyard/internal/engine"
	"github.com/shaiso/Shipyard/internal/kube"
)

// connect открывает соединение с кластером.
//
// Если kubeconfig задан ссылкой на секрет, он материализуется во временный
// файл scope стадии и удаляется вместе со scope.
func connect(ctx context.Context, connector kube.Connector, exec *Execution) (kube.Cluster, error) {
	cluster := exec.Env.Cluster()
	path := cluster.Kubeconfig

	if exec.Credentials != nil && exec.Credentials.Has(config.CredKubeconfig) {
		p, err := exec.Credentials.File(config.CredKubeconfig)
		if err != nil {
			return nil, fmt.Errorf("materialize kubeconfig: %w", err)
		}
		path = p
	}

	c, err := connector.Connect(ctx, kube.ConnectOptions{
		Kubeconfig: path,
		Context:    cluster.Context,
		Namespace:  cluster.Namespace,
		Logger:     exec.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to cluster %s: %w", cluster.Name, err)
	}
	return c, nil
}

// workload строит описание рабочей нагрузки из окружения.
func workload(exec *Execution) (kube.WorkloadSpec, error) {
	env := exec.Env
	d := env.Deploy()

	labels := d.Labels()
	if exec.Template != nil {
		rendered, err := engine.RenderMap(labels, exec.Template)
		if err != nil {
			return kube.WorkloadSpec{}, fmt.Errorf("render labels: %w", err)
		}
		labels = rendered
	}

	return kube.WorkloadSpec{
		Name:      d.Name,
		Namespace: env.Cluster().Namespace,
		Image:     env.Image().Ref(),
		Build:     env.BuildNumber(),
		Replicas:  d.Replicas,
		Port:      d.Port,
		NodePort:  d.NodePort,
		Labels:    labels,
		Env:       d.Env(),
		Requests:  d.Resources().Requests(),
		Limits:    d.Resources().Limits(),
	}, nil
}
