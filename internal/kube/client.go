package kube

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
)

// Cluster — операции с кластером, которые используют стадии.
type Cluster interface {
	ServerVersion() (string, error)
	ApplyDeployment(ctx context.Context, d *appsv1.Deployment) error
	ApplyService(ctx context.Context, s *corev1.Service) error
	ApplyIngress(ctx context.Context, ing *networkingv1.Ingress) error
	WaitForRollout(ctx context.Context, name string) error
	Pods(ctx context.Context, selector map[string]string) ([]PodInfo, error)
	Events(ctx context.Context, names ...string) ([]string, error)
	Logs(ctx context.Context, pod string, tailLines int64) (string, error)
	AccessURL(ctx context.Context, service string) (string, error)
}

// Connector открывает соединение с кластером.
type Connector interface {
	Connect(ctx context.Context, opts ConnectOptions) (Cluster, error)
}

// ConnectorFunc адаптирует функцию к Connector.
type ConnectorFunc func(ctx context.Context, opts ConnectOptions) (Cluster, error)

func (f ConnectorFunc) Connect(ctx context.Context, opts ConnectOptions) (Cluster, error) {
	return f(ctx, opts)
}

// ConnectOptions — параметры подключения.
type ConnectOptions struct {
	// Kubeconfig — путь к kubeconfig. Пусто — правила по умолчанию ($KUBECONFIG, ~/.kube/config).
	Kubeconfig string

	// Context — контекст kubeconfig. Пусто — current-context.
	Context string

	Namespace    string
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Client реализует Cluster поверх kubernetes.Interface.
type Client struct {
	cs           kubernetes.Interface
	namespace    string
	pollInterval time.Duration
	logger       *slog.Logger
}

// Connect создаёт Client по kubeconfig.
func Connect(_ context.Context, opts ConnectOptions) (Cluster, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if opts.Kubeconfig != "" {
		rules = &clientcmd.ClientConfigLoadingRules{ExplicitPath: opts.Kubeconfig}
	}
	cc := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, &clientcmd.ConfigOverrides{
		CurrentContext: opts.Context,
	})

	restCfg, err := cc.ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("load kubeconfig: %w", err)
	}
	if opts.Namespace == "" {
		ns, _, err := cc.Namespace()
		if err == nil {
			opts.Namespace = ns
		}
	}

	cs, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("create clientset: %w", err)
	}
	return NewClient(cs, opts), nil
}

// NewClient создаёт Client с готовым clientset.
func NewClient(cs kubernetes.Interface, opts ConnectOptions) *Client {
	if opts.Namespace == "" {
		opts.Namespace = "default"
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{
		cs:           cs,
		namespace:    opts.Namespace,
		pollInterval: opts.PollInterval,
		logger:       opts.Logger,
	}
}

// Namespace возвращает namespace клиента.
func (c *Client) Namespace() string {
	return c.namespace
}

// ServerVersion возвращает версию API сервера.
func (c *Client) ServerVersion() (string, error) {
	info, err := c.cs.Discovery().ServerVersion()
	if err != nil {
		return "", fmt.Errorf("server version: %w", err)
	}
	return info.GitVersion, nil
}
