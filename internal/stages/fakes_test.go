package stages

import (
	"context"
	"errors"
	"os"
	"testing"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"

	"github.com/shaiso/Shipyard/internal/config"
	"github.com/shaiso/Shipyard/internal/container"
	"github.com/shaiso/Shipyard/internal/engine"
	"github.com/shaiso/Shipyard/internal/kube"
	"github.com/shaiso/Shipyard/internal/runner"
	"github.com/shaiso/Shipyard/internal/source"
)

// --- images ---

type fakeImages struct {
	pingErr   error
	buildErr  error
	pushErr   error
	removeErr error

	built   []container.BuildOptions
	pushed  []container.PushOptions
	removed []string
}

func (f *fakeImages) Ping(context.Context) error { return f.pingErr }

func (f *fakeImages) Build(_ context.Context, opts container.BuildOptions) (string, error) {
	f.built = append(f.built, opts)
	if f.buildErr != nil {
		return "Step 3/5 : RUN make\nmake: *** [all] Error 2\n", f.buildErr
	}
	return "Successfully built abc123\n", nil
}

func (f *fakeImages) Push(_ context.Context, opts container.PushOptions) (string, error) {
	f.pushed = append(f.pushed, opts)
	return "digest: sha256:abc\n", f.pushErr
}

func (f *fakeImages) Remove(_ context.Context, ref string) error {
	f.removed = append(f.removed, ref)
	return f.removeErr
}

// --- cluster ---

type fakeCluster struct {
	versionErr error
	applyErr   error
	rolloutErr error
	podsErr    error
	eventsErr  error
	logsErr    error

	pods []kube.PodInfo
	url  string

	deployments []*appsv1.Deployment
	services    []*corev1.Service
	ingresses   []*networkingv1.Ingress
}

func (f *fakeCluster) ServerVersion() (string, error) { return "v1.31.0", f.versionErr }

func (f *fakeCluster) ApplyDeployment(_ context.Context, d *appsv1.Deployment) error {
	f.deployments = append(f.deployments, d)
	return f.applyErr
}

func (f *fakeCluster) ApplyService(_ context.Context, s *corev1.Service) error {
	f.services = append(f.services, s)
	return nil
}

func (f *fakeCluster) ApplyIngress(_ context.Context, ing *networkingv1.Ingress) error {
	f.ingresses = append(f.ingresses, ing)
	return nil
}

func (f *fakeCluster) WaitForRollout(context.Context, string) error { return f.rolloutErr }

func (f *fakeCluster) Pods(context.Context, map[string]string) ([]kube.PodInfo, error) {
	return f.pods, f.podsErr
}

func (f *fakeCluster) Events(context.Context, ...string) ([]string, error) {
	return []string{"Warning\tPod/webapp-1\tBackOff\tBack-off restarting failed container"}, f.eventsErr
}

func (f *fakeCluster) Logs(_ context.Context, pod string, _ int64) (string, error) {
	if f.logsErr != nil {
		return "", f.logsErr
	}
	return "panic: config missing\n", nil
}

func (f *fakeCluster) AccessURL(context.Context, string) (string, error) {
	if f.url == "" {
		return "", errors.New("no address")
	}
	return f.url, nil
}

type fakeConnector struct {
	cluster *fakeCluster
	err     error
	opts    []kube.ConnectOptions
}

func (f *fakeConnector) Connect(_ context.Context, opts kube.ConnectOptions) (kube.Cluster, error) {
	f.opts = append(f.opts, opts)
	if f.err != nil {
		return nil, f.err
	}
	return f.cluster, nil
}

// --- runner / source / credentials ---

type fakeRunner struct {
	missing map[string]bool
	failing map[string]bool
}

func (f *fakeRunner) Run(_ context.Context, command, _ string, _ []string) *runner.Result {
	if f.failing[command] {
		return &runner.Result{Stderr: "not ready", ExitCode: 1}
	}
	return &runner.Result{Stdout: "ok"}
}

func (f *fakeRunner) LookPath(tool string) (string, error) {
	if f.missing[tool] {
		return "", runner.ErrToolMissing
	}
	return "/usr/bin/" + tool, nil
}

type fakeCheckouter struct {
	err  error
	opts []source.CheckoutOptions
}

func (f *fakeCheckouter) Checkout(_ context.Context, opts source.CheckoutOptions) (source.Result, error) {
	f.opts = append(f.opts, opts)
	if f.err != nil {
		return source.Result{}, f.err
	}
	return source.Result{Commit: "3f2a9c0d7e51b6a4c2f1", Message: "fix", Author: "dev"}, nil
}

type fakeCreds struct {
	values map[string]string
	dir    string
}

func (f *fakeCreds) Get(name string) (string, error) {
	v, ok := f.values[name]
	if !ok {
		return "", errors.New("not in scope")
	}
	return v, nil
}

func (f *fakeCreds) File(name string) (string, error) {
	v, ok := f.values[name]
	if !ok {
		return "", errors.New("not in scope")
	}
	path := f.dir + "/" + name
	return path, os.WriteFile(path, []byte(v), 0o600)
}

func (f *fakeCreds) Has(name string) bool {
	_, ok := f.values[name]
	return ok
}

// --- helpers ---

func testEnv(t *testing.T, mutate func(*config.File)) config.Environment {
	t.Helper()
	f := config.File{
		Name:    "webapp",
		Image:   config.ImageFile{Registry: "registry.example.com", Repository: "team/webapp"},
		Cluster: config.ClusterFile{Name: "kind", Namespace: "apps", Kubeconfig: "/etc/kube/config"},
		Deploy:  config.DeployFile{Replicas: 2, Port: 8080, NodePort: 30080},
		Source:  config.SourceFile{URL: "https://git.example.com/team/webapp.git", Revision: "main"},
	}
	if mutate != nil {
		mutate(&f)
	}
	env, err := config.Build(f, config.WithBuildNumber(7), config.WithWorkspace(t.TempDir()), config.WithGetenv(func(string) string { return "" }))
	if err != nil {
		t.Fatalf("build env: %v", err)
	}
	return env
}

func testExec(t *testing.T, env config.Environment, creds Credentials) *Execution {
	t.Helper()
	tmpl := engine.NewContext(env.Pipeline(), env.BuildNumber())
	tmpl.Image = env.Image().Ref()
	tmpl.Service = env.Deploy().Name
	return &Execution{
		Env:         env,
		Credentials: creds,
		State:       NewState(env.Workspace(), true),
		Template:    tmpl,
	}
}
