package stages

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shaiso/Shipyard/internal/config"
	"github.com/shaiso/Shipyard/internal/domain"
	"github.com/shaiso/Shipyard/internal/kube"
)

// --- Pipeline ---

func TestDefault_Order(t *testing.T) {
	p := Default(Deps{})

	names := p.Names()
	if len(names) != len(domain.StageOrder) {
		t.Fatalf("expected %d stages, got %d", len(domain.StageOrder), len(names))
	}
	for i, name := range domain.StageOrder {
		if names[i] != name {
			t.Errorf("stage %d: expected %s, got %s", i, name, names[i])
		}
	}

	if len(p.Post) != 3 {
		t.Fatalf("expected 3 post stages, got %d", len(p.Post))
	}
	if p.Post[2].When != domain.PostAlways || p.Post[2].Stage.Name() != domain.StageCleanup {
		t.Errorf("cleanup should be the always stage, got %+v", p.Post[2])
	}
}

// --- validate-environment ---

func TestValidateEnvironment_OK(t *testing.T) {
	env := testEnv(t, func(f *config.File) {
		f.Validate.Tools = []string{"docker", "kubectl"}
		f.Validate.Checks = []string{"docker info"}
	})
	stage := &ValidateEnvironment{
		Images: &fakeImages{},
		Runner: &fakeRunner{},
		Kube:   &fakeConnector{cluster: &fakeCluster{}},
	}

	out, err := stage.Execute(context.Background(), testExec(t, env, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"tool kubectl: /usr/bin/kubectl", "docker: ok", "kubernetes: v1.31.0"} {
		if !strings.Contains(out.Text, want) {
			t.Errorf("output should contain %q:\n%s", want, out.Text)
		}
	}
}

func TestValidateEnvironment_Failures(t *testing.T) {
	tests := []struct {
		name   string
		stage  *ValidateEnvironment
		expect string
	}{
		{
			name: "missing tool",
			stage: &ValidateEnvironment{
				Images: &fakeImages{}, Runner: &fakeRunner{missing: map[string]bool{"kubectl": true}},
				Kube: &fakeConnector{cluster: &fakeCluster{}},
			},
			expect: "tool kubectl: missing",
		},
		{
			name: "failing check",
			stage: &ValidateEnvironment{
				Images: &fakeImages{}, Runner: &fakeRunner{failing: map[string]bool{"docker info": true}},
				Kube: &fakeConnector{cluster: &fakeCluster{}},
			},
			expect: `check "docker info": exit 1`,
		},
		{
			name: "docker down",
			stage: &ValidateEnvironment{
				Images: &fakeImages{pingErr: errors.New("connection refused")}, Runner: &fakeRunner{},
				Kube: &fakeConnector{cluster: &fakeCluster{}},
			},
			expect: "docker: connection refused",
		},
		{
			name: "cluster unreachable",
			stage: &ValidateEnvironment{
				Images: &fakeImages{}, Runner: &fakeRunner{},
				Kube: &fakeConnector{err: errors.New("no such context")},
			},
			expect: "kubernetes:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testEnv(t, func(f *config.File) {
				f.Validate.Tools = []string{"docker", "kubectl"}
				f.Validate.Checks = []string{"docker info"}
			})

			out, err := tt.stage.Execute(context.Background(), testExec(t, env, nil))
			if !errors.Is(err, ErrEnvironmentInvalid) {
				t.Fatalf("expected ErrEnvironmentInvalid, got %v", err)
			}
			if !strings.Contains(out.Text, tt.expect) {
				t.Errorf("output should contain %q:\n%s", tt.expect, out.Text)
			}
		})
	}
}

// --- checkout-source ---

func TestCheckoutSource(t *testing.T) {
	env := testEnv(t, nil)
	src := &fakeCheckouter{}
	exec := testExec(t, env, &fakeCreds{values: map[string]string{config.CredGitToken: "ghp_token"}})

	out, err := (&CheckoutSource{Source: src}).Execute(context.Background(), exec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if src.opts[0].Token != "ghp_token" || src.opts[0].Revision != "main" {
		t.Errorf("unexpected checkout options %+v", src.opts[0])
	}
	if exec.State.Commit() != "3f2a9c0d7e51b6a4c2f1" {
		t.Errorf("commit should be stored in state, got %q", exec.State.Commit())
	}
	if exec.State.SourceDir() != filepath.Join(env.Workspace(), "src") {
		t.Errorf("unexpected source dir %q", exec.State.SourceDir())
	}
	if strings.Contains(out.Text, "ghp_token") {
		t.Error("token must not appear in output")
	}
}

func TestCheckoutSource_NoURL(t *testing.T) {
	env := testEnv(t, func(f *config.File) { f.Source.URL = "" })
	src := &fakeCheckouter{}

	if _, err := (&CheckoutSource{Source: src}).Execute(context.Background(), testExec(t, env, nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(src.opts) != 0 {
		t.Error("checkout should not be called without url")
	}
}

func TestCheckoutSource_Failure(t *testing.T) {
	env := testEnv(t, nil)
	_, err := (&CheckoutSource{Source: &fakeCheckouter{err: errors.New("auth required")}}).Execute(context.Background(), testExec(t, env, nil))
	if !errors.Is(err, ErrCheckoutFailed) {
		t.Errorf("expected ErrCheckoutFailed, got %v", err)
	}
}

// --- build-image / push-image ---

func TestBuildImage(t *testing.T) {
	env := testEnv(t, nil)
	images := &fakeImages{}
	exec := testExec(t, env, nil)
	exec.State.SetSource(filepath.Join(env.Workspace(), "src"), "abc")

	if _, err := (&BuildImage{Images: images}).Execute(context.Background(), exec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	opts := images.built[0]
	if opts.Tags[0] != "registry.example.com/team/webapp:7" || opts.Tags[1] != "registry.example.com/team/webapp:latest" {
		t.Errorf("unexpected tags %v", opts.Tags)
	}
	if opts.BuildArgs["GIT_COMMIT"] != "abc" || opts.BuildArgs["BUILD_NUMBER"] != "7" {
		t.Errorf("unexpected build args %v", opts.BuildArgs)
	}
	if len(exec.State.Images()) != 2 {
		t.Errorf("built images should be recorded, got %v", exec.State.Images())
	}
}

func TestBuildImage_Failure(t *testing.T) {
	env := testEnv(t, nil)
	exec := testExec(t, env, nil)

	out, err := (&BuildImage{Images: &fakeImages{buildErr: errors.New("exit status 2")}}).Execute(context.Background(), exec)
	if !errors.Is(err, ErrBuildFailed) {
		t.Fatalf("expected ErrBuildFailed, got %v", err)
	}
	if !strings.Contains(out.Text, "Error 2") {
		t.Errorf("build log should be captured:\n%s", out.Text)
	}
	if len(exec.State.Images()) != 0 {
		t.Error("failed build must not record images")
	}
}

func TestPushImage(t *testing.T) {
	env := testEnv(t, nil)
	images := &fakeImages{}
	creds := &fakeCreds{values: map[string]string{
		config.CredRegistryUser:     "ci",
		config.CredRegistryPassword: "hunter22",
	}}

	if _, err := (&PushImage{Images: images}).Execute(context.Background(), testExec(t, env, creds)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(images.pushed) != 2 {
		t.Fatalf("expected 2 pushes, got %d", len(images.pushed))
	}
	if images.pushed[0].Username != "ci" || images.pushed[0].Password != "hunter22" {
		t.Errorf("credentials should be passed to push, got %+v", images.pushed[0])
	}

	_, err := (&PushImage{Images: &fakeImages{pushErr: errors.New("denied")}}).Execute(context.Background(), testExec(t, env, nil))
	if !errors.Is(err, ErrPushFailed) {
		t.Errorf("expected ErrPushFailed, got %v", err)
	}
}

// --- deploy-to-cluster / verify-deployment ---

func TestDeployToCluster(t *testing.T) {
	routes := filepath.Join(t.TempDir(), "routes.yaml")
	if err := os.WriteFile(routes, []byte("rules:\n  - {host: www.example.com, path: /, backendService: webapp, backendPort: 8080}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	env := testEnv(t, func(f *config.File) {
		f.Deploy.Labels = map[string]string{"build": "b{{ .Build }}"}
		f.Ingress = routes
	})
	cluster := &fakeCluster{}
	connector := &fakeConnector{cluster: cluster}
	creds := &fakeCreds{values: map[string]string{config.CredKubeconfig: "apiVersion: v1"}, dir: t.TempDir()}
	exec := testExec(t, env, creds)

	out, err := (&DeployToCluster{Kube: connector}).Execute(context.Background(), exec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := os.Stat(exec.State.Manifest()); err != nil {
		t.Errorf("manifest should be written: %v", err)
	}
	if connector.opts[0].Kubeconfig != filepath.Join(creds.dir, config.CredKubeconfig) {
		t.Errorf("kubeconfig should come from credential scope, got %q", connector.opts[0].Kubeconfig)
	}
	d := cluster.deployments[0]
	if d.Spec.Template.Spec.Containers[0].Image != "registry.example.com/team/webapp:7" {
		t.Errorf("unexpected image %s", d.Spec.Template.Spec.Containers[0].Image)
	}
	if d.Labels["build"] != "b7" {
		t.Errorf("labels should be rendered, got %v", d.Labels)
	}
	if len(cluster.ingresses) != 1 || cluster.ingresses[0].Namespace != "apps" {
		t.Errorf("ingress should be applied in deploy namespace, got %+v", cluster.ingresses)
	}
	if !strings.Contains(out.Text, "successfully rolled out") {
		t.Errorf("unexpected output:\n%s", out.Text)
	}
}

func TestDeployToCluster_RolloutTimeout(t *testing.T) {
	env := testEnv(t, nil)
	cluster := &fakeCluster{rolloutErr: context.DeadlineExceeded}

	_, err := (&DeployToCluster{Kube: &fakeConnector{cluster: cluster}}).Execute(context.Background(), testExec(t, env, nil))
	if !errors.Is(err, ErrRolloutTimeout) {
		t.Errorf("expected ErrRolloutTimeout, got %v", err)
	}

	cluster = &fakeCluster{applyErr: errors.New("forbidden")}
	_, err = (&DeployToCluster{Kube: &fakeConnector{cluster: cluster}}).Execute(context.Background(), testExec(t, env, nil))
	if !errors.Is(err, ErrDeployFailed) {
		t.Errorf("expected ErrDeployFailed, got %v", err)
	}
}

func TestVerifyDeployment(t *testing.T) {
	env := testEnv(t, nil)
	cluster := &fakeCluster{
		pods: []kube.PodInfo{{Name: "webapp-1", Ready: true}, {Name: "webapp-2", Ready: true}},
		url:  "http://172.18.0.2:30080",
	}
	exec := testExec(t, env, nil)

	if _, err := (&VerifyDeployment{Kube: &fakeConnector{cluster: cluster}}).Execute(context.Background(), exec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exec.State.AccessURL() != "http://172.18.0.2:30080" {
		t.Errorf("access url should be stored, got %q", exec.State.AccessURL())
	}

	cluster.pods[1].Ready = false
	_, err := (&VerifyDeployment{Kube: &fakeConnector{cluster: cluster}}).Execute(context.Background(), testExec(t, env, nil))
	if !errors.Is(err, ErrVerifyFailed) {
		t.Errorf("expected ErrVerifyFailed, got %v", err)
	}
}

// --- post ---

func TestReportAccess(t *testing.T) {
	env := testEnv(t, nil)
	cluster := &fakeCluster{pods: []kube.PodInfo{{Name: "webapp-1", Ready: true}}}
	exec := testExec(t, env, nil)
	exec.State.SetAccessURL("http://172.18.0.2:30080")

	out, err := (&ReportAccess{Kube: &fakeConnector{cluster: cluster}}).Execute(context.Background(), exec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "webapp is available at http://172.18.0.2:30080 (build 7, image registry.example.com/team/webapp:7)"
	if !strings.Contains(out.Text, want) {
		t.Errorf("output should contain %q:\n%s", want, out.Text)
	}
	if !strings.Contains(out.Text, "webapp-1") {
		t.Error("pod table should be reported")
	}
}

func TestCollectDiagnostics_SwallowsErrors(t *testing.T) {
	env := testEnv(t, nil)

	tests := []struct {
		name      string
		connector *fakeConnector
		expect    string
	}{
		{
			name: "all sources",
			connector: &fakeConnector{cluster: &fakeCluster{
				pods: []kube.PodInfo{{Name: "webapp-1", Phase: "Running", Reason: "CrashLoopBackOff"}},
			}},
			expect: "panic: config missing",
		},
		{
			name: "logs fail",
			connector: &fakeConnector{cluster: &fakeCluster{
				pods:    []kube.PodInfo{{Name: "webapp-1"}},
				logsErr: errors.New("container not started"),
			}},
			expect: "error: container not started",
		},
		{
			name:      "pods fail",
			connector: &fakeConnector{cluster: &fakeCluster{podsErr: errors.New("forbidden")}},
			expect:    "error: forbidden",
		},
		{
			name:      "cluster unreachable",
			connector: &fakeConnector{err: errors.New("dial tcp: refused")},
			expect:    "diagnostics unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := (&CollectDiagnostics{Kube: tt.connector}).Execute(context.Background(), testExec(t, env, nil))
			if err != nil {
				t.Fatalf("diagnostics must not fail, got %v", err)
			}
			if !strings.Contains(out.Text, tt.expect) {
				t.Errorf("output should contain %q:\n%s", tt.expect, out.Text)
			}
		})
	}
}

func TestCleanup(t *testing.T) {
	env := testEnv(t, nil)
	images := &fakeImages{}
	exec := testExec(t, env, nil)
	exec.State.AddImages("registry.example.com/team/webapp:7", "registry.example.com/team/webapp:latest")

	workspace, _ := exec.State.Workspace()
	if err := os.MkdirAll(filepath.Join(workspace, "src"), 0o755); err != nil {
		t.Fatal(err)
	}

	if _, err := (&Cleanup{Images: images}).Execute(context.Background(), exec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(images.removed) != 2 {
		t.Errorf("expected 2 images removed, got %v", images.removed)
	}
	if _, err := os.Stat(workspace); !os.IsNotExist(err) {
		t.Errorf("owned workspace should be removed, got %v", err)
	}
}

func TestCleanup_KeepImagesAndForeignWorkspace(t *testing.T) {
	keep := false
	env := testEnv(t, func(f *config.File) { f.Cleanup.RemoveImages = &keep })
	images := &fakeImages{}
	exec := testExec(t, env, nil)
	exec.State = NewState(env.Workspace(), false)
	exec.State.AddImages("registry.example.com/team/webapp:7")

	deployDir := filepath.Join(env.Workspace(), "deploy")
	if err := os.MkdirAll(deployDir, 0o755); err != nil {
		t.Fatal(err)
	}

	if _, err := (&Cleanup{Images: images}).Execute(context.Background(), exec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(images.removed) != 0 {
		t.Errorf("images should be kept, removed %v", images.removed)
	}
	if _, err := os.Stat(env.Workspace()); err != nil {
		t.Errorf("foreign workspace must stay: %v", err)
	}
	if _, err := os.Stat(deployDir); !os.IsNotExist(err) {
		t.Error("generated deploy dir should be removed")
	}
}

func TestCleanup_ReportsFailures(t *testing.T) {
	env := testEnv(t, nil)
	exec := testExec(t, env, nil)
	exec.State.AddImages("app:1")

	_, err := (&Cleanup{Images: &fakeImages{removeErr: errors.New("in use")}}).Execute(context.Background(), exec)
	if !errors.Is(err, ErrCleanupFailed) {
		t.Errorf("expected ErrCleanupFailed, got %v", err)
	}
}
