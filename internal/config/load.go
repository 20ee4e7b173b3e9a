package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/Shipyard/internal/domain"
	"github.com/shaiso/Shipyard/internal/engine"
)

var tagPattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]{0,127}$`)

// Option изменяет параметры загрузки.
type Option func(*options)

type options struct {
	build     int64
	revision  string
	workspace string
	getenv    func(string) string
}

// WithBuildNumber задаёт номер сборки (приоритетнее BUILD_NUMBER).
func WithBuildNumber(n int64) Option {
	return func(o *options) { o.build = n }
}

// WithRevision задаёт ревизию исходников (ветка, тег, commit).
func WithRevision(rev string) Option {
	return func(o *options) { o.revision = rev }
}

// WithWorkspace задаёт рабочую директорию run.
func WithWorkspace(dir string) Option {
	return func(o *options) { o.workspace = dir }
}

// WithGetenv подменяет источник переменных окружения (для тестов).
func WithGetenv(fn func(string) string) Option {
	return func(o *options) { o.getenv = fn }
}

// Load читает YAML файл pipeline и строит Environment.
func Load(path string, opts ...Option) (Environment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Environment{}, fmt.Errorf("%s: %w", path, ErrConfigNotFound)
		}
		return Environment{}, fmt.Errorf("read pipeline config: %w", err)
	}
	return Parse(data, opts...)
}

// Parse разбирает YAML и строит Environment.
func Parse(data []byte, opts ...Option) (Environment, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Environment{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return Build(f, opts...)
}

// Build применяет переменные окружения и опции к File,
// заполняет значения по умолчанию и валидирует результат.
func Build(f File, opts ...Option) (Environment, error) {
	o := options{getenv: os.Getenv}
	for _, opt := range opts {
		opt(&o)
	}

	overlayEnv(&f, o.getenv)

	build := o.build
	if build == 0 {
		if v := o.getenv("BUILD_NUMBER"); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return Environment{}, invalid("", "BUILD_NUMBER", "must be an integer")
			}
			build = n
		}
	}
	if build <= 0 {
		return Environment{}, invalid("", "build", "build number must be positive")
	}
	if o.revision != "" {
		f.Source.Revision = o.revision
	}
	if o.workspace != "" {
		f.Workspace = o.workspace
	}

	applyDefaults(&f, build)

	if err := validate(&f); err != nil {
		return Environment{}, err
	}

	tmplCtx := engine.NewContext(f.Name, build)
	tmplCtx.Revision = f.Source.Revision
	for k, v := range f.Env {
		tmplCtx.SetEnv(k, v)
	}
	tag, err := engine.Render(f.Image.Tag, tmplCtx)
	if err != nil {
		return Environment{}, fmt.Errorf("%w: image.tag: %v", ErrInvalidConfig, err)
	}
	if !tagPattern.MatchString(tag) {
		return Environment{}, invalid("image", "tag", fmt.Sprintf("%q is not a valid image tag", tag))
	}

	env := Environment{
		pipeline:   f.Name,
		build:      build,
		workspace:  f.Workspace,
		dockerfile: f.Dockerfile,
		image: Image{
			Registry:   f.Image.Registry,
			Repository: f.Image.Repository,
			Tag:        tag,
		},
		source: Source{
			URL:      f.Source.URL,
			Revision: f.Source.Revision,
			Depth:    f.Source.Depth,
		},
		cluster: Cluster{
			Name:       f.Cluster.Name,
			Namespace:  f.Cluster.Namespace,
			Kubeconfig: f.Cluster.Kubeconfig,
			Context:    f.Cluster.Context,
		},
		deploy: Deploy{
			Name:     f.Deploy.Name,
			Replicas: f.Deploy.Replicas,
			Port:     f.Deploy.Port,
			NodePort: f.Deploy.NodePort,
			Timeout:  f.Deploy.Timeout,
			labels:   copyMap(f.Deploy.Labels),
			env:      copyMap(f.Deploy.Env),
			resources: Resources{
				requests: copyMap(f.Deploy.Resources.Requests),
				limits:   copyMap(f.Deploy.Resources.Limits),
			},
		},
		credentials:  make(map[string]domain.CredentialRef, len(f.Credentials)+1),
		tools:        append([]string(nil), f.Validate.Tools...),
		checks:       append([]string(nil), f.Validate.Checks...),
		removeImages: f.Cleanup.RemoveImages == nil || *f.Cleanup.RemoveImages,
		guards:       make(map[domain.StageName]StageGuard, len(f.Stages)+1),
		access:       f.Access,
		ingress:      f.Ingress,
		values:       copyMap(f.Env),
	}
	for name, ref := range f.Credentials {
		env.credentials[name] = domain.CredentialRef(ref)
	}
	if f.Cluster.KubeconfigRef != "" {
		env.credentials[CredKubeconfig] = domain.CredentialRef(f.Cluster.KubeconfigRef)
	}
	for name, g := range f.Stages {
		env.guards[domain.StageName(name)] = StageGuard{
			Timeout:      g.Timeout,
			AllowFailure: g.AllowFailure,
			When:         g.When,
		}
	}

	deployGuard := env.guards[domain.StageDeployToCluster]
	if deployGuard.Timeout == 0 {
		deployGuard.Timeout = f.Deploy.Timeout
	}
	env.guards[domain.StageDeployToCluster] = deployGuard

	return env, nil
}

// overlayEnv переопределяет поля файла переменными окружения.
func overlayEnv(f *File, getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&f.Image.Registry, "SHIPYARD_REGISTRY")
	set(&f.Image.Repository, "SHIPYARD_IMAGE")
	set(&f.Image.Tag, "SHIPYARD_TAG")
	set(&f.Cluster.Name, "SHIPYARD_CLUSTER")
	set(&f.Cluster.Namespace, "SHIPYARD_NAMESPACE")
	set(&f.Cluster.Kubeconfig, "KUBECONFIG")
	set(&f.Cluster.Context, "SHIPYARD_KUBE_CONTEXT")
	set(&f.Source.URL, "SHIPYARD_SOURCE_URL")
	set(&f.Source.Revision, "SHIPYARD_REVISION")
	set(&f.Workspace, "SHIPYARD_WORKSPACE")
}

func applyDefaults(f *File, build int64) {
	if f.Image.Tag == "" {
		f.Image.Tag = "{{ .Build }}"
	}
	if f.Dockerfile == "" {
		f.Dockerfile = "Dockerfile"
	}
	if f.Cluster.Namespace == "" {
		f.Cluster.Namespace = "default"
	}
	if f.Deploy.Name == "" {
		f.Deploy.Name = f.Name
	}
	if f.Deploy.Replicas == 0 {
		f.Deploy.Replicas = 1
	}
	if f.Deploy.Port == 0 {
		f.Deploy.Port = 80
	}
	if f.Deploy.Timeout == 0 {
		f.Deploy.Timeout = DefaultDeployTimeout
	}
	if f.Workspace == "" {
		f.Workspace = filepath.Join(os.TempDir(), "shipyard", fmt.Sprintf("%s-%d", f.Name, build))
	}
}

func validate(f *File) error {
	if f.Name == "" {
		return invalid("", "name", "must not be empty")
	}
	if f.Image.Repository == "" {
		return invalid("image", "repository", "must not be empty")
	}
	if f.Cluster.Name == "" {
		return invalid("cluster", "name", "must not be empty")
	}
	if f.Deploy.Port < 1 || f.Deploy.Port > 65535 {
		return invalid("deploy", "port", "must be in 1..65535")
	}
	if f.Deploy.NodePort != 0 && (f.Deploy.NodePort < 30000 || f.Deploy.NodePort > 32767) {
		return invalid("deploy", "nodePort", "must be in 30000..32767")
	}
	if f.Deploy.Replicas < 0 {
		return invalid("deploy", "replicas", "must not be negative")
	}
	if f.Deploy.Timeout < 0 {
		return invalid("deploy", "timeout", "must not be negative")
	}
	for name, ref := range f.Credentials {
		if _, _, err := domain.CredentialRef(ref).Parse(); err != nil {
			return engine.NewValidationError("credentials", name, fmt.Sprintf("%q must be scheme:key", ref), errors.Join(ErrInvalidConfig, err))
		}
	}
	if f.Cluster.KubeconfigRef != "" {
		if _, _, err := domain.CredentialRef(f.Cluster.KubeconfigRef).Parse(); err != nil {
			return engine.NewValidationError("cluster", "kubeconfigRef", "must be scheme:key", errors.Join(ErrInvalidConfig, err))
		}
	}
	known := make(map[domain.StageName]bool)
	for _, s := range domain.StageOrder {
		known[s] = true
	}
	for name, g := range f.Stages {
		if !known[domain.StageName(name)] {
			return invalid("stages", name, "unknown stage")
		}
		if g.Timeout < 0 {
			return invalid("stages", name, "timeout must not be negative")
		}
	}
	return nil
}

func invalid(section, field, msg string) error {
	return engine.NewValidationError(section, field, msg, ErrInvalidConfig)
}

func copyMap(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// TimeoutOr возвращает таймаут guard либо def, если таймаут не задан.
func (g StageGuard) TimeoutOr(def time.Duration) time.Duration {
	if g.Timeout > 0 {
		return g.Timeout
	}
	return def
}
