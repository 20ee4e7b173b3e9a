package container

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	docker "github.com/fsouza/go-dockerclient"
)

// Client — методы go-dockerclient, которые использует пакет.
type Client interface {
	PingWithContext(ctx context.Context) error
	BuildImage(opts docker.BuildImageOptions) error
	TagImage(name string, opts docker.TagImageOptions) error
	PushImage(opts docker.PushImageOptions, auth docker.AuthConfiguration) error
	RemoveImageExtended(name string, opts docker.RemoveImageOptions) error
}

// ImageService — операции с образами, нужные стадиям.
type ImageService interface {
	Ping(ctx context.Context) error
	Build(ctx context.Context, opts BuildOptions) (string, error)
	Push(ctx context.Context, opts PushOptions) (string, error)
	Remove(ctx context.Context, ref string) error
}

// BuildOptions — параметры сборки.
type BuildOptions struct {
	ContextDir string
	Dockerfile string

	// Tags — полные ссылки на образ; первый используется при сборке,
	// остальные навешиваются через tag.
	Tags      []string
	BuildArgs map[string]string
	Labels    map[string]string
	NoCache   bool
}

// PushOptions — параметры push.
type PushOptions struct {
	Ref      string
	Registry string
	Username string
	Password string
}

// Config — конфигурация Service.
type Config struct {
	// Endpoint — адрес демона. Пусто — берётся из DOCKER_HOST и т.п.
	Endpoint string
	Logger   *slog.Logger
}

// Service реализует ImageService поверх go-dockerclient.
type Service struct {
	client Client
	logger *slog.Logger
}

// New создаёт Service, подключаясь к демону.
func New(cfg Config) (*Service, error) {
	var (
		client *docker.Client
		err    error
	)
	if cfg.Endpoint != "" {
		client, err = docker.NewClient(cfg.Endpoint)
	} else {
		client, err = docker.NewClientFromEnv()
	}
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return NewWithClient(client, cfg.Logger), nil
}

// NewWithClient создаёт Service с готовым клиентом.
func NewWithClient(client Client, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{client: client, logger: logger}
}

// Ping проверяет доступность демона.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.client.PingWithContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrDaemonUnavailable, err)
	}
	return nil
}

// Build собирает образ и возвращает лог сборки.
func (s *Service) Build(ctx context.Context, opts BuildOptions) (string, error) {
	if len(opts.Tags) == 0 {
		return "", ErrNoTags
	}

	var out bytes.Buffer
	err := s.client.BuildImage(docker.BuildImageOptions{
		Context:        ctx,
		Name:           opts.Tags[0],
		Dockerfile:     opts.Dockerfile,
		ContextDir:     opts.ContextDir,
		OutputStream:   &out,
		BuildArgs:      buildArgs(opts.BuildArgs),
		Labels:         opts.Labels,
		NoCache:        opts.NoCache,
		RmTmpContainer: true,
	})
	if err != nil {
		return out.String(), fmt.Errorf("build image %s: %w", opts.Tags[0], err)
	}

	for _, ref := range opts.Tags[1:] {
		repo, tag := docker.ParseRepositoryTag(ref)
		if err := s.client.TagImage(opts.Tags[0], docker.TagImageOptions{
			Repo:    repo,
			Tag:     tag,
			Force:   true,
			Context: ctx,
		}); err != nil {
			return out.String(), fmt.Errorf("tag image %s: %w", ref, err)
		}
	}

	s.logger.Info("image built", "tags", opts.Tags)
	return out.String(), nil
}

// Push отправляет образ в registry и возвращает вывод демона.
func (s *Service) Push(ctx context.Context, opts PushOptions) (string, error) {
	repo, tag := docker.ParseRepositoryTag(opts.Ref)

	var out bytes.Buffer
	err := s.client.PushImage(docker.PushImageOptions{
		Context:      ctx,
		Name:         repo,
		Tag:          tag,
		Registry:     opts.Registry,
		OutputStream: &out,
	}, docker.AuthConfiguration{
		Username:      opts.Username,
		Password:      opts.Password,
		ServerAddress: opts.Registry,
	})
	if err != nil {
		return out.String(), fmt.Errorf("push image %s: %w", opts.Ref, err)
	}

	s.logger.Info("image pushed", "ref", opts.Ref)
	return out.String(), nil
}

// Remove удаляет локальный образ. Отсутствующий образ не считается ошибкой.
func (s *Service) Remove(ctx context.Context, ref string) error {
	err := s.client.RemoveImageExtended(ref, docker.RemoveImageOptions{
		Force:   true,
		Context: ctx,
	})
	if err != nil && !errors.Is(err, docker.ErrNoSuchImage) {
		return fmt.Errorf("remove image %s: %w", ref, err)
	}
	return nil
}

func buildArgs(m map[string]string) []docker.BuildArg {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]docker.BuildArg, 0, len(m))
	for _, k := range keys {
		args = append(args, docker.BuildArg{Name: k, Value: m[k]})
	}
	return args
}
