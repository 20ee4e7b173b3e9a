package stages

import (
	"context"
	"log/slog"
	"os"

	"github.com/shaiso/Shipyard/internal/container"
	"github.com/shaiso/Shipyard/internal/kube"
	"github.com/shaiso/Shipyard/internal/runner"
	"github.com/shaiso/Shipyard/internal/source"
)

// LiveDeps подключает стадии к docker демону (DOCKER_HOST), kubernetes и git.
func LiveDeps(logger *slog.Logger) (Deps, error) {
	if logger == nil {
		logger = slog.Default()
	}

	images, err := container.New(container.Config{
		Endpoint: os.Getenv("DOCKER_HOST"),
		Logger:   logger,
	})
	if err != nil {
		return Deps{}, err
	}

	connect := kube.ConnectorFunc(func(ctx context.Context, opts kube.ConnectOptions) (kube.Cluster, error) {
		if opts.Logger == nil {
			opts.Logger = logger
		}
		return kube.Connect(ctx, opts)
	})

	return Deps{
		Images: images,
		Kube:   connect,
		Source: source.NewGit(logger),
		Runner: runner.Shell{},
	}, nil
}
