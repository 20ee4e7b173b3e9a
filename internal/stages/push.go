package stages

import (
	"context"
	"fmt"

	"github.com/shaiso/Shipyard/internal/config"
	"github.com/shaiso/Shipyard/internal/container"
	"github.com/shaiso/Shipyard/internal/domain"
)

// PushImage отправляет оба тега образа в registry.
type PushImage struct {
	Images container.ImageService
}

func (s *PushImage) Name() domain.StageName { return domain.StagePushImage }

func (s *PushImage) Credentials() []string {
	return []string{config.CredRegistryUser, config.CredRegistryPassword}
}

func (s *PushImage) Execute(ctx context.Context, exec *Execution) (*Output, error) {
	var out output
	img := exec.Env.Image()

	opts := container.PushOptions{Registry: img.Registry}
	if exec.Credentials != nil {
		if exec.Credentials.Has(config.CredRegistryUser) {
			user, err := exec.Credentials.Get(config.CredRegistryUser)
			if err != nil {
				return out.result(), fmt.Errorf("%w: %w", ErrPushFailed, err)
			}
			opts.Username = user
		}
		if exec.Credentials.Has(config.CredRegistryPassword) {
			pass, err := exec.Credentials.Get(config.CredRegistryPassword)
			if err != nil {
				return out.result(), fmt.Errorf("%w: %w", ErrPushFailed, err)
			}
			opts.Password = pass
		}
	}

	for _, ref := range []string{img.Ref(), img.Latest()} {
		opts.Ref = ref
		log, err := s.Images.Push(ctx, opts)
		out.write(tail(log, 20))
		if err != nil {
			return out.result(), fmt.Errorf("%w: %w", ErrPushFailed, err)
		}
		out.printf("pushed %s", ref)
	}
	return out.result(), nil
}
