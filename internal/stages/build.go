package stages

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shaiso/Shipyard/internal/container"
	"github.com/shaiso/Shipyard/internal/domain"
)

// BuildImage собирает образ с тегами <tag> и latest.
type BuildImage struct {
	Images container.ImageService
}

func (s *BuildImage) Name() domain.StageName { return domain.StageBuildImage }

func (s *BuildImage) Credentials() []string { return nil }

func (s *BuildImage) Execute(ctx context.Context, exec *Execution) (*Output, error) {
	var out output
	img := exec.Env.Image()
	tags := []string{img.Ref(), img.Latest()}
	commit := exec.State.Commit()

	args := map[string]string{
		"BUILD_NUMBER": strconv.FormatInt(exec.Env.BuildNumber(), 10),
	}
	labels := map[string]string{
		"io.shipyard.build":    strconv.FormatInt(exec.Env.BuildNumber(), 10),
		"io.shipyard.pipeline": exec.Env.Pipeline(),
	}
	if commit != "" {
		args["GIT_COMMIT"] = commit
		labels["org.opencontainers.image.revision"] = commit
	}

	log, err := s.Images.Build(ctx, container.BuildOptions{
		ContextDir: exec.State.SourceDir(),
		Dockerfile: exec.Env.Dockerfile(),
		Tags:       tags,
		BuildArgs:  args,
		Labels:     labels,
	})
	out.write(tail(log, 50))
	if err != nil {
		return out.result(), fmt.Errorf("%w: %w", ErrBuildFailed, err)
	}

	exec.State.AddImages(tags...)
	out.printf("built %s", img.Ref())
	return out.result(), nil
}
