package stages

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/shaiso/Shipyard/internal/config"
	"github.com/shaiso/Shipyard/internal/domain"
	"github.com/shaiso/Shipyard/internal/source"
)

// CheckoutSource клонирует репозиторий в <workspace>/src.
//
// Без source.url стадия считает исходниками саму рабочую директорию.
type CheckoutSource struct {
	Source source.Checkouter
}

func (s *CheckoutSource) Name() domain.StageName { return domain.StageCheckoutSource }

func (s *CheckoutSource) Credentials() []string { return []string{config.CredGitToken} }

func (s *CheckoutSource) Execute(ctx context.Context, exec *Execution) (*Output, error) {
	var out output
	src := exec.Env.Source()
	workspace, _ := exec.State.Workspace()

	if src.URL == "" {
		out.printf("no source url configured, using %s", workspace)
		return out.result(), nil
	}

	var token string
	if exec.Credentials != nil && exec.Credentials.Has(config.CredGitToken) {
		t, err := exec.Credentials.Get(config.CredGitToken)
		if err != nil {
			return out.result(), fmt.Errorf("%w: %w", ErrCheckoutFailed, err)
		}
		token = t
	}

	dir := filepath.Join(workspace, "src")
	res, err := s.Source.Checkout(ctx, source.CheckoutOptions{
		URL:      src.URL,
		Revision: src.Revision,
		Dir:      dir,
		Token:    token,
		Depth:    src.Depth,
	})
	if err != nil {
		return out.result(), fmt.Errorf("%w: %w", ErrCheckoutFailed, err)
	}

	exec.State.SetSource(dir, res.Commit)
	out.printf("checked out %s at %s", exec.Env.Redacted()["source_url"], res.Commit)
	if res.Message != "" {
		out.printf("%s (%s)", res.Message, res.Author)
	}
	return out.result(), nil
}
