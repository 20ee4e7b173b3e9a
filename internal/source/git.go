package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"
)

var (
	// ErrRevisionNotFound — ревизия не найдена в репозитории.
	ErrRevisionNotFound = errors.New("revision not found")

	// ErrEmptyURL — не задан URL репозитория.
	ErrEmptyURL = errors.New("repository url is empty")
)

// CheckoutOptions — параметры получения исходников.
type CheckoutOptions struct {
	URL string

	// Revision — ветка, тег или commit. Пусто — HEAD удалённого репозитория.
	Revision string

	// Dir — куда клонировать.
	Dir string

	// Token — токен для HTTPS. Не логируется.
	Token string

	Depth int
}

// Result — что было получено.
type Result struct {
	Commit  string
	Message string
	Author  string
}

// Checkouter получает исходники в рабочую директорию.
type Checkouter interface {
	Checkout(ctx context.Context, opts CheckoutOptions) (Result, error)
}

// Git реализует Checkouter и опрос удалённых ревизий через go-git.
type Git struct {
	logger *slog.Logger
}

// NewGit создаёт Git.
func NewGit(logger *slog.Logger) *Git {
	if logger == nil {
		logger = slog.Default()
	}
	return &Git{logger: logger}
}

// Checkout клонирует репозиторий и переключает worktree на ревизию.
func (g *Git) Checkout(ctx context.Context, opts CheckoutOptions) (Result, error) {
	if opts.URL == "" {
		return Result{}, ErrEmptyURL
	}

	cloneOpts := &git.CloneOptions{
		URL:   opts.URL,
		Auth:  auth(opts.Token),
		Depth: opts.Depth,
	}
	// Для явного commit глубина клона не гарантирует его наличие.
	if plumbing.IsHash(opts.Revision) {
		cloneOpts.Depth = 0
	}

	repo, err := git.PlainCloneContext(ctx, opts.Dir, false, cloneOpts)
	if err != nil {
		return Result{}, fmt.Errorf("clone %s: %w", opts.URL, err)
	}

	hash, err := resolve(repo, opts.Revision)
	if err != nil {
		return Result{}, err
	}

	wt, err := repo.Worktree()
	if err != nil {
		return Result{}, fmt.Errorf("worktree: %w", err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Hash: hash, Force: true}); err != nil {
		return Result{}, fmt.Errorf("checkout %s: %w", hash, err)
	}

	commit, err := repo.CommitObject(hash)
	if err != nil {
		return Result{}, fmt.Errorf("read commit %s: %w", hash, err)
	}

	g.logger.Info("source checked out", "commit", hash.String(), "revision", opts.Revision)
	return Result{
		Commit:  hash.String(),
		Message: strings.TrimSpace(commit.Message),
		Author:  commit.Author.Name,
	}, nil
}

func resolve(repo *git.Repository, revision string) (plumbing.Hash, error) {
	if revision == "" {
		head, err := repo.Head()
		if err != nil {
			return plumbing.ZeroHash, fmt.Errorf("resolve HEAD: %w", err)
		}
		return head.Hash(), nil
	}

	for _, candidate := range []string{revision, "origin/" + revision} {
		h, err := repo.ResolveRevision(plumbing.Revision(candidate))
		if err == nil {
			return *h, nil
		}
	}
	return plumbing.ZeroHash, fmt.Errorf("%w: %s", ErrRevisionNotFound, revision)
}

// LatestCommit возвращает commit, на который указывает ветка в удалённом репозитории.
// Пустая ветка — HEAD.
func (g *Git) LatestCommit(ctx context.Context, url, branch, token string) (string, error) {
	if url == "" {
		return "", ErrEmptyURL
	}

	remote := git.NewRemote(memory.NewStorage(), &config.RemoteConfig{
		Name: "origin",
		URLs: []string{url},
	})
	refs, err := remote.ListContext(ctx, &git.ListOptions{Auth: auth(token)})
	if err != nil {
		return "", fmt.Errorf("list remote %s: %w", url, err)
	}

	want := plumbing.HEAD
	if branch != "" {
		want = plumbing.NewBranchReferenceName(branch)
	}

	byName := make(map[plumbing.ReferenceName]*plumbing.Reference, len(refs))
	for _, ref := range refs {
		byName[ref.Name()] = ref
	}

	ref, ok := byName[want]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrRevisionNotFound, want)
	}
	// HEAD приходит как symbolic ref.
	if ref.Type() == plumbing.SymbolicReference {
		target, ok := byName[ref.Target()]
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrRevisionNotFound, ref.Target())
		}
		ref = target
	}
	return ref.Hash().String(), nil
}

func auth(token string) transport.AuthMethod {
	if token == "" {
		return nil
	}
	return &http.BasicAuth{Username: "x-access-token", Password: token}
}
