package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// newOriginRepo создаёт локальный репозиторий с двумя коммитами:
// первый в master, второй в ветке feature.
func newOriginRepo(t *testing.T) (dir string, first, second plumbing.Hash) {
	t.Helper()
	dir = t.TempDir()

	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}

	commit := func(name, content, msg string) plumbing.Hash {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := wt.Add(name); err != nil {
			t.Fatal(err)
		}
		h, err := wt.Commit(msg, &git.CommitOptions{
			Author: &object.Signature{Name: "ci", Email: "ci@example.com", When: time.Now()},
		})
		if err != nil {
			t.Fatal(err)
		}
		return h
	}

	first = commit("Dockerfile", "FROM alpine\n", "initial")

	if err := wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName("feature"),
		Create: true,
	}); err != nil {
		t.Fatal(err)
	}
	second = commit("app.txt", "v2\n", "feature work")

	if err := wt.Checkout(&git.CheckoutOptions{Branch: plumbing.Master}); err != nil {
		t.Fatal(err)
	}
	return dir, first, second
}

func TestGit_Checkout_DefaultHead(t *testing.T) {
	origin, first, _ := newOriginRepo(t)
	dest := filepath.Join(t.TempDir(), "src")

	res, err := NewGit(nil).Checkout(context.Background(), CheckoutOptions{URL: origin, Dir: dest})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Commit != first.String() {
		t.Errorf("expected %s, got %s", first, res.Commit)
	}
	if res.Message != "initial" || res.Author != "ci" {
		t.Errorf("unexpected commit info %+v", res)
	}
	if _, err := os.Stat(filepath.Join(dest, "Dockerfile")); err != nil {
		t.Errorf("Dockerfile should be checked out: %v", err)
	}
}

func TestGit_Checkout_Branch(t *testing.T) {
	origin, _, second := newOriginRepo(t)
	dest := filepath.Join(t.TempDir(), "src")

	res, err := NewGit(nil).Checkout(context.Background(), CheckoutOptions{URL: origin, Dir: dest, Revision: "feature"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Commit != second.String() {
		t.Errorf("expected %s, got %s", second, res.Commit)
	}
	if _, err := os.Stat(filepath.Join(dest, "app.txt")); err != nil {
		t.Errorf("feature file should be checked out: %v", err)
	}
}

func TestGit_Checkout_Commit(t *testing.T) {
	origin, first, _ := newOriginRepo(t)
	dest := filepath.Join(t.TempDir(), "src")

	res, err := NewGit(nil).Checkout(context.Background(), CheckoutOptions{URL: origin, Dir: dest, Revision: first.String()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Commit != first.String() {
		t.Errorf("expected %s, got %s", first, res.Commit)
	}
}

func TestGit_Checkout_Errors(t *testing.T) {
	origin, _, _ := newOriginRepo(t)

	_, err := NewGit(nil).Checkout(context.Background(), CheckoutOptions{URL: origin, Dir: filepath.Join(t.TempDir(), "src"), Revision: "nope"})
	if !errors.Is(err, ErrRevisionNotFound) {
		t.Errorf("expected ErrRevisionNotFound, got %v", err)
	}

	_, err = NewGit(nil).Checkout(context.Background(), CheckoutOptions{})
	if !errors.Is(err, ErrEmptyURL) {
		t.Errorf("expected ErrEmptyURL, got %v", err)
	}
}

func TestGit_LatestCommit(t *testing.T) {
	origin, first, second := newOriginRepo(t)
	g := NewGit(nil)
	ctx := context.Background()

	got, err := g.LatestCommit(ctx, origin, "feature", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != second.String() {
		t.Errorf("expected %s, got %s", second, got)
	}

	got, err = g.LatestCommit(ctx, origin, "master", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != first.String() {
		t.Errorf("expected %s, got %s", first, got)
	}

	if _, err := g.LatestCommit(ctx, origin, "missing", ""); !errors.Is(err, ErrRevisionNotFound) {
		t.Errorf("expected ErrRevisionNotFound, got %v", err)
	}
}
