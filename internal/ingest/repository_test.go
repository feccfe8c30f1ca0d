package ingest

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoErrorf(t, err, "git %v: %s", args, out)
}

func newLocalOriginRepo(t *testing.T) string {
	t.Helper()
	origin := t.TempDir()
	runGit(t, origin, "init", "-b", "main")
	runGit(t, origin, "config", "user.email", "test@example.com")
	runGit(t, origin, "config", "user.name", "test")
	require.NoError(t, os.WriteFile(filepath.Join(origin, "README.md"), []byte("hello\n"), 0o644))
	runGit(t, origin, "add", "README.md")
	runGit(t, origin, "commit", "-m", "initial")
	return origin
}

func TestCheckoutClonesLocalRepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	origin := newLocalOriginRepo(t)
	workDir := t.TempDir()

	repo, err := Checkout(context.Background(), workDir, origin, "")
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(repo.Root(), "README.md"))
	require.NoError(t, err)
	require.Equal(t, "hello\n", string(content))

	commit, err := repo.HeadCommit(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, commit)
}

func TestCheckoutReusesExistingDirectory(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	origin := newLocalOriginRepo(t)
	workDir := t.TempDir()

	first, err := Checkout(context.Background(), workDir, origin, "")
	require.NoError(t, err)
	firstCommit, err := first.HeadCommit(context.Background())
	require.NoError(t, err)

	second, err := Checkout(context.Background(), workDir, origin, "")
	require.NoError(t, err)
	secondCommit, err := second.HeadCommit(context.Background())
	require.NoError(t, err)

	require.Equal(t, firstCommit, secondCommit)
	require.Equal(t, first.Root(), second.Root())
}
