package ingest

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kotadb/kotadb/internal/config"
)

func relPaths(files []walkFile) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.relPath
	}
	sort.Strings(out)
	return out
}

func TestWalkTreeRespectsGitignoreAndExcludes(t *testing.T) {
	root := t.TempDir()
	writeRepoFile(t, root, "src/main.go", "package main\n")
	writeRepoFile(t, root, "build/out.bin", "binary\n")
	writeRepoFile(t, root, "node_modules/pkg/index.js", "module.exports = {}\n")
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("build/\n"), 0o644))

	cfg := config.Default(root).Ingest
	cfg.Exclude = []string{"**/node_modules/**"}

	files, err := walkTree(root, cfg)
	require.NoError(t, err)
	require.Equal(t, []string{".gitignore", "src/main.go"}, relPaths(files))
}

func TestWalkTreeHonorsMaxFileSize(t *testing.T) {
	root := t.TempDir()
	writeRepoFile(t, root, "small.go", "package main\n")
	writeRepoFile(t, root, "huge.go", string(make([]byte, 1024)))

	cfg := config.Default(root).Ingest
	cfg.RespectGitignore = false
	cfg.MaxFileSizeBytes = 100

	files, err := walkTree(root, cfg)
	require.NoError(t, err)
	require.Equal(t, []string{"small.go"}, relPaths(files))
}
