package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadKDLOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	kdl := `
data_dir "/var/kotadb"
server {
    port 9090
}
ingest {
    max_file_count 500
    exclude "**/vendor/**" "**/dist/**"
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".kotadb.kdl"), []byte(kdl), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, "/var/kotadb", cfg.DataDir)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, 500, cfg.Ingest.MaxFileCount)
	require.Equal(t, []string{"**/vendor/**", "**/dist/**"}, cfg.Ingest.Exclude)
	require.True(t, cfg.Ingest.RespectGitignore, "unset fields keep the default")
}

func TestLoadWithNoConfigFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, Default(dir), cfg)
}

func TestLoadTOMLOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	content := `
data_dir = "/srv/kotadb"

[server]
port = 7000

[ingest]
max_file_count = 100
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".kotadb.toml"), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, "/srv/kotadb", cfg.DataDir)
	require.Equal(t, 7000, cfg.Server.Port)
	require.Equal(t, 100, cfg.Ingest.MaxFileCount)
}

func TestGitignoreShouldIgnore(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("*.log\n/build/\n!important.log\n"), 0o644))

	gp := NewGitignoreParser()
	require.NoError(t, gp.LoadGitignore(dir))

	require.True(t, gp.ShouldIgnore("debug.log", false))
	require.False(t, gp.ShouldIgnore("important.log", false))
	require.True(t, gp.ShouldIgnore("build", true))
	require.True(t, gp.ShouldIgnore("build/output.bin", false))
	require.False(t, gp.ShouldIgnore("src/main.go", false))
}

func TestPathMatcherExcludeWinsOverInclude(t *testing.T) {
	m := NewPathMatcher([]string{"**/*.go"}, []string{"**/vendor/**"})
	require.True(t, m.Allowed("internal/foo.go"))
	require.False(t, m.Allowed("vendor/pkg/foo.go"))
	require.False(t, m.Allowed("README.md"))
}

func TestPathMatcherEmptyIncludeAllowsEverythingNotExcluded(t *testing.T) {
	m := NewPathMatcher(nil, []string{"**/*.tmp"})
	require.True(t, m.Allowed("src/main.go"))
	require.False(t, m.Allowed("scratch.tmp"))
}
