package ingest

import (
	"os"
	"path/filepath"

	"github.com/kotadb/kotadb/internal/config"
)

// walkFile is one file the walk decided to ingest, with its path already
// made relative (forward-slash) to the repository root.
type walkFile struct {
	relPath string
	absPath string
	size    int64
}

// walkTree enumerates every regular file under root that survives gitignore
// and the configured include/exclude globs, skipping directories a gitignore
// directory-pattern excludes entirely rather than descending and filtering
// file-by-file.
func walkTree(root string, cfg config.Ingest) ([]walkFile, error) {
	gi := config.NewGitignoreParser()
	if cfg.RespectGitignore {
		if err := gi.LoadGitignore(root); err != nil {
			return nil, err
		}
	}
	matcher := config.NewPathMatcher(cfg.Include, cfg.Exclude)

	var files []walkFile
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if info.IsDir() {
			if rel == ".git" || (cfg.RespectGitignore && gi.ShouldIgnore(rel, true)) {
				return filepath.SkipDir
			}
			return nil
		}

		if !info.Mode().IsRegular() && !(cfg.FollowSymlinks && info.Mode()&os.ModeSymlink != 0) {
			return nil
		}
		if cfg.RespectGitignore && gi.ShouldIgnore(rel, false) {
			return nil
		}
		if !matcher.Allowed(rel) {
			return nil
		}
		if cfg.MaxFileSizeBytes > 0 && info.Size() > cfg.MaxFileSizeBytes {
			return nil
		}
		if cfg.MaxFileCount > 0 && len(files) >= cfg.MaxFileCount {
			return filepath.SkipAll
		}

		files = append(files, walkFile{relPath: rel, absPath: path, size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
