package config

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// GitignoreParser matches paths against the patterns in a .gitignore file,
// adapted for the ingest walk's directory-skip decisions.
type GitignoreParser struct {
	patterns []gitignorePattern
}

type gitignorePattern struct {
	Pattern   string
	Negate    bool
	Directory bool
	Absolute  bool
	compiled  *regexp.Regexp
}

// NewGitignoreParser returns an empty parser with no patterns loaded.
func NewGitignoreParser() *GitignoreParser {
	return &GitignoreParser{}
}

// LoadGitignore loads patterns from rootPath/.gitignore. A missing file is
// not an error — most repositories being ingested may not have one.
func (gp *GitignoreParser) LoadGitignore(rootPath string) error {
	file, err := os.Open(filepath.Join(rootPath, ".gitignore"))
	if err != nil {
		return nil
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		gp.patterns = append(gp.patterns, parsePattern(line))
	}
	return scanner.Err()
}

func parsePattern(line string) gitignorePattern {
	var p gitignorePattern
	if strings.HasPrefix(line, "!") {
		p.Negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.Directory = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		p.Absolute = true
		line = line[1:]
	}
	p.Pattern = line
	if strings.ContainsAny(line, "*?[") {
		p.compiled = regexp.MustCompile(globToRegex(line))
	}
	return p
}

func globToRegex(pattern string) string {
	regex := regexp.QuoteMeta(pattern)
	regex = strings.ReplaceAll(regex, `\*`, `.*`)
	regex = strings.ReplaceAll(regex, `\?`, `.`)
	regex = strings.ReplaceAll(regex, `\[`, `[`)
	regex = strings.ReplaceAll(regex, `\]`, `]`)
	return "^" + regex + "$"
}

// ShouldIgnore reports whether path (relative to the gitignore's root,
// forward-slash separated) is excluded by the loaded patterns. Later
// patterns override earlier ones, matching git's own precedence rule.
func (gp *GitignoreParser) ShouldIgnore(path string, isDir bool) bool {
	path = filepath.ToSlash(path)
	ignored := false
	for _, p := range gp.patterns {
		if matchesPattern(p, path, isDir) {
			ignored = !p.Negate
		}
	}
	return ignored
}

func matchesPattern(p gitignorePattern, path string, isDir bool) bool {
	if p.Directory {
		if isDir {
			return matchFast(p, path)
		}
		return strings.HasPrefix(path, p.Pattern+"/") || matchFast(p, path)
	}

	if p.Absolute {
		return matchFast(p, path)
	}

	if matchFast(p, path) {
		return true
	}
	parts := strings.Split(path, "/")
	for i := 0; i < len(parts); i++ {
		if matchFast(p, strings.Join(parts[i:], "/")) {
			return true
		}
	}
	return false
}

func matchFast(p gitignorePattern, path string) bool {
	if p.compiled != nil {
		return p.compiled.MatchString(path)
	}
	if matched, _ := filepath.Match(p.Pattern, path); matched {
		return true
	}
	return p.Pattern == path
}
