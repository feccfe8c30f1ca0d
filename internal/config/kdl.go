package config

import (
	"os"
	"path/filepath"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"

	kerrors "github.com/kotadb/kotadb/internal/errors"
)

// LoadKDL reads `.kotadb.kdl` from projectRoot and overlays it onto base. A
// missing file is not an error — it means "use defaults" — but a malformed
// one is.
func LoadKDL(projectRoot string, base Config) (Config, error) {
	path := filepath.Join(projectRoot, ".kotadb.kdl")
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return base, nil
	}
	if err != nil {
		return base, kerrors.New(kerrors.IO, "config.LoadKDL", err)
	}

	doc, err := kdl.Parse(strings.NewReader(string(content)))
	if err != nil {
		return base, kerrors.New(kerrors.BadRequest, "config.LoadKDL", err)
	}

	cfg := base
	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "data_dir":
			if s, ok := firstStringArg(n); ok {
				cfg.DataDir = s
			}
		case "server":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "port":
					if v, ok := firstIntArg(cn); ok {
						cfg.Server.Port = v
					}
				case "quiet":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Server.Quiet = b
					}
				}
			}
		case "ingest":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "max_file_size":
					if v, ok := firstIntArg(cn); ok {
						cfg.Ingest.MaxFileSizeBytes = int64(v)
					}
				case "max_file_count":
					if v, ok := firstIntArg(cn); ok {
						cfg.Ingest.MaxFileCount = v
					}
				case "follow_symlinks":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Ingest.FollowSymlinks = b
					}
				case "respect_gitignore":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Ingest.RespectGitignore = b
					}
				case "parallel_workers":
					if v, ok := firstIntArg(cn); ok {
						cfg.Ingest.ParallelWorkers = v
					}
				case "include":
					cfg.Ingest.Include = collectStringArgs(cn)
				case "exclude":
					cfg.Ingest.Exclude = collectStringArgs(cn)
				}
			}
		case "api_keys":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "database_url":
					if s, ok := firstStringArg(cn); ok {
						cfg.APIKeys.DatabaseURL = s
					}
				case "max_connections":
					if v, ok := firstIntArg(cn); ok {
						cfg.APIKeys.MaxConnections = v
					}
				case "connect_timeout_seconds":
					if v, ok := firstIntArg(cn); ok {
						cfg.APIKeys.ConnectTimeoutSeconds = v
					}
				case "default_rate_limit":
					if v, ok := firstIntArg(cn); ok {
						cfg.APIKeys.DefaultRateLimit = v
					}
				case "default_monthly_quota":
					if v, ok := firstIntArg(cn); ok {
						cfg.APIKeys.DefaultMonthlyQuota = int64(v)
					}
				}
			}
		}
	}

	return cfg, nil
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	s, ok := n.Arguments[0].Value.(string)
	return s, ok
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	b, ok := n.Arguments[0].Value.(bool)
	return b, ok
}

func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 && len(n.Children) > 0 {
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out
}
