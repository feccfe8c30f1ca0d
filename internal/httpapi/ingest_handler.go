package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kotadb/kotadb/internal/config"
	kerrors "github.com/kotadb/kotadb/internal/errors"
	"github.com/kotadb/kotadb/internal/graph"
	"github.com/kotadb/kotadb/internal/ingest"
)

var errIngestUnavailable = errors.New("this server was not configured with an ingester")

type ingestRequest struct {
	GitURL  string         `json:"git_url"`
	Branch  string         `json:"branch,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

type ingestResponse struct {
	FilesIngested  int `json:"files_ingested"`
	FilesSkipped   int `json:"files_skipped"`
	FilesDeleted   int `json:"files_deleted"`
	SymbolCount    int `json:"symbol_count"`
	UnresolvedRefs int `json:"unresolved_references"`
}

// handleIngest checks a repository out to WorkDir, runs it through the
// ingest pipeline, and swaps in the freshly rebuilt dependency graph.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, r, "malformed request body")
		return
	}
	if req.GitURL == "" {
		badRequest(w, r, "git_url is required")
		return
	}
	if s.Ingester == nil {
		writeError(w, r, kerrors.New(kerrors.Unavailable, "httpapi.handleIngest", errIngestUnavailable).WithTrace(traceIDFrom(r.Context())))
		return
	}

	repo, err := ingest.Checkout(r.Context(), s.WorkDir, req.GitURL, req.Branch)
	if err != nil {
		writeError(w, r, err)
		return
	}

	cfg := s.IngestCfg
	applyIngestOptions(&cfg, req.Options)

	stats, err := s.Ingester.Ingest(r.Context(), repo.Root(), cfg)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if g, loadErr := graph.Load(s.GraphPath); loadErr == nil {
		qe := graph.NewQueryEngine(g)
		s.SetGraph(qe)
		if s.OnGraphRebuilt != nil {
			s.OnGraphRebuilt(qe)
		}
	}

	if s.OnIngestComplete != nil {
		s.OnIngestComplete(repo.Root(), cfg)
	}

	if s.Logger != nil {
		s.Logger.InfoContext(r.Context(), "ingest complete",
			"git_url", req.GitURL,
			"files_ingested", stats.FilesIngested,
			"files_deleted", stats.FilesDeleted,
			"unresolved_references", stats.UnresolvedRef,
		)
	}

	writeJSON(w, http.StatusOK, ingestResponse{
		FilesIngested:  stats.FilesIngested,
		FilesSkipped:   stats.FilesSkipped,
		FilesDeleted:   stats.FilesDeleted,
		SymbolCount:    stats.SymbolCount,
		UnresolvedRefs: stats.UnresolvedRef,
	})
}

// applyIngestOptions overlays the request's "options" onto the server's
// configured walk limits, mirroring the webhook job payload's settings
// overlay (internal/ingestjob) but scoped to this single call.
func applyIngestOptions(cfg *config.Ingest, opts map[string]any) {
	if opts == nil {
		return
	}
	if v, ok := opts["include"]; ok {
		cfg.Include = toStringSlice(v)
	}
	if v, ok := opts["exclude"]; ok {
		cfg.Exclude = toStringSlice(v)
	}
	if v, ok := opts["follow_symlinks"].(bool); ok {
		cfg.FollowSymlinks = v
	}
	if v, ok := opts["respect_gitignore"].(bool); ok {
		cfg.RespectGitignore = v
	}
}

func toStringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
