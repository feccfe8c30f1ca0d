// Package httpapi serves KotaDB's document, search, and graph-analysis
// operations over HTTP, per §6's route table. Routing uses the stdlib
// net/http.ServeMux the way the teacher's own internal/server/server.go
// does — no external router is needed for a mux this shallow.
package httpapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/kotadb/kotadb/internal/config"
	"github.com/kotadb/kotadb/internal/graph"
	"github.com/kotadb/kotadb/internal/ingest"
	"github.com/kotadb/kotadb/internal/interfaces"
	"github.com/kotadb/kotadb/internal/observability"
)

// Server holds every component an HTTP handler might need, wired once at
// startup and held by reference — no package-level globals.
type Server struct {
	Docs     interfaces.Storage
	Index    interfaces.Index
	Ingester *ingest.Ingester
	Logger   *observability.Logger

	// WorkDir is where /ingest checks repositories out to; IngestCfg bounds
	// the walk. GraphPath is where the rebuilt graph is persisted and
	// reloaded from after each ingest.
	WorkDir   string
	IngestCfg config.Ingest
	GraphPath string

	// OnGraphRebuilt, if set, is called with the freshly loaded query engine
	// every time /ingest rebuilds the graph — main wires this to keep the
	// MCP transport's graph in sync with the HTTP transport's.
	OnGraphRebuilt func(*graph.QueryEngine)

	// OnIngestComplete, if set, is called with the checked-out repository
	// root and the ingest config that was used — main wires this to start
	// or retarget a filesystem watcher for --watch mode.
	OnIngestComplete func(repoRoot string, cfg config.Ingest)

	mu    sync.RWMutex
	graph *graph.QueryEngine // nil until the first ingest finishes

	mux *http.ServeMux
}

// New builds a Server and registers every route from §6's HTTP surface.
func New(docs interfaces.Storage, idx interfaces.Index, qe *graph.QueryEngine, ingester *ingest.Ingester, logger *observability.Logger) *Server {
	s := &Server{Docs: docs, Index: idx, graph: qe, Ingester: ingester, Logger: logger}
	s.mux = http.NewServeMux()
	s.routes()
	return s
}

// Graph returns the query engine currently serving /analysis and
// /search/symbols requests. It may be nil before the first ingest.
func (s *Server) Graph() *graph.QueryEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph
}

// SetGraph swaps in a freshly built query engine, e.g. after an ingest
// rebuilds the dependency graph.
func (s *Server) SetGraph(qe *graph.QueryEngine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graph = qe
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /documents", s.handleCreateDocument)
	s.mux.HandleFunc("GET /documents/{id}", s.handleGetDocument)
	s.mux.HandleFunc("DELETE /documents/{id}", s.handleDeleteDocument)
	s.mux.HandleFunc("GET /search/text", s.handleSearchText)
	s.mux.HandleFunc("GET /search/symbols", s.handleSearchSymbols)
	s.mux.HandleFunc("POST /analysis/callers", s.handleFindCallers)
	s.mux.HandleFunc("POST /analysis/callees", s.handleFindCallees)
	s.mux.HandleFunc("POST /analysis/impact", s.handleImpactAnalysis)
	s.mux.HandleFunc("POST /ingest", s.handleIngest)
}

// ServeHTTP lets Server be used directly as an http.Handler, wrapping every
// request with trace-id injection.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	traceID := r.Header.Get("X-Trace-Id")
	if traceID == "" {
		traceID = observability.NewTraceID()
	}
	ctx := observability.WithTraceID(r.Context(), traceID)
	w.Header().Set("X-Trace-Id", traceID)

	start := time.Now()
	s.mux.ServeHTTP(w, r.WithContext(ctx))
	if s.Logger != nil {
		s.Logger.InfoContext(ctx, "request", "method", r.Method, "path", r.URL.Path, "elapsed_ms", time.Since(start).Milliseconds())
	}
}

func traceIDFrom(ctx context.Context) string {
	return observability.TraceIDFromContext(ctx)
}
