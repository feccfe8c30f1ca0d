package httpapi

import (
	"encoding/json"
	"net/http"

	kerrors "github.com/kotadb/kotadb/internal/errors"
	"github.com/kotadb/kotadb/internal/graph"
	"github.com/kotadb/kotadb/internal/types"
)

type callersRequest struct {
	Target   string `json:"target"`
	MaxDepth int    `json:"max_depth,omitempty"`
}

type calleesRequest struct {
	Source   string `json:"source"`
	MaxDepth int    `json:"max_depth,omitempty"`
}

type impactRequest struct {
	Target   string `json:"target"`
	MaxDepth int    `json:"max_depth"`
}

type analysisResponse struct {
	Symbols         []symbolResponse `json:"symbols"`
	DirectCount     int              `json:"direct_count"`
	TransitiveCount int              `json:"transitive_count"`
	SymbolsAnalyzed int              `json:"symbols_analyzed"`
	ElapsedMS       int64            `json:"elapsed_ms"`
}

func toAnalysisResponse(res *graph.Result) analysisResponse {
	out := analysisResponse{
		Symbols:         make([]symbolResponse, len(res.Symbols)),
		DirectCount:     res.Stats.DirectCount,
		TransitiveCount: res.Stats.TransitiveCount,
		SymbolsAnalyzed: res.Stats.SymbolsAnalyzed,
		ElapsedMS:       res.Stats.Elapsed.Milliseconds(),
	}
	for i, sym := range res.Symbols {
		out.Symbols[i] = toSymbolResponse(sym)
	}
	return out
}

func (s *Server) graphOrUnavailable(w http.ResponseWriter, r *http.Request) *graph.QueryEngine {
	qe := s.Graph()
	if qe == nil {
		writeError(w, r, kerrors.New(kerrors.Unavailable, "httpapi", errGraphNotBuilt).WithTrace(traceIDFrom(r.Context())))
		return nil
	}
	return qe
}

func (s *Server) handleFindCallers(w http.ResponseWriter, r *http.Request) {
	var req callersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, r, "malformed request body")
		return
	}
	id, ok := types.ParseSymbolID(req.Target)
	if !ok {
		badRequest(w, r, "malformed target symbol id")
		return
	}
	qe := s.graphOrUnavailable(w, r)
	if qe == nil {
		return
	}

	res, err := qe.FindCallers(r.Context(), id, graph.Options{MaxDepth: req.MaxDepth})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAnalysisResponse(res))
}

func (s *Server) handleFindCallees(w http.ResponseWriter, r *http.Request) {
	var req calleesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, r, "malformed request body")
		return
	}
	id, ok := types.ParseSymbolID(req.Source)
	if !ok {
		badRequest(w, r, "malformed source symbol id")
		return
	}
	qe := s.graphOrUnavailable(w, r)
	if qe == nil {
		return
	}

	res, err := qe.FindCallees(r.Context(), id, graph.Options{MaxDepth: req.MaxDepth})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAnalysisResponse(res))
}

func (s *Server) handleImpactAnalysis(w http.ResponseWriter, r *http.Request) {
	var req impactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, r, "malformed request body")
		return
	}
	if req.MaxDepth <= 0 {
		badRequest(w, r, "max_depth is required")
		return
	}
	id, ok := types.ParseSymbolID(req.Target)
	if !ok {
		badRequest(w, r, "malformed target symbol id")
		return
	}
	qe := s.graphOrUnavailable(w, r)
	if qe == nil {
		return
	}

	res, err := qe.ImpactAnalysis(r.Context(), id, graph.Options{MaxDepth: req.MaxDepth})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAnalysisResponse(res))
}
