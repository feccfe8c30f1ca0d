package mcpapi

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kotadb/kotadb/internal/graph"
	"github.com/kotadb/kotadb/internal/types"
)

var errGraphNotBuilt = fmt.Errorf("dependency graph has not been built yet; run an ingest first")

func (s *Server) requireGraph() (*graph.QueryEngine, error) {
	qe := s.Graph()
	if qe == nil {
		return nil, errGraphNotBuilt
	}
	return qe, nil
}

func analysisResult(res *graph.Result) (*mcp.CallToolResult, error) {
	symbols := make([]map[string]any, len(res.Symbols))
	for i, sym := range res.Symbols {
		symbols[i] = symbolToMap(sym)
	}
	return jsonResult(map[string]any{
		"symbols":          symbols,
		"direct_count":     res.Stats.DirectCount,
		"transitive_count": res.Stats.TransitiveCount,
		"symbols_analyzed": res.Stats.SymbolsAnalyzed,
		"elapsed_ms":       res.Stats.Elapsed.Milliseconds(),
	})
}

type findCallersParams struct {
	Target   string `json:"target"`
	MaxDepth int    `json:"max_depth"`
}

func (s *Server) handleFindCallers(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p findCallersParams
	if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
		return errorResult("find_callers", fmt.Errorf("invalid parameters: %w", err))
	}
	id, ok := types.ParseSymbolID(p.Target)
	if !ok {
		return errorResult("find_callers", fmt.Errorf("malformed target symbol id"))
	}
	qe, err := s.requireGraph()
	if err != nil {
		return errorResult("find_callers", err)
	}

	res, err := qe.FindCallers(ctx, id, graph.Options{MaxDepth: p.MaxDepth})
	if err != nil {
		return errorResult("find_callers", err)
	}
	return analysisResult(res)
}

type findCalleesParams struct {
	Source   string `json:"source"`
	MaxDepth int    `json:"max_depth"`
}

func (s *Server) handleFindCallees(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p findCalleesParams
	if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
		return errorResult("find_callees", fmt.Errorf("invalid parameters: %w", err))
	}
	id, ok := types.ParseSymbolID(p.Source)
	if !ok {
		return errorResult("find_callees", fmt.Errorf("malformed source symbol id"))
	}
	qe, err := s.requireGraph()
	if err != nil {
		return errorResult("find_callees", err)
	}

	res, err := qe.FindCallees(ctx, id, graph.Options{MaxDepth: p.MaxDepth})
	if err != nil {
		return errorResult("find_callees", err)
	}
	return analysisResult(res)
}

type impactAnalysisParams struct {
	Target   string `json:"target"`
	MaxDepth int    `json:"max_depth"`
}

func (s *Server) handleImpactAnalysis(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p impactAnalysisParams
	if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
		return errorResult("impact_analysis", fmt.Errorf("invalid parameters: %w", err))
	}
	if p.MaxDepth <= 0 {
		return errorResult("impact_analysis", fmt.Errorf("max_depth is required"))
	}
	id, ok := types.ParseSymbolID(p.Target)
	if !ok {
		return errorResult("impact_analysis", fmt.Errorf("malformed target symbol id"))
	}
	qe, err := s.requireGraph()
	if err != nil {
		return errorResult("impact_analysis", err)
	}

	res, err := qe.ImpactAnalysis(ctx, id, graph.Options{MaxDepth: p.MaxDepth})
	if err != nil {
		return errorResult("impact_analysis", err)
	}
	return analysisResult(res)
}
