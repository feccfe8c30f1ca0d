package mcpapi

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kotadb/kotadb/internal/types"
)

type textSearchParams struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func (s *Server) handleTextSearch(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p textSearchParams
	if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
		return errorResult("text_search", fmt.Errorf("invalid parameters: %w", err))
	}
	if p.Limit <= 0 {
		p.Limit = 20
	}

	hits, err := s.Index.Search(ctx, p.Query, p.Limit)
	if err != nil {
		return errorResult("text_search", err)
	}
	out := make([]map[string]any, len(hits))
	for i, h := range hits {
		out[i] = map[string]any{"document_id": h.DocumentID.String(), "matching_grams": h.MatchingGrams}
	}
	return jsonResult(map[string]any{"hits": out})
}

type semanticSearchParams struct {
	Query string `json:"query"`
	Kind  string `json:"kind"`
}

func (s *Server) handleSemanticSearch(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p semanticSearchParams
	if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
		return errorResult("semantic_search", fmt.Errorf("invalid parameters: %w", err))
	}
	qe := s.Graph()
	if qe == nil {
		return jsonResult(map[string]any{"symbols": []any{}})
	}

	var wantKind types.SymbolKind
	filterKind := false
	if p.Kind != "" {
		k, ok := types.ParseSymbolKind(p.Kind)
		if !ok {
			return errorResult("semantic_search", fmt.Errorf("unrecognized kind %q", p.Kind))
		}
		wantKind, filterKind = k, true
	}

	matches := qe.SymbolSearch(p.Query)
	out := make([]map[string]any, 0, len(matches))
	for _, sym := range matches {
		if filterKind && sym.Kind != wantKind {
			continue
		}
		out = append(out, symbolToMap(sym))
	}
	return jsonResult(map[string]any{"symbols": out})
}

type hybridSearchParams struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

// handleHybridSearch unions the trigram text index and the symbol graph's
// name search for one query, the way a developer asking "where is X" cares
// about both document hits and declared symbols.
func (s *Server) handleHybridSearch(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p hybridSearchParams
	if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
		return errorResult("hybrid_search", fmt.Errorf("invalid parameters: %w", err))
	}
	if p.Limit <= 0 {
		p.Limit = 20
	}

	textHits, err := s.Index.Search(ctx, p.Query, p.Limit)
	if err != nil {
		return errorResult("hybrid_search", err)
	}

	var symbolHits []map[string]any
	if qe := s.Graph(); qe != nil {
		for _, sym := range qe.SymbolSearch(p.Query) {
			symbolHits = append(symbolHits, symbolToMap(sym))
		}
	}

	docHits := make([]map[string]any, len(textHits))
	for i, h := range textHits {
		docHits[i] = map[string]any{"document_id": h.DocumentID.String(), "matching_grams": h.MatchingGrams}
	}

	return jsonResult(map[string]any{"documents": docHits, "symbols": symbolHits})
}

type findSimilarParams struct {
	Name string `json:"name"`
}

// handleFindSimilar runs SymbolSearch as is: substring matches when there
// are any, and the fuzzy (edit-distance) matches only when there are none.
// It does not run the fuzzy branch on its own.
func (s *Server) handleFindSimilar(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p findSimilarParams
	if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
		return errorResult("find_similar", fmt.Errorf("invalid parameters: %w", err))
	}
	qe := s.Graph()
	if qe == nil {
		return jsonResult(map[string]any{"symbols": []any{}})
	}

	matches := qe.SymbolSearch(p.Name)
	out := make([]map[string]any, len(matches))
	for i, sym := range matches {
		out[i] = symbolToMap(sym)
	}
	return jsonResult(map[string]any{"symbols": out})
}

func symbolToMap(sym types.Symbol) map[string]any {
	return map[string]any{
		"id":             sym.ID.String(),
		"name":           sym.Name,
		"qualified_name": sym.QualifiedName,
		"kind":           sym.Kind.String(),
		"file_path":      sym.FilePath,
		"start_line":     sym.LineSpan.Start,
		"end_line":       sym.LineSpan.End,
		"language":       sym.Language,
	}
}
