package httpapi

import (
	"net/http"
	"strconv"

	"github.com/kotadb/kotadb/internal/types"
)

type searchHitResponse struct {
	DocumentID    string `json:"document_id"`
	MatchingGrams int    `json:"matching_grams"`
	RecencyRank   int64  `json:"recency_rank"`
}

func (s *Server) handleSearchText(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		badRequest(w, r, "q is required")
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			badRequest(w, r, "limit must be a positive integer")
			return
		}
		limit = n
	}

	hits, err := s.Index.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]searchHitResponse, len(hits))
	for i, h := range hits {
		out[i] = searchHitResponse{
			DocumentID:    h.DocumentID.String(),
			MatchingGrams: h.MatchingGrams,
			RecencyRank:   h.RecencyRank,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

type symbolResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	QualifiedName string `json:"qualified_name"`
	Kind          string `json:"kind"`
	FilePath      string `json:"file_path"`
	StartLine     int    `json:"start_line"`
	EndLine       int    `json:"end_line"`
	Language      string `json:"language"`
}

func toSymbolResponse(sym types.Symbol) symbolResponse {
	return symbolResponse{
		ID:            sym.ID.String(),
		Name:          sym.Name,
		QualifiedName: sym.QualifiedName,
		Kind:          sym.Kind.String(),
		FilePath:      sym.FilePath,
		StartLine:     sym.LineSpan.Start,
		EndLine:       sym.LineSpan.End,
		Language:      sym.Language,
	}
}

func (s *Server) handleSearchSymbols(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		badRequest(w, r, "q is required")
		return
	}

	qe := s.Graph()
	if qe == nil {
		writeJSON(w, http.StatusOK, []symbolResponse{})
		return
	}

	var wantKind types.SymbolKind
	filterKind := false
	if raw := r.URL.Query().Get("kind"); raw != "" {
		k, ok := types.ParseSymbolKind(raw)
		if !ok {
			badRequest(w, r, "unrecognized kind")
			return
		}
		wantKind, filterKind = k, true
	}

	matches := qe.SymbolSearch(q)
	out := make([]symbolResponse, 0, len(matches))
	for _, sym := range matches {
		if filterKind && sym.Kind != wantKind {
			continue
		}
		out = append(out, toSymbolResponse(sym))
	}
	writeJSON(w, http.StatusOK, out)
}
