package mcpapi

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kotadb/kotadb/internal/types"
)

type documentGetParams struct {
	ID string `json:"id"`
}

func (s *Server) handleDocumentGet(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p documentGetParams
	if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
		return errorResult("document_get", fmt.Errorf("invalid parameters: %w", err))
	}
	id, err := uuid.Parse(p.ID)
	if err != nil {
		return errorResult("document_get", fmt.Errorf("malformed id: %w", err))
	}

	doc, err := s.Docs.Get(ctx, id)
	if err != nil {
		return errorResult("document_get", err)
	}
	return jsonResult(map[string]any{
		"id":           doc.ID.String(),
		"path":         doc.Path,
		"content":      string(doc.Content),
		"content_type": doc.ContentType,
		"title":        doc.Title,
		"size":         doc.Size,
	})
}

type documentPutParams struct {
	Path        string `json:"path"`
	Content     string `json:"content"`
	ContentType string `json:"content_type"`
	Title       string `json:"title"`
}

func (s *Server) handleDocumentPut(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p documentPutParams
	if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
		return errorResult("document_put", fmt.Errorf("invalid parameters: %w", err))
	}
	if p.Path == "" {
		return errorResult("document_put", fmt.Errorf("path is required"))
	}

	doc := types.NewDocument(types.NewDocumentID(), p.Path, []byte(p.Content), p.ContentType, p.Title)
	if err := s.Docs.Put(ctx, doc); err != nil {
		return errorResult("document_put", err)
	}
	if err := s.Index.Insert(ctx, doc.ID, doc.Content); err != nil {
		return errorResult("document_put", err)
	}
	return jsonResult(map[string]any{"id": doc.ID.String(), "path": doc.Path, "size": doc.Size})
}
