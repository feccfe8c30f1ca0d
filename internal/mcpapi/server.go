// Package mcpapi serves KotaDB's document, search, and graph-analysis
// operations over JSON-RPC as an MCP model-context server, mirroring the
// HTTP surface one verb at a time, per §6. Tool registration follows the
// teacher's internal/mcp/server.go: one mcp.Tool per verb, a jsonschema-go
// input schema, and a context-taking handler returning *mcp.CallToolResult.
package mcpapi

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kotadb/kotadb/internal/graph"
	"github.com/kotadb/kotadb/internal/ingest"
	"github.com/kotadb/kotadb/internal/interfaces"
	"github.com/kotadb/kotadb/internal/observability"
)

// Server wires the MCP tool surface over the same components httpapi.Server
// serves over HTTP — the two transports share backing state, not code.
type Server struct {
	Docs     interfaces.Storage
	Index    interfaces.Index
	Ingester *ingest.Ingester
	Logger   *observability.Logger

	WorkDir   string
	GraphPath string

	mcp *mcp.Server
	qe  *graph.QueryEngine
}

// New builds a Server and registers every kotadb:// tool.
func New(docs interfaces.Storage, idx interfaces.Index, qe *graph.QueryEngine, ingester *ingest.Ingester, logger *observability.Logger) *Server {
	s := &Server{Docs: docs, Index: idx, qe: qe, Ingester: ingester, Logger: logger}
	s.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    "kotadb-mcp-server",
		Version: "0.1.0",
	}, nil)
	s.registerTools()
	return s
}

// Graph returns the query engine currently serving graph-shaped verbs.
func (s *Server) Graph() *graph.QueryEngine { return s.qe }

// SetGraph swaps in a freshly rebuilt query engine after an ingest.
func (s *Server) SetGraph(qe *graph.QueryEngine) { s.qe = qe }

// Run serves the MCP tool surface over stdio until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	s.mcp.AddTool(&mcp.Tool{
		Name:        "kotadb://document_get",
		Description: "Fetch a document by id.",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{"id": {Type: "string", Description: "document id (uuid)"}},
			Required:   []string{"id"},
		},
	}, s.handleDocumentGet)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "kotadb://document_put",
		Description: "Create a new document under a freshly assigned id.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"path":         {Type: "string"},
				"content":      {Type: "string"},
				"content_type": {Type: "string"},
				"title":        {Type: "string"},
			},
			Required: []string{"path", "content"},
		},
	}, s.handleDocumentPut)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "kotadb://text_search",
		Description: "Trigram full-text search over ingested documents.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"query": {Type: "string"},
				"limit": {Type: "integer"},
			},
			Required: []string{"query"},
		},
	}, s.handleTextSearch)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "kotadb://semantic_search",
		Description: "Symbol-name search with substring and fuzzy fallback, ordered by symbol id.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"query": {Type: "string"},
				"kind":  {Type: "string", Description: "optional symbol kind filter"},
			},
			Required: []string{"query"},
		},
	}, s.handleSemanticSearch)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "kotadb://hybrid_search",
		Description: "Union of text_search and semantic_search results for one query.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"query": {Type: "string"},
				"limit": {Type: "integer"},
			},
			Required: []string{"query"},
		},
	}, s.handleHybridSearch)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "kotadb://find_similar",
		Description: "Symbols whose name contains the query; when none does, symbols whose name is within edit distance of it.",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{"name": {Type: "string"}},
			Required:   []string{"name"},
		},
	}, s.handleFindSimilar)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "kotadb://find_callers",
		Description: "Every symbol that transitively calls the target symbol.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"target":    {Type: "string"},
				"max_depth": {Type: "integer"},
			},
			Required: []string{"target"},
		},
	}, s.handleFindCallers)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "kotadb://find_callees",
		Description: "Every symbol the source symbol transitively calls.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"source":    {Type: "string"},
				"max_depth": {Type: "integer"},
			},
			Required: []string{"source"},
		},
	}, s.handleFindCallees)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "kotadb://impact_analysis",
		Description: "Every symbol transitively dependent on the target symbol.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"target":    {Type: "string"},
				"max_depth": {Type: "integer"},
			},
			Required: []string{"target", "max_depth"},
		},
	}, s.handleImpactAnalysis)
}
