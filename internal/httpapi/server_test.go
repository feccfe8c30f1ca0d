package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kotadb/kotadb/internal/config"
	"github.com/kotadb/kotadb/internal/graph"
	"github.com/kotadb/kotadb/internal/index"
	"github.com/kotadb/kotadb/internal/ingest"
	"github.com/kotadb/kotadb/internal/parser"
	"github.com/kotadb/kotadb/internal/storage"
	"github.com/kotadb/kotadb/internal/symbols"
)

func writeSourceFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

type testServer struct {
	*Server
	docs *storage.DocumentStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dataDir := t.TempDir()

	docs, err := storage.OpenDocumentStore(dataDir, storage.DocumentStoreConfig{CacheCapacity: 64})
	require.NoError(t, err)
	t.Cleanup(func() { docs.Close() })

	idx, err := index.Open(filepath.Join(dataDir, "trigram"), docs, index.Config{FlushThreshold: 4, CompactAt: 8})
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	symStore, err := symbols.Open(filepath.Join(dataDir, "symbols"))
	require.NoError(t, err)
	t.Cleanup(func() { symStore.Close() })

	graphPath := filepath.Join(dataDir, "graph.kgph")
	ig := ingest.New(docs, idx, symStore, parser.New(), graphPath)

	srv := New(docs, idx, nil, ig, nil)
	srv.WorkDir = t.TempDir()
	srv.IngestCfg = config.Default(dataDir).Ingest
	srv.GraphPath = graphPath

	return &testServer{Server: srv, docs: docs}
}

func (ts *testServer) ingestDir(t *testing.T, root string) {
	t.Helper()
	stats, err := ts.Ingester.Ingest(context.Background(), root, ts.IngestCfg)
	require.NoError(t, err)
	require.Greater(t, stats.FilesIngested, 0)

	g, err := graph.Load(ts.GraphPath)
	require.NoError(t, err)
	ts.SetGraph(graph.NewQueryEngine(g))
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCreateAndGetDocument(t *testing.T) {
	ts := newTestServer(t)

	rec := doJSON(t, ts, http.MethodPost, "/documents", createDocumentRequest{Path: "a.txt", Content: "hello world"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created documentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, "a.txt", created.Path)

	rec = doJSON(t, ts, http.MethodGet, "/documents/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var fetched documentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fetched))
	require.Equal(t, "hello world", fetched.Content)
}

func TestGetMissingDocumentReturns404(t *testing.T) {
	ts := newTestServer(t)
	rec := doJSON(t, ts, http.MethodGet, "/documents/00000000-0000-0000-0000-000000000000", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "not_found", body.Error)
	require.NotEmpty(t, body.TraceID)
}

func TestDeleteDocumentThenSearchMisses(t *testing.T) {
	ts := newTestServer(t)
	rec := doJSON(t, ts, http.MethodPost, "/documents", createDocumentRequest{Path: "b.txt", Content: "trigram bait"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created documentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, ts, http.MethodDelete, "/documents/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, ts, http.MethodGet, "/documents/"+created.ID, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSearchTextRequiresQuery(t *testing.T) {
	ts := newTestServer(t)
	rec := doJSON(t, ts, http.MethodGet, "/search/text", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchTextFindsIngestedContent(t *testing.T) {
	ts := newTestServer(t)
	rec := doJSON(t, ts, http.MethodPost, "/documents", createDocumentRequest{Path: "c.txt", Content: "trigramsearchable"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, ts, http.MethodGet, "/search/text?q=trigramsearchable", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var hits []searchHitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hits))
	require.NotEmpty(t, hits)
}

func TestAnalysisRoutesReturnUnavailableBeforeIngest(t *testing.T) {
	ts := newTestServer(t)
	rec := doJSON(t, ts, http.MethodPost, "/analysis/callers", callersRequest{Target: strings.Repeat("00", 16)})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestFindCalleesAfterIngest(t *testing.T) {
	ts := newTestServer(t)
	root := t.TempDir()
	writeSourceFile(t, root, "main.go", "package main\n\nfunc main() {\n\thelper()\n}\n\nfunc helper() {}\n")
	ts.ingestDir(t, root)

	qe := ts.Graph()
	require.NotNil(t, qe)
	matches := qe.SymbolSearch("main")
	require.NotEmpty(t, matches)

	rec := doJSON(t, ts, http.MethodPost, "/analysis/callees", calleesRequest{Source: matches[0].ID.String()})
	require.Equal(t, http.StatusOK, rec.Code)

	var res analysisResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.NotEmpty(t, res.Symbols)
}

func TestImpactAnalysisRequiresMaxDepth(t *testing.T) {
	ts := newTestServer(t)
	root := t.TempDir()
	writeSourceFile(t, root, "main.go", "package main\n\nfunc main() {}\n")
	ts.ingestDir(t, root)

	qe := ts.Graph()
	matches := qe.SymbolSearch("main")
	require.NotEmpty(t, matches)

	rec := doJSON(t, ts, http.MethodPost, "/analysis/impact", impactRequest{Target: matches[0].ID.String()})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchSymbolsFiltersByKind(t *testing.T) {
	ts := newTestServer(t)
	root := t.TempDir()
	writeSourceFile(t, root, "main.go", "package main\n\nfunc main() {}\n")
	ts.ingestDir(t, root)

	rec := doJSON(t, ts, http.MethodGet, "/search/symbols?q=main&kind=struct", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out []symbolResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Empty(t, out)

	rec = doJSON(t, ts, http.MethodGet, "/search/symbols?q=main&kind=function", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotEmpty(t, out)
}

func TestTraceIDEchoedOnErrorResponses(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/documents/not-a-uuid", nil)
	req.Header.Set("X-Trace-Id", "fixed-trace-id")
	rec := httptest.NewRecorder()
	ts.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "fixed-trace-id", rec.Header().Get("X-Trace-Id"))

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "fixed-trace-id", body.TraceID)
}
