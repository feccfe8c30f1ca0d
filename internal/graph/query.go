package graph

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/hbollon/go-edlib"

	kerrors "github.com/kotadb/kotadb/internal/errors"
	"github.com/kotadb/kotadb/internal/types"
)

// fuzzySymbolSearchThreshold is the minimum Levenshtein similarity (0..1,
// i.e. 1 - distance/longer length, per go-edlib's FuzzySearchSetThreshold) a
// symbol name must reach to be kept by the fuzzy fallback.
const fuzzySymbolSearchThreshold = 0.7

// QueryEngine answers graph-shaped questions (who calls this, what does
// this depend on, how is A reachable from B) over a built Graph, per §4.8.
type QueryEngine struct {
	graph *Graph
}

func NewQueryEngine(g *Graph) *QueryEngine { return &QueryEngine{graph: g} }

// Stats reports what a single query touched, for callers that want to
// explain or budget a query's cost.
type Stats struct {
	DirectCount     int
	TransitiveCount int
	SymbolsAnalyzed int
	Elapsed         time.Duration
}

// Result pairs the found symbols with the path length (hops) each was
// found at and the query's Stats.
type Result struct {
	Symbols []types.Symbol
	Depths  map[types.SymbolID]int
	Stats   Stats
}

// Options bounds a traversal: MaxDepth caps hops from the root, MaxResults
// caps how many symbols are returned once the cap is hit (BFS order is
// preserved so the truncation is deterministic, not arbitrary).
type Options struct {
	MaxDepth   int
	MaxResults int
}

func (o Options) normalized() Options {
	if o.MaxDepth <= 0 {
		o.MaxDepth = 10
	}
	if o.MaxResults <= 0 {
		o.MaxResults = 1000
	}
	return o
}

// FindCallers returns every symbol with a Calls edge reaching symbol,
// transitively up to opts.MaxDepth.
func (qe *QueryEngine) FindCallers(ctx context.Context, symbol types.SymbolID, opts Options) (*Result, error) {
	return qe.bfs(ctx, symbol, Incoming, types.EdgeCalls, opts)
}

// FindCallees returns every symbol symbol has a Calls edge to, transitively.
func (qe *QueryEngine) FindCallees(ctx context.Context, symbol types.SymbolID, opts Options) (*Result, error) {
	return qe.bfs(ctx, symbol, Outgoing, types.EdgeCalls, opts)
}

// ImpactAnalysis returns every symbol transitively dependent on symbol
// across any edge kind — the set that a change to symbol could affect.
func (qe *QueryEngine) ImpactAnalysis(ctx context.Context, symbol types.SymbolID, opts Options) (*Result, error) {
	return qe.bfsAnyKind(ctx, symbol, Incoming, opts)
}

// FindPaths returns the shortest path (as a symbol sequence) from source to
// target, if one exists within opts.MaxDepth hops.
func (qe *QueryEngine) FindPaths(ctx context.Context, source, target types.SymbolID, opts Options) ([]types.Symbol, Stats, error) {
	opts = opts.normalized()
	start := time.Now()

	type frame struct {
		id    types.SymbolID
		depth int
	}
	visited := map[types.SymbolID]types.SymbolID{source: types.ZeroSymbolID}
	queue := []frame{{id: source, depth: 0}}
	analyzed := 0

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, Stats{}, kerrors.New(kerrors.Cancelled, "QueryEngine.FindPaths", err)
		}
		cur := queue[0]
		queue = queue[1:]
		analyzed++

		if cur.id == target {
			var path []types.SymbolID
			for at := target; ; {
				path = append(path, at)
				if at == source {
					break
				}
				at = visited[at]
			}
			reverse(path)
			out := make([]types.Symbol, 0, len(path))
			for _, id := range path {
				if s, ok := qe.graph.Symbol(id); ok {
					out = append(out, s)
				}
			}
			return out, Stats{DirectCount: 1, TransitiveCount: len(out), SymbolsAnalyzed: analyzed, Elapsed: time.Since(start)}, nil
		}

		if cur.depth >= opts.MaxDepth {
			continue
		}
		neighbors := qe.graph.Neighbors(cur.id, Outgoing, 0, true)
		sort.Slice(neighbors, func(i, j int) bool { return lessID(neighbors[i].Target, neighbors[j].Target) })
		for _, e := range neighbors {
			if _, seen := visited[e.Target]; seen {
				continue
			}
			visited[e.Target] = cur.id
			queue = append(queue, frame{id: e.Target, depth: cur.depth + 1})
		}
	}
	return nil, Stats{SymbolsAnalyzed: analyzed, Elapsed: time.Since(start)}, nil
}

// SymbolSearch returns every symbol matching name: an exact or substring
// match first, per §4.8; if neither finds anything, it falls back to
// edit-distance fuzzy matching (go-edlib) over every known symbol name, so a
// small typo in the query still finds the intended symbol.
func (qe *QueryEngine) SymbolSearch(name string) []types.Symbol {
	out := qe.symbolsMatchingSubstring(name)
	if len(out) == 0 {
		out = qe.symbolsMatchingFuzzy(name)
	}
	sort.Slice(out, func(i, j int) bool { return lessID(out[i].ID, out[j].ID) })
	return out
}

func (qe *QueryEngine) symbolsMatchingSubstring(name string) []types.Symbol {
	var out []types.Symbol
	lower := strings.ToLower(name)
	for _, s := range qe.graph.symbols {
		if s.Name == name || strings.Contains(strings.ToLower(s.Name), lower) {
			out = append(out, s)
		}
	}
	return out
}

func (qe *QueryEngine) symbolsMatchingFuzzy(name string) []types.Symbol {
	names := make([]string, 0, len(qe.graph.symbols))
	seen := make(map[string]struct{}, len(qe.graph.symbols))
	for _, s := range qe.graph.symbols {
		if _, ok := seen[s.Name]; !ok {
			seen[s.Name] = struct{}{}
			names = append(names, s.Name)
		}
	}
	matches, err := edlib.FuzzySearchSetThreshold(name, names, len(names), fuzzySymbolSearchThreshold, edlib.Levenshtein)
	if err != nil || len(matches) == 0 {
		return nil
	}
	matchSet := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		matchSet[m] = struct{}{}
	}

	var out []types.Symbol
	for _, s := range qe.graph.symbols {
		if _, ok := matchSet[s.Name]; ok {
			out = append(out, s)
		}
	}
	return out
}

func (qe *QueryEngine) bfs(ctx context.Context, root types.SymbolID, dir Direction, kind types.EdgeKind, opts Options) (*Result, error) {
	return qe.traverse(ctx, root, dir, kind, false, opts)
}

func (qe *QueryEngine) bfsAnyKind(ctx context.Context, root types.SymbolID, dir Direction, opts Options) (*Result, error) {
	return qe.traverse(ctx, root, dir, 0, true, opts)
}

// traverse is a breadth-first walk with a visited set, a depth cap, and a
// result cap; each node's unvisited neighbours are queued in ascending
// SymbolID order, so two runs over the same graph always return results in
// the same order.
func (qe *QueryEngine) traverse(ctx context.Context, root types.SymbolID, dir Direction, kind types.EdgeKind, anyKind bool, opts Options) (*Result, error) {
	opts = opts.normalized()
	start := time.Now()

	visited := map[types.SymbolID]int{root: 0}
	queue := []types.SymbolID{root}
	var ordered []types.SymbolID
	direct := 0
	analyzed := 0

	for len(queue) > 0 && len(ordered) < opts.MaxResults {
		if err := ctx.Err(); err != nil {
			return nil, kerrors.New(kerrors.Cancelled, "QueryEngine.traverse", err)
		}
		cur := queue[0]
		queue = queue[1:]
		analyzed++
		depth := visited[cur]

		if depth >= opts.MaxDepth {
			continue
		}

		neighbors := qe.graph.Neighbors(cur, dir, kind, anyKind)
		var nextIDs []types.SymbolID
		for _, e := range neighbors {
			next := e.Target
			if dir == Incoming {
				next = e.Source
			}
			if _, seen := visited[next]; seen {
				continue
			}
			nextIDs = append(nextIDs, next)
		}
		sort.Slice(nextIDs, func(i, j int) bool { return lessID(nextIDs[i], nextIDs[j]) })

		for _, next := range nextIDs {
			visited[next] = depth + 1
			ordered = append(ordered, next)
			if depth == 0 {
				direct++
			}
			queue = append(queue, next)
			if len(ordered) >= opts.MaxResults {
				break
			}
		}
	}

	symbolsOut := make([]types.Symbol, 0, len(ordered))
	depths := make(map[types.SymbolID]int, len(ordered))
	for _, id := range ordered {
		if s, ok := qe.graph.Symbol(id); ok {
			symbolsOut = append(symbolsOut, s)
		}
		depths[id] = visited[id]
	}

	return &Result{
		Symbols: symbolsOut,
		Depths:  depths,
		Stats: Stats{
			DirectCount:     direct,
			TransitiveCount: len(ordered),
			SymbolsAnalyzed: analyzed,
			Elapsed:         time.Since(start),
		},
	}, nil
}

func reverse(ids []types.SymbolID) {
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
}
