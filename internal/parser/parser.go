// Package parser wraps tree-sitter to turn a file's bytes into the symbols
// and unresolved references the rest of the codebase-intelligence pipeline
// builds on. One grammar is loaded lazily per language the first time it is
// needed and then reused for the life of the process.
package parser

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	kerrors "github.com/kotadb/kotadb/internal/errors"
	"github.com/kotadb/kotadb/internal/types"
)

// Language is one of the grammars KotaDB understands.
type Language string

const (
	LanguageGo         Language = "go"
	LanguageJavaScript Language = "javascript"
	LanguageTypeScript Language = "typescript"
	LanguagePython     Language = "python"
	LanguageRust       Language = "rust"
)

// DetectLanguage maps a file extension to a Language, or ("", false) for an
// extension nothing in the pipeline understands — such files are stored and
// searchable but contribute no symbols or edges.
func DetectLanguage(path string) (Language, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return LanguageGo, true
	case ".js", ".jsx", ".mjs", ".cjs":
		return LanguageJavaScript, true
	case ".ts", ".tsx":
		return LanguageTypeScript, true
	case ".py", ".pyi":
		return LanguagePython, true
	case ".rs":
		return LanguageRust, true
	default:
		return "", false
	}
}

type grammar struct {
	parser  *tree_sitter.Parser
	symbolQ *tree_sitter.Query
	importQ *tree_sitter.Query // nil if the language has no import query defined
	callQ   *tree_sitter.Query // nil if the language has no call-site query defined
}

// Parser extracts symbols and references from source files across the
// languages KotaDB supports. It is safe for concurrent use: each language's
// tree-sitter parser is guarded by its own lock, since a tree_sitter.Parser
// is not itself safe for concurrent Parse calls.
type Parser struct {
	mu       sync.Mutex // guards lazy grammar initialization
	grammars map[Language]*grammar
	locks    map[Language]*sync.Mutex
}

// New returns a Parser with no grammars yet initialized; each language loads
// lazily on first use.
func New() *Parser {
	return &Parser{
		grammars: make(map[Language]*grammar),
		locks:    make(map[Language]*sync.Mutex),
	}
}

func (p *Parser) grammarFor(lang Language) (*grammar, *sync.Mutex, error) {
	p.mu.Lock()
	if g, ok := p.grammars[lang]; ok {
		lk := p.locks[lang]
		p.mu.Unlock()
		return g, lk, nil
	}
	g, err := buildGrammar(lang)
	if err != nil {
		p.mu.Unlock()
		return nil, nil, err
	}
	lk := &sync.Mutex{}
	p.grammars[lang] = g
	p.locks[lang] = lk
	p.mu.Unlock()
	return g, lk, nil
}

func buildGrammar(lang Language) (*grammar, error) {
	var tsLang *tree_sitter.Language
	switch lang {
	case LanguageGo:
		tsLang = tree_sitter.NewLanguage(tree_sitter_go.Language())
	case LanguageJavaScript:
		tsLang = tree_sitter.NewLanguage(tree_sitter_javascript.Language())
	case LanguageTypeScript:
		tsLang = tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript())
	case LanguagePython:
		tsLang = tree_sitter.NewLanguage(tree_sitter_python.Language())
	case LanguageRust:
		tsLang = tree_sitter.NewLanguage(tree_sitter_rust.Language())
	default:
		return nil, kerrors.New(kerrors.BadRequest, "parser.buildGrammar", fmt.Errorf("unsupported language %q", lang))
	}

	tsParser := tree_sitter.NewParser()
	if err := tsParser.SetLanguage(tsLang); err != nil {
		return nil, kerrors.New(kerrors.Internal, "parser.buildGrammar", err)
	}

	def := queryDefs[lang]
	symbolQ, err := tree_sitter.NewQuery(tsLang, def.symbols)
	if err != nil {
		return nil, kerrors.New(kerrors.Internal, "parser.buildGrammar", err)
	}
	g := &grammar{parser: tsParser, symbolQ: symbolQ}

	if def.imports != "" {
		if g.importQ, err = tree_sitter.NewQuery(tsLang, def.imports); err != nil {
			return nil, kerrors.New(kerrors.Internal, "parser.buildGrammar", err)
		}
	}
	if def.calls != "" {
		if g.callQ, err = tree_sitter.NewQuery(tsLang, def.calls); err != nil {
			return nil, kerrors.New(kerrors.Internal, "parser.buildGrammar", err)
		}
	}
	return g, nil
}

// Parse extracts symbols and references from content. deriveID assigns each
// symbol its stable ID (see internal/symbols), since the parser itself has
// no notion of cross-file identity.
func (p *Parser) Parse(ctx context.Context, path string, content []byte, lang Language, deriveID func(qualifiedName string, kind types.SymbolKind, startLine int) types.SymbolID) (types.ParseResult, error) {
	if err := ctx.Err(); err != nil {
		return types.ParseResult{}, kerrors.New(kerrors.Cancelled, "Parser.Parse", err)
	}

	g, lk, err := p.grammarFor(lang)
	if err != nil {
		return types.ParseResult{}, err
	}
	lk.Lock()
	defer lk.Unlock()

	tree := g.parser.Parse(content, nil)
	if tree == nil {
		return types.ParseResult{}, kerrors.New(kerrors.Internal, "Parser.Parse", fmt.Errorf("tree-sitter returned no tree for %s", path))
	}
	defer tree.Close()
	root := tree.RootNode()

	result := types.ParseResult{FilePath: path, Language: string(lang)}

	cursor := tree_sitter.NewQueryCursor()
	defer cursor.Close()

	symbolsByByteStart := make(map[uint](types.SymbolID))

	matches := cursor.Matches(g.symbolQ, root, content)
	names := g.symbolQ.CaptureNames()
	for {
		m := matches.Next()
		if m == nil {
			break
		}
		var nameNode *tree_sitter.Node
		var kindCapture string
		for _, c := range m.Captures {
			capName := names[c.Index]
			switch capName {
			case "name":
				n := c.Node
				nameNode = &n
			default:
				if strings.HasPrefix(capName, "kind.") {
					kindCapture = strings.TrimPrefix(capName, "kind.")
				}
			}
		}
		if nameNode == nil || kindCapture == "" {
			continue
		}
		kind := symbolKindFromCapture(kindCapture)
		name := string(content[nameNode.StartByte():nameNode.EndByte()])
		startLine := int(nameNode.StartPosition().Row) + 1
		endLine := int(nameNode.EndPosition().Row) + 1
		qualified := name // cross-file qualification happens in internal/symbols

		sym := types.Symbol{
			Name:          name,
			QualifiedName: qualified,
			Kind:          kind,
			FilePath:      path,
			Language:      string(lang),
			Visibility:    visibilityFor(lang, name),
			ByteSpan:      types.Span{Start: int(nameNode.StartByte()), End: int(nameNode.EndByte())},
			LineSpan:      types.Span{Start: startLine, End: endLine},
		}
		sym.ID = deriveID(qualified, kind, startLine)
		symbolsByByteStart[uint(nameNode.StartByte())] = sym.ID
		result.Symbols = append(result.Symbols, sym)
	}

	if g.importQ != nil {
		result.References = append(result.References, collectImports(g.importQ, root, content, path)...)
	}
	if g.callQ != nil {
		result.References = append(result.References, collectCalls(g.callQ, root, content, path, result.Symbols)...)
	}

	return result, nil
}

func collectImports(q *tree_sitter.Query, root *tree_sitter.Node, content []byte, path string) []types.Reference {
	cursor := tree_sitter.NewQueryCursor()
	defer cursor.Close()
	names := q.CaptureNames()

	var refs []types.Reference
	matches := cursor.Matches(q, root, content)
	for {
		m := matches.Next()
		if m == nil {
			break
		}
		for _, c := range m.Captures {
			if names[c.Index] != "import" {
				continue
			}
			text := string(content[c.Node.StartByte():c.Node.EndByte()])
			text = strings.Trim(text, "\"'`")
			refs = append(refs, types.Reference{
				Name:          text,
				FilePath:      path,
				ByteSpan:      types.Span{Start: int(c.Node.StartByte()), End: int(c.Node.EndByte())},
				LineSpan:      types.Span{Start: int(c.Node.StartPosition().Row) + 1, End: int(c.Node.EndPosition().Row) + 1},
				ImportedNames: []string{text},
			})
		}
	}
	return refs
}

// collectCalls finds call-expression targets and records, as the enclosing
// symbol, the symbol whose name starts closest above the call's line (symbol
// end lines are not consulted), so DependencyGraph.Build can resolve it to a
// Calls edge.
func collectCalls(q *tree_sitter.Query, root *tree_sitter.Node, content []byte, path string, symbols []types.Symbol) []types.Reference {
	cursor := tree_sitter.NewQueryCursor()
	defer cursor.Close()
	names := q.CaptureNames()

	var refs []types.Reference
	matches := cursor.Matches(q, root, content)
	for {
		m := matches.Next()
		if m == nil {
			break
		}
		for _, c := range m.Captures {
			if names[c.Index] != "call" {
				continue
			}
			name := string(content[c.Node.StartByte():c.Node.EndByte()])
			line := int(c.Node.StartPosition().Row) + 1
			enclosing := enclosingSymbol(symbols, line)
			refs = append(refs, types.Reference{
				Name:            name,
				FilePath:        path,
				ByteSpan:        types.Span{Start: int(c.Node.StartByte()), End: int(c.Node.EndByte())},
				LineSpan:        types.Span{Start: line, End: line},
				EnclosingSymbol: enclosing,
			})
		}
	}
	return refs
}

func enclosingSymbol(symbols []types.Symbol, line int) types.SymbolID {
	var best types.Symbol
	found := false
	for _, s := range symbols {
		if s.LineSpan.Start <= line && (!found || s.LineSpan.Start > best.LineSpan.Start) {
			best = s
			found = true
		}
	}
	if !found {
		return types.ZeroSymbolID
	}
	return best.ID
}

func symbolKindFromCapture(capture string) types.SymbolKind {
	switch capture {
	case "function":
		return types.KindFunction
	case "method":
		return types.KindMethod
	case "struct", "class":
		return types.KindStruct
	case "interface":
		return types.KindInterface
	case "enum":
		return types.KindEnum
	case "constant":
		return types.KindConstant
	case "module":
		return types.KindModule
	case "field":
		return types.KindField
	default:
		return types.KindFunction
	}
}

func visibilityFor(lang Language, name string) types.Visibility {
	if name == "" {
		return types.VisibilityUnknown
	}
	switch lang {
	case LanguageGo:
		r := []rune(name)[0]
		if r >= 'A' && r <= 'Z' {
			return types.VisibilityPublic
		}
		return types.VisibilityPrivate
	case LanguagePython:
		if strings.HasPrefix(name, "_") {
			return types.VisibilityPrivate
		}
		return types.VisibilityPublic
	default:
		return types.VisibilityUnknown
	}
}
