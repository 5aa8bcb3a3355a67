// Package parse turns Python source into syntax trees and extracts
// declaration records from them.
package parse

import (
	"bytes"
	"context"
	"fmt"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/pyoutline/internal/lang"
)

const snippetLen = 40

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// legacySyntax lists nodes the grammar accepts for Python 2 compatibility
// that Python 3 rejects.
var legacySyntax = map[string]string{
	"print_statement": "print statement",
	"exec_statement":  "exec statement",
	"<>":              "<> operator",
}

// ParseError reports malformed source. Line and Column are 1-based.
type ParseError struct {
	File    string
	Message string
	Line    int
	Column  int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
}

// SourceParser converts file text to a syntax tree. Implementations return a
// *ParseError for malformed input and never return a partial tree.
type SourceParser interface {
	Parse(ctx context.Context, source []byte, file string) (*Tree, error)
	Close()
}

// Tree is a successfully parsed file. Close releases it.
type Tree struct {
	File   string
	source []byte
	tree   *sitter.Tree
}

// Root returns the module node.
func (t *Tree) Root() *sitter.Node {
	return t.tree.RootNode()
}

// Source returns the bytes the tree was parsed from.
func (t *Tree) Source() []byte {
	return t.source
}

// Close releases the underlying tree-sitter tree.
func (t *Tree) Close() {
	t.tree.Close()
}

// Parser is the tree-sitter backed SourceParser. Not safe for concurrent use.
type Parser struct {
	parser *sitter.Parser
}

// NewParser creates a parser for l.
func NewParser(l *lang.Language) *Parser {
	return &Parser{parser: l.NewParser()}
}

// Close releases the tree-sitter parser.
func (p *Parser) Close() {
	p.parser.Close()
}

// Parse parses source. Trees containing error or missing nodes, or Python 2
// statements, are rejected with a *ParseError locating the first one.
func (p *Parser) Parse(ctx context.Context, source []byte, file string) (*Tree, error) {
	source = bytes.TrimPrefix(source, utf8BOM)

	if !utf8.Valid(source) {
		return nil, invalidUTF8Error(source, file)
	}

	tree, err := p.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", file, err)
	}

	root := tree.RootNode()
	if root.HasError() {
		perr := syntaxError(root, source, file)
		tree.Close()
		return nil, perr
	}
	if bad := firstLegacyNode(root); bad != nil {
		pt := bad.StartPoint()
		tree.Close()
		return nil, &ParseError{
			File:    file,
			Message: "invalid syntax: Python 2 " + legacySyntax[bad.Type()],
			Line:    int(pt.Row) + 1,
			Column:  int(pt.Column) + 1,
		}
	}

	return &Tree{File: file, source: source, tree: tree}, nil
}

func invalidUTF8Error(source []byte, file string) *ParseError {
	offset := 0
	for offset < len(source) {
		r, size := utf8.DecodeRune(source[offset:])
		if r == utf8.RuneError && size <= 1 {
			break
		}
		offset += size
	}
	line := 1 + bytes.Count(source[:offset], []byte("\n"))
	col := offset - bytes.LastIndexByte(source[:offset], '\n')
	return &ParseError{
		File:    file,
		Message: "source is not valid UTF-8",
		Line:    line,
		Column:  col,
	}
}

func syntaxError(root *sitter.Node, source []byte, file string) *ParseError {
	bad := firstErrorNode(root)
	if bad == nil {
		bad = root
	}

	var msg string
	switch {
	case bad.IsMissing():
		msg = fmt.Sprintf("invalid syntax: missing %q", bad.Type())
	case bad.EndByte() > bad.StartByte():
		snippet := lang.CollapseWhitespace(lang.NodeText(bad, source))
		if r := []rune(snippet); len(r) > snippetLen {
			snippet = string(r[:snippetLen]) + "..."
		}
		msg = fmt.Sprintf("invalid syntax near %q", snippet)
	default:
		msg = "invalid syntax"
	}

	pt := bad.StartPoint()
	return &ParseError{
		File:    file,
		Message: msg,
		Line:    int(pt.Row) + 1,
		Column:  int(pt.Column) + 1,
	}
}

// firstErrorNode returns the first ERROR or missing node in document order,
// descending only into subtrees that contain one.
func firstErrorNode(n *sitter.Node) *sitter.Node {
	if n.Type() == "ERROR" || n.IsMissing() {
		return n
	}
	if !n.HasError() {
		return nil
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if found := firstErrorNode(n.Child(i)); found != nil {
			return found
		}
	}
	return nil
}

// firstLegacyNode returns the first Python 2 only node in document order.
func firstLegacyNode(n *sitter.Node) *sitter.Node {
	if _, ok := legacySyntax[n.Type()]; ok {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if found := firstLegacyNode(n.Child(i)); found != nil {
			return found
		}
	}
	return nil
}
