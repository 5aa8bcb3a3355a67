package lang

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// Python is the only grammar pyoutline analyzes.
var Python = &Language{
	Name:       "python",
	Extensions: []string{".py", ".pyi"},
	lang:       python.GetLanguage(),
}

// PythonDottedName returns a dotted_name node as "a.b.c", ignoring any
// whitespace or comments between the parts. Other nodes are returned verbatim.
func PythonDottedName(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	if node.Type() != "dotted_name" {
		return NodeText(node, source)
	}
	var parts []string
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "identifier" {
			parts = append(parts, NodeText(child, source))
		}
	}
	return strings.Join(parts, ".")
}

// PythonFunctionDef unwraps a decorated_definition to the function_definition
// it decorates. It returns nil if node is not a (decorated) function or is an
// async function.
func PythonFunctionDef(node *sitter.Node) *sitter.Node {
	if node == nil {
		return nil
	}
	if node.Type() == "decorated_definition" {
		node = node.ChildByFieldName("definition")
		if node == nil {
			return nil
		}
	}
	if node.Type() != "function_definition" || PythonIsAsync(node) {
		return nil
	}
	return node
}

// PythonIsAsync reports whether a function_definition is an "async def".
func PythonIsAsync(node *sitter.Node) bool {
	first := node.Child(0)
	return first != nil && first.Type() == "async"
}

// PythonFirstStatement returns the first statement of a block, skipping
// comments, or nil for an empty block.
func PythonFirstStatement(block *sitter.Node) *sitter.Node {
	if block == nil {
		return nil
	}
	for i := 0; i < int(block.NamedChildCount()); i++ {
		child := block.NamedChild(i)
		if child.Type() != "comment" {
			return child
		}
	}
	return nil
}
