package parse

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/pyoutline/internal/lang"
	"github.com/phobologic/pyoutline/internal/model"
)

// Declarations holds the records extracted from one file, in traversal order.
type Declarations struct {
	Classes   []model.ClassRecord
	Functions []model.FunctionRecord
	Imports   []model.ImportRecord
}

// transparent nodes are expanded in place during traversal so that
// breadth-first levels follow statement nesting rather than grammar wrappers.
var transparent = map[string]struct{}{
	"block":                {},
	"decorated_definition": {},
	"else_clause":          {},
	"finally_clause":       {},
}

// visit is a queued node. chain holds the elif/else clauses that follow it in
// an if statement; each elif nests the rest of the chain one level deeper.
type visit struct {
	node  *sitter.Node
	chain []*sitter.Node
}

// Extract visits every node of t breadth-first and emits a record for each
// class, function and import statement. Functions are flattened: a method is
// listed by name in its class and also emitted as its own FunctionRecord.
// Async functions are not recorded, but their bodies are still visited.
func Extract(t *Tree, filePath string) Declarations {
	var d Declarations
	source := t.Source()

	queue := []visit{{node: t.Root()}}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		node := v.node

		switch node.Type() {
		case "class_definition":
			d.Classes = append(d.Classes, classRecord(node, source, filePath))
		case "function_definition":
			if !lang.PythonIsAsync(node) {
				d.Functions = append(d.Functions, functionRecord(node, source, filePath))
			}
		case "import_statement", "import_from_statement", "future_import_statement":
			d.Imports = append(d.Imports, model.ImportRecord{
				Module: moduleRef(node, source),
				File:   filePath,
			})
		}

		queue = appendChildren(queue, node, v.chain)
	}

	return d
}

func appendChildren(queue []visit, node *sitter.Node, chain []*sitter.Node) []visit {
	isIf := node.Type() == "if_statement"
	var clauses []*sitter.Node
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		typ := child.Type()
		if isIf && (typ == "elif_clause" || typ == "else_clause") {
			clauses = append(clauses, child)
			continue
		}
		if _, ok := transparent[typ]; ok {
			queue = appendChildren(queue, child, nil)
			continue
		}
		queue = append(queue, visit{node: child})
	}

	if len(clauses) == 0 {
		clauses = chain
	}
	if len(clauses) == 0 {
		return queue
	}
	head := clauses[0]
	if head.Type() == "elif_clause" {
		return append(queue, visit{node: head, chain: clauses[1:]})
	}
	return appendChildren(queue, head, nil)
}

func classRecord(node *sitter.Node, source []byte, filePath string) model.ClassRecord {
	body := node.ChildByFieldName("body")
	start, end := lineSpan(node)
	return model.ClassRecord{
		Name:      lang.FieldText(node, "name", source),
		Methods:   methodNames(body, source),
		Docstring: docstring(body, source),
		File:      filePath,
		LineStart: start,
		LineEnd:   end,
	}
}

// methodNames lists the functions defined directly in a class body.
func methodNames(body *sitter.Node, source []byte) []string {
	methods := []string{}
	if body == nil {
		return methods
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		if fn := lang.PythonFunctionDef(body.NamedChild(i)); fn != nil {
			methods = append(methods, lang.FieldText(fn, "name", source))
		}
	}
	return methods
}

func functionRecord(node *sitter.Node, source []byte, filePath string) model.FunctionRecord {
	start, end := lineSpan(node)
	return model.FunctionRecord{
		Name:       lang.FieldText(node, "name", source),
		Parameters: parameterNames(node.ChildByFieldName("parameters"), source),
		Docstring:  docstring(node.ChildByFieldName("body"), source),
		File:       filePath,
		LineStart:  start,
		LineEnd:    end,
	}
}

// parameterNames returns the ordinary positional parameters. Names before a
// "/" marker are positional-only and dropped; collection stops at "*",
// "*args" or "**kwargs".
func parameterNames(params *sitter.Node, source []byte) []string {
	names := []string{}
	if params == nil {
		return names
	}
	for i := 0; i < int(params.ChildCount()); i++ {
		child := params.Child(i)
		switch child.Type() {
		case "identifier":
			names = append(names, lang.NodeText(child, source))
		case "typed_parameter":
			first := child.NamedChild(0)
			if first == nil || first.Type() != "identifier" {
				return names
			}
			names = append(names, lang.NodeText(first, source))
		case "default_parameter", "typed_default_parameter":
			if name := child.ChildByFieldName("name"); name != nil && name.Type() == "identifier" {
				names = append(names, lang.NodeText(name, source))
			}
		case "positional_separator", "/":
			names = []string{}
		case "keyword_separator", "*", "list_splat_pattern", "dictionary_splat_pattern":
			return names
		}
	}
	return names
}

func moduleRef(node *sitter.Node, source []byte) model.ModuleRef {
	switch node.Type() {
	case "future_import_statement":
		return model.FromImport("__future__")
	case "import_from_statement":
		module := node.ChildByFieldName("module_name")
		if module == nil {
			return model.RelativeImport()
		}
		if module.Type() != "relative_import" {
			return model.FromImport(lang.PythonDottedName(module, source))
		}
		for i := 0; i < int(module.NamedChildCount()); i++ {
			if child := module.NamedChild(i); child.Type() == "dotted_name" {
				return model.FromImport(lang.PythonDottedName(child, source))
			}
		}
		return model.RelativeImport()
	}

	names := []string{}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "dotted_name":
			names = append(names, lang.PythonDottedName(child, source))
		case "aliased_import":
			names = append(names, lang.PythonDottedName(child.ChildByFieldName("name"), source))
		}
	}
	return model.PlainImport(names...)
}

// lineSpan returns the 1-based first and last line of node. Trailing comments
// are not part of the span.
func lineSpan(node *sitter.Node) (int, *int) {
	start := int(node.StartPoint().Row) + 1
	endPt := lastToken(node).EndPoint()
	end := int(endPt.Row) + 1
	if endPt.Column == 0 && end > start {
		end--
	}
	return start, &end
}

// lastToken descends through the last non-comment child of node.
func lastToken(node *sitter.Node) *sitter.Node {
	for {
		var next *sitter.Node
		for i := int(node.ChildCount()) - 1; i >= 0; i-- {
			if c := node.Child(i); c.Type() != "comment" {
				next = c
				break
			}
		}
		if next == nil {
			return node
		}
		node = next
	}
}
