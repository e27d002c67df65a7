package extract

import (
	"context"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// pyParserPool reuses tree-sitter parsers across files; a parser is not
// safe for concurrent use but is cheap to keep around.
var pyParserPool = sync.Pool{
	New: func() any {
		p := sitter.NewParser()
		p.SetLanguage(python.GetLanguage())
		return p
	},
}

// parsePythonFile extracts classes, functions, and imports from one
// Python file using tree-sitter.
func parsePythonFile(ctx context.Context, relPath string, content []byte) (*fileUnit, error) {
	p := pyParserPool.Get().(*sitter.Parser)
	defer pyParserPool.Put(p)

	tree, err := p.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	unit := &fileUnit{
		Path:   relPath,
		Module: pyModuleName(relPath),
	}

	root := tree.RootNode()
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		switch child.Type() {
		case "class_definition":
			if td := pyClass(child, content); td != nil {
				unit.Types = append(unit.Types, *td)
			}
		case "function_definition":
			if fd := pyFunction(child, content); fd != nil {
				unit.Funcs = append(unit.Funcs, *fd)
			}
		case "decorated_definition":
			def := pyDecoratedDefinition(child)
			if def == nil {
				continue
			}
			switch def.Type() {
			case "class_definition":
				if td := pyClass(def, content); td != nil {
					unit.Types = append(unit.Types, *td)
				}
			case "function_definition":
				if fd := pyFunction(def, content); fd != nil {
					unit.Funcs = append(unit.Funcs, *fd)
				}
			}
		case "import_statement", "import_from_statement":
			unit.Imports = append(unit.Imports, pyImports(child, content)...)
		}
	}

	return unit, nil
}

// pyModuleName converts a relative path to a dotted module identifier:
// "pkg/util/io.py" -> "pkg.util.io", "pkg/__init__.py" -> "pkg".
func pyModuleName(relPath string) string {
	mod := strings.TrimSuffix(relPath, ".py")
	mod = strings.ReplaceAll(mod, "/", ".")
	return strings.TrimSuffix(mod, ".__init__")
}

// pyClass extracts a class declaration with its methods.
func pyClass(node *sitter.Node, content []byte) *typeDecl {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := string(content[nameNode.StartByte():nameNode.EndByte()])

	td := &typeDecl{
		Name:     name,
		Exported: !strings.HasPrefix(name, "_"),
	}

	body := node.ChildByFieldName("body")
	if body == nil {
		return td
	}
	td.Doc = pyBodyDocstring(body, content)

	for i := 0; i < int(body.NamedChildCount()); i++ {
		child := body.NamedChild(i)
		var def *sitter.Node
		switch child.Type() {
		case "function_definition":
			def = child
		case "decorated_definition":
			def = pyDecoratedDefinition(child)
			if def != nil && def.Type() != "function_definition" {
				def = nil
			}
		}
		if def == nil {
			continue
		}
		if fd := pyFunction(def, content); fd != nil && !isDunder(fd.Name) {
			td.Methods = append(td.Methods, *fd)
		}
	}
	return td
}

// pyFunction extracts a function declaration.
func pyFunction(node *sitter.Node, content []byte) *funcDecl {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := string(content[nameNode.StartByte():nameNode.EndByte()])

	fd := &funcDecl{
		Name:     name,
		Exported: !strings.HasPrefix(name, "_"),
	}

	if params := node.ChildByFieldName("parameters"); params != nil {
		for i := 0; i < int(params.NamedChildCount()); i++ {
			p := params.NamedChild(i)
			text := string(content[p.StartByte():p.EndByte()])
			if text == "self" || text == "cls" {
				continue
			}
			fd.Params = append(fd.Params, text)
		}
	}
	if body := node.ChildByFieldName("body"); body != nil {
		fd.Doc = pyBodyDocstring(body, content)
	}
	return fd
}

// pyBodyDocstring returns the docstring when the body's first statement
// is a bare string literal.
func pyBodyDocstring(body *sitter.Node, content []byte) string {
	if body.NamedChildCount() == 0 {
		return ""
	}
	first := body.NamedChild(0)
	if first.Type() != "expression_statement" || first.NamedChildCount() == 0 {
		return ""
	}
	expr := first.NamedChild(0)
	if expr.Type() != "string" {
		return ""
	}
	text := string(content[expr.StartByte():expr.EndByte()])
	text = strings.Trim(text, `"'`)
	return strings.TrimSpace(text)
}

// pyDecoratedDefinition finds the wrapped definition in a decorated one.
func pyDecoratedDefinition(node *sitter.Node) *sitter.Node {
	if def := node.ChildByFieldName("definition"); def != nil {
		return def
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "class_definition" || child.Type() == "function_definition" {
			return child
		}
	}
	return nil
}

// pyImports collects imported module names from an import statement.
func pyImports(node *sitter.Node, content []byte) []string {
	var imports []string
	switch node.Type() {
	case "import_statement":
		// import foo, bar as b
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			if child.Type() == "dotted_name" || child.Type() == "aliased_import" {
				name := string(content[child.StartByte():child.EndByte()])
				if idx := strings.Index(name, " as "); idx != -1 {
					name = name[:idx]
				}
				imports = append(imports, name)
			}
		}
	case "import_from_statement":
		// from foo.bar import baz
		if mod := node.ChildByFieldName("module_name"); mod != nil {
			imports = append(imports, string(content[mod.StartByte():mod.EndByte()]))
		}
	}
	return imports
}

// isDunder reports double-underscore special methods (__init__ etc.),
// which carry no story signal.
func isDunder(name string) bool {
	return strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__")
}
