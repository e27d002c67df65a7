package extract

import (
	goast "go/ast"
	"go/parser"
	"go/token"
)

// parseGoFile extracts types, functions, and imports from one Go file.
// Methods are attached to their receiver type's declaration; receivers
// declared in other files of the package surface as standalone functions
// there, which is acceptable signal loss for candidate discovery.
func parseGoFile(relPath string, content []byte) (*fileUnit, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, relPath, content, parser.ParseComments)
	if err != nil {
		return nil, err
	}

	unit := &fileUnit{
		Path:   relPath,
		Module: file.Name.Name,
	}
	for _, imp := range file.Imports {
		path := imp.Path.Value
		if len(path) >= 2 {
			path = path[1 : len(path)-1] // strip quotes
		}
		unit.Imports = append(unit.Imports, path)
	}

	// First pass: type declarations.
	typeIndex := make(map[string]int)
	for _, decl := range file.Decls {
		gd, ok := decl.(*goast.GenDecl)
		if !ok || gd.Tok != token.TYPE {
			continue
		}
		for _, spec := range gd.Specs {
			ts, ok := spec.(*goast.TypeSpec)
			if !ok {
				continue
			}
			doc := ""
			if ts.Doc != nil {
				doc = ts.Doc.Text()
			} else if gd.Doc != nil {
				doc = gd.Doc.Text()
			}
			unit.Types = append(unit.Types, typeDecl{
				Name:     ts.Name.Name,
				Doc:      doc,
				Exported: goast.IsExported(ts.Name.Name),
			})
			typeIndex[ts.Name.Name] = len(unit.Types) - 1
		}
	}

	// Second pass: functions and methods.
	for _, decl := range file.Decls {
		fn, ok := decl.(*goast.FuncDecl)
		if !ok {
			continue
		}
		doc := ""
		if fn.Doc != nil {
			doc = fn.Doc.Text()
		}
		fd := funcDecl{
			Name:     fn.Name.Name,
			Doc:      doc,
			Exported: goast.IsExported(fn.Name.Name),
			Params:   goParamNames(fn.Type),
		}

		if recv := receiverTypeName(fn); recv != "" {
			if idx, ok := typeIndex[recv]; ok {
				unit.Types[idx].Methods = append(unit.Types[idx].Methods, fd)
				continue
			}
		}
		unit.Funcs = append(unit.Funcs, fd)
	}

	return unit, nil
}

// receiverTypeName resolves a method's receiver type identifier,
// unwrapping pointer and generic receivers.
func receiverTypeName(fn *goast.FuncDecl) string {
	if fn.Recv == nil || len(fn.Recv.List) == 0 {
		return ""
	}
	expr := fn.Recv.List[0].Type
	for {
		switch t := expr.(type) {
		case *goast.StarExpr:
			expr = t.X
		case *goast.IndexExpr:
			expr = t.X
		case *goast.IndexListExpr:
			expr = t.X
		case *goast.Ident:
			return t.Name
		default:
			return ""
		}
	}
}

func goParamNames(ft *goast.FuncType) []string {
	if ft.Params == nil {
		return nil
	}
	var names []string
	for _, field := range ft.Params.List {
		for _, n := range field.Names {
			names = append(names, n.Name)
		}
	}
	return names
}
