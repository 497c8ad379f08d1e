package codegen

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"strings"
)

const (
	toolMarker   = "//mcp:tool"
	promptMarker = "//mcp:prompt"
)

// Scan parses every .go file directly inside dir except _test.go files and
// generated _mcpgen.go files, and returns one
// Function per exported func decl whose doc comment carries a //mcp:tool or
// //mcp:prompt magic comment — the idiomatic Go stand-in for the annotation
// processors this generator's model assumes, in the tradition of
// //go:generate directives and stringer's own comment markers.
func Scan(dir string) ([]Function, error) {
	fset := token.NewFileSet()
	pkgs, err := parser.ParseDir(fset, dir, nil, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("codegen: parse %s: %w", dir, err)
	}

	var funcs []Function
	for _, pkg := range pkgs {
		for filename, file := range pkg.Files {
			if strings.HasSuffix(filename, "_test.go") || strings.HasSuffix(filename, "_mcpgen.go") {
				continue
			}
			for _, decl := range file.Decls {
				fd, ok := decl.(*ast.FuncDecl)
				if !ok || fd.Recv != nil || fd.Doc == nil {
					continue
				}
				kind, name, ok := parseMarker(fd.Doc)
				if !ok {
					continue
				}
				if !fd.Name.IsExported() {
					return nil, fmt.Errorf("codegen: %s: %s must be exported to be registered", filename, fd.Name.Name)
				}
				f, err := describeFunc(fd, kind, name, pkg.Name, filename)
				if err != nil {
					return nil, err
				}
				funcs = append(funcs, f)
			}
		}
	}
	return funcs, nil
}

// parseMarker looks for a //mcp:tool or //mcp:prompt line in a doc comment
// group, optionally followed by an override registry name
// ("//mcp:tool search" registers as "search" instead of the func name).
func parseMarker(doc *ast.CommentGroup) (kind Kind, name string, ok bool) {
	for _, c := range doc.List {
		text := strings.TrimSpace(c.Text)
		switch {
		case strings.HasPrefix(text, toolMarker):
			return KindTool, strings.TrimSpace(strings.TrimPrefix(text, toolMarker)), true
		case strings.HasPrefix(text, promptMarker):
			return KindPrompt, strings.TrimSpace(strings.TrimPrefix(text, promptMarker)), true
		}
	}
	return "", "", false
}

func describeFunc(fd *ast.FuncDecl, kind Kind, overrideName, pkgName, filename string) (Function, error) {
	f := Function{
		Kind:     kind,
		Name:     overrideName,
		FuncName: fd.Name.Name,
		Package:  pkgName,
		File:     filename,
	}
	if f.Name == "" {
		f.Name = fd.Name.Name
	}

	fields := fd.Type.Params.List
	start := 0
	if len(fields) > 0 && len(fields[0].Names) <= 1 && types.ExprString(fields[0].Type) == "context.Context" {
		f.HasContext = true
		start = 1
	}
	for _, field := range fields[start:] {
		typeStr := types.ExprString(field.Type)
		_, pointer := field.Type.(*ast.StarExpr)
		if len(field.Names) == 0 {
			return Function{}, fmt.Errorf("codegen: %s: %s has an unnamed parameter", filename, fd.Name.Name)
		}
		for _, n := range field.Names {
			f.Params = append(f.Params, Param{Name: n.Name, GoType: typeStr, Pointer: pointer})
		}
	}

	if fd.Type.Results != nil && len(fd.Type.Results.List) > 0 {
		f.ResultType = types.ExprString(fd.Type.Results.List[0].Type)
	}
	return f, nil
}
