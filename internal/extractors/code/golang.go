package code

import (
	"go/ast"
	"go/parser"
	"go/token"
	"sort"

	"github.com/custodia-labs/citekit/internal/core/domain"
)

// goDeclarations returns the top-level types and functions of a Go file in
// source order. Methods are named Receiver.Method. ok is false when the
// file does not parse.
func goDeclarations(path string, src []byte) ([]declaration, bool) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, src, parser.SkipObjectResolution)
	if err != nil {
		return nil, false
	}

	var decls []declaration
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			name := d.Name.Name
			if recv := receiverName(d); recv != "" {
				name = recv + "." + name
			}
			decls = append(decls, declaration{
				kind:  domain.ElementFunction,
				name:  name,
				start: fset.Position(d.Pos()).Line,
				end:   fset.Position(d.End()).Line,
			})
		case *ast.GenDecl:
			if d.Tok != token.TYPE {
				continue
			}
			for _, spec := range d.Specs {
				ts := spec.(*ast.TypeSpec)
				from, to := ts.Pos(), ts.End()
				// Ungrouped declarations start at the type keyword.
				if !d.Lparen.IsValid() {
					from, to = d.Pos(), d.End()
				}
				decls = append(decls, declaration{
					kind:  domain.ElementClass,
					name:  ts.Name.Name,
					start: fset.Position(from).Line,
					end:   fset.Position(to).Line,
				})
			}
		}
	}
	sort.SliceStable(decls, func(i, j int) bool { return decls[i].start < decls[j].start })
	return decls, true
}

// receiverName returns the receiver type of a method without pointer or
// type parameters.
func receiverName(fn *ast.FuncDecl) string {
	if fn.Recv == nil || len(fn.Recv.List) == 0 {
		return ""
	}
	expr := fn.Recv.List[0].Type
	for {
		switch t := expr.(type) {
		case *ast.StarExpr:
			expr = t.X
		case *ast.IndexExpr:
			expr = t.X
		case *ast.IndexListExpr:
			expr = t.X
		case *ast.Ident:
			return t.Name
		default:
			return ""
		}
	}
}
