// Package noexit defines an analyzer that reports calls terminating the
// process from main.main: os.Exit and log.Fatal, log.Fatalf, log.Fatalln.
// Such calls skip deferred functions, so the record store is never closed
// and buffered log entries are lost.
package noexit

import (
	"go/ast"
	"go/types"
	"path/filepath"
	"strings"

	"golang.org/x/tools/go/analysis"
)

var Analyzer = &analysis.Analyzer{
	Name: "noexit",
	Doc:  "prohibits os.Exit and log.Fatal* in main.main",
	Run:  run,
}

var forbidden = map[string]map[string]bool{
	"os":  {"Exit": true},
	"log": {"Fatal": true, "Fatalf": true, "Fatalln": true},
}

func run(pass *analysis.Pass) (interface{}, error) {
	if pass.Pkg.Name() != "main" {
		return nil, nil
	}

	for _, file := range pass.Files {
		// Exclude go-build cache files
		filename := pass.Fset.File(file.Pos()).Name()
		if isGoBuildCacheFile(filename) {
			continue
		}

		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Name.Name != "main" || fn.Recv != nil || fn.Body == nil {
				continue
			}

			ast.Inspect(fn.Body, func(n ast.Node) bool {
				// Calls inside closures are not reported.
				if _, ok := n.(*ast.FuncLit); ok {
					return false
				}

				call, ok := n.(*ast.CallExpr)
				if !ok {
					return true
				}

				sel, ok := call.Fun.(*ast.SelectorExpr)
				if !ok {
					return true
				}

				callee, ok := pass.TypesInfo.Uses[sel.Sel].(*types.Func)
				if !ok || callee.Pkg() == nil {
					return true
				}

				if forbidden[callee.Pkg().Path()][callee.Name()] {
					pass.Reportf(call.Pos(), "avoid using %s.%s in main.main", callee.Pkg().Name(), callee.Name())
				}

				return true
			})
		}
	}

	return nil, nil
}

func isGoBuildCacheFile(path string) bool {
	path = filepath.ToSlash(path)
	return strings.Contains(path, "/go-build/") || strings.Contains(path, `\go-build\`)
}
