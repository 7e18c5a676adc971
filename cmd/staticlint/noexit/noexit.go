// Package noexit defines an analyzer that reports process-terminating calls
// outside package main.
//
// Library packages must hand errors back to the caller; only the entry point
// decides when the reporter stops. The analyzer flags os.Exit, the log.Fatal
// family and Fatal on zap loggers. Test files are ignored.
package noexit

import (
	"fmt"
	"go/ast"
	"go/types"
	"strings"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

// Analyzer is the noexit analyzer.
var Analyzer = &analysis.Analyzer{
	Name:     "noexit",
	Doc:      "reports os.Exit, log.Fatal and zap Fatal calls outside package main",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

const zapPath = "go.uber.org/zap"

var terminating = map[string]map[string]bool{
	"os":  {"Exit": true},
	"log": {"Fatal": true, "Fatalf": true, "Fatalln": true},
}

func run(pass *analysis.Pass) (any, error) {
	if pass.Pkg == nil || pass.Pkg.Name() == "main" {
		return nil, nil
	}

	insp, ok := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)
	if !ok {
		return nil, fmt.Errorf("noexit: unexpected inspector result %T", pass.ResultOf[inspect.Analyzer])
	}

	insp.Preorder([]ast.Node{(*ast.CallExpr)(nil)}, func(n ast.Node) {
		call, ok := n.(*ast.CallExpr)
		if !ok || isTestFile(pass, call) {
			return
		}
		if name, bad := terminatingCall(pass, call); bad {
			pass.Reportf(call.Pos(), "%s terminates the process; return an error to the caller instead", name)
		}
	})
	return nil, nil
}

func isTestFile(pass *analysis.Pass, n ast.Node) bool {
	if pass.Fset == nil {
		return false
	}
	return strings.HasSuffix(pass.Fset.Position(n.Pos()).Filename, "_test.go")
}

// terminatingCall resolves the callee and reports its qualified name when it
// ends the process.
func terminatingCall(pass *analysis.Pass, call *ast.CallExpr) (string, bool) {
	if call == nil || pass.TypesInfo == nil {
		return "", false
	}
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok || sel.Sel == nil {
		return "", false
	}
	fn, ok := pass.TypesInfo.Uses[sel.Sel].(*types.Func)
	if !ok || fn.Pkg() == nil {
		return "", false
	}

	path := fn.Pkg().Path()
	sig, _ := fn.Type().(*types.Signature)
	if sig != nil && sig.Recv() != nil {
		if path == zapPath && strings.HasPrefix(fn.Name(), "Fatal") {
			return "zap " + fn.Name(), true
		}
		return "", false
	}
	if terminating[path][fn.Name()] {
		return path + "." + fn.Name(), true
	}
	return "", false
}
