// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package httpx

import (
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// sharedClientUses are net/http package-level helpers that go through
// http.DefaultClient, which has no timeout and no tracing.
var sharedClientUses = map[string]bool{
	"DefaultClient": true,
	"Get":           true,
	"Head":          true,
	"Post":          true,
	"PostForm":      true,
}

// moduleRoot walks up from the package directory to the go.mod of this module.
func moduleRoot(t *testing.T) string {
	t.Helper()
	dir, err := filepath.Abs(".")
	require.NoError(t, err)
	for {
		data, err := os.ReadFile(filepath.Join(dir, "go.mod"))
		if err == nil {
			require.Contains(t, string(data), "module github.com/ManuGH/tvplay")
			return dir
		}
		parent := filepath.Dir(dir)
		require.NotEqual(t, dir, parent, "go.mod not found")
		dir = parent
	}
}

// netHTTPName returns the local name net/http is imported under, if any.
func netHTTPName(file *ast.File) (string, bool) {
	for _, imp := range file.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil || path != "net/http" {
			continue
		}
		if imp.Name != nil {
			return imp.Name.Name, true
		}
		return "http", true
	}
	return "", false
}

func TestOutboundRequestsUseConfiguredClients(t *testing.T) {
	root := moduleRoot(t)
	fset := token.NewFileSet()
	var violations []string

	for _, dir := range []string{"cmd", "internal"} {
		err := filepath.WalkDir(filepath.Join(root, dir), func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
				return nil
			}
			file, err := parser.ParseFile(fset, path, nil, parser.SkipObjectResolution)
			if err != nil {
				return err
			}
			name, ok := netHTTPName(file)
			if !ok {
				return nil
			}
			ast.Inspect(file, func(n ast.Node) bool {
				sel, ok := n.(*ast.SelectorExpr)
				if !ok {
					return true
				}
				if ident, ok := sel.X.(*ast.Ident); ok && ident.Name == name && sharedClientUses[sel.Sel.Name] {
					rel, _ := filepath.Rel(root, fset.Position(sel.Pos()).Filename)
					violations = append(violations, rel+":"+strconv.Itoa(fset.Position(sel.Pos()).Line)+" http."+sel.Sel.Name)
				}
				return true
			})
			return nil
		})
		require.NoError(t, err, "scan %s", dir)
	}

	sort.Strings(violations)
	require.Empty(t, violations, "use httpx.NewClient or httpx.NewPlainClient instead")
}
