package domain_test

import (
	"go/parser"
	"go/token"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const modulePath = "github.com/reglet-dev/luabridge/"

// allowedThirdParty lists the only non-module imports the domain may use.
var allowedThirdParty = []string{
	"gopkg.in/yaml.v3", // entities.Duration decodes itself from YAML nodes
}

// TestDomainHasNoOuterDependencies keeps the domain free of the host,
// server, infrastructure and application layers. The wire codec is a leaf
// package and may be referenced by ports.
func TestDomainHasNoOuterDependencies(t *testing.T) {
	fset := token.NewFileSet()

	for _, pkg := range []string{"entities", "errors", "ports"} {
		files, err := filepath.Glob(filepath.Join(pkg, "*.go"))
		require.NoError(t, err)
		require.NotEmpty(t, files, "domain/%s should contain Go files", pkg)

		for _, file := range files {
			if strings.HasSuffix(file, "_test.go") {
				continue
			}
			f, err := parser.ParseFile(fset, file, nil, parser.ImportsOnly)
			require.NoError(t, err, "failed to parse %s", file)

			for _, imp := range f.Imports {
				path := strings.Trim(imp.Path.Value, `"`)
				checkImport(t, pkg, filepath.Base(file), path)
			}
		}
	}
}

func checkImport(t *testing.T, pkg, file, path string) {
	t.Helper()

	if strings.HasPrefix(path, modulePath) {
		inner := strings.HasPrefix(path, modulePath+"domain/") || path == modulePath+"wireformat"
		assert.True(t, inner, "domain/%s (%s) imports outer package %s", pkg, file, path)
		return
	}
	// standard library paths have no dot in the first element
	if !strings.Contains(strings.SplitN(path, "/", 2)[0], ".") {
		return
	}
	assert.Contains(t, allowedThirdParty, path,
		"domain/%s (%s) imports third-party package %s", pkg, file, path)
}
