package analyzer

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/my3495/scriptpack/internal/domain/bundle"
)

// binaryExtensions are the native module suffixes recognized by the
// resolver, in lookup order.
var binaryExtensions = []string{".so", ".pyd", ".dylib", ".dll"}

// resolver locates modules on the configured search paths. Lookup order
// follows the import system: the first root wins, and within a root a
// package beats a source file beats a compiled file beats a native module.
type resolver struct {
	roots []string
}

func newResolver(roots []string) *resolver {
	return &resolver{roots: roots}
}

// resolve maps a dotted name to a module record, or reports a miss.
func (r *resolver) resolve(name string) (*bundle.ModuleRecord, bool) {
	rel := filepath.FromSlash(strings.ReplaceAll(name, ".", "/"))

	for _, root := range r.roots {
		base := filepath.Join(root, rel)

		if initPath := filepath.Join(base, "__init__.py"); fileExists(initPath) {
			return &bundle.ModuleRecord{
				QualifiedName: name,
				OriginPath:    initPath,
				Kind:          bundle.ModulePure,
				IsPackage:     true,
			}, true
		}

		for _, ext := range []string{".py", ".pyc"} {
			if p := base + ext; fileExists(p) {
				return &bundle.ModuleRecord{
					QualifiedName: name,
					OriginPath:    p,
					Kind:          bundle.ModulePure,
				}, true
			}
		}

		for _, ext := range binaryExtensions {
			if p := base + ext; fileExists(p) {
				return &bundle.ModuleRecord{
					QualifiedName: name,
					OriginPath:    p,
					Kind:          bundle.ModuleBinary,
				}, true
			}
		}
	}

	return nil, false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)

	return err == nil && !info.IsDir()
}
