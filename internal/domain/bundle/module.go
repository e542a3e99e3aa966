package bundle

import (
	"path"
	"strings"
)

// ModuleKind classifies how a module travels inside the bundle.
type ModuleKind uint8

const (
	// ModulePure is interpretable source packed into the module archive.
	ModulePure ModuleKind = iota
	// ModuleBinary is a native artifact copied verbatim into the output tree.
	ModuleBinary
	// ModuleHidden is a declared override: packed like pure source, but its
	// presence comes from configuration, not from static analysis.
	ModuleHidden
)

// String returns a human-readable kind name for logs and listings.
func (k ModuleKind) String() string {
	switch k {
	case ModulePure:
		return "pure"
	case ModuleBinary:
		return "binary"
	case ModuleHidden:
		return "hidden"
	default:
		return "unknown"
	}
}

// ModuleRecord describes one unit discovered by the analyzer or injected
// through the hidden-import list. Records are immutable after analysis.
type ModuleRecord struct {
	// QualifiedName is the dotted import name, unique within one build.
	QualifiedName string
	// OriginPath is the path of the file backing this module.
	OriginPath string
	// Kind selects the owning stage: archive packer or distribution collector.
	Kind ModuleKind
	// IsPackage marks package initializers, so extraction rebuilds
	// "pkg/__init__.py" rather than "pkg.py".
	IsPackage bool
}

// Archived reports whether the record belongs in the module archive.
func (m *ModuleRecord) Archived() bool {
	return m.Kind == ModulePure || m.Kind == ModuleHidden
}

// Compiled reports whether the record is backed by compiled bytecode
// rather than source text.
func (m *ModuleRecord) Compiled() bool {
	return strings.HasSuffix(m.OriginPath, ".pyc")
}

// DestPath returns the bundle-relative destination of a Binary record,
// preserving the package layout: "a.b" backed by "b.so" becomes "a/b.so".
// Paths use forward slashes; callers convert at materialization time.
func (m *ModuleRecord) DestPath() string {
	rel := strings.ReplaceAll(m.QualifiedName, ".", "/")

	ext := path.Ext(m.OriginPath)
	if ext == "" {
		return rel
	}

	return rel + ext
}

// SourceRelPath returns the bundle-relative file an archived record is
// rematerialized at: "a.b" is "a/b.py", a package "a.b" is
// "a/b/__init__.py". Compiled records keep their .pyc suffix so the
// interpreter's sourceless loader finds them.
func SourceRelPath(qualifiedName string, isPackage, compiled bool) string {
	rel := strings.ReplaceAll(qualifiedName, ".", "/")

	switch {
	case isPackage:
		return rel + "/__init__.py"
	case compiled:
		return rel + ".pyc"
	default:
		return rel + ".py"
	}
}
