package bundle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestModuleKindString verifies the human-readable kind names.
func TestModuleKindString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "pure", ModulePure.String())
	require.Equal(t, "binary", ModuleBinary.String())
	require.Equal(t, "hidden", ModuleHidden.String())
	require.Equal(t, "unknown", ModuleKind(42).String())
}

// TestModuleRecordArchived verifies that only source modules go into the archive.
func TestModuleRecordArchived(t *testing.T) {
	t.Parallel()

	pure := &ModuleRecord{QualifiedName: "app.util", Kind: ModulePure}
	require.True(t, pure.Archived())

	hidden := &ModuleRecord{QualifiedName: "app.plugin", Kind: ModuleHidden}
	require.True(t, hidden.Archived())

	binary := &ModuleRecord{QualifiedName: "app.fastpath", Kind: ModuleBinary, OriginPath: "app/fastpath.so"}
	require.False(t, binary.Archived())
}

// TestModuleRecordDestPath verifies extension stitching for binary modules.
func TestModuleRecordDestPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		record   ModuleRecord
		expected string
	}{
		{
			name: "top level shared object",
			record: ModuleRecord{
				QualifiedName: "fastjson",
				OriginPath:    "/libs/fastjson.so",
				Kind:          ModuleBinary,
			},
			expected: "fastjson.so",
		},
		{
			name: "nested windows extension",
			record: ModuleRecord{
				QualifiedName: "app.native.codec",
				OriginPath:    "C:\\libs\\codec.pyd",
				Kind:          ModuleBinary,
			},
			expected: "app/native/codec.pyd",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tt.expected, tt.record.DestPath())
		})
	}
}

// TestSourceRelPath verifies archive path derivation for plain modules,
// packages and compiled sources.
func TestSourceRelPath(t *testing.T) {
	t.Parallel()

	require.Equal(t, "app/main.py", SourceRelPath("app.main", false, false))
	require.Equal(t, "app/__init__.py", SourceRelPath("app", true, false))
	require.Equal(t, "util.py", SourceRelPath("util", false, false))
	require.Equal(t, "legacy/frozen.pyc", SourceRelPath("legacy.frozen", false, true))
}

// TestModuleRecordCompiled verifies bytecode detection from the origin path.
func TestModuleRecordCompiled(t *testing.T) {
	t.Parallel()

	src := &ModuleRecord{QualifiedName: "app.main", OriginPath: "app/main.py"}
	require.False(t, src.Compiled())

	frozen := &ModuleRecord{QualifiedName: "legacy.frozen", OriginPath: "legacy/frozen.pyc"}
	require.True(t, frozen.Compiled())
}
