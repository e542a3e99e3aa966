package analyzer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/my3495/scriptpack/internal/domain/bundle"
)

// writeTree materializes a fixture project under root.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func moduleNames(result *Result) []string {
	names := make([]string, 0, len(result.Modules))
	for _, m := range result.Modules {
		names = append(names, m.QualifiedName)
	}

	return names
}

func findModule(t *testing.T, result *Result, name string) *bundle.ModuleRecord {
	t.Helper()

	for _, m := range result.Modules {
		if m.QualifiedName == name {
			return m
		}
	}

	t.Fatalf("module %q not in result", name)

	return nil
}

// TestAnalyzeDiscoversGraph walks a small project and checks the full
// discovered set, kinds, package flags and ordering.
func TestAnalyzeDiscoversGraph(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"main.py":            "import app.ui\nimport vendor.codec\nfrom util import helper\nfrom util import VERSION\n",
		"app/__init__.py":    "from . import ui\n",
		"app/ui/__init__.py": "from .window import Window\n",
		"app/ui/window.py":   "",
		"util/__init__.py":   "",
		"util/helper.py":     "",
		"vendor/__init__.py": "",
		"vendor/codec.so":    "\x7fELF",
	})

	report := bundle.NewReport()
	result, err := Analyze(context.Background(), &Options{
		EntryPoint:  filepath.Join(root, "main.py"),
		SearchPaths: []string{root},
	}, report)
	require.NoError(t, err)

	require.Equal(t, "main", result.EntryModule)
	require.Equal(t, []string{
		"app", "app.ui", "app.ui.window", "main",
		"util", "util.helper", "vendor", "vendor.codec",
	}, moduleNames(result))

	require.Zero(t, report.Len(), "unexpected warnings: %v", report.Warnings())

	require.True(t, findModule(t, result, "app").IsPackage)
	require.True(t, findModule(t, result, "app.ui").IsPackage)
	require.False(t, findModule(t, result, "app.ui.window").IsPackage)
	require.Equal(t, bundle.ModuleBinary, findModule(t, result, "vendor.codec").Kind)
	require.Equal(t, bundle.ModulePure, findModule(t, result, "util.helper").Kind)
}

// TestAnalyzeTerminatesOnCycles ensures circular imports do not loop.
func TestAnalyzeTerminatesOnCycles(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"main.py": "import a\n",
		"a.py":    "import b\n",
		"b.py":    "import a\n",
	})

	report := bundle.NewReport()
	result, err := Analyze(context.Background(), &Options{
		EntryPoint:  filepath.Join(root, "main.py"),
		SearchPaths: []string{root},
	}, report)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "main"}, moduleNames(result))
}

// TestAnalyzeExcludes prunes excluded names and their subtrees silently.
func TestAnalyzeExcludes(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"main.py":           "import heavy\nimport heavy.sub\nimport light\n",
		"heavy/__init__.py": "",
		"heavy/sub.py":      "",
		"light.py":          "",
	})

	report := bundle.NewReport()
	result, err := Analyze(context.Background(), &Options{
		EntryPoint:  filepath.Join(root, "main.py"),
		SearchPaths: []string{root},
		Excludes:    []string{"heavy"},
	}, report)
	require.NoError(t, err)
	require.Equal(t, []string{"light", "main"}, moduleNames(result))
	require.Zero(t, report.Len())
}

// TestAnalyzeUnresolvedWarnsOnce deduplicates misses across importers.
func TestAnalyzeUnresolvedWarnsOnce(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"main.py":  "import missing_pkg\nimport other\n",
		"other.py": "import missing_pkg\n",
	})

	report := bundle.NewReport()
	result, err := Analyze(context.Background(), &Options{
		EntryPoint:  filepath.Join(root, "main.py"),
		SearchPaths: []string{root},
	}, report)
	require.NoError(t, err)
	require.Equal(t, []string{"main", "other"}, moduleNames(result))

	warnings := report.Warnings()
	require.Len(t, warnings, 1)
	require.Equal(t, bundle.WarnUnresolved, warnings[0].Code)
	require.Contains(t, warnings[0].Message, "missing_pkg")
}

// TestAnalyzeHiddenImports covers injection, redundancy, misses, native
// hits and transitive dependencies of hidden modules.
func TestAnalyzeHiddenImports(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"main.py":             "import app\n",
		"app/__init__.py":     "",
		"plugins/__init__.py": "",
		"plugins/extra.py":    "import plugdep\n",
		"plugdep.py":          "",
		"native/__init__.py":  "",
		"native/fast.so":      "\x7fELF",
	})

	report := bundle.NewReport()
	result, err := Analyze(context.Background(), &Options{
		EntryPoint:    filepath.Join(root, "main.py"),
		SearchPaths:   []string{root},
		HiddenImports: []string{"plugins.extra", "app", "ghost.mod", "native.fast"},
	}, report)
	require.NoError(t, err)

	require.Equal(t, []string{
		"app", "main", "native", "native.fast",
		"plugdep", "plugins", "plugins.extra",
	}, moduleNames(result))

	require.Equal(t, bundle.ModuleHidden, findModule(t, result, "plugins.extra").Kind)
	require.Equal(t, bundle.ModuleBinary, findModule(t, result, "native.fast").Kind)
	require.Equal(t, bundle.ModulePure, findModule(t, result, "plugdep").Kind)

	require.True(t, report.Has(bundle.WarnHiddenRedundant))
	require.True(t, report.Has(bundle.WarnHiddenMissing))
	require.Equal(t, 2, report.Len(), "warnings: %v", report.Warnings())
}

// TestAnalyzeRelativeBeyondTop warns when dots climb past the top level.
func TestAnalyzeRelativeBeyondTop(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"main.py": "from .. import anything\n",
	})

	report := bundle.NewReport()
	_, err := Analyze(context.Background(), &Options{
		EntryPoint:  filepath.Join(root, "main.py"),
		SearchPaths: []string{root},
	}, report)
	require.NoError(t, err)
	require.True(t, report.Has(bundle.WarnUnresolved))
}

// TestAnalyzeEntryOutsideRoots falls back to the script's own directory.
func TestAnalyzeEntryOutsideRoots(t *testing.T) {
	t.Parallel()

	searchRoot := t.TempDir()
	scriptDir := t.TempDir()
	writeTree(t, scriptDir, map[string]string{
		"script.py":   "import neighbor\n",
		"neighbor.py": "",
	})

	report := bundle.NewReport()
	result, err := Analyze(context.Background(), &Options{
		EntryPoint:  filepath.Join(scriptDir, "script.py"),
		SearchPaths: []string{searchRoot},
	}, report)
	require.NoError(t, err)
	require.Equal(t, "script", result.EntryModule)
	require.Equal(t, []string{"neighbor", "script"}, moduleNames(result))
}

// TestAnalyzeMissingEntry classifies a missing entry script as a
// configuration error.
func TestAnalyzeMissingEntry(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	_, err := Analyze(context.Background(), &Options{
		EntryPoint:  filepath.Join(root, "absent.py"),
		SearchPaths: []string{root},
	}, bundle.NewReport())
	require.ErrorIs(t, err, bundle.ErrConfiguration)
}

// TestAnalyzeCompiledModule keeps sourceless bytecode as a pure record
// without scanning it.
func TestAnalyzeCompiledModule(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"main.py":            "import legacy.frozen\n",
		"legacy/__init__.py": "",
		"legacy/frozen.pyc":  "\x42\x0d\x0d\x0a junk",
	})

	report := bundle.NewReport()
	result, err := Analyze(context.Background(), &Options{
		EntryPoint:  filepath.Join(root, "main.py"),
		SearchPaths: []string{root},
	}, report)
	require.NoError(t, err)
	require.Zero(t, report.Len())

	frozen := findModule(t, result, "legacy.frozen")
	require.Equal(t, bundle.ModulePure, frozen.Kind)
	require.True(t, frozen.Compiled())
}

// TestAnalyzeCanceledContext stops the walk between modules.
func TestAnalyzeCanceledContext(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"main.py": "import a\n",
		"a.py":    "",
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Analyze(ctx, &Options{
		EntryPoint:  filepath.Join(root, "main.py"),
		SearchPaths: []string{root},
	}, bundle.NewReport())
	require.ErrorIs(t, err, context.Canceled)
}
