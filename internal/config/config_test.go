package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/my3495/scriptpack/internal/domain/bundle"
)

func validConfig() *Config {
	return &Config{
		AppName:    "FileTool",
		EntryPoint: "app/main.py",
	}
}

// TestValidate checks required fields and format validations for the manifest.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Empty manifest.
	err := Validate(new(Config))
	require.ErrorIs(t, err, errAppNameRequired)

	// App name with separators.
	cfg := validConfig()
	cfg.AppName = "dist/FileTool"
	require.ErrorIs(t, Validate(cfg), errAppNameInvalid)

	// Missing entry point.
	cfg = validConfig()
	cfg.EntryPoint = ""
	require.ErrorIs(t, Validate(cfg), errEntryPointRequired)

	// Entry point without source suffix.
	cfg = validConfig()
	cfg.EntryPoint = "app/main"
	require.ErrorIs(t, Validate(cfg), errEntryPointInvalid)

	// Malformed hidden import.
	cfg = validConfig()
	cfg.HiddenImports = []string{"pkg..plugin"}
	require.ErrorIs(t, Validate(cfg), errModuleNameInvalid)

	// Malformed exclude.
	cfg = validConfig()
	cfg.Excludes = []string{"1pkg"}
	require.ErrorIs(t, Validate(cfg), errModuleNameInvalid)

	// Malformed target.
	cfg = validConfig()
	cfg.Target = "windows-amd64"
	require.ErrorIs(t, Validate(cfg), errTargetInvalid)

	// Unknown resource kind.
	cfg = validConfig()
	cfg.Resources = []Resource{{Name: "assets", Source: "assets", Dest: "assets", Kind: "tree"}}
	require.ErrorIs(t, Validate(cfg), errResourceKindInvalid)

	// Duplicate resource destinations.
	cfg = validConfig()
	cfg.Resources = []Resource{
		{Name: "readme", Source: "docs/readme.txt", Dest: "readme.txt"},
		{Name: "notes", Source: "docs/notes.txt", Dest: "readme.txt"},
	}
	require.ErrorIs(t, Validate(cfg), errResourceDestDuplicate)

	// Minimal valid manifest.
	cfg = validConfig()
	require.NoError(t, Validate(cfg))
}

// TestValidateDefaults ensures omitted settings receive their defaults.
func TestValidateDefaults(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	require.NoError(t, Validate(cfg))

	require.Equal(t, []string{"."}, cfg.SearchPaths)
	require.Equal(t, DefaultInterpreter, cfg.Runtime.Interpreter)
	require.Equal(t, DefaultPathEnv, cfg.Runtime.PathEnv)
	require.Equal(t, DefaultStubDir, cfg.StubDir)
	require.Equal(t, DefaultDistDir, cfg.DistPath)
	require.Equal(t, DefaultWorkDir, cfg.WorkPath)
	require.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, cfg.Target)
}

// TestMetadata verifies the conversion into executable-facing settings.
func TestMetadata(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Target = "windows/amd64"
	cfg.Windowed = true
	cfg.OneFile = true
	cfg.Icon = "icons/app.ico"
	require.NoError(t, Validate(cfg))

	meta := cfg.Metadata()
	require.Equal(t, "FileTool", meta.ExecutableName)
	require.Equal(t, "windows", meta.TargetOS)
	require.Equal(t, "amd64", meta.TargetArch)
	require.Equal(t, "icons/app.ico", meta.IconPath)
	require.True(t, meta.Windowed)
	require.True(t, meta.OneFile)
}

// TestResourceEntries verifies resource conversion including kind defaulting.
func TestResourceEntries(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Resources = []Resource{
		{Name: "readme", Source: "docs/readme.txt", Dest: "readme.txt"},
		{Name: "assets", Source: "assets", Dest: "data/assets", Kind: "dir"},
	}
	require.NoError(t, Validate(cfg))

	entries, err := cfg.ResourceEntries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, bundle.ResourceFile, entries[0].Kind)
	require.Equal(t, bundle.ResourceDir, entries[1].Kind)
	require.Equal(t, "data/assets", entries[1].DestPath)
}

// TestSaveLoadRoundtrip ensures a manifest is persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "scriptpack.yaml")

	cfg := &Config{
		AppName:       "FileTool",
		EntryPoint:    "app/main.py",
		SearchPaths:   []string{".", "src"},
		HiddenImports: []string{"pkg.plugin"},
		Target:        "linux/amd64",
		Windowed:      false,
	}

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.AppName, loaded.AppName)
	require.Equal(t, cfg.EntryPoint, loaded.EntryPoint)
	require.Equal(t, cfg.SearchPaths, loaded.SearchPaths)
	require.Equal(t, cfg.HiddenImports, loaded.HiddenImports)
	require.Equal(t, cfg.Target, loaded.Target)

	// File exists.
	_, err = os.Stat(path)
	require.NoError(t, err)
}
