package builder

import (
	"bytes"
	"context"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/my3495/scriptpack/internal/archive"
	"github.com/my3495/scriptpack/internal/assembler"
	"github.com/my3495/scriptpack/internal/domain/bundle"
	"github.com/my3495/scriptpack/internal/overlay"
	"github.com/my3495/scriptpack/internal/repository/receipt"
)

const fixtureApp = "spk-buildtest"

func boolPtr(v bool) *bool {
	return &v
}

// writeFixtureProject lays out a small application with a pure package,
// a binary module and a data directory.
func writeFixtureProject(t *testing.T) string {
	t.Helper()

	project := t.TempDir()
	files := map[string]string{
		"main.py":            "import util\nimport native.fast\nfrom pkg import helper\n",
		"util.py":            "VERSION = \"1\"\n",
		"native/__init__.py": "",
		"native/fast.so":     "\x7fELF fake shared object",
		"pkg/__init__.py":    "",
		"pkg/helper.py":      "def run():\n    return 0\n",
		"assets/data.txt":    "payload",
	}

	for rel, content := range files {
		path := filepath.Join(project, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	return project
}

// writeStub drops a fake prebuilt launcher for meta into stubDir.
func writeStub(t *testing.T, stubDir string, meta bundle.Metadata) []byte {
	t.Helper()

	stubBytes := []byte("FAKE STUB MACHINE CODE FOR " + meta.Target())
	path := filepath.Join(stubDir, assembler.StubFileName(meta))
	require.NoError(t, os.WriteFile(path, stubBytes, 0o755))

	return stubBytes
}

func writeManifest(t *testing.T, project, target, stubDir string) string {
	t.Helper()

	manifest := fmt.Sprintf(`app_name: %s
entry_point: main.py
search_paths: ["."]
resources:
  - name: assets
    source: assets
    dest: assets
    kind: dir
target: %s
one_file: false
compress_modules: true
runtime:
  interpreter: python3
stub_dir: %q
dist_path: %q
work_path: %q
`, fixtureApp, target, stubDir, filepath.Join(project, "dist"), filepath.Join(project, "build"))

	path := filepath.Join(project, "scriptpack.yaml")
	require.NoError(t, os.WriteFile(path, []byte(manifest), 0o600))

	return path
}

func loadReceipt(t *testing.T, project string) *bundle.Receipt {
	t.Helper()

	path := filepath.Join(project, "build", fixtureApp, receiptFilename)

	rec, err := receipt.NewFileRepository(path).Load(context.Background())
	require.NoError(t, err)

	return rec
}

// TestRunBuildsDirDistribution drives the whole pipeline and inspects the
// published tree, the embedded overlay and the work-tree artifacts.
func TestRunBuildsDirDistribution(t *testing.T) {
	project := writeFixtureProject(t)
	stubDir := t.TempDir()

	meta := bundle.Metadata{ExecutableName: fixtureApp, TargetOS: "linux", TargetArch: "amd64"}
	stubBytes := writeStub(t, stubDir, meta)
	manifestPath := writeManifest(t, project, "linux/amd64", stubDir)

	t.Chdir(project)

	require.NoError(t, Run(context.Background(), &Options{ConfigPath: manifestPath}))

	outputDir := filepath.Join(project, "dist", fixtureApp)

	program, err := os.ReadFile(filepath.Join(outputDir, fixtureApp))
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(program, stubBytes))

	require.FileExists(t, filepath.Join(outputDir, "native", "fast.so"))

	data, err := os.ReadFile(filepath.Join(outputDir, "assets", "data.txt"))
	require.NoError(t, err)
	require.Equal(t, "payload", string(data))

	reader, err := overlay.NewReader(bytes.NewReader(program), int64(len(program)))
	require.NoError(t, err)

	specItem, ok := reader.First(overlay.KindLaunchSpec)
	require.True(t, ok)

	specData, err := reader.Extract(specItem)
	require.NoError(t, err)

	spec := &bundle.LaunchSpec{}
	require.NoError(t, yaml.Unmarshal(specData, spec))
	require.Equal(t, "main", spec.EntryModule)
	require.Equal(t, "main.py", spec.EntryFile)
	require.Equal(t, "python3", spec.Interpreter)
	require.False(t, spec.OneFile)

	archiveItem, ok := reader.First(overlay.KindArchive)
	require.True(t, ok)

	archiveData, err := reader.Extract(archiveItem)
	require.NoError(t, err)

	archiveReader, err := archive.NewReader(bytes.NewReader(archiveData), int64(len(archiveData)))
	require.NoError(t, err)

	names := make([]string, 0, archiveReader.Len())
	for _, info := range archiveReader.Entries() {
		names = append(names, info.Name)
	}

	require.Equal(t, []string{"main", "native", "pkg", "pkg.helper", "util"}, names)

	workTree := filepath.Join(project, "build", fixtureApp)
	require.FileExists(t, filepath.Join(workTree, archiveFilename))

	warnings, err := os.ReadFile(filepath.Join(workTree, warningsFilename))
	require.NoError(t, err)
	require.Empty(t, warnings)

	rec := loadReceipt(t, project)
	require.NotEmpty(t, rec.BuildID)
	require.Equal(t, fixtureApp, rec.Executable)
	require.Equal(t, "linux/amd64", rec.Target)
	require.Equal(t, 5, rec.Modules)
	require.Equal(t, 2, rec.PlacedFiles)
	require.Zero(t, rec.Warnings)

	archiveSum, err := os.ReadFile(filepath.Join(workTree, archiveFilename))
	require.NoError(t, err)

	digest := sha512.Sum512(archiveSum)
	require.Equal(t, base64.StdEncoding.EncodeToString(digest[:]), rec.Checksums[archiveFilename])

	require.Contains(t, rec.Checksums, "dist/"+fixtureApp+"/"+fixtureApp)
	require.Contains(t, rec.Checksums, "dist/"+fixtureApp+"/assets/data.txt")
	require.Contains(t, rec.Checksums, "dist/"+fixtureApp+"/native/fast.so")
}

// TestRunOneFileOverride forces single-file output from the command line
// and checks that the plan rides inside the executable.
func TestRunOneFileOverride(t *testing.T) {
	project := writeFixtureProject(t)
	stubDir := t.TempDir()

	meta := bundle.Metadata{ExecutableName: fixtureApp, TargetOS: "linux", TargetArch: "amd64"}
	writeStub(t, stubDir, meta)
	manifestPath := writeManifest(t, project, "linux/amd64", stubDir)

	t.Chdir(project)

	require.NoError(t, Run(context.Background(), &Options{
		ConfigPath: manifestPath,
		OneFile:    boolPtr(true),
	}))

	outputPath := filepath.Join(project, "dist", fixtureApp)

	info, err := os.Stat(outputPath)
	require.NoError(t, err)
	require.False(t, info.IsDir())

	program, err := os.ReadFile(outputPath)
	require.NoError(t, err)

	reader, err := overlay.NewReader(bytes.NewReader(program), int64(len(program)))
	require.NoError(t, err)

	kinds := make(map[overlay.Kind][]string)
	for _, item := range reader.Items() {
		kinds[item.Kind] = append(kinds[item.Kind], item.Name)
	}

	require.Equal(t, []string{"native/fast.so"}, kinds[overlay.KindBinary])
	require.Equal(t, []string{"assets/data.txt"}, kinds[overlay.KindResource])

	rec := loadReceipt(t, project)
	require.True(t, rec.OneFile)
	require.Contains(t, rec.Checksums, "dist/"+fixtureApp)
}

// TestRunTargetOverride cross-bundles for windows and expects the
// matching stub variant and output name.
func TestRunTargetOverride(t *testing.T) {
	project := writeFixtureProject(t)
	stubDir := t.TempDir()

	meta := bundle.Metadata{ExecutableName: fixtureApp, TargetOS: "windows", TargetArch: "amd64"}
	writeStub(t, stubDir, meta)
	manifestPath := writeManifest(t, project, "linux/amd64", stubDir)

	t.Chdir(project)

	require.NoError(t, Run(context.Background(), &Options{
		ConfigPath: manifestPath,
		Target:     "windows/amd64",
	}))

	require.FileExists(t, filepath.Join(project, "dist", fixtureApp, fixtureApp+".exe"))

	rec := loadReceipt(t, project)
	require.Equal(t, "windows/amd64", rec.Target)
	require.Equal(t, fixtureApp+".exe", rec.Executable)
}

// TestRunMissingEntryFails stops before any output is produced when the
// entry script does not exist.
func TestRunMissingEntryFails(t *testing.T) {
	project := writeFixtureProject(t)
	stubDir := t.TempDir()
	manifestPath := writeManifest(t, project, "linux/amd64", stubDir)

	require.NoError(t, os.Remove(filepath.Join(project, "main.py")))

	t.Chdir(project)

	err := Run(context.Background(), &Options{ConfigPath: manifestPath})
	require.ErrorIs(t, err, bundle.ErrConfiguration)

	_, err = os.Stat(filepath.Join(project, "dist"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestRunCleanWipesWorkTree rebuilds with --clean and expects stale work
// files to disappear.
func TestRunCleanWipesWorkTree(t *testing.T) {
	project := writeFixtureProject(t)
	stubDir := t.TempDir()

	meta := bundle.Metadata{ExecutableName: fixtureApp, TargetOS: "linux", TargetArch: "amd64"}
	writeStub(t, stubDir, meta)
	manifestPath := writeManifest(t, project, "linux/amd64", stubDir)

	stale := filepath.Join(project, "build", fixtureApp, "stale.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	t.Chdir(project)

	require.NoError(t, Run(context.Background(), &Options{
		ConfigPath: manifestPath,
		Clean:      true,
	}))

	_, err := os.Stat(stale)
	require.ErrorIs(t, err, os.ErrNotExist)

	require.FileExists(t, filepath.Join(project, "build", fixtureApp, receiptFilename))
}
