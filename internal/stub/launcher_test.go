package stub

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/my3495/scriptpack/internal/archive"
	"github.com/my3495/scriptpack/internal/domain/bundle"
	"github.com/my3495/scriptpack/internal/overlay"
)

// requirePOSIXShell skips launch tests on hosts without /bin/sh.
func requirePOSIXShell(t *testing.T) {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("launch tests need a POSIX shell")
	}
}

type carriedFile struct {
	kind    overlay.Kind
	name    string
	payload []byte
}

// buildBundle writes a fake bundled executable and returns its path.
func buildBundle(t *testing.T, dir string, spec bundle.LaunchSpec, modules []archive.Entry, carried []carriedFile) string {
	t.Helper()

	var archiveBuf bytes.Buffer
	require.NoError(t, archive.Write(&archiveBuf, modules, true))

	specData, err := yaml.Marshal(&spec)
	require.NoError(t, err)

	var out bytes.Buffer
	out.WriteString("FAKE STUB MACHINE CODE")

	w := overlay.NewWriter(&out, true)
	require.NoError(t, w.Add(overlay.KindLaunchSpec, "launch-spec", specData))
	require.NoError(t, w.Add(overlay.KindArchive, "modules.spkz", archiveBuf.Bytes()))

	for _, file := range carried {
		require.NoError(t, w.Add(file.kind, file.name, file.payload))
	}

	require.NoError(t, w.Close())

	path := filepath.Join(dir, "bundled")
	require.NoError(t, os.WriteFile(path, out.Bytes(), 0o755))

	return path
}

func shellSpec() bundle.LaunchSpec {
	return bundle.LaunchSpec{
		EntryModule: "main",
		EntryFile:   "main.py",
		Interpreter: "/bin/sh",
		PathEnv:     "SPK_PATH",
	}
}

// TestLaunchRunsEntry extracts a bundle, runs its entry through the
// configured interpreter and propagates the exit code. The entry checks
// that the search path variable reached the child.
func TestLaunchRunsEntry(t *testing.T) {
	t.Parallel()
	requirePOSIXShell(t)

	script := "if [ -z \"$SPK_PATH\" ]; then exit 9; fi\nexit 7\n"
	path := buildBundle(t, t.TempDir(), shellSpec(), []archive.Entry{
		{Name: "main", Payload: []byte(script)},
	}, nil)

	code, err := Launch(context.Background(), path, nil)
	require.NoError(t, err)
	require.Equal(t, 7, code)
}

// TestLaunchPassesArgv forwards program arguments to the entry.
func TestLaunchPassesArgv(t *testing.T) {
	t.Parallel()
	requirePOSIXShell(t)

	path := buildBundle(t, t.TempDir(), shellSpec(), []archive.Entry{
		{Name: "main", Payload: []byte("exit $#\n")},
	}, nil)

	code, err := Launch(context.Background(), path, []string{"--flag", "value", "input.txt"})
	require.NoError(t, err)
	require.Equal(t, 3, code)
}

// TestLaunchMaterializesCarriedFiles checks that single-file bundles land
// their binary modules and resources next to the extracted sources.
func TestLaunchMaterializesCarriedFiles(t *testing.T) {
	t.Parallel()
	requirePOSIXShell(t)

	script := "cd \"$(dirname \"$0\")\" || exit 4\n" +
		"test -f native/fast.so || exit 5\n" +
		"test -f assets/data.txt || exit 6\n" +
		"test -f pkg/__init__.py || exit 8\n" +
		"exit 0\n"

	spec := shellSpec()
	spec.OneFile = true

	path := buildBundle(t, t.TempDir(), spec, []archive.Entry{
		{Name: "main", Payload: []byte(script)},
		{Name: "pkg", Payload: []byte(""), Package: true},
	}, []carriedFile{
		{kind: overlay.KindBinary, name: "native/fast.so", payload: []byte("elf")},
		{kind: overlay.KindResource, name: "assets/data.txt", payload: []byte("data")},
	})

	code, err := Launch(context.Background(), path, nil)
	require.NoError(t, err)
	require.Zero(t, code)
}

// TestLaunchRuntimeDirOverride extracts under the configured base and
// removes the runtime directory after the application exits.
func TestLaunchRuntimeDirOverride(t *testing.T) {
	requirePOSIXShell(t)

	base := t.TempDir()
	t.Setenv(EnvRuntimeDir, base)

	path := buildBundle(t, t.TempDir(), shellSpec(), []archive.Entry{
		{Name: "main", Payload: []byte("exit 0\n")},
	}, nil)

	code, err := Launch(context.Background(), path, nil)
	require.NoError(t, err)
	require.Zero(t, code)

	leftovers, err := os.ReadDir(base)
	require.NoError(t, err)
	require.Empty(t, leftovers)
}

// TestLaunchNoOverlay rejects an executable without an attached bundle.
func TestLaunchNoOverlay(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "plain")
	require.NoError(t, os.WriteFile(path, []byte("just a program, no overlay footer here"), 0o755))

	_, err := Launch(context.Background(), path, nil)
	require.ErrorIs(t, err, overlay.ErrNoOverlay)
}

// TestLaunchMissingEntry rejects a bundle whose archive lacks the entry.
func TestLaunchMissingEntry(t *testing.T) {
	t.Parallel()
	requirePOSIXShell(t)

	path := buildBundle(t, t.TempDir(), shellSpec(), []archive.Entry{
		{Name: "other", Payload: []byte("exit 0\n")},
	}, nil)

	_, err := Launch(context.Background(), path, nil)
	require.ErrorContains(t, err, "missing from bundle")
}

// TestResolveInterpreter covers the lookup order for interpreter commands.
func TestResolveInterpreter(t *testing.T) {
	t.Parallel()

	bundleDir := t.TempDir()
	extractDir := t.TempDir()

	bundled := filepath.Join(bundleDir, "runtime", "py")
	require.NoError(t, os.MkdirAll(filepath.Dir(bundled), 0o755))
	require.NoError(t, os.WriteFile(bundled, []byte("#!"), 0o755))

	extracted := filepath.Join(extractDir, "tools", "py")
	require.NoError(t, os.MkdirAll(filepath.Dir(extracted), 0o755))
	require.NoError(t, os.WriteFile(extracted, []byte("#!"), 0o755))

	tests := []struct {
		name     string
		command  string
		expected string
	}{
		{
			name:     "absolute_untouched",
			command:  "/usr/bin/python3",
			expected: "/usr/bin/python3",
		},
		{
			name:     "bare_name_uses_path_lookup",
			command:  "python3",
			expected: "python3",
		},
		{
			name:     "relative_found_in_bundle_dir",
			command:  "runtime/py",
			expected: bundled,
		},
		{
			name:     "relative_found_in_extract_dir",
			command:  "tools/py",
			expected: extracted,
		},
		{
			name:     "relative_unfound_passed_through",
			command:  "missing/py",
			expected: "missing/py",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tt.expected, resolveInterpreter(tt.command, bundleDir, extractDir))
		})
	}
}

// TestChildEnv replaces an inherited value and appends a fresh one.
func TestChildEnv(t *testing.T) {
	t.Parallel()

	env := childEnv([]string{"HOME=/home/u", "SPK_PATH=/stale"}, "SPK_PATH", "/fresh")
	require.Equal(t, []string{"HOME=/home/u", "SPK_PATH=/fresh"}, env)

	env = childEnv([]string{"HOME=/home/u"}, "PYTHONPATH", "/roots")
	require.Equal(t, []string{"HOME=/home/u", "PYTHONPATH=/roots"}, env)
}
