package stub

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/my3495/scriptpack/internal/archive"
	"github.com/my3495/scriptpack/internal/domain/bundle"
	"github.com/my3495/scriptpack/internal/overlay"
)

const (
	// EnvRuntimeDir overrides the base directory for runtime extraction.
	EnvRuntimeDir = "SCRIPTPACK_RUNTIME_DIR"
	// EnvDebug enables stderr diagnostics when set to a non-empty value.
	EnvDebug = "SCRIPTPACK_DEBUG"

	// ExitBundleError is the exit code for a launcher that could not
	// start the application at all.
	ExitBundleError = 2

	runtimeDirPattern = "scriptpack-"

	moduleFileMode   os.FileMode = 0o600
	binaryFileMode   os.FileMode = 0o755
	resourceFileMode os.FileMode = 0o644
	runtimeTreeMode  os.FileMode = 0o755
)

var (
	// errNoLaunchSpec is returned when the overlay carries no launch spec.
	errNoLaunchSpec = errors.New("bundle carries no launch spec")
	// errNoArchive is returned when the overlay carries no module archive.
	errNoArchive = errors.New("bundle carries no module archive")
)

// Run launches the application bundled into the running executable and
// returns the code the process should exit with.
func Run(ctx context.Context, argv []string) int {
	executablePath, err := os.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "scriptpack-stub: locate executable: %v\n", err)

		return ExitBundleError
	}

	code, err := Launch(ctx, executablePath, argv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scriptpack-stub: %v\n", err)

		return ExitBundleError
	}

	return code
}

// Launch runs the bundle attached to executablePath, passing argv through
// to the application. It returns the child's exit code.
func Launch(ctx context.Context, executablePath string, argv []string) (int, error) {
	debug := os.Getenv(EnvDebug) != ""

	f, err := os.Open(filepath.Clean(executablePath))
	if err != nil {
		return 0, fmt.Errorf("open executable: %w", err)
	}

	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat executable: %w", err)
	}

	reader, err := overlay.NewReader(f, info.Size())
	if err != nil {
		if errors.Is(err, overlay.ErrNoOverlay) {
			return 0, fmt.Errorf("%s carries no application bundle: %w", filepath.Base(executablePath), err)
		}

		return 0, err
	}

	spec, err := launchSpec(reader)
	if err != nil {
		return 0, err
	}

	debugf(debug, "entry %s via %s, one_file=%t", spec.EntryModule, spec.Interpreter, spec.OneFile)

	extractDir, err := runtimeDir()
	if err != nil {
		return 0, fmt.Errorf("create runtime directory: %w", err)
	}

	defer func() { _ = os.RemoveAll(extractDir) }()

	if err = extractBundle(ctx, reader, extractDir, debug); err != nil {
		return 0, err
	}

	entryPath := filepath.Join(extractDir, filepath.FromSlash(spec.EntryFile))
	if _, err = os.Stat(entryPath); err != nil {
		return 0, fmt.Errorf("entry file %q missing from bundle", spec.EntryFile)
	}

	bundleDir := filepath.Dir(executablePath)
	interpreter := resolveInterpreter(spec.Interpreter, bundleDir, extractDir)
	searchPath := extractDir + string(os.PathListSeparator) + bundleDir

	args := make([]string, 0, len(spec.InterpreterArgs)+1+len(argv))
	args = append(args, spec.InterpreterArgs...)
	args = append(args, entryPath)
	args = append(args, argv...)

	debugf(debug, "exec %s %s", interpreter, strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, interpreter, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = childEnv(os.Environ(), spec.PathEnv, searchPath)

	if err = cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}

		return 0, fmt.Errorf("run %s: %w", interpreter, err)
	}

	return 0, nil
}

func launchSpec(reader *overlay.Reader) (*bundle.LaunchSpec, error) {
	item, ok := reader.First(overlay.KindLaunchSpec)
	if !ok {
		return nil, errNoLaunchSpec
	}

	data, err := reader.Extract(item)
	if err != nil {
		return nil, fmt.Errorf("extract launch spec: %w", err)
	}

	spec := &bundle.LaunchSpec{}
	if err = yaml.Unmarshal(data, spec); err != nil {
		return nil, fmt.Errorf("decode launch spec: %w", err)
	}

	return spec, nil
}

func runtimeDir() (string, error) {
	base := os.Getenv(EnvRuntimeDir)
	if base == "" {
		base = os.TempDir()
	}

	return os.MkdirTemp(base, runtimeDirPattern)
}

// extractBundle materializes the module archive and, in single-file
// bundles, the carried binary modules and resources under extractDir.
// Overlay extraction verifies each item's digest.
func extractBundle(ctx context.Context, reader *overlay.Reader, extractDir string, debug bool) error {
	archiveItem, ok := reader.First(overlay.KindArchive)
	if !ok {
		return errNoArchive
	}

	archiveData, err := reader.Extract(archiveItem)
	if err != nil {
		return fmt.Errorf("extract module archive: %w", err)
	}

	archiveReader, err := archive.NewReader(bytes.NewReader(archiveData), int64(len(archiveData)))
	if err != nil {
		return fmt.Errorf("read module archive: %w", err)
	}

	for _, entry := range archiveReader.Entries() {
		if err = ctx.Err(); err != nil {
			return err
		}

		payload, extractErr := archiveReader.Extract(entry.Name)
		if extractErr != nil {
			return fmt.Errorf("extract module %q: %w", entry.Name, extractErr)
		}

		relPath := bundle.SourceRelPath(entry.Name, entry.Package, entry.Compiled)
		if err = writeRuntimeFile(extractDir, relPath, payload, moduleFileMode); err != nil {
			return err
		}
	}

	carried := 0

	for _, item := range reader.Items() {
		var mode os.FileMode

		switch item.Kind {
		case overlay.KindBinary:
			mode = binaryFileMode
		case overlay.KindResource:
			mode = resourceFileMode
		default:
			continue
		}

		if err = ctx.Err(); err != nil {
			return err
		}

		payload, extractErr := reader.Extract(item)
		if extractErr != nil {
			return fmt.Errorf("extract %s %q: %w", item.Kind, item.Name, extractErr)
		}

		if err = writeRuntimeFile(extractDir, item.Name, payload, mode); err != nil {
			return err
		}

		carried++
	}

	debugf(debug, "extracted %d modules and %d carried files into %s",
		archiveReader.Len(), carried, extractDir)

	return nil
}

func writeRuntimeFile(extractDir, relPath string, payload []byte, mode os.FileMode) error {
	destPath := filepath.Join(extractDir, filepath.FromSlash(relPath))

	if err := os.MkdirAll(filepath.Dir(destPath), runtimeTreeMode); err != nil {
		return fmt.Errorf("materialize %q: %w", relPath, err)
	}

	if err := os.WriteFile(destPath, payload, mode); err != nil {
		return fmt.Errorf("materialize %q: %w", relPath, err)
	}

	return nil
}

// resolveInterpreter maps the configured command to something runnable.
// Commands with a path separator are tried next to the executable and
// inside the extraction directory. Bare names go through PATH lookup.
func resolveInterpreter(command, bundleDir, extractDir string) string {
	if filepath.IsAbs(command) {
		return command
	}

	if !strings.ContainsRune(command, '/') && !strings.ContainsRune(command, '\\') {
		return command
	}

	for _, dir := range []string{bundleDir, extractDir} {
		candidate := filepath.Join(dir, filepath.FromSlash(command))
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}

	return command
}

// childEnv returns environ with the search path variable set, replacing
// any inherited value.
func childEnv(environ []string, name, value string) []string {
	prefix := name + "="
	env := make([]string, 0, len(environ)+1)

	for _, kv := range environ {
		if strings.HasPrefix(kv, prefix) {
			continue
		}

		env = append(env, kv)
	}

	return append(env, prefix+value)
}

// debugf writes launcher diagnostics to stderr. The launcher keeps the
// child's stdio untouched, so diagnostics stay off unless asked for.
func debugf(enabled bool, format string, args ...any) {
	if !enabled {
		return
	}

	fmt.Fprintf(os.Stderr, "scriptpack-stub: "+format+"\n", args...)
}
