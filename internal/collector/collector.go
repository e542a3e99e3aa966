package collector

import (
	"bytes"
	"context"
	"crypto"

	// Registers the hash used for install verification.
	_ "crypto/sha512"
	"fmt"
	"io"
	"os"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"
	"github.com/google/uuid"
	"github.com/mitchellh/go-ps"
	"golang.org/x/sync/errgroup"

	"github.com/my3495/scriptpack/internal/domain/bundle"
	"github.com/my3495/scriptpack/internal/logger"
)

const (
	// DefaultCopyWorkers bounds the number of files copied concurrently.
	DefaultCopyWorkers = 4
	// DefaultExecutableMode is applied to published program files.
	DefaultExecutableMode os.FileMode = 0o755
	// DefaultPlacedMode is applied to published files without an executable bit.
	DefaultPlacedMode os.FileMode = 0o644
	// DefaultDirectoryMode is applied to directories in the distribution tree.
	DefaultDirectoryMode os.FileMode = 0o755
	// DefaultInstallHash verifies the program bytes during single-file installs.
	DefaultInstallHash = crypto.SHA512

	stagingPrefix = ".scriptpack-"
)

// Options configures distribution collection.
type Options struct {
	// Metadata describes the bundle being published.
	Metadata bundle.Metadata
	// ExecutablePath locates the assembled program file in the work tree.
	ExecutablePath string
	// Plan lists the files placed next to the executable.
	// Ignored in single-file mode, where the plan rides inside the program.
	Plan []bundle.PlacedFile
	// DistPath is the directory receiving the finished distribution.
	DistPath string
	// Compress additionally produces a tar.xz of the distribution.
	Compress bool
	// Workers overrides the copy concurrency. Zero means DefaultCopyWorkers.
	Workers int
}

// Result reports where the distribution landed.
type Result struct {
	// OutputPath is the published directory, or the program file in
	// single-file mode.
	OutputPath string
	// TarballPath is the compressed distribution, when requested.
	TarballPath string
}

// Collect publishes the assembled executable into the distribution
// directory. Directory mode stages the tree under a hidden name and renames
// it into place so a failed build never leaves a half-written distribution.
// Single-file mode installs the program with checksum verification.
func Collect(ctx context.Context, opts *Options, report *bundle.Report) (*Result, error) {
	warnIfTargetRunning(ctx, opts.Metadata.OutputName(), report)

	distPath := filepath.Clean(opts.DistPath)
	if err := os.MkdirAll(distPath, DefaultDirectoryMode); err != nil {
		return nil, bundle.AsAssembly(err)
	}

	var (
		result *Result
		err    error
	)

	if opts.Metadata.OneFile {
		result, err = collectOneFile(ctx, opts, distPath)
	} else {
		result, err = collectOneDir(ctx, opts, distPath)
	}

	if err != nil {
		return nil, err
	}

	if opts.Compress {
		result.TarballPath, err = compressOutput(ctx, opts.Metadata, result.OutputPath, distPath)
		if err != nil {
			return nil, err
		}
	}

	logger.InfoKV(ctx, "Distribution ready", "output", result.OutputPath)

	return result, nil
}

func collectOneDir(ctx context.Context, opts *Options, distPath string) (*Result, error) {
	stagingPath := filepath.Join(distPath, stagingPrefix+uuid.NewString())
	if err := os.MkdirAll(stagingPath, DefaultDirectoryMode); err != nil {
		return nil, bundle.AsAssembly(err)
	}

	if err := fillStaging(ctx, opts, stagingPath); err != nil {
		// Best-effort cleanup.
		_ = os.RemoveAll(stagingPath)

		return nil, err
	}

	finalPath := filepath.Join(distPath, opts.Metadata.ExecutableName)

	// Replace a distribution left by an earlier build.
	if err := os.RemoveAll(finalPath); err != nil {
		_ = os.RemoveAll(stagingPath)

		return nil, bundle.AsAssembly(err)
	}

	if err := os.Rename(stagingPath, finalPath); err != nil {
		_ = os.RemoveAll(stagingPath)

		return nil, bundle.AsAssembly(err)
	}

	return &Result{OutputPath: finalPath}, nil
}

// fillStaging copies the program and every planned file into the staging
// tree, fanning the copies out over a bounded worker group.
func fillStaging(ctx context.Context, opts *Options, stagingPath string) error {
	programPath := filepath.Join(stagingPath, opts.Metadata.OutputName())
	if err := copyFile(opts.ExecutablePath, programPath, DefaultExecutableMode); err != nil {
		return bundle.AsAssembly(err)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultCopyWorkers
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(workers)

	for _, placed := range opts.Plan {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			destPath := filepath.Join(stagingPath, filepath.FromSlash(placed.DestPath))
			if err := copyFile(placed.SourcePath, destPath, placementMode(placed.SourcePath)); err != nil {
				return fmt.Errorf("place %q: %w", placed.DestPath, err)
			}

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return bundle.AsAssembly(err)
	}

	logger.DebugKV(ctx, "Distribution files copied", "files", len(opts.Plan)+1)

	return nil
}

// collectOneFile installs the assembled program as a single file,
// verifying the written bytes against their checksum.
func collectOneFile(ctx context.Context, opts *Options, distPath string) (*Result, error) {
	data, err := os.ReadFile(opts.ExecutablePath)
	if err != nil {
		return nil, bundle.AsAssembly(err)
	}

	hasher := DefaultInstallHash.New()
	_, _ = hasher.Write(data)
	checksum := hasher.Sum(nil)

	targetPath := filepath.Join(distPath, opts.Metadata.OutputName())

	// The install library updates in place, so the target has to exist.
	if _, err = os.Stat(targetPath); err != nil && os.IsNotExist(err) {
		var created *os.File

		if created, err = os.Create(targetPath); err != nil {
			return nil, bundle.AsAssembly(err)
		}

		_ = created.Close()
	}

	options := &goupdate.Options{
		TargetPath: targetPath,
		TargetMode: DefaultExecutableMode,
		Checksum:   checksum,
		Hash:       DefaultInstallHash,
	}

	if err = goupdate.Apply(bytes.NewReader(data), *options); err != nil {
		return nil, bundle.AsAssembly(err)
	}

	oldPath := targetPath + ".old"
	if _, err = os.Stat(oldPath); err == nil {
		_ = os.Remove(oldPath)
	}

	logger.DebugKV(ctx, "Installed program file", "path", targetPath)

	return &Result{OutputPath: targetPath}, nil
}

// warnIfTargetRunning reports processes already running a program with the
// output name. Publishing over a running executable fails on some platforms.
func warnIfTargetRunning(ctx context.Context, executableName string, report *bundle.Report) {
	processes, err := ps.Processes()
	if err != nil {
		logger.Debugf(ctx, "Process scan unavailable: %v", err)

		return
	}

	ownPID := os.Getpid()

	for _, process := range processes {
		if process.Pid() == ownPID {
			continue
		}

		if process.Executable() != executableName {
			continue
		}

		report.Addf(bundle.WarnTargetRunning, "process %d is running %q, publishing may fail",
			process.Pid(), executableName)

		return
	}
}

func copyFile(sourcePath, destPath string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(destPath), DefaultDirectoryMode); err != nil {
		return err
	}

	in, err := os.Open(filepath.Clean(sourcePath))
	if err != nil {
		return err
	}

	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(filepath.Clean(destPath), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}

	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()

		return err
	}

	if err = out.Close(); err != nil {
		return err
	}

	// The mode passed to OpenFile is narrowed by the umask.
	return os.Chmod(destPath, mode)
}

// placementMode normalizes permissions so repeated builds agree.
// Only the executable bit of the source survives.
func placementMode(sourcePath string) os.FileMode {
	info, err := os.Stat(sourcePath)
	if err == nil && info.Mode()&0o111 != 0 {
		return DefaultExecutableMode
	}

	return DefaultPlacedMode
}
