package assembler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/my3495/scriptpack/internal/domain/bundle"
	"github.com/my3495/scriptpack/internal/logger"
	"github.com/my3495/scriptpack/internal/overlay"
)

// Overlay item names. Lookup happens by kind; the names serve listings.
const (
	itemLaunchSpec  = "launch-spec"
	itemArchive     = "modules.spkz"
	itemVersionInfo = "version-info"
)

// stubPrefix is the base name shared by all launcher stubs.
const stubPrefix = "scriptpack-stub"

// executableMode is forced on the produced file regardless of umask.
const executableMode = 0o755

// Options configure one assembly.
type Options struct {
	// StubDir holds the prebuilt launcher stubs.
	StubDir string
	// Metadata carries the executable-facing build settings.
	Metadata bundle.Metadata
	// LaunchSpec is serialized into the overlay for the launcher.
	LaunchSpec bundle.LaunchSpec
	// ArchivePath is the packed module archive to embed.
	ArchivePath string
	// Embed lists the placements carried inside the executable in
	// one-file mode. Empty in one-dir mode.
	Embed []bundle.PlacedFile
	// OutputPath is where the assembled executable is written.
	OutputPath string
	// Compress deflates overlay items that shrink.
	Compress bool
}

// Assemble writes the bundled executable: stub first, overlay behind it.
// Malformed icon or version metadata degrades to a warning; a missing
// stub for the requested target is fatal.
func Assemble(ctx context.Context, opts *Options, report *bundle.Report) error {
	stubPath := filepath.Join(opts.StubDir, StubFileName(opts.Metadata))

	stub, err := os.Open(stubPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return bundle.Assemblyf("launcher stub for %s not found at %q",
				opts.Metadata.Target(), stubPath)
		}

		return bundle.AsAssembly(fmt.Errorf("open launcher stub: %w", err))
	}

	defer func() {
		_ = stub.Close()
	}()

	specData, err := yaml.Marshal(opts.LaunchSpec)
	if err != nil {
		return bundle.AsInternal(fmt.Errorf("marshal launch spec: %w", err))
	}

	archiveData, err := os.ReadFile(opts.ArchivePath)
	if err != nil {
		return bundle.AsInternal(fmt.Errorf("read module archive: %w", err))
	}

	iconData := loadIcon(ctx, opts.Metadata.IconPath, report)
	versionData := loadVersionInfo(ctx, opts.Metadata.VersionInfoPath, report)

	out, err := os.OpenFile(opts.OutputPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, executableMode)
	if err != nil {
		return bundle.AsInternal(fmt.Errorf("create executable: %w", err))
	}

	if err := writeExecutable(ctx, out, stub, opts, specData, archiveData, iconData, versionData); err != nil {
		// Best-effort cleanup of the failed artifact.
		_ = out.Close()
		_ = os.Remove(opts.OutputPath)

		return err
	}

	if err := out.Close(); err != nil {
		return bundle.AsInternal(fmt.Errorf("close executable: %w", err))
	}

	// The mode passed to OpenFile is narrowed by the umask.
	if err := os.Chmod(opts.OutputPath, executableMode); err != nil {
		return bundle.AsInternal(fmt.Errorf("chmod executable: %w", err))
	}

	logger.InfoKV(ctx, "executable assembled",
		"output", opts.OutputPath,
		"stub", stubPath,
		"embedded", len(opts.Embed))

	return nil
}

func writeExecutable(
	ctx context.Context,
	out io.Writer,
	stub io.Reader,
	opts *Options,
	specData, archiveData, iconData, versionData []byte,
) error {
	if _, err := io.Copy(out, stub); err != nil {
		return bundle.AsAssembly(fmt.Errorf("copy stub: %w", err))
	}

	w := overlay.NewWriter(out, opts.Compress)

	if err := w.Add(overlay.KindLaunchSpec, itemLaunchSpec, specData); err != nil {
		return bundle.AsInternal(err)
	}

	if err := w.Add(overlay.KindArchive, itemArchive, archiveData); err != nil {
		return bundle.AsInternal(err)
	}

	for _, placed := range opts.Embed {
		if err := ctx.Err(); err != nil {
			return err
		}

		data, err := os.ReadFile(placed.SourcePath)
		if err != nil {
			return bundle.AsAssembly(fmt.Errorf("read %q: %w", placed.SourcePath, err))
		}

		kind := overlay.KindBinary
		if placed.FromResource {
			kind = overlay.KindResource
		}

		if err := w.Add(kind, placed.DestPath, data); err != nil {
			return bundle.AsInternal(err)
		}
	}

	if iconData != nil {
		name := filepath.Base(opts.Metadata.IconPath)
		if err := w.Add(overlay.KindIcon, name, iconData); err != nil {
			return bundle.AsInternal(err)
		}
	}

	if versionData != nil {
		if err := w.Add(overlay.KindVersionInfo, itemVersionInfo, versionData); err != nil {
			return bundle.AsInternal(err)
		}
	}

	if err := w.Close(); err != nil {
		return bundle.AsAssembly(err)
	}

	return nil
}

// StubFileName derives the stub file name for a target:
// scriptpack-stub-<os>-<arch>, -windowed for GUI variants, .exe on Windows.
func StubFileName(meta bundle.Metadata) string {
	name := fmt.Sprintf("%s-%s-%s", stubPrefix, meta.TargetOS, meta.TargetArch)

	if meta.Windowed {
		name += "-windowed"
	}

	if meta.TargetOS == "windows" {
		name += ".exe"
	}

	return name
}
