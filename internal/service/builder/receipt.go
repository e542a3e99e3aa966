package builder

import (
	"context"
	"crypto/sha512"
	"encoding/base64"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/my3495/scriptpack/internal/config"
	"github.com/my3495/scriptpack/internal/domain/bundle"
	"github.com/my3495/scriptpack/internal/logger"
	"github.com/my3495/scriptpack/internal/repository/receipt"
	"github.com/my3495/scriptpack/internal/version"
)

// writeWarnings persists the warning report, one finding per line. The
// file is written even when empty so consumers can rely on its presence.
func (b *builder) writeWarnings() error {
	var sb strings.Builder

	for _, warning := range b.report.Warnings() {
		sb.WriteString(warning.String())
		sb.WriteByte('\n')
	}

	path := filepath.Join(b.workDir, warningsFilename)

	return os.WriteFile(path, []byte(sb.String()), config.DefaultFilePermissions)
}

func (b *builder) writeReceipt(ctx context.Context) error {
	checksums, err := b.artifactChecksums()
	if err != nil {
		return err
	}

	archived := 0

	for _, record := range b.analysis.Modules {
		if record.Archived() {
			archived++
		}
	}

	rec := &bundle.Receipt{
		BuildID:        b.buildID,
		BundlerVersion: version.Short(),
		BuiltAt:        time.Now().UTC().Format(time.RFC3339),
		Executable:     b.meta.OutputName(),
		Target:         b.meta.Target(),
		OneFile:        b.meta.OneFile,
		Modules:        archived,
		PlacedFiles:    len(b.plan),
		Warnings:       b.report.Len(),
		Checksums:      checksums,
	}

	path := filepath.Join(b.workDir, receiptFilename)
	if err = receipt.NewFileRepository(path).Save(ctx, rec); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Wrote build receipt", "path", path, "build_id", b.buildID)

	return nil
}

// artifactChecksums digests the archive, the assembled executable and
// every file the build emitted into the distribution directory.
func (b *builder) artifactChecksums() (map[string]string, error) {
	checksums := make(map[string]string)

	addFile := func(name, path string) error {
		checksum, err := fileChecksum(path)
		if err != nil {
			return err
		}

		checksums[name] = base64.StdEncoding.EncodeToString(checksum)

		return nil
	}

	if err := addFile(archiveFilename, b.archivePath); err != nil {
		return nil, err
	}

	if err := addFile(b.meta.OutputName(), b.executablePath); err != nil {
		return nil, err
	}

	if err := b.addEmittedChecksums(addFile); err != nil {
		return nil, err
	}

	if b.collected.TarballPath != "" {
		name := "dist/" + filepath.Base(b.collected.TarballPath)
		if err := addFile(name, b.collected.TarballPath); err != nil {
			return nil, err
		}
	}

	return checksums, nil
}

func (b *builder) addEmittedChecksums(addFile func(name, path string) error) error {
	outputPath := b.collected.OutputPath

	info, err := os.Stat(outputPath)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		return addFile("dist/"+filepath.Base(outputPath), outputPath)
	}

	return filepath.WalkDir(outputPath, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if entry.IsDir() {
			return nil
		}

		relPath, relErr := filepath.Rel(b.cfg.DistPath, path)
		if relErr != nil {
			return relErr
		}

		return addFile("dist/"+filepath.ToSlash(relPath), path)
	})
}

func fileChecksum(path string) ([]byte, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	defer func() { _ = f.Close() }()

	hasher := sha512.New()
	if _, err = io.Copy(hasher, f); err != nil {
		return nil, err
	}

	return hasher.Sum(nil), nil
}
