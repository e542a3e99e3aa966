package collector

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/ulikunitz/xz"

	"github.com/my3495/scriptpack/internal/domain/bundle"
	"github.com/my3495/scriptpack/internal/logger"
)

// tarballEntry pairs an on-disk file with its name inside the archive.
type tarballEntry struct {
	archiveName string
	sourcePath  string
}

// compressOutput wraps the published distribution in a tar.xz placed next
// to it, named after the program and its target platform.
func compressOutput(ctx context.Context, meta bundle.Metadata, outputPath, distPath string) (string, error) {
	tarballName := fmt.Sprintf("%s-%s-%s.tar.xz", meta.ExecutableName, meta.TargetOS, meta.TargetArch)
	tarballPath := filepath.Join(distPath, tarballName)

	if err := writeTarball(ctx, tarballPath, outputPath); err != nil {
		// Best-effort cleanup.
		_ = os.Remove(tarballPath)

		return "", bundle.AsAssembly(err)
	}

	logger.InfoKV(ctx, "Compressed distribution", "tarball", tarballPath)

	return tarballPath, nil
}

// writeTarball archives a file or a directory tree deterministically:
// entries sorted by name, timestamps fixed at the epoch, ownership zeroed
// and permissions reduced to the executable bit. Equal inputs produce
// byte-identical tarballs.
func writeTarball(ctx context.Context, tarballPath, outputPath string) error {
	entries, err := tarballEntries(outputPath)
	if err != nil {
		return err
	}

	out, err := os.Create(filepath.Clean(tarballPath))
	if err != nil {
		return err
	}

	xzWriter, err := xz.NewWriter(out)
	if err != nil {
		_ = out.Close()

		return err
	}

	tarWriter := tar.NewWriter(xzWriter)

	for _, entry := range entries {
		if err = ctx.Err(); err != nil {
			break
		}

		if err = appendTarballEntry(tarWriter, entry); err != nil {
			break
		}
	}

	if err != nil {
		_ = tarWriter.Close()
		_ = xzWriter.Close()
		_ = out.Close()

		return err
	}

	if err = tarWriter.Close(); err != nil {
		_ = xzWriter.Close()
		_ = out.Close()

		return err
	}

	if err = xzWriter.Close(); err != nil {
		_ = out.Close()

		return err
	}

	return out.Close()
}

func appendTarballEntry(tarWriter *tar.Writer, entry tarballEntry) error {
	info, err := os.Stat(entry.sourcePath)
	if err != nil {
		return err
	}

	header := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     entry.archiveName,
		Size:     info.Size(),
		Mode:     int64(placementMode(entry.sourcePath)),
		ModTime:  time.Unix(0, 0).UTC(),
	}

	if err = tarWriter.WriteHeader(header); err != nil {
		return err
	}

	in, err := os.Open(filepath.Clean(entry.sourcePath))
	if err != nil {
		return err
	}

	if _, err = io.Copy(tarWriter, in); err != nil {
		_ = in.Close()

		return err
	}

	return in.Close()
}

// tarballEntries lists the files to archive, rooted at the output's base
// name and sorted for a reproducible member order.
func tarballEntries(outputPath string) ([]tarballEntry, error) {
	info, err := os.Stat(outputPath)
	if err != nil {
		return nil, err
	}

	baseName := filepath.Base(outputPath)

	if !info.IsDir() {
		return []tarballEntry{{archiveName: baseName, sourcePath: outputPath}}, nil
	}

	var entries []tarballEntry

	walkErr := filepath.WalkDir(outputPath, func(filePath string, dirEntry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if dirEntry.IsDir() {
			return nil
		}

		relPath, relErr := filepath.Rel(outputPath, filePath)
		if relErr != nil {
			return relErr
		}

		entries = append(entries, tarballEntry{
			archiveName: path.Join(baseName, filepath.ToSlash(relPath)),
			sourcePath:  filePath,
		})

		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].archiveName < entries[j].archiveName
	})

	return entries, nil
}
