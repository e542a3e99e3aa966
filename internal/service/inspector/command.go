package inspector

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/my3495/scriptpack/internal/archive"
	"github.com/my3495/scriptpack/internal/domain/bundle"
	"github.com/my3495/scriptpack/internal/logger"
	"github.com/my3495/scriptpack/internal/overlay"
)

const extractedFileMode os.FileMode = 0o644

// Options contains inputs for the inspection entry point.
type Options struct {
	// Path is the bundled executable or module archive to inspect.
	Path string
	// Verify additionally decodes every payload and checks digests.
	Verify bool
	// Extract names one archived module whose payload is written out
	// instead of a listing.
	Extract string
	// OutputPath receives the extracted payload. Empty writes to Output.
	OutputPath string
	// Output is the listing destination, os.Stdout when nil.
	Output io.Writer
}

// Run inspects the artifact at opts.Path. The artifact type is detected
// by magic: module archives by their header, executables by the overlay
// footer.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "scriptpack-inspect")

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	f, err := os.Open(filepath.Clean(opts.Path))
	if err != nil {
		return bundle.AsConfiguration(err)
	}

	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return bundle.AsConfiguration(err)
	}

	if isArchiveFile(f) {
		reader, readerErr := archive.NewReader(f, info.Size())
		if readerErr != nil {
			return readerErr
		}

		return inspectArchive(ctx, reader, opts, out)
	}

	reader, err := overlay.NewReader(f, info.Size())
	if err != nil {
		return bundle.Configurationf("%q is neither a bundled executable nor a module archive",
			opts.Path)
	}

	return inspectBundle(ctx, reader, opts, out)
}

// isArchiveFile reports whether f starts with the module archive magic.
func isArchiveFile(f io.ReaderAt) bool {
	head := make([]byte, len(archive.Magic))
	if _, err := f.ReadAt(head, 0); err != nil {
		return false
	}

	return bytes.Equal(head, []byte(archive.Magic))
}

func inspectArchive(ctx context.Context, reader *archive.Reader, opts *Options, out io.Writer) error {
	if opts.Extract != "" {
		payload, err := reader.Extract(opts.Extract)
		if err != nil {
			return fmt.Errorf("module %q: %w", opts.Extract, err)
		}

		return writeExtracted(ctx, opts, out, payload)
	}

	listArchive(reader, out)

	if opts.Verify {
		if err := verifyArchive(ctx, reader); err != nil {
			return err
		}

		fmt.Fprintf(out, "verified %d modules\n", reader.Len())
	}

	return nil
}

func inspectBundle(ctx context.Context, reader *overlay.Reader, opts *Options, out io.Writer) error {
	if opts.Extract != "" {
		nested, err := nestedArchive(reader)
		if err != nil {
			return err
		}

		payload, err := nested.Extract(opts.Extract)
		if err != nil {
			return fmt.Errorf("module %q: %w", opts.Extract, err)
		}

		return writeExtracted(ctx, opts, out, payload)
	}

	listBundle(reader, out)

	if opts.Verify {
		modules, err := verifyBundle(ctx, reader)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "verified %d items and %d modules\n", len(reader.Items()), modules)
	}

	return nil
}

func listArchive(reader *archive.Reader, out io.Writer) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tRAW\tSTORED\tFLAGS")

	for _, info := range reader.Entries() {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", info.Name, info.RawSize, info.StoredSize, archiveFlags(info))
	}

	_ = tw.Flush()
}

func archiveFlags(info archive.Info) string {
	flags := make([]string, 0, 3)

	if info.Compressed {
		flags = append(flags, "compressed")
	}

	if info.Package {
		flags = append(flags, "package")
	}

	if info.Compiled {
		flags = append(flags, "compiled")
	}

	if len(flags) == 0 {
		return "-"
	}

	return strings.Join(flags, ",")
}

func listBundle(reader *overlay.Reader, out io.Writer) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tNAME\tRAW\tSTORED\tCOMPRESSED")

	for _, item := range reader.Items() {
		compressed := "no"
		if item.Compressed {
			compressed = "yes"
		}

		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", item.Kind, item.Name, item.RawSize, item.StoredSize, compressed)
	}

	_ = tw.Flush()
}

// verifyArchive re-inflates every record. The format carries no digests,
// so verification means the payloads decode to their declared sizes.
func verifyArchive(ctx context.Context, reader *archive.Reader) error {
	for _, info := range reader.Entries() {
		if err := ctx.Err(); err != nil {
			return err
		}

		if _, err := reader.Extract(info.Name); err != nil {
			return fmt.Errorf("module %q: %w", info.Name, err)
		}
	}

	return nil
}

// verifyBundle extracts every overlay item, which checks its digest, and
// then verifies the nested module archive. It returns the module count.
func verifyBundle(ctx context.Context, reader *overlay.Reader) (int, error) {
	for _, item := range reader.Items() {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		if _, err := reader.Extract(item); err != nil {
			return 0, fmt.Errorf("item %q: %w", item.Name, err)
		}
	}

	nested, err := nestedArchive(reader)
	if err != nil {
		return 0, err
	}

	if err = verifyArchive(ctx, nested); err != nil {
		return 0, err
	}

	return nested.Len(), nil
}

func nestedArchive(reader *overlay.Reader) (*archive.Reader, error) {
	item, ok := reader.First(overlay.KindArchive)
	if !ok {
		return nil, bundle.Configurationf("bundle carries no module archive")
	}

	data, err := reader.Extract(item)
	if err != nil {
		return nil, fmt.Errorf("item %q: %w", item.Name, err)
	}

	return archive.NewReader(bytes.NewReader(data), int64(len(data)))
}

func writeExtracted(ctx context.Context, opts *Options, out io.Writer, payload []byte) error {
	if opts.OutputPath == "" {
		_, err := out.Write(payload)

		return err
	}

	if err := os.WriteFile(opts.OutputPath, payload, extractedFileMode); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Extracted module payload",
		"module", opts.Extract,
		"path", opts.OutputPath,
		"bytes", len(payload))

	return nil
}
