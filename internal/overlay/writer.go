package overlay

import (
	"bytes"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// Writer appends an overlay to an executable. Items go out in the order
// they are added; Close writes the table of contents and the footer.
type Writer struct {
	w        io.Writer
	compress bool
	off      int64
	toc      []ItemInfo
	closed   bool
}

// NewWriter starts an overlay on w, which is positioned at the end of
// the stub the overlay belongs to.
func NewWriter(w io.Writer, compress bool) *Writer {
	return &Writer{w: w, compress: compress}
}

// Add embeds one item. The payload is deflated when compression is on
// and that actually shrinks it.
func (w *Writer) Add(kind Kind, name string, payload []byte) error {
	if w.closed {
		return fmt.Errorf("%w: writer closed", errCorrupt)
	}

	if len(name) == 0 || len(name) > maxNameLen {
		return fmt.Errorf("%q: %w", name, errNameTooLong)
	}

	stored := payload
	compressed := false

	if w.compress && len(payload) > 0 {
		deflated, err := deflate(payload)
		if err != nil {
			return fmt.Errorf("deflate item %q: %w", name, err)
		}

		if len(deflated) < len(payload) {
			stored = deflated
			compressed = true
		}
	}

	n, err := w.w.Write(stored)
	if err != nil {
		w.off += int64(n)

		return fmt.Errorf("write item %q: %w", name, err)
	}

	w.toc = append(w.toc, ItemInfo{
		Kind:       kind,
		Name:       name,
		StoredSize: int64(len(stored)),
		RawSize:    int64(len(payload)),
		Compressed: compressed,
		Digest:     sha512.Sum512(payload),
		offset:     w.off,
	})

	w.off += int64(n)

	return nil
}

// Close writes the table of contents and the footer. The writer is
// unusable afterwards.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}

	w.closed = true
	tocOffset := w.off

	var buf bytes.Buffer

	var scratch [8]byte

	for _, item := range w.toc {
		buf.WriteByte(byte(item.Kind))

		var flags byte
		if item.Compressed {
			flags |= flagCompressed
		}

		buf.WriteByte(flags)

		binary.BigEndian.PutUint16(scratch[:2], uint16(len(item.Name)))
		buf.Write(scratch[:2])
		buf.WriteString(item.Name)

		binary.BigEndian.PutUint64(scratch[:], uint64(item.offset))
		buf.Write(scratch[:])

		binary.BigEndian.PutUint64(scratch[:], uint64(item.StoredSize))
		buf.Write(scratch[:])

		binary.BigEndian.PutUint64(scratch[:], uint64(item.RawSize))
		buf.Write(scratch[:])

		buf.Write(item.Digest[:])
	}

	overlaySize := w.off + int64(buf.Len()) + int64(footerSize)

	footer := make([]byte, 0, footerSize)
	footer = append(footer, Magic...)
	footer = binary.BigEndian.AppendUint16(footer, FormatVersion)
	footer = binary.BigEndian.AppendUint16(footer, 0)
	footer = binary.BigEndian.AppendUint64(footer, uint64(overlaySize))
	footer = binary.BigEndian.AppendUint64(footer, uint64(tocOffset))
	footer = binary.BigEndian.AppendUint32(footer, uint32(len(w.toc)))

	buf.Write(footer)

	if _, err := w.w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write overlay tail: %w", err)
	}

	return nil
}

func deflate(payload []byte) ([]byte, error) {
	var buf bytes.Buffer

	zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, err
	}

	if _, err := zw.Write(payload); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
