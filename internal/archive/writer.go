package archive

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/klauspost/compress/zlib"

	"github.com/my3495/scriptpack/internal/domain/bundle"
)

// Write lays out a complete archive: records sorted by name, the lookup
// index, then the footer. The entry order given by the caller does not
// matter; the same entry set always produces the same bytes.
func Write(w io.Writer, entries []Entry, compress bool) error {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	for i, e := range sorted {
		if e.Name == "" || len(e.Name) > maxNameLen {
			return bundle.Internalf("archive record name %q out of range", e.Name)
		}

		if i > 0 && sorted[i-1].Name == e.Name {
			return bundle.Internalf("duplicate archive record %q", e.Name)
		}
	}

	cw := &countingWriter{w: w}

	header := make([]byte, 0, headerSize)
	header = append(header, Magic...)
	header = binary.BigEndian.AppendUint16(header, FormatVersion)

	var archiveFlags byte
	if compress {
		archiveFlags |= flagCompressed
	}

	header = append(header, archiveFlags)

	if err := cw.write(header); err != nil {
		return err
	}

	index := make([]Info, 0, len(sorted))

	for _, e := range sorted {
		payload, flags, err := encodePayload(e, compress)
		if err != nil {
			return err
		}

		head := make([]byte, 0, 2+len(e.Name)+1+4)
		head = binary.BigEndian.AppendUint16(head, uint16(len(e.Name)))
		head = append(head, e.Name...)
		head = append(head, flags)
		head = binary.BigEndian.AppendUint32(head, uint32(len(payload)))

		if err := cw.write(head); err != nil {
			return err
		}

		offset := cw.off

		if err := cw.write(payload); err != nil {
			return err
		}

		index = append(index, Info{
			Name:       e.Name,
			StoredSize: uint32(len(payload)),
			RawSize:    uint32(len(e.Payload)),
			Compressed: flags&flagCompressed != 0,
			Package:    e.Package,
			Compiled:   e.Compiled,
			offset:     offset,
		})
	}

	indexOffset := cw.off

	var buf bytes.Buffer

	var scratch [8]byte

	binary.BigEndian.PutUint32(scratch[:4], uint32(len(index)))
	buf.Write(scratch[:4])

	for _, info := range index {
		binary.BigEndian.PutUint16(scratch[:2], uint16(len(info.Name)))
		buf.Write(scratch[:2])
		buf.WriteString(info.Name)

		binary.BigEndian.PutUint64(scratch[:], uint64(info.offset))
		buf.Write(scratch[:])

		binary.BigEndian.PutUint32(scratch[:4], info.StoredSize)
		buf.Write(scratch[:4])

		binary.BigEndian.PutUint32(scratch[:4], info.RawSize)
		buf.Write(scratch[:4])

		buf.WriteByte(encodeFlags(info))
	}

	if err := cw.write(buf.Bytes()); err != nil {
		return err
	}

	footer := make([]byte, 0, footerSize)
	footer = binary.BigEndian.AppendUint64(footer, uint64(indexOffset))
	footer = binary.BigEndian.AppendUint32(footer, uint32(len(index)))
	footer = append(footer, Magic...)

	return cw.write(footer)
}

// encodePayload deflates a payload when compression is on and it
// actually shrinks; anything else is stored raw.
func encodePayload(e Entry, compress bool) ([]byte, byte, error) {
	var flags byte
	if e.Package {
		flags |= flagPackage
	}

	if e.Compiled {
		flags |= flagCompiled
	}

	if !compress || len(e.Payload) == 0 {
		return e.Payload, flags, nil
	}

	var buf bytes.Buffer

	zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, 0, bundle.AsInternal(fmt.Errorf("deflate %s: %w", e.Name, err))
	}

	if _, err := zw.Write(e.Payload); err != nil {
		return nil, 0, bundle.AsInternal(fmt.Errorf("deflate %s: %w", e.Name, err))
	}

	if err := zw.Close(); err != nil {
		return nil, 0, bundle.AsInternal(fmt.Errorf("deflate %s: %w", e.Name, err))
	}

	if buf.Len() >= len(e.Payload) {
		return e.Payload, flags, nil
	}

	return buf.Bytes(), flags | flagCompressed, nil
}

func encodeFlags(info Info) byte {
	var flags byte
	if info.Compressed {
		flags |= flagCompressed
	}

	if info.Package {
		flags |= flagPackage
	}

	if info.Compiled {
		flags |= flagCompiled
	}

	return flags
}

// countingWriter tracks the archive offset as records are laid out.
type countingWriter struct {
	w   io.Writer
	off int64
}

func (c *countingWriter) write(b []byte) error {
	n, err := c.w.Write(b)
	c.off += int64(n)

	if err != nil {
		return fmt.Errorf("write archive: %w", err)
	}

	return nil
}
