package archive

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/klauspost/compress/zlib"
)

// Reader gives random access to the records of one archive.
type Reader struct {
	r       io.ReaderAt
	entries []Info
}

// NewReader parses the index of an archive held in r. The section may be
// a bare file or a slice of an executable overlay.
func NewReader(r io.ReaderAt, size int64) (*Reader, error) {
	if size < int64(headerSize+footerSize) {
		return nil, fmt.Errorf("%w: %d bytes", errCorrupt, size)
	}

	header := make([]byte, headerSize)
	if _, err := r.ReadAt(header, 0); err != nil {
		return nil, fmt.Errorf("read archive header: %w", err)
	}

	if string(header[:len(Magic)]) != Magic {
		return nil, errBadMagic
	}

	if v := binary.BigEndian.Uint16(header[len(Magic):]); v > FormatVersion {
		return nil, fmt.Errorf("%w: %d", errUnsupportedVersion, v)
	}

	footer := make([]byte, footerSize)
	if _, err := r.ReadAt(footer, size-int64(footerSize)); err != nil {
		return nil, fmt.Errorf("read archive footer: %w", err)
	}

	if string(footer[12:]) != Magic {
		return nil, errBadMagic
	}

	indexOffset := int64(binary.BigEndian.Uint64(footer[:8]))
	count := binary.BigEndian.Uint32(footer[8:12])

	if indexOffset < int64(headerSize) || indexOffset > size-int64(footerSize) {
		return nil, fmt.Errorf("%w: index offset %d", errCorrupt, indexOffset)
	}

	indexData := make([]byte, size-int64(footerSize)-indexOffset)
	if _, err := r.ReadAt(indexData, indexOffset); err != nil {
		return nil, fmt.Errorf("read archive index: %w", err)
	}

	entries, err := parseIndex(indexData, count, indexOffset)
	if err != nil {
		return nil, err
	}

	return &Reader{r: r, entries: entries}, nil
}

// parseIndex decodes the index section and checks its invariants: the
// counts agree, entries stay in bounds and names ascend strictly.
func parseIndex(data []byte, count uint32, indexOffset int64) ([]Info, error) {
	if len(data) < 4 || binary.BigEndian.Uint32(data[:4]) != count {
		return nil, fmt.Errorf("%w: index count mismatch", errCorrupt)
	}

	entries := make([]Info, 0, count)
	pos := 4

	for i := uint32(0); i < count; i++ {
		if pos+2 > len(data) {
			return nil, fmt.Errorf("%w: truncated index", errCorrupt)
		}

		nameLen := int(binary.BigEndian.Uint16(data[pos:]))
		pos += 2

		if pos+nameLen+8+4+4+1 > len(data) {
			return nil, fmt.Errorf("%w: truncated index", errCorrupt)
		}

		name := string(data[pos : pos+nameLen])
		pos += nameLen

		offset := int64(binary.BigEndian.Uint64(data[pos:]))
		pos += 8

		storedLen := binary.BigEndian.Uint32(data[pos:])
		pos += 4

		rawLen := binary.BigEndian.Uint32(data[pos:])
		pos += 4

		flags := data[pos]
		pos++

		if offset < int64(headerSize) || offset+int64(storedLen) > indexOffset {
			return nil, fmt.Errorf("%w: record %q out of bounds", errCorrupt, name)
		}

		if len(entries) > 0 && entries[len(entries)-1].Name >= name {
			return nil, fmt.Errorf("%w: index not sorted at %q", errCorrupt, name)
		}

		entries = append(entries, Info{
			Name:       name,
			StoredSize: storedLen,
			RawSize:    rawLen,
			Compressed: flags&flagCompressed != 0,
			Package:    flags&flagPackage != 0,
			Compiled:   flags&flagCompiled != 0,
			offset:     offset,
		})
	}

	return entries, nil
}

// Entries lists the archived records in name order.
func (r *Reader) Entries() []Info {
	out := make([]Info, len(r.entries))
	copy(out, r.entries)

	return out
}

// Len returns the number of archived records.
func (r *Reader) Len() int {
	return len(r.entries)
}

// Stat returns the record info for a name.
func (r *Reader) Stat(name string) (Info, bool) {
	i := sort.Search(len(r.entries), func(i int) bool {
		return r.entries[i].Name >= name
	})

	if i == len(r.entries) || r.entries[i].Name != name {
		return Info{}, false
	}

	return r.entries[i], true
}

// Extract returns the raw payload of a record, inflating it if needed.
func (r *Reader) Extract(name string) ([]byte, error) {
	info, ok := r.Stat(name)
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrNotFound)
	}

	stored := make([]byte, info.StoredSize)
	if _, err := r.r.ReadAt(stored, info.offset); err != nil {
		return nil, fmt.Errorf("read record %q: %w", name, err)
	}

	if !info.Compressed {
		return stored, nil
	}

	zr, err := zlib.NewReader(bytes.NewReader(stored))
	if err != nil {
		return nil, fmt.Errorf("inflate record %q: %w", name, err)
	}

	defer func() {
		_ = zr.Close()
	}()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("inflate record %q: %w", name, err)
	}

	if uint32(len(raw)) != info.RawSize {
		return nil, fmt.Errorf("%w: record %q inflates to %d bytes, want %d",
			errCorrupt, name, len(raw), info.RawSize)
	}

	return raw, nil
}
