package overlay

import (
	"bytes"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// Reader gives access to the overlay at the tail of an executable.
type Reader struct {
	r     io.ReaderAt
	start int64
	items []ItemInfo
}

// NewReader locates and parses the overlay of a file of the given size.
// A file without the closing magic yields ErrNoOverlay.
func NewReader(r io.ReaderAt, fileSize int64) (*Reader, error) {
	if fileSize < int64(footerSize) {
		return nil, ErrNoOverlay
	}

	footer := make([]byte, footerSize)
	if _, err := r.ReadAt(footer, fileSize-int64(footerSize)); err != nil {
		return nil, fmt.Errorf("read overlay footer: %w", err)
	}

	if string(footer[:len(Magic)]) != Magic {
		return nil, ErrNoOverlay
	}

	pos := len(Magic)

	version := binary.BigEndian.Uint16(footer[pos:])
	if version > FormatVersion {
		return nil, fmt.Errorf("%w: %d", errUnsupportedVersion, version)
	}

	pos += 2 + 2 // skip reserved

	overlaySize := int64(binary.BigEndian.Uint64(footer[pos:]))
	pos += 8

	tocOffset := int64(binary.BigEndian.Uint64(footer[pos:]))
	pos += 8

	count := binary.BigEndian.Uint32(footer[pos:])

	start := fileSize - overlaySize
	if start < 0 || tocOffset < 0 || start+tocOffset > fileSize-int64(footerSize) {
		return nil, fmt.Errorf("%w: size %d, toc %d", errCorrupt, overlaySize, tocOffset)
	}

	tocData := make([]byte, fileSize-int64(footerSize)-start-tocOffset)
	if _, err := r.ReadAt(tocData, start+tocOffset); err != nil {
		return nil, fmt.Errorf("read overlay toc: %w", err)
	}

	items, err := parseTOC(tocData, count, tocOffset)
	if err != nil {
		return nil, err
	}

	return &Reader{r: r, start: start, items: items}, nil
}

func parseTOC(data []byte, count uint32, tocOffset int64) ([]ItemInfo, error) {
	items := make([]ItemInfo, 0, count)
	pos := 0

	for i := uint32(0); i < count; i++ {
		if pos+1+1+2 > len(data) {
			return nil, fmt.Errorf("%w: truncated toc", errCorrupt)
		}

		kind := Kind(data[pos])
		flags := data[pos+1]
		nameLen := int(binary.BigEndian.Uint16(data[pos+2:]))
		pos += 4

		if pos+nameLen+8+8+8+sha512.Size > len(data) {
			return nil, fmt.Errorf("%w: truncated toc", errCorrupt)
		}

		name := string(data[pos : pos+nameLen])
		pos += nameLen

		offset := int64(binary.BigEndian.Uint64(data[pos:]))
		pos += 8

		storedSize := int64(binary.BigEndian.Uint64(data[pos:]))
		pos += 8

		rawSize := int64(binary.BigEndian.Uint64(data[pos:]))
		pos += 8

		var digest [sha512.Size]byte

		copy(digest[:], data[pos:pos+sha512.Size])
		pos += sha512.Size

		if offset < 0 || storedSize < 0 || offset+storedSize > tocOffset {
			return nil, fmt.Errorf("%w: item %q out of bounds", errCorrupt, name)
		}

		items = append(items, ItemInfo{
			Kind:       kind,
			Name:       name,
			StoredSize: storedSize,
			RawSize:    rawSize,
			Compressed: flags&flagCompressed != 0,
			Digest:     digest,
			offset:     offset,
		})
	}

	return items, nil
}

// Items lists the overlay items in embed order.
func (r *Reader) Items() []ItemInfo {
	out := make([]ItemInfo, len(r.items))
	copy(out, r.items)

	return out
}

// First returns the first item of a kind. Singleton items, the launch
// spec and the module archive, are looked up this way.
func (r *Reader) First(kind Kind) (ItemInfo, bool) {
	for _, item := range r.items {
		if item.Kind == kind {
			return item, true
		}
	}

	return ItemInfo{}, false
}

// Extract returns an item's raw payload, inflated and digest-checked.
func (r *Reader) Extract(item ItemInfo) ([]byte, error) {
	stored := make([]byte, item.StoredSize)
	if _, err := r.r.ReadAt(stored, r.start+item.offset); err != nil {
		return nil, fmt.Errorf("read item %q: %w", item.Name, err)
	}

	raw := stored

	if item.Compressed {
		zr, err := zlib.NewReader(bytes.NewReader(stored))
		if err != nil {
			return nil, fmt.Errorf("inflate item %q: %w", item.Name, err)
		}

		defer func() {
			_ = zr.Close()
		}()

		raw, err = io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("inflate item %q: %w", item.Name, err)
		}
	}

	if int64(len(raw)) != item.RawSize {
		return nil, fmt.Errorf("%w: item %q inflates to %d bytes, want %d",
			errCorrupt, item.Name, len(raw), item.RawSize)
	}

	if sha512.Sum512(raw) != item.Digest {
		return nil, fmt.Errorf("%w: item %q digest mismatch", errCorrupt, item.Name)
	}

	return raw, nil
}
