package overlay

import (
	"crypto/sha512"
	"errors"
)

const (
	// Magic closes every overlay footer.
	Magic = "SPKBNDL1"

	// FormatVersion is the overlay layout version written by this package.
	FormatVersion = 1

	// footerSize covers magic, version, reserved bytes, overlay size,
	// toc offset and toc count.
	footerSize = len(Magic) + 2 + 2 + 8 + 8 + 4

	// maxNameLen bounds item names to their u16 length prefix.
	maxNameLen = 1<<16 - 1

	flagCompressed = 1 << 0
)

// Kind tells the launcher what an overlay item is.
type Kind uint8

const (
	// KindLaunchSpec is the YAML document describing what to start.
	KindLaunchSpec Kind = 1 + iota
	// KindArchive is the module archive.
	KindArchive
	// KindBinary is a native module placed next to the extracted sources.
	KindBinary
	// KindResource is a data file from the manifest.
	KindResource
	// KindIcon is the application icon.
	KindIcon
	// KindVersionInfo is the embedded version descriptor.
	KindVersionInfo
)

// String returns a human-readable kind name for listings.
func (k Kind) String() string {
	switch k {
	case KindLaunchSpec:
		return "launch-spec"
	case KindArchive:
		return "module-archive"
	case KindBinary:
		return "binary"
	case KindResource:
		return "resource"
	case KindIcon:
		return "icon"
	case KindVersionInfo:
		return "version-info"
	default:
		return "unknown"
	}
}

var (
	// ErrNoOverlay is returned when a file carries no overlay footer.
	// Launchers use it to tell a bare stub from a bundled executable.
	ErrNoOverlay = errors.New("no overlay present")

	// errUnsupportedVersion is returned for overlays from a newer layout.
	errUnsupportedVersion = errors.New("unsupported overlay version")
	// errCorrupt is returned when the structure contradicts itself.
	errCorrupt = errors.New("corrupt overlay")
	// errNameTooLong is returned when an item name exceeds its length prefix.
	errNameTooLong = errors.New("item name too long")
)

// ItemInfo describes one overlay item without its payload.
type ItemInfo struct {
	// Kind tells the launcher how to treat the item.
	Kind Kind
	// Name is the item's bundle-relative destination, slash-separated.
	Name string
	// StoredSize is the embedded payload size.
	StoredSize int64
	// RawSize is the payload size after decompression.
	RawSize int64
	// Compressed reports whether the payload is deflated.
	Compressed bool
	// Digest is the SHA-512 of the raw payload.
	Digest [sha512.Size]byte

	offset int64
}
