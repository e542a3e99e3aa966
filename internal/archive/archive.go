package archive

import "errors"

const (
	// Magic marks both ends of an archive file.
	Magic = "SPKZ"

	// FormatVersion is the archive layout version written by this package.
	FormatVersion = 1
)

// Record flag bits.
const (
	flagCompressed = 1 << iota
	flagPackage
	flagCompiled
)

const (
	// headerSize covers magic, version and archive flags.
	headerSize = len(Magic) + 2 + 1
	// footerSize covers index offset, index count and the closing magic.
	footerSize = 8 + 4 + len(Magic)
	// maxNameLen bounds record names to their u16 length prefix.
	maxNameLen = 1<<16 - 1
)

var (
	// ErrNotFound is returned when an archive holds no record of the
	// requested name.
	ErrNotFound = errors.New("record not found")

	// errBadMagic is returned when a file does not look like an archive.
	errBadMagic = errors.New("bad archive magic")
	// errUnsupportedVersion is returned for archives from a newer layout.
	errUnsupportedVersion = errors.New("unsupported archive version")
	// errCorrupt is returned when the structure contradicts itself.
	errCorrupt = errors.New("corrupt archive")
)

// Entry is one module staged for packing.
type Entry struct {
	// Name is the record key, a qualified module name.
	Name string
	// Payload is the module's raw content.
	Payload []byte
	// Package marks package initializers.
	Package bool
	// Compiled marks bytecode payloads that must keep their suffix.
	Compiled bool
}

// Info describes one archived record without its payload.
type Info struct {
	// Name is the record key.
	Name string
	// StoredSize is the on-disk payload size.
	StoredSize uint32
	// RawSize is the payload size after decompression.
	RawSize uint32
	// Compressed reports whether the payload is deflated.
	Compressed bool
	// Package marks package initializers.
	Package bool
	// Compiled marks bytecode payloads.
	Compiled bool

	offset int64
}
