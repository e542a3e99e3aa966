// Package archive implements the bundle's module archive format.
//
// An archive packs the interpretable modules of one application into a
// single indexed file. Records are laid out sorted by qualified module
// name, each optionally deflated, followed by a lookup index and a fixed
// footer that locates the index. Readers work on an io.ReaderAt section,
// so the same code serves bare archive files and archives embedded in an
// executable overlay. Writing the same record set twice produces
// identical bytes.
package archive
