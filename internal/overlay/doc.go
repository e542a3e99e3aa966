// Package overlay implements the payload appended to launcher stubs.
//
// An overlay carries everything a bundled executable needs at runtime:
// the launch spec, the module archive, native modules, resources and
// embedded display metadata. Items are concatenated, followed by a table
// of contents and a fixed-size footer at the very end of the file, so a
// reader only needs the file tail to locate the whole structure. Every
// item records a SHA-512 digest of its raw content, checked on
// extraction.
package overlay
