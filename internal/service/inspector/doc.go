// Package inspector examines bundled executables and module archives:
// listing their contents, verifying payload integrity and extracting
// single modules for debugging.
package inspector
