// Package stub is the runtime half of the bootstrap launcher.
//
// A launcher binary built from cmd/scriptpack-stub is appended with an
// overlay at bundle time. At startup this package locates the overlay in
// the running executable, extracts the module archive (and the carried
// files in single-file bundles) into a private runtime directory, and
// hands control to the configured interpreter. Windowed builds differ
// only in how the stub binary itself is compiled, not in runtime logic.
package stub
