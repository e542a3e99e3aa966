// Package assembler produces the bundled executable.
//
// Assembly copies the prebuilt launcher stub for the configured target
// and appends the overlay behind it: the launch spec, the module
// archive, embedded display metadata and, in one-file mode, every native
// module and resource. The stub directory is expected to hold one stub
// per supported target, named scriptpack-stub-<os>-<arch> with an
// optional -windowed variant and the .exe suffix on Windows.
package assembler
