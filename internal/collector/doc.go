// Package collector materializes the distribution tree.
//
// Planning expands the configured resources and the discovered binary
// modules into a flat placement list with collisions resolved, and
// collection publishes the assembled executable together with that list,
// either as a directory next to the executable or as a single file.
package collector
