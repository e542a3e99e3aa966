// Package builder orchestrates a full bundling run: configuration,
// dependency analysis, module packing, executable assembly and
// distribution collection, with warnings and a build receipt written to
// the work tree.
package builder
