// Package analyzer discovers the module set of an application by walking
// its static import graph.
//
// The walk starts at the entry script, scans each source file for import
// statements and resolves the dotted names against the configured search
// paths. Resolution classifies every hit as interpretable source, packed
// into the module archive, or as a native module, copied into the output
// tree. Declared hidden imports are merged after the walk, excluded names
// are pruned together with their subtrees, and anything that cannot be
// resolved degrades to a warning rather than failing the build.
package analyzer
