// Package scaffold generates starter build manifests for new projects.
package scaffold
