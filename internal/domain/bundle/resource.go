package bundle

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// ResourceKind distinguishes single files from whole directories.
type ResourceKind uint8

const (
	// ResourceFile copies one file to its destination path.
	ResourceFile ResourceKind = iota
	// ResourceDir copies a directory tree rooted at the destination path.
	ResourceDir
)

// String returns a human-readable kind name for logs and listings.
func (k ResourceKind) String() string {
	if k == ResourceDir {
		return "dir"
	}

	return "file"
}

// ResourceEntry maps one declared resource to its place inside the bundle.
// Entries are pure data created from the manifest at pipeline start.
type ResourceEntry struct {
	// LogicalName identifies the entry in logs and warnings.
	LogicalName string
	// SourcePath is the file or directory to copy from.
	SourcePath string
	// DestPath is the destination relative to the bundle root,
	// slash-separated regardless of host platform.
	DestPath string
	// Kind tells whether SourcePath is a file or a directory.
	Kind ResourceKind
}

var (
	// errResourceNameRequired is returned when an entry has no logical name.
	errResourceNameRequired = errors.New("resource name must be provided")
	// errResourceSourceRequired is returned when an entry has no source path.
	errResourceSourceRequired = errors.New("resource source must be provided")
	// errResourceDestInvalid is returned when a destination escapes the bundle root.
	errResourceDestInvalid = errors.New("resource destination must be relative to the bundle root")
)

// Validate checks the entry for structural problems independent of the filesystem.
func (r *ResourceEntry) Validate() error {
	if strings.TrimSpace(r.LogicalName) == "" {
		return errResourceNameRequired
	}

	if strings.TrimSpace(r.SourcePath) == "" {
		return fmt.Errorf("resource %q: %w", r.LogicalName, errResourceSourceRequired)
	}

	dest := r.DestPath
	if dest == "" || path.IsAbs(dest) || strings.Contains(dest, "\\") {
		return fmt.Errorf("resource %q: %w", r.LogicalName, errResourceDestInvalid)
	}

	clean := path.Clean(dest)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("resource %q: %w", r.LogicalName, errResourceDestInvalid)
	}

	return nil
}
