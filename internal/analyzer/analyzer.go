package analyzer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/my3495/scriptpack/internal/domain/bundle"
	"github.com/my3495/scriptpack/internal/logger"
)

// Options configure one dependency scan.
type Options struct {
	// EntryPoint is the path of the entry script.
	EntryPoint string
	// SearchPaths are module roots scanned in priority order.
	SearchPaths []string
	// HiddenImports are dotted names injected after the walk.
	HiddenImports []string
	// Excludes are dotted names pruned from discovery together with
	// their submodules.
	Excludes []string
}

// Result is the dependency set discovered for one build.
type Result struct {
	// EntryModule is the qualified name assigned to the entry script.
	EntryModule string
	// EntryPath is the location of the entry script.
	EntryPath string
	// Modules holds every discovered record, sorted by qualified name.
	Modules []*bundle.ModuleRecord
}

// Analyze walks the static import graph starting at the entry script.
// Non-fatal findings go into the report; only a missing entry script is
// an error, everything else degrades to warnings.
func Analyze(ctx context.Context, opts *Options, report *bundle.Report) (*Result, error) {
	entry, err := filepath.Abs(opts.EntryPoint)
	if err != nil {
		return nil, bundle.AsInternal(fmt.Errorf("entry path: %w", err))
	}

	if !fileExists(entry) {
		return nil, bundle.Configurationf("entry script %q not found", opts.EntryPoint)
	}

	roots, err := absRoots(opts.SearchPaths)
	if err != nil {
		return nil, bundle.AsInternal(err)
	}

	entryName, roots := entryModule(entry, roots)

	w := &walker{
		resolver: newResolver(roots),
		excludes: opts.Excludes,
		visited:  make(map[string]*bundle.ModuleRecord),
		missed:   make(map[string]bool),
		report:   report,
	}

	entryRecord := &bundle.ModuleRecord{
		QualifiedName: entryName,
		OriginPath:    entry,
		Kind:          bundle.ModulePure,
	}

	if err := w.walk(ctx, entryRecord); err != nil {
		return nil, err
	}

	if err := w.mergeHidden(ctx, opts.HiddenImports); err != nil {
		return nil, err
	}

	modules := make([]*bundle.ModuleRecord, 0, len(w.visited))
	for _, rec := range w.visited {
		modules = append(modules, rec)
	}

	sort.Slice(modules, func(i, j int) bool {
		return modules[i].QualifiedName < modules[j].QualifiedName
	})

	logger.InfoKV(ctx, "dependency walk finished",
		"modules", len(modules),
		"entry", entryName,
		"warnings", report.Len())

	return &Result{
		EntryModule: entryName,
		EntryPath:   entry,
		Modules:     modules,
	}, nil
}

func absRoots(paths []string) ([]string, error) {
	roots := make([]string, 0, len(paths))

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("search path %q: %w", p, err)
		}

		roots = append(roots, abs)
	}

	return roots, nil
}

// entryModule derives the entry script's qualified name from the first
// search root containing it. A script outside every root keeps its bare
// stem and contributes its own directory as an extra root.
func entryModule(entry string, roots []string) (string, []string) {
	for _, root := range roots {
		rel, err := filepath.Rel(root, entry)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}

		name := strings.TrimSuffix(filepath.ToSlash(rel), ".py")

		return strings.ReplaceAll(name, "/", "."), roots
	}

	// The script's own directory outranks the configured roots.
	stem := strings.TrimSuffix(filepath.Base(entry), ".py")

	return stem, append([]string{filepath.Dir(entry)}, roots...)
}

// walker carries the state of one breadth-first import walk.
type walker struct {
	resolver *resolver
	excludes []string
	visited  map[string]*bundle.ModuleRecord
	missed   map[string]bool
	report   *bundle.Report
}

// walk visits every module reachable from the seed record.
func (w *walker) walk(ctx context.Context, seed *bundle.ModuleRecord) error {
	queue := []*bundle.ModuleRecord{seed}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		rec := queue[0]
		queue = queue[1:]

		if _, ok := w.visited[rec.QualifiedName]; ok {
			continue
		}

		w.visited[rec.QualifiedName] = rec
		logger.DebugKV(ctx, "module discovered",
			"name", rec.QualifiedName,
			"kind", rec.Kind.String(),
			"origin", rec.OriginPath)

		if !scannable(rec) {
			continue
		}

		src, err := os.ReadFile(rec.OriginPath)
		if err != nil {
			return bundle.AsInternal(fmt.Errorf("read module %s: %w", rec.QualifiedName, err))
		}

		for _, imp := range scanSource(string(src)) {
			queue = w.follow(queue, rec, imp)
		}
	}

	return nil
}

// follow resolves one import statement and appends new records to the queue.
func (w *walker) follow(queue []*bundle.ModuleRecord, from *bundle.ModuleRecord, imp Import) []*bundle.ModuleRecord {
	name := imp.Module

	if imp.Level > 0 {
		base, ok := relativeBase(from, imp.Level)
		if !ok {
			w.report.Addf(bundle.WarnUnresolved,
				"relative import beyond top-level package at %s:%d", from.OriginPath, imp.Line)

			return queue
		}

		name = base
		if imp.Module != "" {
			name = base + "." + imp.Module
		}
	}

	// Compiler directive, not a runtime dependency.
	if name == "__future__" {
		return queue
	}

	queue = w.enqueue(queue, name, from.QualifiedName, true)

	// A from-import member may itself be a submodule. Quietly probe:
	// a miss just means the member is an attribute.
	for _, member := range imp.Names {
		queue = w.enqueue(queue, name+"."+member, from.QualifiedName, false)
	}

	return queue
}

// enqueue resolves a name and adds the record plus its parent packages
// to the queue. Misses are reported only when demanded, naming the first
// importer that asked.
func (w *walker) enqueue(queue []*bundle.ModuleRecord, name, importer string, warnOnMiss bool) []*bundle.ModuleRecord {
	if name == "" || w.excluded(name) {
		return queue
	}

	if _, ok := w.visited[name]; ok {
		return queue
	}

	rec, ok := w.resolver.resolve(name)
	if !ok {
		if warnOnMiss && !w.missed[name] {
			w.missed[name] = true

			if importer == "" {
				w.report.Addf(bundle.WarnUnresolved, "import %q matched no search path", name)
			} else {
				w.report.Addf(bundle.WarnUnresolved, "import %q in %s matched no search path", name, importer)
			}
		}

		return queue
	}

	queue = append(queue, rec)

	// Parent packages ride along so extraction rebuilds the tree.
	for parent := parentName(name); parent != ""; parent = parentName(parent) {
		if _, ok := w.visited[parent]; ok {
			break
		}

		parentRec, ok := w.resolver.resolve(parent)
		if !ok {
			if !w.missed[parent] {
				w.missed[parent] = true
				w.report.Addf(bundle.WarnUnresolved, "parent package %q matched no search path", parent)
			}

			break
		}

		queue = append(queue, parentRec)
	}

	return queue
}

// mergeHidden injects the declared hidden imports after the static walk,
// so redundancy against discovery is detectable.
func (w *walker) mergeHidden(ctx context.Context, hidden []string) error {
	for _, name := range hidden {
		if _, ok := w.visited[name]; ok {
			w.report.Addf(bundle.WarnHiddenRedundant,
				"hidden import %q was already discovered", name)

			continue
		}

		rec, ok := w.resolver.resolve(name)
		if !ok {
			w.report.Addf(bundle.WarnHiddenMissing,
				"hidden import %q matched no search path", name)

			continue
		}

		if rec.Kind == bundle.ModulePure {
			rec.Kind = bundle.ModuleHidden
		}

		// Hidden modules have dependencies of their own.
		if err := w.walk(ctx, rec); err != nil {
			return err
		}

		queue := w.enqueue(nil, parentName(name), "", true)
		for _, parentRec := range queue {
			if err := w.walk(ctx, parentRec); err != nil {
				return err
			}
		}
	}

	return nil
}

func (w *walker) excluded(name string) bool {
	for _, ex := range w.excludes {
		if name == ex || strings.HasPrefix(name, ex+".") {
			return true
		}
	}

	return false
}

// scannable reports whether a record's origin can be text-scanned for
// imports. Native modules and compiled files cannot.
func scannable(rec *bundle.ModuleRecord) bool {
	if rec.Kind == bundle.ModuleBinary {
		return false
	}

	return strings.HasSuffix(rec.OriginPath, ".py")
}

// relativeBase resolves the package a relative import is anchored at.
// One dot is the containing package, each further dot climbs one level.
func relativeBase(from *bundle.ModuleRecord, level int) (string, bool) {
	segments := strings.Split(from.QualifiedName, ".")
	if !from.IsPackage {
		segments = segments[:len(segments)-1]
	}

	remaining := len(segments) - (level - 1)
	if remaining < 1 {
		return "", false
	}

	return strings.Join(segments[:remaining], "."), true
}

func parentName(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return ""
	}

	return name[:idx]
}
