package collector

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/my3495/scriptpack/internal/domain/bundle"
	"github.com/my3495/scriptpack/internal/logger"
)

// Plan expands binary modules and configured resources into the flat list
// of files the distribution must carry next to the executable.
//
// Binary modules land at their dotted-name paths and directory resources
// are walked file by file. The returned list is collision-free and sorted
// by destination. A resource and a binary module claiming the same
// destination is reported as a warning and the resource wins. Two entries
// of the same origin claiming one destination is a configuration error.
func Plan(
	ctx context.Context,
	modules []*bundle.ModuleRecord,
	resources []bundle.ResourceEntry,
	report *bundle.Report,
) ([]bundle.PlacedFile, error) {
	placements := make([]bundle.PlacedFile, 0, len(modules)+len(resources))

	for _, module := range modules {
		if module.Kind != bundle.ModuleBinary {
			continue
		}

		placements = append(placements, bundle.PlacedFile{
			SourcePath: module.OriginPath,
			DestPath:   module.DestPath(),
		})
	}

	for _, resource := range resources {
		expanded, err := expandResource(ctx, resource)
		if err != nil {
			return nil, err
		}

		placements = append(placements, expanded...)
	}

	resolved, err := resolveCollisions(placements, report)
	if err != nil {
		return nil, err
	}

	sort.Slice(resolved, func(i, j int) bool {
		return resolved[i].DestPath < resolved[j].DestPath
	})

	logger.DebugKV(ctx, "placement plan ready", "files", len(resolved))

	return resolved, nil
}

func expandResource(ctx context.Context, resource bundle.ResourceEntry) ([]bundle.PlacedFile, error) {
	sourcePath := filepath.Clean(resource.SourcePath)

	info, err := os.Stat(sourcePath)
	if err != nil {
		return nil, bundle.Configurationf("resource %q source %q not found", resource.LogicalName, resource.SourcePath)
	}

	switch resource.Kind {
	case bundle.ResourceFile:
		if info.IsDir() {
			return nil, bundle.Configurationf("resource %q source %q is a directory, expected a file",
				resource.LogicalName, resource.SourcePath)
		}

		return []bundle.PlacedFile{{
			SourcePath:   sourcePath,
			DestPath:     resource.DestPath,
			FromResource: true,
		}}, nil
	case bundle.ResourceDir:
		if !info.IsDir() {
			return nil, bundle.Configurationf("resource %q source %q is a file, expected a directory",
				resource.LogicalName, resource.SourcePath)
		}

		return expandDir(ctx, resource, sourcePath)
	default:
		return nil, bundle.Internalf("resource %q has unknown kind %d", resource.LogicalName, resource.Kind)
	}
}

func expandDir(ctx context.Context, resource bundle.ResourceEntry, sourcePath string) ([]bundle.PlacedFile, error) {
	var placements []bundle.PlacedFile

	walkErr := filepath.WalkDir(sourcePath, func(filePath string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if entry.IsDir() {
			return nil
		}

		relPath, relErr := filepath.Rel(sourcePath, filePath)
		if relErr != nil {
			return relErr
		}

		placements = append(placements, bundle.PlacedFile{
			SourcePath:   filePath,
			DestPath:     path.Join(resource.DestPath, filepath.ToSlash(relPath)),
			FromResource: true,
		})

		return nil
	})
	if walkErr != nil {
		return nil, bundle.AsConfiguration(walkErr)
	}

	return placements, nil
}

// resolveCollisions keeps at most one placement per destination.
// Resources override binary modules, matching origins are fatal.
func resolveCollisions(placements []bundle.PlacedFile, report *bundle.Report) ([]bundle.PlacedFile, error) {
	resolved := make([]bundle.PlacedFile, 0, len(placements))
	byDest := make(map[string]int, len(placements))

	for _, placed := range placements {
		previousIndex, seen := byDest[placed.DestPath]
		if !seen {
			byDest[placed.DestPath] = len(resolved)
			resolved = append(resolved, placed)

			continue
		}

		previous := resolved[previousIndex]
		if previous.FromResource == placed.FromResource {
			return nil, bundle.Configurationf("destination %q is claimed twice, by %q and %q",
				placed.DestPath, previous.SourcePath, placed.SourcePath)
		}

		winner := placed
		if !winner.FromResource {
			winner = previous
		}

		report.Addf(bundle.WarnCollision, "resource %q overrides binary module file at %q",
			winner.SourcePath, winner.DestPath)

		resolved[previousIndex] = winner
	}

	return resolved, nil
}
