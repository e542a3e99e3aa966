package scaffold

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/my3495/scriptpack/internal/config"
	"github.com/my3495/scriptpack/internal/domain/bundle"
	"github.com/my3495/scriptpack/internal/logger"
)

// Options contains inputs for the manifest generator.
type Options struct {
	// ConfigPath is where the manifest is written, scriptpack.yaml by
	// default.
	ConfigPath string
	// AppName names the bundle. Empty derives it from the entry point.
	AppName string
	// EntryPoint is the application's entry script, main.py by default.
	EntryPoint string
	// OneFile preselects single-file output.
	OneFile bool
	// Windowed preselects the windowed launcher.
	Windowed bool
	// Force overwrites an existing manifest.
	Force bool
}

// errManifestExists is returned when the target manifest is already there.
var errManifestExists = errors.New("manifest already exists, pass --force to overwrite")

// Run writes a starter build manifest from the provided options.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "scriptpack-scaffold")

	path := opts.ConfigPath
	if path == "" {
		path = config.DefaultConfigFilename
	}

	entryPoint := opts.EntryPoint
	if entryPoint == "" {
		entryPoint = "main.py"
	}

	appName := opts.AppName
	if appName == "" {
		appName = strings.TrimSuffix(filepath.Base(entryPoint), ".py")
	}

	if !opts.Force {
		if _, err := os.Stat(path); err == nil {
			return bundle.AsConfiguration(errManifestExists)
		}
	}

	cfg := &config.Config{
		AppName:         appName,
		EntryPoint:      entryPoint,
		SearchPaths:     []string{"."},
		Windowed:        opts.Windowed,
		OneFile:         opts.OneFile,
		CompressModules: true,
	}

	if err := config.Save(path, cfg); err != nil {
		return bundle.AsConfiguration(err)
	}

	logger.InfoKV(ctx, "Wrote starter manifest", "path", path, "app", appName)
	logger.Infof(ctx, "Review %s, then run: scriptpack build", path)

	return nil
}
