package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/my3495/scriptpack/internal/domain/bundle"
)

// Config is the build manifest describing one application bundle.
type Config struct {
	// AppName is the bundle name, used for the output directory and the
	// produced executable.
	AppName string `yaml:"app_name"`
	// EntryPoint is the path of the entry script, relative to the
	// project root.
	EntryPoint string `yaml:"entry_point"`
	// SearchPaths are the roots scanned for modules, in priority order.
	SearchPaths []string `yaml:"search_paths"`
	// HiddenImports are dotted module names injected into the dependency
	// set even when static analysis does not find them.
	HiddenImports []string `yaml:"hidden_imports,omitempty"`
	// Excludes are dotted module names pruned from discovery together
	// with their submodules.
	Excludes []string `yaml:"excludes,omitempty"`
	// Resources are data files and directories copied into the bundle.
	Resources []Resource `yaml:"resources,omitempty"`
	// Icon is an optional icon file embedded into the executable.
	Icon string `yaml:"icon,omitempty"`
	// VersionInfo is an optional version descriptor embedded into the
	// executable.
	VersionInfo string `yaml:"version_info,omitempty"`
	// Windowed selects the launcher variant that opens no console window.
	Windowed bool `yaml:"windowed"`
	// Target is the "os/arch" pair to bundle for. Empty means the host.
	Target string `yaml:"target,omitempty"`
	// OneFile collapses the bundle into a single executable.
	OneFile bool `yaml:"one_file"`
	// CompressModules stores archive records deflated.
	CompressModules bool `yaml:"compress_modules"`
	// CompressDist additionally produces a compressed tarball of the
	// finished bundle directory.
	CompressDist bool `yaml:"compress_dist,omitempty"`
	// Runtime configures how the launcher starts the application.
	Runtime Runtime `yaml:"runtime,omitempty"`
	// StubDir is the directory holding prebuilt launcher stubs.
	StubDir string `yaml:"stub_dir,omitempty"`
	// DistPath is the directory receiving finished bundles.
	DistPath string `yaml:"dist_path,omitempty"`
	// WorkPath is the scratch directory for intermediate build files.
	WorkPath string `yaml:"work_path,omitempty"`
}

// Runtime configures the interpreter invocation performed by the launcher.
type Runtime struct {
	// Interpreter is the command the launcher executes.
	Interpreter string `yaml:"interpreter,omitempty"`
	// InterpreterArgs are inserted before the entry file.
	InterpreterArgs []string `yaml:"interpreter_args,omitempty"`
	// PathEnv is the environment variable receiving the module search
	// path at runtime.
	PathEnv string `yaml:"path_env,omitempty"`
}

// Resource declares one data file or directory to be bundled.
type Resource struct {
	// Name identifies the entry in logs and warnings.
	Name string `yaml:"name"`
	// Source is the file or directory to copy, relative to the project
	// root unless absolute.
	Source string `yaml:"source"`
	// Dest is the destination inside the bundle, slash-separated.
	Dest string `yaml:"dest"`
	// Kind is "file" or "dir". Empty defaults to "file".
	Kind string `yaml:"kind,omitempty"`
}

const (
	// DefaultConfigFilename is the manifest filename looked up when no
	// explicit path is given.
	DefaultConfigFilename = "scriptpack.yaml"

	// DefaultInterpreter is the runtime command used when the manifest
	// does not name one.
	DefaultInterpreter = "python3"

	// DefaultPathEnv is the environment variable carrying the module
	// search path.
	DefaultPathEnv = "PYTHONPATH"

	// DefaultStubDir is the launcher stub directory.
	DefaultStubDir = "stubs"

	// DefaultDistDir is the output directory for finished bundles.
	DefaultDistDir = "dist"

	// DefaultWorkDir is the scratch directory for intermediate files.
	DefaultWorkDir = "build"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errAppNameRequired is returned when the manifest has no app name.
	errAppNameRequired = errors.New("app name must be provided")
	// errAppNameInvalid is returned when the app name cannot be a file name.
	errAppNameInvalid = errors.New("app name must not contain path separators")
	// errEntryPointRequired is returned when the manifest has no entry point.
	errEntryPointRequired = errors.New("entry point must be provided")
	// errEntryPointInvalid is returned when the entry point is not a
	// relative path to a source file.
	errEntryPointInvalid = errors.New("entry point must be a relative path to a .py file")
	// errTargetInvalid is returned when the target is not an os/arch pair.
	errTargetInvalid = errors.New("target must be an os/arch pair")
	// errModuleNameInvalid is returned for malformed dotted module names.
	errModuleNameInvalid = errors.New("module name must be dot-separated identifiers")
	// errResourceKindInvalid is returned for unknown resource kinds.
	errResourceKindInvalid = errors.New(`resource kind must be "file" or "dir"`)
	// errResourceDestDuplicate is returned when two resources share a destination.
	errResourceDestDuplicate = errors.New("resource destinations must be unique")
)

// Load reads a manifest from the provided path and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the manifest to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	return nil
}

// Validate checks the manifest for structural problems and fills defaults.
// It never touches the filesystem; existence checks happen in the pipeline.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if strings.TrimSpace(cfg.AppName) == "" {
		return errAppNameRequired
	}

	if strings.ContainsAny(cfg.AppName, `/\`) || cfg.AppName == "." || cfg.AppName == ".." {
		return fmt.Errorf("app name %q: %w", cfg.AppName, errAppNameInvalid)
	}

	if err := validateEntryPoint(cfg.EntryPoint); err != nil {
		return err
	}

	if len(cfg.SearchPaths) == 0 {
		cfg.SearchPaths = []string{"."}
	}

	for _, name := range cfg.HiddenImports {
		if !validDottedName(name) {
			return fmt.Errorf("hidden import %q: %w", name, errModuleNameInvalid)
		}
	}

	for _, name := range cfg.Excludes {
		if !validDottedName(name) {
			return fmt.Errorf("exclude %q: %w", name, errModuleNameInvalid)
		}
	}

	if err := validateResources(cfg.Resources); err != nil {
		return err
	}

	if err := validateTarget(cfg); err != nil {
		return err
	}

	if cfg.Runtime.Interpreter == "" {
		cfg.Runtime.Interpreter = DefaultInterpreter
	}

	if cfg.Runtime.PathEnv == "" {
		cfg.Runtime.PathEnv = DefaultPathEnv
	}

	if cfg.StubDir == "" {
		cfg.StubDir = DefaultStubDir
	}

	if cfg.DistPath == "" {
		cfg.DistPath = DefaultDistDir
	}

	if cfg.WorkPath == "" {
		cfg.WorkPath = DefaultWorkDir
	}

	return nil
}

// ResourceEntries converts the declared resources into domain entries.
// Validate must have accepted the manifest first.
func (c *Config) ResourceEntries() ([]bundle.ResourceEntry, error) {
	entries := make([]bundle.ResourceEntry, 0, len(c.Resources))

	for _, r := range c.Resources {
		entry, err := resourceEntry(r)
		if err != nil {
			return nil, err
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

// Metadata extracts the executable-facing settings of the manifest.
// Validate must have accepted the manifest first.
func (c *Config) Metadata() bundle.Metadata {
	targetOS, targetArch, _ := strings.Cut(c.Target, "/")

	return bundle.Metadata{
		ExecutableName:  c.AppName,
		IconPath:        c.Icon,
		VersionInfoPath: c.VersionInfo,
		Windowed:        c.Windowed,
		TargetOS:        targetOS,
		TargetArch:      targetArch,
		OneFile:         c.OneFile,
	}
}

func validateEntryPoint(entry string) error {
	if strings.TrimSpace(entry) == "" {
		return errEntryPointRequired
	}

	if filepath.IsAbs(entry) || !strings.HasSuffix(entry, ".py") {
		return fmt.Errorf("entry point %q: %w", entry, errEntryPointInvalid)
	}

	return nil
}

func validateResources(resources []Resource) error {
	seen := make(map[string]string, len(resources))

	for _, r := range resources {
		entry, err := resourceEntry(r)
		if err != nil {
			return err
		}

		if err := entry.Validate(); err != nil {
			return err
		}

		if prev, ok := seen[entry.DestPath]; ok {
			return fmt.Errorf("resources %q and %q both target %q: %w",
				prev, r.Name, entry.DestPath, errResourceDestDuplicate)
		}

		seen[entry.DestPath] = r.Name
	}

	return nil
}

func validateTarget(cfg *Config) error {
	if cfg.Target == "" {
		cfg.Target = runtime.GOOS + "/" + runtime.GOARCH
		return nil
	}

	targetOS, targetArch, ok := strings.Cut(cfg.Target, "/")
	if !ok || targetOS == "" || targetArch == "" || strings.Contains(targetArch, "/") {
		return fmt.Errorf("target %q: %w", cfg.Target, errTargetInvalid)
	}

	return nil
}

func resourceEntry(r Resource) (bundle.ResourceEntry, error) {
	var kind bundle.ResourceKind

	switch r.Kind {
	case "", "file":
		kind = bundle.ResourceFile
	case "dir":
		kind = bundle.ResourceDir
	default:
		return bundle.ResourceEntry{}, fmt.Errorf("resource %q kind %q: %w", r.Name, r.Kind, errResourceKindInvalid)
	}

	return bundle.ResourceEntry{
		LogicalName: r.Name,
		SourcePath:  r.Source,
		DestPath:    r.Dest,
		Kind:        kind,
	}, nil
}

// validDottedName reports whether a string is a dot-separated chain of
// identifiers, the only shape accepted for module names.
func validDottedName(name string) bool {
	if name == "" {
		return false
	}

	for _, segment := range strings.Split(name, ".") {
		if !validIdentifier(segment) {
			return false
		}
	}

	return true
}

func validIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}

	return true
}
