package bundle

import "fmt"

// Metadata carries the executable-facing settings of a build.
type Metadata struct {
	// ExecutableName is the base name of the produced launcher,
	// without any platform suffix.
	ExecutableName string
	// IconPath points at an optional .ico or .png icon file.
	// Empty means no icon is embedded.
	IconPath string
	// VersionInfoPath points at an optional version descriptor file.
	// Empty means no version block is embedded.
	VersionInfoPath string
	// Windowed selects the GUI launcher variant that opens no console.
	Windowed bool
	// TargetOS is the GOOS-style platform the bundle is built for.
	TargetOS string
	// TargetArch is the GOARCH-style architecture the bundle is built for.
	TargetArch string
	// OneFile collapses the whole bundle into a single executable.
	OneFile bool
}

// Target formats the platform pair the way stub binaries are named.
func (m *Metadata) Target() string {
	return fmt.Sprintf("%s/%s", m.TargetOS, m.TargetArch)
}

// OutputName is the file name of the produced executable, with the
// platform suffix applied for Windows targets.
func (m *Metadata) OutputName() string {
	if m.TargetOS == "windows" {
		return m.ExecutableName + ".exe"
	}

	return m.ExecutableName
}

// PlacedFile is one concrete file placement in the output tree: a native
// module or an expanded resource mapped to its bundle-relative
// destination. The collector copies placements, the assembler embeds
// them in one-file mode.
type PlacedFile struct {
	// SourcePath is the host file to take content from.
	SourcePath string
	// DestPath is the slash-separated destination inside the bundle.
	DestPath string
	// FromResource distinguishes resource placements from native module
	// placements when destinations collide.
	FromResource bool
}

// LaunchSpec is the small document the launcher reads at runtime to know
// what to start. It is serialized into the executable overlay.
type LaunchSpec struct {
	// EntryModule is the qualified name of the module to run.
	EntryModule string `yaml:"entry_module"`
	// EntryFile is the slash-separated bundle path of the entry source.
	EntryFile string `yaml:"entry_file"`
	// Interpreter names the runtime command the launcher executes.
	Interpreter string `yaml:"interpreter"`
	// InterpreterArgs are passed to the interpreter before the entry file.
	InterpreterArgs []string `yaml:"interpreter_args,omitempty"`
	// PathEnv is the environment variable that receives the module
	// search path, PYTHONPATH unless overridden.
	PathEnv string `yaml:"path_env"`
	// Windowed mirrors the build setting for runtime diagnostics.
	Windowed bool `yaml:"windowed"`
	// OneFile mirrors the build layout for runtime diagnostics.
	OneFile bool `yaml:"one_file"`
}
