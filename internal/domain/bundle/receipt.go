package bundle

// Receipt records what one build produced. It lives in the work tree,
// next to the intermediate artifacts, never inside the distribution.
type Receipt struct {
	// BuildID is the unique identifier of the run.
	BuildID string `yaml:"build_id"`
	// BundlerVersion is the version of the bundler that produced the build.
	BundlerVersion string `yaml:"bundler_version"`
	// BuiltAt is the completion timestamp in RFC 3339 form.
	BuiltAt string `yaml:"built_at"`
	// Executable is the published program file name.
	Executable string `yaml:"executable"`
	// Target is the "<os>/<arch>" pair the bundle was built for.
	Target string `yaml:"target"`
	// OneFile records the distribution layout.
	OneFile bool `yaml:"one_file"`
	// Modules counts the records packed into the module archive.
	Modules int `yaml:"modules"`
	// PlacedFiles counts the files placed next to the executable.
	PlacedFiles int `yaml:"placed_files"`
	// Warnings counts the findings reported during the build.
	Warnings int `yaml:"warnings"`
	// Checksums maps artifact names to base64 SHA-512 digests.
	Checksums map[string]string `yaml:"checksums"`
}
