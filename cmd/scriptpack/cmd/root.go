package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/my3495/scriptpack/internal/config"
	"github.com/my3495/scriptpack/internal/logger"
	"github.com/my3495/scriptpack/internal/service/builder"
	"github.com/my3495/scriptpack/internal/service/scaffold"
	"github.com/my3495/scriptpack/internal/version"
)

var (
	// configPath to the build manifest YAML file.
	configPath string
	// logLevel selects the verbosity of build logging.
	logLevel string

	// distPath overrides the configured distribution directory.
	distPath string
	// workPath overrides the configured work directory.
	workPath string
	// stubDir overrides the configured launcher stub directory.
	stubDir string
	// target overrides the configured "<os>/<arch>" pair.
	target string
	// oneFile selects single-file output.
	oneFile bool
	// windowed selects the windowed launcher stub.
	windowed bool
	// clean wipes the work tree before building.
	clean bool

	// appName names the scaffolded bundle.
	appName string
	// force overwrites an existing manifest.
	force bool

	// rootCmd represents the base command of the bundler CLI.
	rootCmd = &cobra.Command{
		Use:   "scriptpack",
		Short: "Bundle Python applications into self-contained executables.",
		Long: `Packs a Python application and everything it imports into a single
distributable program: a launcher stub with the module archive and the
application's data files attached.

The pipeline is driven by a YAML build manifest, scriptpack.yaml by
default. Run "scriptpack init" to write a starter manifest, then
"scriptpack build" to produce the distribution.`,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return fmt.Errorf("unknown log level %q", logLevel)
			}

			logger.SetLevel(level)

			return nil
		},
	}

	// buildCmd runs the full bundling pipeline.
	buildCmd = &cobra.Command{
		Use:   "build",
		Short: "Build the distribution described by the manifest.",
		Long: `Runs the bundling pipeline end to end: dependency analysis, module
archiving, executable assembly and distribution collection.

Flags override the corresponding manifest settings, so a one-file or a
cross-target bundle can be produced without editing the manifest.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &builder.Options{
				ConfigPath: configPath,
				DistPath:   distPath,
				WorkPath:   workPath,
				StubDir:    stubDir,
				Target:     target,
				Clean:      clean,
			}

			// Only flags the user actually set may override the manifest.
			if cmd.Flags().Changed("one-file") {
				options.OneFile = &oneFile
			}

			if cmd.Flags().Changed("windowed") {
				options.Windowed = &windowed
			}

			return builder.Run(ctx, options)
		},
	}

	// initCmd writes a starter build manifest.
	initCmd = &cobra.Command{
		Use:   "init [entry-point]",
		Short: "Write a starter build manifest.",
		Long: `Creates a build manifest for the given entry script, main.py when
omitted. The app name is derived from the entry point unless --app-name
is passed. An existing manifest is only replaced with --force.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use entry point argument if provided, otherwise rely on the default.
			var entryPoint string
			if len(args) > 0 {
				entryPoint = args[0]
			}

			options := &scaffold.Options{
				ConfigPath: configPath,
				AppName:    appName,
				EntryPoint: entryPoint,
				OneFile:    oneFile,
				Windowed:   windowed,
				Force:      force,
			}

			return scaffold.Run(ctx, options)
		},
	}
)

// Execute runs the scriptpack CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to build manifest")
	rootCmd.PersistentFlags().
		StringVar(&logLevel, "log-level", "info", "log verbosity (debug, info, warn, error)")

	buildCmd.Flags().StringVar(&distPath, "dist", "", "distribution directory override")
	buildCmd.Flags().StringVar(&workPath, "work", "", "work directory override")
	buildCmd.Flags().StringVar(&stubDir, "stub-dir", "", "launcher stub directory override")
	buildCmd.Flags().StringVarP(&target, "target", "t", "", `target platform override as "<os>/<arch>"`)
	buildCmd.Flags().BoolVar(&oneFile, "one-file", false, "collect the distribution into a single executable")
	buildCmd.Flags().BoolVar(&windowed, "windowed", false, "use the windowed launcher stub")
	buildCmd.Flags().BoolVar(&clean, "clean", false, "wipe the work tree before building")

	initCmd.Flags().StringVar(&appName, "app-name", "", "bundle name, derived from the entry point when empty")
	initCmd.Flags().BoolVar(&oneFile, "one-file", false, "preselect single-file output")
	initCmd.Flags().BoolVar(&windowed, "windowed", false, "preselect the windowed launcher")
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing manifest")

	rootCmd.AddCommand(buildCmd, initCmd)
}
