package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/my3495/scriptpack/internal/service/inspector"
	"github.com/my3495/scriptpack/internal/version"
)

var (
	// verify additionally decodes every payload and checks digests.
	verify bool
	// extract names one archived module to write out instead of a listing.
	extract string
	// outputPath receives the extracted payload, stdout when empty.
	outputPath string

	// rootCmd represents the base command for inspecting build artifacts.
	rootCmd = &cobra.Command{
		Use:   "scriptpack-inspect <artifact>",
		Short: "List, verify and unpack bundled executables and module archives.",
		Long: `Prints the contents of a bundled executable or a bare module archive.

The artifact type is detected from the file itself, so both the archive
in the work tree and the final executable can be inspected. With
--verify every payload is decoded and checked against its recorded
digest. With --extract the named module's source is written out instead
of a listing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &inspector.Options{
				Path:       args[0],
				Verify:     verify,
				Extract:    extract,
				OutputPath: outputPath,
				Output:     cmd.OutOrStdout(),
			}

			return inspector.Run(ctx, options)
		},
	}
)

// Execute runs the scriptpack-inspect CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().BoolVar(&verify, "verify", false, "decode every payload and check digests")
	rootCmd.Flags().StringVarP(&extract, "extract", "x", "", "module whose source should be written out")
	rootCmd.Flags().StringVarP(&outputPath, "out", "o", "", "file receiving the extracted module, stdout when empty")
}
