package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pkgbuilder",
		Short: "Build Qt Jambi release packages across remote build hosts",
		Long: `Pkgbuilder assembles the release packages of a product for every
enabled platform, architecture and license.

Binary packages are compiled on remote build hosts:
  - Windows (win32, win64, zip bundles)
  - Mac OS X (universal, tar bundles)
  - Linux (linux32, linux64, tar bundles)

Source packages are assembled locally from the same tree.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Setup logging
			verbose, _ := cmd.Flags().GetBool("verbose")
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			} else {
				logrus.SetLevel(logrus.InfoLevel)
			}
		},
	}

	// Global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	rootCmd.AddCommand(NewBuildCmd())
	rootCmd.AddCommand(NewListCmd())

	return rootCmd
}
