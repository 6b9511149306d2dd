// Package cli implements the graphmirror command-line interface.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/graphmirror/internal/logger"
)

var (
	// version is set by goreleaser ldflags.
	version = "dev"

	// verbose enables debug logging.
	verbose bool
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "graphmirror",
	Short: "Mirror Microsoft 365 mail, contacts, and calendars locally",
	Long: `graphmirror keeps a local copy of your Microsoft 365 mailbox, contact
folders, and calendars, synchronised incrementally with Microsoft Graph
delta queries. Local flag edits are pushed back to the server.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string for the CLI.
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose debug output")

	rootCmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)
		return nil
	}
}
