package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <collection-id> <uid>",
	Short: "Print the full content of a message",
	Long: `Print the raw MIME content of a message to standard output. The
content is served from the local mirror when present and downloaded once
otherwise.`,
	Args: cobra.ExactArgs(2),
	RunE: runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	col, err := a.store.GetCollection(ctx, args[0])
	if err != nil {
		return fmt.Errorf("collection %s: %w", args[0], err)
	}

	body, err := a.engine.FetchContent(ctx, col, args[1])
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(body)
	return err
}

func init() {
	rootCmd.AddCommand(showCmd)
}
