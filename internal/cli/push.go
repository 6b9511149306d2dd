package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/graphmirror/internal/sync"
)

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Upload local flag and category changes to the server",
	Long: `Write pending local changes back to the server. Read, flagged and
category edits become updates; records marked deleted or junk are moved to
the corresponding server folder.`,
	RunE: runPush,
}

func runPush(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	var updated, moved int

	for _, kind := range a.enabledKinds() {
		cols, err := a.store.ListCollections(ctx, kind)
		if err != nil {
			return err
		}
		for i := range cols {
			stats, err := a.engine.Push(ctx, &cols[i])
			if err != nil {
				if errors.Is(err, sync.ErrCredentialsRequired) {
					return fmt.Errorf("not signed in, run login first")
				}
				return fmt.Errorf("push %s: %w", cols[i].DisplayName, err)
			}
			updated += stats.Updated
			moved += stats.Moved
		}
	}

	if updated == 0 && moved == 0 {
		fmt.Println("Nothing to push.")
		return nil
	}
	fmt.Printf("Pushed %d update(s), %d move(s).\n", updated, moved)
	return nil
}

func init() {
	rootCmd.AddCommand(pushCmd)
}
