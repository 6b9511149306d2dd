package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/graphmirror/internal/logger"
	"github.com/custodia-labs/graphmirror/internal/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Refresh the local mirror from the server",
	Long: `Discover the enabled collections on the server and apply their
server-side changes to the local mirror. The first run performs a full
download; later runs only transfer what changed.`,
	RunE: runSync,
}

var syncKind string

func runSync(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()

	kinds := a.enabledKinds()
	if syncKind != "" {
		k := sync.Kind(syncKind)
		if k != sync.KindMail && k != sync.KindContacts && k != sync.KindCalendar {
			return fmt.Errorf("unknown kind %q (mail, contacts, calendar)", syncKind)
		}
		kinds = []sync.Kind{k}
	}

	for _, kind := range kinds {
		cols, err := a.source.ListCollections(ctx, kind)
		if err != nil {
			if errors.Is(err, sync.ErrCredentialsRequired) {
				return fmt.Errorf("not signed in, run login first")
			}
			return fmt.Errorf("list %s collections: %w", kind, err)
		}

		for i := range cols {
			col := &cols[i]
			if err := a.store.UpsertCollection(ctx, col); err != nil {
				return err
			}

			changes, err := a.engine.Refresh(ctx, col)
			if err != nil {
				if errors.Is(err, sync.ErrCredentialsRequired) {
					return fmt.Errorf("not signed in, run login first")
				}
				logger.Error("refresh %s: %s", col.DisplayName, err)
				continue
			}
			if err := a.store.UpdateCounts(ctx, col.ID, col.Unread, col.Total); err != nil {
				logger.Warn("update counts for %s: %s", col.DisplayName, err)
			}

			if changes.Empty() {
				logger.Debug("%s: up to date", col.DisplayName)
				continue
			}
			fmt.Printf("%-30s %d new, %d changed, %d removed\n",
				col.DisplayName, len(changes.Created), len(changes.Modified), len(changes.Removed))
		}
	}
	return nil
}

func init() {
	syncCmd.Flags().StringVar(&syncKind, "kind", "", "sync only one kind (mail, contacts, calendar)")
	rootCmd.AddCommand(syncCmd)
}
