package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/graphmirror/internal/sync"
)

var collectionsCmd = &cobra.Command{
	Use:     "collections",
	Aliases: []string{"folders"},
	Short:   "List the locally known collections",
	RunE:    runCollections,
}

func runCollections(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tNAME\tUNREAD\tTOTAL")

	for _, kind := range []sync.Kind{sync.KindMail, sync.KindContacts, sync.KindCalendar} {
		cols, err := a.store.ListCollections(ctx, kind)
		if err != nil {
			return err
		}
		for _, col := range cols {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n",
				col.ID, col.Kind, col.DisplayName, col.Unread, col.Total)
		}
	}
	return w.Flush()
}

func init() {
	rootCmd.AddCommand(collectionsCmd)
}
