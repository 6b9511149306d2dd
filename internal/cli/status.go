package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/graphmirror/internal/sync"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the account and mirror state",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()

	if a.cfg.Account.Email != "" {
		fmt.Printf("Account:   %s\n", a.cfg.Account.Email)
	} else {
		fmt.Println("Account:   not signed in")
	}
	fmt.Printf("Tenant:    %s\n", a.cfg.Account.Tenant)

	var collections, records, pending int
	for _, kind := range []sync.Kind{sync.KindMail, sync.KindContacts, sync.KindCalendar} {
		cols, err := a.store.ListCollections(ctx, kind)
		if err != nil {
			return err
		}
		collections += len(cols)
		for i := range cols {
			records += cols[i].Total
			dirty, err := a.store.Changed(ctx, cols[i].ID)
			if err != nil {
				return err
			}
			pending += len(dirty)
		}
	}

	fmt.Printf("Mirror:    %d collection(s), %d record(s)\n", collections, records)
	fmt.Printf("Pending:   %d local change(s) to push\n", pending)
	return nil
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
