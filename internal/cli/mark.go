package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/graphmirror/internal/sync"
)

var markCmd = &cobra.Command{
	Use:   "mark <collection-id> <uid> <state>...",
	Short: "Change the local flags of a record",
	Long: `Change the flags of a record in the local mirror. The change is
kept locally until the next push. States: seen, unseen, flagged, unflagged,
deleted, junk.`,
	Args: cobra.MinimumNArgs(3),
	RunE: runMark,
}

func runMark(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	colID, uid := args[0], args[1]

	rec, err := a.store.Get(ctx, colID, uid)
	if errors.Is(err, sync.ErrNotFound) {
		return fmt.Errorf("no record %s in collection %s", uid, colID)
	}
	if err != nil {
		return err
	}

	flags := rec.Flags
	for _, state := range args[2:] {
		switch state {
		case "seen":
			flags |= sync.FlagSeen
		case "unseen":
			flags &^= sync.FlagSeen
		case "flagged":
			flags |= sync.FlagFlagged
		case "unflagged":
			flags &^= sync.FlagFlagged
		case "deleted":
			flags |= sync.FlagDeleted
		case "junk":
			flags |= sync.FlagJunk
		default:
			return fmt.Errorf("unknown state %q", state)
		}
	}

	if err := a.store.SetFlags(ctx, colID, uid, flags, rec.Categories); err != nil {
		return err
	}
	fmt.Println("Marked. Run push to upload the change.")
	return nil
}

func init() {
	rootCmd.AddCommand(markCmd)
}
