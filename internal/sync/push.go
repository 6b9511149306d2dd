package sync

import (
	"context"
	"fmt"

	"github.com/custodia-labs/graphmirror/internal/logger"
)

// Well-known destination folders for local-only flag pushes.
const (
	// DestTrash is the Deleted Items well-known folder.
	DestTrash = "deleteditems"
	// DestJunk is the Junk Email well-known folder.
	DestJunk = "junkemail"
)

// PushStats summarises one push pass.
type PushStats struct {
	Updated int
	Moved   int
}

// Push uploads local edits for the collection: records carrying the local
// Deleted or Junk flag are moved to the matching special folder, everything
// else goes out as flag/category updates. The transport batches the updates;
// dirty markers are cleared only after the corresponding call succeeded.
func (e *Engine) Push(ctx context.Context, col *Collection) (*PushStats, error) {
	l := e.lockFor(col.ID)
	l.Lock()
	defer l.Unlock()

	dirty, err := e.cache.Changed(ctx, col.ID)
	if err != nil {
		return nil, fmt.Errorf("list dirty records: %w", err)
	}
	if len(dirty) == 0 {
		return &PushStats{}, nil
	}

	var (
		toTrash []string
		toJunk  []string
		updates []FlagUpdate
	)
	for _, rec := range dirty {
		switch {
		case rec.Flags.Has(FlagDeleted):
			toTrash = append(toTrash, rec.UID)
		case rec.Flags.Has(FlagJunk):
			toJunk = append(toJunk, rec.UID)
		default:
			updates = append(updates, FlagUpdate{
				UID:        rec.UID,
				Flags:      rec.Flags,
				Categories: rec.Categories,
			})
		}
	}

	stats := &PushStats{}

	if err := e.pushMoves(ctx, col, toTrash, DestTrash, stats); err != nil {
		return stats, err
	}
	if err := e.pushMoves(ctx, col, toJunk, DestJunk, stats); err != nil {
		return stats, err
	}

	if len(updates) > 0 {
		if err := e.pusher.UpdateFlags(ctx, col, updates); err != nil {
			return stats, fmt.Errorf("update flags: %w", err)
		}
		uids := make([]string, len(updates))
		for i, u := range updates {
			uids[i] = u.UID
		}
		if err := e.cache.MarkPushed(ctx, col.ID, uids); err != nil {
			logger.Warn("sync: clearing dirty markers for %s: %v", col.ID, err)
		}
		stats.Updated = len(updates)
	}

	logger.Debug("sync: %s push complete: %d updated, %d moved",
		col.ID, stats.Updated, stats.Moved)
	return stats, nil
}

// pushMoves moves uids to dest and drops them from the local cache: the
// records now belong to another collection and the next pass of that
// collection picks them up.
func (e *Engine) pushMoves(ctx context.Context, col *Collection, uids []string, dest string, stats *PushStats) error {
	if len(uids) == 0 {
		return nil
	}
	if err := e.pusher.Move(ctx, col, uids, dest); err != nil {
		return fmt.Errorf("move to %s: %w", dest, err)
	}
	if err := e.cache.RemoveMany(ctx, col.ID, uids); err != nil {
		return fmt.Errorf("drop moved records: %w", err)
	}
	stats.Moved += len(uids)
	return nil
}
