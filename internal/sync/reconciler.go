package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/graphmirror/internal/logger"
)

// Reconciler classifies remote records against the local cache and applies
// the resulting mutations. It processes records in server order and performs
// no batching of its own.
type Reconciler struct {
	cache      Cache
	projectors map[Kind]Projector
}

// NewReconciler creates a reconciler over the given cache and per-kind
// projectors.
func NewReconciler(cache Cache, projectors map[Kind]Projector) *Reconciler {
	return &Reconciler{cache: cache, projectors: projectors}
}

// Apply reconciles a single remote record into the cache and appends the
// record's id to the matching ChangeSet list. A record that carries no
// server-owned change is a no-op and is not reported as modified.
func (rc *Reconciler) Apply(ctx context.Context, col *Collection, r *RemoteRecord, cs *ChangeSet) error {
	if r.Removed {
		return rc.applyTombstone(ctx, col, r, cs)
	}

	local, err := rc.cache.Get(ctx, col.ID, r.ID)
	switch {
	case errors.Is(err, ErrNotFound):
		return rc.applyCreate(ctx, col, r, cs)
	case err != nil:
		return fmt.Errorf("load record %s: %w", r.ID, err)
	}

	if !serverChanged(r, local) {
		return nil
	}
	return rc.applyUpdate(ctx, col, r, local, cs)
}

func (rc *Reconciler) applyTombstone(ctx context.Context, col *Collection, r *RemoteRecord, cs *ChangeSet) error {
	_, err := rc.cache.Get(ctx, col.ID, r.ID)
	if errors.Is(err, ErrNotFound) {
		// Already absent.
		return nil
	}
	if err != nil {
		return fmt.Errorf("load record %s: %w", r.ID, err)
	}

	if err := rc.cache.RemoveMany(ctx, col.ID, []string{r.ID}); err != nil {
		return fmt.Errorf("remove record %s: %w", r.ID, err)
	}
	cs.Removed = append(cs.Removed, r.ID)
	return nil
}

func (rc *Reconciler) applyCreate(ctx context.Context, col *Collection, r *RemoteRecord, cs *ChangeSet) error {
	rec, err := rc.project(col.Kind, r)
	if err != nil {
		return err
	}
	rec.ServerFlags = r.Flags & ServerFlagMask
	rec.Flags = r.Flags
	rec.ChangeKey = r.ChangeKey
	rec.Categories = r.Categories

	if err := rc.cache.Put(ctx, col.ID, rec); err != nil {
		return fmt.Errorf("store record %s: %w", r.ID, err)
	}
	cs.Created = append(cs.Created, r.ID)
	return nil
}

func (rc *Reconciler) applyUpdate(ctx context.Context, col *Collection, r *RemoteRecord, local *Record, cs *ChangeSet) error {
	fresh, err := rc.project(col.Kind, r)
	if err != nil {
		return err
	}

	merged := mergeServer(local, r, fresh)
	if err := rc.cache.Put(ctx, col.ID, merged); err != nil {
		return fmt.Errorf("store record %s: %w", r.ID, err)
	}
	cs.Modified = append(cs.Modified, r.ID)
	return nil
}

func (rc *Reconciler) project(kind Kind, r *RemoteRecord) (*Record, error) {
	p, ok := rc.projectors[kind]
	if !ok {
		return nil, fmt.Errorf("no projector for kind %q", kind)
	}
	rec, err := p.Project(r)
	if err != nil {
		logger.Warn("sync: skipping malformed record %s: %v", r.ID, err)
		return nil, &recordError{err: fmt.Errorf("project record %s: %w", r.ID, err)}
	}
	return rec, nil
}
