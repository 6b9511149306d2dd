package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/graphmirror/internal/logger"
	"github.com/custodia-labs/graphmirror/internal/sync"
)

// Ensure Store satisfies the engine's token store contract.
var _ sync.TokenStore = (*Store)(nil)

// UpsertCollection inserts or refreshes a collection's metadata. The delta
// cursor is preserved on conflict; sync state survives a metadata refresh.
func (s *Store) UpsertCollection(ctx context.Context, col *sync.Collection) error {
	query := `
		INSERT INTO collections (id, kind, display_name, parent_id, unread_count, total_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			display_name = excluded.display_name,
			parent_id = excluded.parent_id,
			unread_count = excluded.unread_count,
			total_count = excluded.total_count,
			updated_at = CURRENT_TIMESTAMP
	`
	_, err := s.db.ExecContext(ctx, query,
		col.ID, string(col.Kind), col.DisplayName, col.ParentID, col.Unread, col.Total)
	if err != nil {
		return fmt.Errorf("upsert collection %s: %w", col.ID, err)
	}
	return nil
}

// GetCollection returns a collection by id, or sync.ErrNotFound.
func (s *Store) GetCollection(ctx context.Context, id string) (*sync.Collection, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, display_name, parent_id, unread_count, total_count
		FROM collections WHERE id = ?`, id)
	return scanCollection(row)
}

// ListCollections returns every known collection, optionally filtered by
// kind (empty kind means all).
func (s *Store) ListCollections(ctx context.Context, kind sync.Kind) ([]sync.Collection, error) {
	query := `
		SELECT id, kind, display_name, parent_id, unread_count, total_count
		FROM collections`
	args := []any{}
	if kind != "" {
		query += " WHERE kind = ?"
		args = append(args, string(kind))
	}
	query += " ORDER BY kind, display_name"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	var out []sync.Collection
	for rows.Next() {
		col, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *col)
	}
	return out, rows.Err()
}

// DeleteCollection removes a collection together with its records and
// cached bodies.
func (s *Store) DeleteCollection(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM contents WHERE collection_id = ?", id); err != nil {
		return fmt.Errorf("delete collection contents %s: %w", id, err)
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM collections WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete collection %s: %w", id, err)
	}
	return nil
}

// UpdateCounts stores refreshed unread/total counters for a collection.
func (s *Store) UpdateCounts(ctx context.Context, id string, unread, total int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE collections SET unread_count = ?, total_count = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, unread, total, id)
	if err != nil {
		return fmt.Errorf("update counts %s: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCollection(row rowScanner) (*sync.Collection, error) {
	var col sync.Collection
	var kind string
	err := row.Scan(&col.ID, &kind, &col.DisplayName, &col.ParentID, &col.Unread, &col.Total)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sync.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan collection: %w", err)
	}
	col.Kind = sync.Kind(kind)
	return &col, nil
}

// Token returns the stored delta link for a collection, or empty when none
// exists or the stored blob is unreadable (which only costs a full resync).
func (s *Store) Token(ctx context.Context, collectionID string) (string, error) {
	var blob string
	err := s.db.QueryRowContext(ctx,
		"SELECT delta_cursor FROM collections WHERE id = ?", collectionID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read delta cursor %s: %w", collectionID, err)
	}

	cursor, err := DecodeCursor(blob)
	if err != nil {
		logger.Warn("store: invalid delta cursor for %s, forcing full sync", collectionID)
		return "", nil
	}
	return cursor.DeltaLink, nil
}

// SetToken persists a new delta link for the collection.
func (s *Store) SetToken(ctx context.Context, collectionID, token string) error {
	cursor := NewCursor()
	cursor.DeltaLink = token
	_, err := s.db.ExecContext(ctx, `
		UPDATE collections SET delta_cursor = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, cursor.Encode(), collectionID)
	if err != nil {
		return fmt.Errorf("store delta cursor %s: %w", collectionID, err)
	}
	return nil
}

// ClearToken deletes the collection's sync state, forcing a full resync.
func (s *Store) ClearToken(ctx context.Context, collectionID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE collections SET delta_cursor = '', updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, collectionID)
	if err != nil {
		return fmt.Errorf("clear delta cursor %s: %w", collectionID, err)
	}
	return nil
}
