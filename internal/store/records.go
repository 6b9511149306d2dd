package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/graphmirror/internal/sync"
)

// Ensure Store satisfies the engine's cache contracts.
var (
	_ sync.Cache        = (*Store)(nil)
	_ sync.ContentCache = (*Store)(nil)
)

// Get returns the cached record, or sync.ErrNotFound.
func (s *Store) Get(ctx context.Context, collectionID, uid string) (*sync.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT uid, change_key, flags, server_flags, categories, dirty, summary
		FROM records WHERE collection_id = ? AND uid = ?`, collectionID, uid)
	return scanRecord(row)
}

// Put inserts or replaces a record.
func (s *Store) Put(ctx context.Context, collectionID string, rec *sync.Record) error {
	categories, err := json.Marshal(categoriesOrEmpty(rec.Categories))
	if err != nil {
		return fmt.Errorf("marshal categories: %w", err)
	}

	query := `
		INSERT INTO records (collection_id, uid, change_key, flags, server_flags, categories, dirty, summary, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(collection_id, uid) DO UPDATE SET
			change_key = excluded.change_key,
			flags = excluded.flags,
			server_flags = excluded.server_flags,
			categories = excluded.categories,
			dirty = excluded.dirty,
			summary = excluded.summary,
			updated_at = CURRENT_TIMESTAMP
	`
	_, err = s.db.ExecContext(ctx, query,
		collectionID, rec.UID, rec.ChangeKey, int64(rec.Flags), int64(rec.ServerFlags),
		string(categories), boolToInt(rec.Dirty), rec.Summary)
	if err != nil {
		return fmt.Errorf("store record %s: %w", rec.UID, err)
	}
	return nil
}

// RemoveMany deletes the given uids. Missing uids are ignored.
func (s *Store) RemoveMany(ctx context.Context, collectionID string, uids []string) error {
	if len(uids) == 0 {
		return nil
	}

	args := make([]any, 0, len(uids)+1)
	args = append(args, collectionID)
	for _, uid := range uids {
		args = append(args, uid)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(uids)), ",")

	query := fmt.Sprintf(
		"DELETE FROM records WHERE collection_id = ? AND uid IN (%s)", placeholders)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("remove records: %w", err)
	}

	query = fmt.Sprintf(
		"DELETE FROM contents WHERE collection_id = ? AND uid IN (%s)", placeholders)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("remove record bodies: %w", err)
	}
	return nil
}

// Clear evicts every record and cached body of the collection.
func (s *Store) Clear(ctx context.Context, collectionID string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM records WHERE collection_id = ?", collectionID); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM contents WHERE collection_id = ?", collectionID); err != nil {
		return fmt.Errorf("clear record bodies: %w", err)
	}
	return nil
}

// Changed returns the records marked dirty since the last push, in uid order.
func (s *Store) Changed(ctx context.Context, collectionID string) ([]*sync.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT uid, change_key, flags, server_flags, categories, dirty, summary
		FROM records WHERE collection_id = ? AND dirty = 1 ORDER BY uid`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("list dirty records: %w", err)
	}
	defer rows.Close()

	var out []*sync.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// MarkPushed clears the dirty marker for the given uids.
func (s *Store) MarkPushed(ctx context.Context, collectionID string, uids []string) error {
	if len(uids) == 0 {
		return nil
	}

	args := make([]any, 0, len(uids)+1)
	args = append(args, collectionID)
	for _, uid := range uids {
		args = append(args, uid)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(uids)), ",")

	query := fmt.Sprintf(
		"UPDATE records SET dirty = 0 WHERE collection_id = ? AND uid IN (%s)", placeholders)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clear dirty markers: %w", err)
	}
	return nil
}

// SetFlags applies a local flag/category edit to a record and marks it dirty
// for the next push pass.
func (s *Store) SetFlags(ctx context.Context, collectionID, uid string, flags sync.Flags, categories []string) error {
	cats, err := json.Marshal(categoriesOrEmpty(categories))
	if err != nil {
		return fmt.Errorf("marshal categories: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE records SET flags = ?, categories = ?, dirty = 1, updated_at = CURRENT_TIMESTAMP
		WHERE collection_id = ? AND uid = ?`,
		int64(flags), string(cats), collectionID, uid)
	if err != nil {
		return fmt.Errorf("set flags %s: %w", uid, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sync.ErrNotFound
	}
	return nil
}

// Content returns a cached record body, or sync.ErrNotFound.
func (s *Store) Content(ctx context.Context, collectionID, uid string) ([]byte, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT body FROM contents WHERE collection_id = ? AND uid = ?",
		collectionID, uid).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sync.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read body %s: %w", uid, err)
	}
	return body, nil
}

// PutContent stores a downloaded record body.
func (s *Store) PutContent(ctx context.Context, collectionID, uid string, body []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contents (collection_id, uid, body, fetched_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(collection_id, uid) DO UPDATE SET
			body = excluded.body,
			fetched_at = CURRENT_TIMESTAMP`,
		collectionID, uid, body)
	if err != nil {
		return fmt.Errorf("store body %s: %w", uid, err)
	}
	return nil
}

func scanRecord(row rowScanner) (*sync.Record, error) {
	var rec sync.Record
	var flags, serverFlags int64
	var dirty int
	var categories string

	err := row.Scan(&rec.UID, &rec.ChangeKey, &flags, &serverFlags, &categories, &dirty, &rec.Summary)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sync.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan record: %w", err)
	}

	rec.Flags = sync.Flags(flags)
	rec.ServerFlags = sync.Flags(serverFlags)
	rec.Dirty = dirty != 0
	if err := json.Unmarshal([]byte(categories), &rec.Categories); err != nil {
		return nil, fmt.Errorf("unmarshal categories: %w", err)
	}
	if len(rec.Categories) == 0 {
		rec.Categories = nil
	}
	return &rec, nil
}

func categoriesOrEmpty(cats []string) []string {
	if cats == nil {
		return []string{}
	}
	return cats
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
