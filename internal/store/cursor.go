package store

import (
	"encoding/base64"
	"encoding/json"
	"errors"
)

// CursorVersion is the format version stamped into every encoded cursor.
const CursorVersion = 1

// ErrInvalidCursor means the stored blob is not a cursor this version of
// the store can read.
var ErrInvalidCursor = errors.New("store: invalid cursor format")

// Cursor is the persisted sync state of one collection: a versioned wrapper
// around the server's opaque delta link, so that a future format change can
// be detected instead of silently misread.
type Cursor struct {
	Version   int    `json:"v"`
	DeltaLink string `json:"delta_link"`
}

// NewCursor returns an empty cursor at the current version. An empty delta
// link means the collection has never completed a pass.
func NewCursor() *Cursor {
	return &Cursor{Version: CursorVersion}
}

// Encode serialises the cursor to a base64 string for storage.
func (c *Cursor) Encode() string {
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeCursor deserialises a cursor from a base64 string.
func DecodeCursor(s string) (*Cursor, error) {
	if s == "" {
		return NewCursor(), nil
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	var cursor Cursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return nil, ErrInvalidCursor
	}

	// A cursor written by a newer version is unreadable, not empty.
	if cursor.Version > CursorVersion {
		return nil, ErrInvalidCursor
	}

	return &cursor, nil
}

// IsEmpty returns true if the cursor has no sync state.
func (c *Cursor) IsEmpty() bool {
	return c.DeltaLink == ""
}
