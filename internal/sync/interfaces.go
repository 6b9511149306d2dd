package sync

import (
	"context"
	"errors"
)

// Sentinel errors crossing the engine boundary. Protocol adapters translate
// their wire-level failures into these.
var (
	// ErrCredentialsRequired indicates the access token was rejected. The
	// pass is aborted and never retried automatically.
	ErrCredentialsRequired = errors.New("sync: credentials required")

	// ErrDeltaExpired indicates the server no longer accepts the stored
	// delta token. Recovery is cache eviction plus a full resync.
	ErrDeltaExpired = errors.New("sync: delta token expired")

	// ErrNotFound indicates a record or collection is absent from the cache.
	ErrNotFound = errors.New("sync: not found")
)

// Kind identifies what a collection holds.
type Kind string

const (
	// KindMail is a mail folder.
	KindMail Kind = "mail"
	// KindContacts is a contact folder.
	KindContacts Kind = "contacts"
	// KindCalendar is a calendar.
	KindCalendar Kind = "calendar"
)

// Collection is one synchronised container: a mail folder, contact folder, or
// calendar. ID is the server-assigned identifier.
type Collection struct {
	ID          string
	Kind        Kind
	DisplayName string
	ParentID    string
	Unread      int
	Total       int
}

// Page is one page of a collection's change feed. Exactly one of NextLink and
// DeltaLink is set: NextLink continues the same pass, DeltaLink is the new
// token to persist once the pass finishes.
type Page struct {
	Records   []RemoteRecord
	NextLink  string
	DeltaLink string
}

// Source delivers pages of a collection's delta feed.
//
// link is the stored delta token, a next link from a previous page, or empty
// to begin a fresh delta stream. Implementations handle throttling retries
// internally; the errors they return are terminal for the pass.
type Source interface {
	Changes(ctx context.Context, col *Collection, link string) (*Page, error)
}

// FlagUpdate is one pending flag/category change to upload.
type FlagUpdate struct {
	UID        string
	Flags      Flags
	Categories []string
}

// Pusher applies local edits to the server. Implementations batch flag
// updates at the transport level.
type Pusher interface {
	UpdateFlags(ctx context.Context, col *Collection, updates []FlagUpdate) error
	Move(ctx context.Context, col *Collection, uids []string, dest string) error
}

// Cache is the authoritative local projection of a collection, keyed by
// remote id.
type Cache interface {
	// Get returns the cached record or ErrNotFound.
	Get(ctx context.Context, collectionID, uid string) (*Record, error)
	// Put inserts or replaces a record.
	Put(ctx context.Context, collectionID string, rec *Record) error
	// RemoveMany deletes the given uids. Missing uids are ignored.
	RemoveMany(ctx context.Context, collectionID string, uids []string) error
	// Clear evicts every record of the collection.
	Clear(ctx context.Context, collectionID string) error
	// Changed returns the records marked dirty since the last push.
	Changed(ctx context.Context, collectionID string) ([]*Record, error)
	// MarkPushed clears the dirty marker after a successful upload.
	MarkPushed(ctx context.Context, collectionID string, uids []string) error
}

// TokenStore persists one opaque delta token per collection.
type TokenStore interface {
	// Token returns the stored token, or empty when none exists.
	Token(ctx context.Context, collectionID string) (string, error)
	// SetToken overwrites the token. Called only after a fully successful
	// pass.
	SetToken(ctx context.Context, collectionID, token string) error
	// ClearToken deletes the token, forcing a full resync on the next pass.
	ClearToken(ctx context.Context, collectionID string) error
}

// Projector builds the local projection of a remote record for one collection
// kind.
type Projector interface {
	Project(r *RemoteRecord) (*Record, error)
}

// ContentFetcher downloads the full body of a single record (mail MIME).
type ContentFetcher interface {
	FetchContent(ctx context.Context, col *Collection, uid string) ([]byte, error)
}

// ContentCache stores downloaded record bodies.
type ContentCache interface {
	Content(ctx context.Context, collectionID, uid string) ([]byte, error)
	PutContent(ctx context.Context, collectionID, uid string, body []byte) error
}
