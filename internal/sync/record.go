package sync

import (
	"encoding/json"
	"slices"
)

// Flags is a bitmask of per-record message flags. The low bits mirror
// server-owned state; the high bits only ever originate locally and are
// pushed to the server as moves rather than flag updates.
type Flags uint32

const (
	// FlagSeen marks a record as read.
	FlagSeen Flags = 1 << iota
	// FlagFlagged marks a record as flagged for follow-up.
	FlagFlagged
	// FlagAnswered marks a mail record as replied to.
	FlagAnswered
	// FlagDraft marks a record as a draft.
	FlagDraft
	// FlagDeleted is a local-only pending delete; pushing it issues a move
	// to the Deleted Items folder.
	FlagDeleted
	// FlagJunk is a local-only junk mark; pushing it issues a move to the
	// Junk Email folder.
	FlagJunk
)

// ServerFlagMask selects the flag bits whose authoritative value comes from
// the server. Bits outside the mask are never touched by a reconciliation
// pass.
const ServerFlagMask = FlagSeen | FlagFlagged | FlagAnswered | FlagDraft

// Has reports whether all bits in mask are set.
func (f Flags) Has(mask Flags) bool {
	return f&mask == mask
}

// RemoteRecord is one entry of a collection's delta feed: either a tombstone
// or a server entity with its current version stamp and server-owned fields
// already decoded. Raw carries the full protocol payload for projection.
type RemoteRecord struct {
	ID         string
	ChangeKey  string
	Removed    bool
	Flags      Flags
	Categories []string
	Raw        json.RawMessage
}

// Record is the locally cached projection of a remote record. UID equals the
// server-assigned id and is immutable for the lifetime of the entity.
type Record struct {
	UID       string
	ChangeKey string
	// Flags is the current local opinion, including local-only bits and
	// local edits not yet pushed.
	Flags Flags
	// ServerFlags holds the server-owned bits exactly as last seen from the
	// server; comparing against it detects no-op updates and tells a merge
	// which bits the server actually changed.
	ServerFlags Flags
	Categories  []string
	// Dirty marks records with local edits pending upload.
	Dirty bool
	// Summary is the protocol-specific projected payload (mail summary
	// JSON, vCard, iCalendar).
	Summary []byte
}

// serverChanged reports whether r carries any server-owned change relative to
// the cached record.
func serverChanged(r *RemoteRecord, local *Record) bool {
	if r.ChangeKey != local.ChangeKey {
		return true
	}
	if r.Flags&ServerFlagMask != local.ServerFlags&ServerFlagMask {
		return true
	}
	return !slices.Equal(r.Categories, local.Categories)
}

// mergeServer applies the server-owned fields of r onto fresh, preserving the
// local-only state of local. Only flag bits the server actually changed since
// the last pass are overwritten; a bit edited locally in the meantime keeps
// its local value unless the server moved it too.
func mergeServer(local *Record, r *RemoteRecord, fresh *Record) *Record {
	out := *fresh
	diff := (r.Flags ^ local.ServerFlags) & ServerFlagMask
	out.Flags = (local.Flags &^ diff) | (r.Flags & diff)
	out.ServerFlags = r.Flags & ServerFlagMask
	out.ChangeKey = r.ChangeKey
	out.Categories = r.Categories
	out.Dirty = local.Dirty
	return &out
}
