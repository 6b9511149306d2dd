package sync

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconciler_Apply_Create(t *testing.T) {
	cache := newFakeCache()
	rc := NewReconciler(cache, testProjectors())
	col := mailCollection()
	cs := &ChangeSet{}

	r := &RemoteRecord{
		ID:         "m1",
		ChangeKey:  "ck1",
		Flags:      FlagSeen,
		Categories: []string{"Red"},
		Raw:        json.RawMessage(`{"subject":"hello"}`),
	}
	err := rc.Apply(context.Background(), col, r, cs)

	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, cs.Created)
	assert.Empty(t, cs.Modified)

	rec := cache.get(col.ID, "m1")
	require.NotNil(t, rec)
	assert.Equal(t, "ck1", rec.ChangeKey)
	assert.Equal(t, FlagSeen, rec.Flags)
	assert.Equal(t, FlagSeen, rec.ServerFlags)
	assert.Equal(t, []string{"Red"}, rec.Categories)
	assert.False(t, rec.Dirty)
}

func TestReconciler_Apply_NoOp(t *testing.T) {
	cache := newFakeCache()
	cache.put("inbox", &Record{
		UID:         "m1",
		ChangeKey:   "ck1",
		Flags:       FlagSeen,
		ServerFlags: FlagSeen,
	})
	rc := NewReconciler(cache, testProjectors())
	cs := &ChangeSet{}

	r := &RemoteRecord{ID: "m1", ChangeKey: "ck1", Flags: FlagSeen}
	err := rc.Apply(context.Background(), mailCollection(), r, cs)

	require.NoError(t, err)
	assert.True(t, cs.Empty(), "identical record must not be reported")
}

func TestReconciler_Apply_Update(t *testing.T) {
	cache := newFakeCache()
	cache.put("inbox", &Record{
		UID:         "m1",
		ChangeKey:   "ck1",
		Flags:       0,
		ServerFlags: 0,
	})
	rc := NewReconciler(cache, testProjectors())
	cs := &ChangeSet{}

	r := &RemoteRecord{
		ID:        "m1",
		ChangeKey: "ck2",
		Flags:     FlagSeen,
		Raw:       json.RawMessage(`{"subject":"edited"}`),
	}
	err := rc.Apply(context.Background(), mailCollection(), r, cs)

	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, cs.Modified)

	rec := cache.get("inbox", "m1")
	require.NotNil(t, rec)
	assert.Equal(t, "ck2", rec.ChangeKey)
	assert.True(t, rec.Flags.Has(FlagSeen))
	assert.Equal(t, json.RawMessage(`{"subject":"edited"}`), json.RawMessage(rec.Summary))
}

func TestReconciler_Apply_UpdatePreservesLocalFlags(t *testing.T) {
	// Locally flagged and marked deleted, neither pushed yet. The server
	// only flipped the read bit, so the local bits must survive.
	cache := newFakeCache()
	cache.put("inbox", &Record{
		UID:         "m1",
		ChangeKey:   "ck1",
		Flags:       FlagFlagged | FlagDeleted,
		ServerFlags: 0,
		Dirty:       true,
	})
	rc := NewReconciler(cache, testProjectors())
	cs := &ChangeSet{}

	r := &RemoteRecord{ID: "m1", ChangeKey: "ck2", Flags: FlagSeen}
	err := rc.Apply(context.Background(), mailCollection(), r, cs)

	require.NoError(t, err)
	rec := cache.get("inbox", "m1")
	require.NotNil(t, rec)
	assert.True(t, rec.Flags.Has(FlagSeen), "server change applied")
	assert.True(t, rec.Flags.Has(FlagFlagged), "unpushed local flag kept")
	assert.True(t, rec.Flags.Has(FlagDeleted), "local-only bit kept")
	assert.True(t, rec.Dirty, "pending upload survives the merge")
	assert.Equal(t, FlagSeen, rec.ServerFlags)
}

func TestReconciler_Apply_ServerWinsChangedBits(t *testing.T) {
	// Both sides touched the seen bit. The server moved it since the last
	// pass, so the server value wins.
	cache := newFakeCache()
	cache.put("inbox", &Record{
		UID:         "m1",
		ChangeKey:   "ck1",
		Flags:       FlagSeen,
		ServerFlags: 0,
		Dirty:       true,
	})
	rc := NewReconciler(cache, testProjectors())
	cs := &ChangeSet{}

	r := &RemoteRecord{ID: "m1", ChangeKey: "ck2", Flags: FlagSeen}
	err := rc.Apply(context.Background(), mailCollection(), r, cs)

	require.NoError(t, err)
	rec := cache.get("inbox", "m1")
	assert.True(t, rec.Flags.Has(FlagSeen))
	assert.Equal(t, FlagSeen, rec.ServerFlags)
}

func TestReconciler_Apply_Tombstone(t *testing.T) {
	cache := newFakeCache()
	cache.put("inbox", &Record{UID: "m1"})
	rc := NewReconciler(cache, testProjectors())
	cs := &ChangeSet{}

	r := &RemoteRecord{ID: "m1", Removed: true}
	err := rc.Apply(context.Background(), mailCollection(), r, cs)

	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, cs.Removed)
	assert.Nil(t, cache.get("inbox", "m1"))
}

func TestReconciler_Apply_TombstoneForUnknownRecord(t *testing.T) {
	cache := newFakeCache()
	rc := NewReconciler(cache, testProjectors())
	cs := &ChangeSet{}

	r := &RemoteRecord{ID: "ghost", Removed: true}
	err := rc.Apply(context.Background(), mailCollection(), r, cs)

	require.NoError(t, err)
	assert.True(t, cs.Empty(), "tombstone for an unknown id is a no-op")
}

func TestReconciler_Apply_MixedFeed(t *testing.T) {
	// Cache holds {A: unread, B: read}; the feed reports A read, C new, and
	// B removed.
	cache := newFakeCache()
	cache.put("inbox", &Record{UID: "A", ChangeKey: "a1"})
	cache.put("inbox", &Record{UID: "B", ChangeKey: "b1", Flags: FlagSeen, ServerFlags: FlagSeen})
	rc := NewReconciler(cache, testProjectors())
	col := mailCollection()
	cs := &ChangeSet{}

	feed := []RemoteRecord{
		{ID: "A", ChangeKey: "a2", Flags: FlagSeen},
		{ID: "C", ChangeKey: "c1"},
		{ID: "B", Removed: true},
	}
	for i := range feed {
		require.NoError(t, rc.Apply(context.Background(), col, &feed[i], cs))
	}

	assert.Equal(t, []string{"C"}, cs.Created)
	assert.Equal(t, []string{"A"}, cs.Modified)
	assert.Equal(t, []string{"B"}, cs.Removed)

	assert.True(t, cache.get("inbox", "A").Flags.Has(FlagSeen))
	assert.NotNil(t, cache.get("inbox", "C"))
	assert.Nil(t, cache.get("inbox", "B"))
	assert.Equal(t, 2, cache.count("inbox"))
}

func TestReconciler_Apply_Idempotent(t *testing.T) {
	cache := newFakeCache()
	rc := NewReconciler(cache, testProjectors())
	col := mailCollection()

	r := &RemoteRecord{ID: "m1", ChangeKey: "ck1", Flags: FlagSeen}

	cs1 := &ChangeSet{}
	require.NoError(t, rc.Apply(context.Background(), col, r, cs1))
	assert.Equal(t, 1, cs1.Len())

	// The same feed entry again: nothing to do.
	cs2 := &ChangeSet{}
	require.NoError(t, rc.Apply(context.Background(), col, r, cs2))
	assert.True(t, cs2.Empty())
	assert.Equal(t, 1, cache.count("inbox"))
}

func TestReconciler_Apply_MalformedRecord(t *testing.T) {
	cache := newFakeCache()
	rc := NewReconciler(cache, testProjectors())
	cs := &ChangeSet{}

	r := &RemoteRecord{ID: "m1", Raw: json.RawMessage(`"bad"`)}
	err := rc.Apply(context.Background(), mailCollection(), r, cs)

	require.Error(t, err)
	assert.True(t, isRecordError(err), "projection failures are per-record")
	assert.True(t, cs.Empty())
}

func TestReconciler_Apply_UnknownKind(t *testing.T) {
	cache := newFakeCache()
	rc := NewReconciler(cache, testProjectors())
	cs := &ChangeSet{}

	col := &Collection{ID: "c1", Kind: KindCalendar}
	r := &RemoteRecord{ID: "e1"}
	err := rc.Apply(context.Background(), col, r, cs)

	require.Error(t, err)
	assert.False(t, isRecordError(err), "a missing projector is a wiring bug")
}

func TestMergeServer_CategoriesFollowServer(t *testing.T) {
	local := &Record{UID: "m1", ChangeKey: "ck1", Categories: []string{"Old"}}
	r := &RemoteRecord{ID: "m1", ChangeKey: "ck2", Categories: []string{"New"}}
	fresh := &Record{UID: "m1"}

	merged := mergeServer(local, r, fresh)

	assert.Equal(t, []string{"New"}, merged.Categories)
	assert.Equal(t, "ck2", merged.ChangeKey)
}

func TestServerChanged(t *testing.T) {
	tests := []struct {
		name   string
		remote RemoteRecord
		local  Record
		want   bool
	}{
		{
			name:   "identical",
			remote: RemoteRecord{ChangeKey: "ck", Flags: FlagSeen},
			local:  Record{ChangeKey: "ck", ServerFlags: FlagSeen},
			want:   false,
		},
		{
			name:   "change key moved",
			remote: RemoteRecord{ChangeKey: "ck2"},
			local:  Record{ChangeKey: "ck1"},
			want:   true,
		},
		{
			name:   "server flag moved",
			remote: RemoteRecord{ChangeKey: "ck", Flags: FlagSeen},
			local:  Record{ChangeKey: "ck"},
			want:   true,
		},
		{
			name:   "local-only bits ignored",
			remote: RemoteRecord{ChangeKey: "ck"},
			local:  Record{ChangeKey: "ck", Flags: FlagDeleted},
			want:   false,
		},
		{
			name:   "categories moved",
			remote: RemoteRecord{ChangeKey: "ck", Categories: []string{"Red"}},
			local:  Record{ChangeKey: "ck"},
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, serverChanged(&tt.remote, &tt.local))
		})
	}
}
