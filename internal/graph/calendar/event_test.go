package calendar

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/graphmirror/internal/sync"
)

const sampleEvent = `{
	"id": "e1",
	"changeKey": "ck1",
	"subject": "Sprint planning",
	"bodyPreview": "Bring estimates",
	"categories": ["Team"],
	"start": {"dateTime": "2025-06-02T09:00:00.0000000", "timeZone": "UTC"},
	"end": {"dateTime": "2025-06-02T10:00:00.0000000", "timeZone": "UTC"},
	"location": {"displayName": "Room 4"},
	"organizer": {"emailAddress": {"name": "Ada", "address": "ada@example.com"}},
	"lastModifiedDateTime": "2025-06-01T08:00:00Z"
}`

func TestDecodeChange(t *testing.T) {
	rec, err := DecodeChange([]byte(sampleEvent))

	require.NoError(t, err)
	assert.Equal(t, "e1", rec.ID)
	assert.Equal(t, "ck1", rec.ChangeKey)
	assert.False(t, rec.Removed)
	assert.Equal(t, []string{"Team"}, rec.Categories)
}

func TestDecodeChange_Tombstone(t *testing.T) {
	rec, err := DecodeChange([]byte(`{"id": "e9", "@removed": {"reason": "deleted"}}`))

	require.NoError(t, err)
	assert.True(t, rec.Removed)
}

func TestDecodeChange_MissingID(t *testing.T) {
	_, err := DecodeChange([]byte(`{"subject": "no id"}`))

	assert.Error(t, err)
}

func TestProjector_Project(t *testing.T) {
	rec, err := DecodeChange([]byte(sampleEvent))
	require.NoError(t, err)

	out, err := Projector{}.Project(rec)

	require.NoError(t, err)
	assert.Equal(t, "e1", out.UID)

	ics := string(out.Summary)
	assert.Contains(t, ics, "BEGIN:VCALENDAR")
	assert.Contains(t, ics, "END:VCALENDAR")
	assert.Contains(t, ics, "BEGIN:VEVENT")
	assert.Contains(t, ics, "UID:e1")
	assert.Contains(t, ics, "SUMMARY:Sprint planning")
	assert.Contains(t, ics, "DESCRIPTION:Bring estimates")
	assert.Contains(t, ics, "LOCATION:Room 4")
	assert.Contains(t, ics, "ORGANIZER:mailto:ada@example.com")
	assert.NotContains(t, ics, "ORGANIZER;", "organizer must be a bare CAL-ADDRESS, no value-type parameter")
	assert.Contains(t, ics, "DTSTART:20250602T090000Z")
	assert.Contains(t, ics, "DTEND:20250602T100000Z")
	assert.NotContains(t, ics, "STATUS:CANCELLED")
}

func TestProjector_Project_Cancelled(t *testing.T) {
	raw := `{"id": "e2", "subject": "Dropped", "isCancelled": true}`
	rec := &sync.RemoteRecord{ID: "e2", Raw: json.RawMessage(raw)}

	out, err := Projector{}.Project(rec)

	require.NoError(t, err)
	assert.Contains(t, string(out.Summary), "STATUS:CANCELLED")
}

func TestProjector_Project_InvalidPayload(t *testing.T) {
	rec := &sync.RemoteRecord{ID: "e3", Raw: json.RawMessage(`"oops"`)}

	_, err := Projector{}.Project(rec)

	assert.Error(t, err)
}

func TestParseGraphTime(t *testing.T) {
	tests := []struct {
		name string
		dt   *DateTimeTimeZone
		ok   bool
		want time.Time
	}{
		{
			name: "nil",
			dt:   nil,
			ok:   false,
		},
		{
			name: "empty",
			dt:   &DateTimeTimeZone{},
			ok:   false,
		},
		{
			name: "utc with fraction",
			dt:   &DateTimeTimeZone{DateTime: "2025-06-02T09:00:00.0000000", TimeZone: "UTC"},
			ok:   true,
			want: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "no fraction",
			dt:   &DateTimeTimeZone{DateTime: "2025-06-02T09:00:00", TimeZone: "UTC"},
			ok:   true,
			want: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "unknown zone falls back to utc",
			dt:   &DateTimeTimeZone{DateTime: "2025-06-02T09:00:00", TimeZone: "Not/AZone"},
			ok:   true,
			want: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "garbage",
			dt:   &DateTimeTimeZone{DateTime: "tomorrow"},
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseGraphTime(tt.dt)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
			}
		})
	}
}

func TestTimestamp(t *testing.T) {
	got := timestamp("2025-06-01T08:00:00Z")
	assert.Equal(t, time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC), got)

	// An unparseable stamp falls back to now.
	now := time.Now().UTC()
	assert.WithinDuration(t, now, timestamp("garbage"), time.Second)
}
