// Package calendar maps Microsoft Graph events onto iCalendar records.
package calendar

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/emersion/go-ical"

	"github.com/custodia-labs/graphmirror/internal/sync"
)

// Event represents a calendar event from the Microsoft Graph delta feed.
type Event struct {
	ID           string            `json:"id"`
	ChangeKey    string            `json:"changeKey"`
	Subject      string            `json:"subject"`
	BodyPreview  string            `json:"bodyPreview"`
	Categories   []string          `json:"categories"`
	IsAllDay     bool              `json:"isAllDay"`
	IsCancelled  bool              `json:"isCancelled"`
	ShowAs       string            `json:"showAs"`
	Start        *DateTimeTimeZone `json:"start"`
	End          *DateTimeTimeZone `json:"end"`
	Location     *Location         `json:"location"`
	Organizer    *Organizer        `json:"organizer"`
	LastModified string            `json:"lastModifiedDateTime"`

	Removed *struct {
		Reason string `json:"reason"`
	} `json:"@removed,omitempty"`
}

// DateTimeTimeZone is the Graph representation of a zoned timestamp.
type DateTimeTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

// Location is the event location.
type Location struct {
	DisplayName string `json:"displayName"`
}

// Organizer is the event organiser.
type Organizer struct {
	EmailAddress struct {
		Name    string `json:"name"`
		Address string `json:"address"`
	} `json:"emailAddress"`
}

// DecodeChange decodes one raw delta item into a RemoteRecord.
func DecodeChange(raw []byte) (*sync.RemoteRecord, error) {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("calendar: decode delta item: %w", err)
	}
	if ev.ID == "" {
		return nil, fmt.Errorf("calendar: delta item without id")
	}

	return &sync.RemoteRecord{
		ID:         ev.ID,
		ChangeKey:  ev.ChangeKey,
		Removed:    ev.Removed != nil,
		Categories: ev.Categories,
		Raw:        json.RawMessage(raw),
	}, nil
}

// Projector builds iCalendar records from event delta payloads.
type Projector struct{}

// Project renders the event as an iCalendar VEVENT payload.
func (Projector) Project(r *sync.RemoteRecord) (*sync.Record, error) {
	var ev Event
	if err := json.Unmarshal(r.Raw, &ev); err != nil {
		return nil, fmt.Errorf("calendar: decode event %s: %w", r.ID, err)
	}

	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, ev.ID)
	if ev.Subject != "" {
		event.Props.SetText(ical.PropSummary, ev.Subject)
	}
	if ev.BodyPreview != "" {
		event.Props.SetText(ical.PropDescription, ev.BodyPreview)
	}
	if ev.Location != nil && ev.Location.DisplayName != "" {
		event.Props.SetText(ical.PropLocation, ev.Location.DisplayName)
	}
	if ev.IsCancelled {
		event.Props.SetText(ical.PropStatus, "CANCELLED")
	}
	if ev.Organizer != nil && ev.Organizer.EmailAddress.Address != "" {
		// ORGANIZER is a CAL-ADDRESS URI, not text; SetText would tag it
		// VALUE=TEXT.
		organizer := ical.NewProp(ical.PropOrganizer)
		organizer.Value = "mailto:" + ev.Organizer.EmailAddress.Address
		event.Props.Set(organizer)
	}
	if t, ok := parseGraphTime(ev.Start); ok {
		event.Props.SetDateTime(ical.PropDateTimeStart, t)
	}
	if t, ok := parseGraphTime(ev.End); ok {
		event.Props.SetDateTime(ical.PropDateTimeEnd, t)
	}
	event.Props.SetDateTime(ical.PropDateTimeStamp, timestamp(ev.LastModified))

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//graphmirror//EN")
	cal.Children = append(cal.Children, event.Component)

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("calendar: encode ical %s: %w", r.ID, err)
	}

	return &sync.Record{
		UID:     r.ID,
		Summary: buf.Bytes(),
	}, nil
}

// parseGraphTime parses a Graph dateTimeTimeZone. Graph emits local wall
// time plus an IANA/Windows zone name; zones that fail to resolve fall back
// to UTC rather than dropping the timestamp.
func parseGraphTime(dt *DateTimeTimeZone) (time.Time, bool) {
	if dt == nil || dt.DateTime == "" {
		return time.Time{}, false
	}

	loc := time.UTC
	if dt.TimeZone != "" && dt.TimeZone != "UTC" {
		if l, err := time.LoadLocation(dt.TimeZone); err == nil {
			loc = l
		}
	}

	for _, layout := range []string{"2006-01-02T15:04:05.9999999", "2006-01-02T15:04:05"} {
		if t, err := time.ParseInLocation(layout, dt.DateTime, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func timestamp(lastModified string) time.Time {
	if t, err := time.Parse(time.RFC3339, lastModified); err == nil {
		return t.UTC()
	}
	return time.Now().UTC()
}
