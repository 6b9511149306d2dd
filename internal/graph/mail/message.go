// Package mail maps Microsoft Graph mail messages onto local summary
// records.
package mail

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/graphmirror/internal/sync"
)

// DeltaSelect is the field projection requested from the messages delta
// feed. Bodies are intentionally excluded; they are downloaded lazily.
const DeltaSelect = "id,changeKey,subject,bodyPreview,from,toRecipients,ccRecipients," +
	"receivedDateTime,sentDateTime,isRead,isDraft,flag,importance,categories," +
	"conversationId,parentFolderId,hasAttachments,internetMessageId"

// Message represents an Outlook message from the Microsoft Graph delta feed.
type Message struct {
	ID                string        `json:"id"`
	ChangeKey         string        `json:"changeKey"`
	Subject           string        `json:"subject"`
	BodyPreview       string        `json:"bodyPreview"`
	From              *EmailAddress `json:"from"`
	ToRecipients      []Recipient   `json:"toRecipients"`
	CcRecipients      []Recipient   `json:"ccRecipients"`
	ReceivedDateTime  string        `json:"receivedDateTime"`
	SentDateTime      string        `json:"sentDateTime"`
	IsRead            bool          `json:"isRead"`
	IsDraft           bool          `json:"isDraft"`
	Flag              *FollowupFlag `json:"flag"`
	Importance        string        `json:"importance"`
	Categories        []string      `json:"categories"`
	ConversationID    string        `json:"conversationId"`
	ParentFolderID    string        `json:"parentFolderId"`
	HasAttachments    bool          `json:"hasAttachments"`
	InternetMessageID string        `json:"internetMessageId"`

	Removed *Removed `json:"@removed,omitempty"`
}

// FollowupFlag is the follow-up flag state of a message.
type FollowupFlag struct {
	FlagStatus string `json:"flagStatus"`
}

// EmailAddress represents an email address with optional display name.
type EmailAddress struct {
	EmailAddress struct {
		Name    string `json:"name"`
		Address string `json:"address"`
	} `json:"emailAddress"`
}

// Recipient represents an email recipient.
type Recipient struct {
	EmailAddress struct {
		Name    string `json:"name"`
		Address string `json:"address"`
	} `json:"emailAddress"`
}

// Removed is the tombstone annotation carried by deleted delta entries.
type Removed struct {
	Reason string `json:"reason"`
}

// Summary is the locally cached projection of a message, stored as the
// record payload. Bodies live in the separate content cache.
type Summary struct {
	Subject      string   `json:"subject"`
	From         string   `json:"from,omitempty"`
	FromName     string   `json:"from_name,omitempty"`
	To           []string `json:"to,omitempty"`
	Cc           []string `json:"cc,omitempty"`
	Received     string   `json:"received,omitempty"`
	Sent         string   `json:"sent,omitempty"`
	Preview      string   `json:"preview,omitempty"`
	Importance   string   `json:"importance,omitempty"`
	Conversation string   `json:"conversation,omitempty"`
	MessageID    string   `json:"message_id,omitempty"`
	Attachments  bool     `json:"attachments,omitempty"`
}

// DecodeChange decodes one raw delta item into a RemoteRecord. Tombstones
// carry only the id and the @removed annotation.
func DecodeChange(raw []byte) (*sync.RemoteRecord, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("mail: decode delta item: %w", err)
	}
	if msg.ID == "" {
		return nil, fmt.Errorf("mail: delta item without id")
	}

	rec := &sync.RemoteRecord{
		ID:         msg.ID,
		ChangeKey:  msg.ChangeKey,
		Removed:    msg.Removed != nil,
		Flags:      messageFlags(&msg),
		Categories: msg.Categories,
		Raw:        json.RawMessage(raw),
	}
	return rec, nil
}

// messageFlags maps server-owned message state onto the flag bitmask.
func messageFlags(msg *Message) sync.Flags {
	var f sync.Flags
	if msg.IsRead {
		f |= sync.FlagSeen
	}
	if msg.IsDraft {
		f |= sync.FlagDraft
	}
	if msg.Flag != nil && msg.Flag.FlagStatus == "flagged" {
		f |= sync.FlagFlagged
	}
	return f
}

// Projector builds mail summary records from delta payloads.
type Projector struct{}

// Project parses the raw message payload into a summary record.
func (Projector) Project(r *sync.RemoteRecord) (*sync.Record, error) {
	var msg Message
	if err := json.Unmarshal(r.Raw, &msg); err != nil {
		return nil, fmt.Errorf("mail: decode message %s: %w", r.ID, err)
	}

	sum := Summary{
		Subject:      msg.Subject,
		Preview:      msg.BodyPreview,
		Received:     normaliseTime(msg.ReceivedDateTime),
		Sent:         normaliseTime(msg.SentDateTime),
		Importance:   msg.Importance,
		Conversation: msg.ConversationID,
		MessageID:    msg.InternetMessageID,
		Attachments:  msg.HasAttachments,
		To:           recipientAddresses(msg.ToRecipients),
		Cc:           recipientAddresses(msg.CcRecipients),
	}
	if msg.From != nil {
		sum.From = msg.From.EmailAddress.Address
		sum.FromName = msg.From.EmailAddress.Name
	}

	payload, err := json.Marshal(&sum)
	if err != nil {
		return nil, fmt.Errorf("mail: encode summary %s: %w", r.ID, err)
	}

	return &sync.Record{
		UID:     r.ID,
		Summary: payload,
	}, nil
}

func recipientAddresses(recipients []Recipient) []string {
	if len(recipients) == 0 {
		return nil
	}
	out := make([]string, 0, len(recipients))
	for _, rcpt := range recipients {
		if rcpt.EmailAddress.Address != "" {
			out = append(out, rcpt.EmailAddress.Address)
		}
	}
	return out
}

// normaliseTime re-encodes a Graph timestamp as RFC 3339 UTC, passing
// unparseable values through unchanged.
func normaliseTime(s string) string {
	if s == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}
	return t.UTC().Format(time.RFC3339)
}

// FormatAddress renders a display-name/address pair the way mail headers do.
func FormatAddress(name, address string) string {
	if name == "" {
		return address
	}
	return fmt.Sprintf("%s <%s>", name, address)
}

// FormatRecipients renders a recipient list for display.
func FormatRecipients(recipients []Recipient) string {
	parts := make([]string, 0, len(recipients))
	for _, r := range recipients {
		if r.EmailAddress.Address == "" {
			continue
		}
		parts = append(parts, FormatAddress(r.EmailAddress.Name, r.EmailAddress.Address))
	}
	return strings.Join(parts, ", ")
}
