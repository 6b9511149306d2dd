package graph

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/custodia-labs/graphmirror/internal/graph/calendar"
	"github.com/custodia-labs/graphmirror/internal/graph/contacts"
	"github.com/custodia-labs/graphmirror/internal/graph/mail"
	"github.com/custodia-labs/graphmirror/internal/logger"
	"github.com/custodia-labs/graphmirror/internal/sync"
)

// Ensure Source implements the engine-facing interfaces.
var (
	_ sync.Source         = (*Source)(nil)
	_ sync.Pusher         = (*Source)(nil)
	_ sync.ContentFetcher = (*Source)(nil)
)

// decoder turns a raw delta item into a RemoteRecord.
type decoder func(raw []byte) (*sync.RemoteRecord, error)

var decoders = map[sync.Kind]decoder{
	sync.KindMail:     mail.DecodeChange,
	sync.KindContacts: contacts.DecodeChange,
	sync.KindCalendar: calendar.DecodeChange,
}

// Source adapts the Graph delta-query API to the sync engine. One Source
// serves every collection kind of an account.
type Source struct {
	client   *Client
	pageSize int
}

// NewSource creates a Source over the given client. pageSize bounds the $top
// parameter of initial delta requests; Graph caps it at 1000.
func NewSource(client *Client, pageSize int) *Source {
	if pageSize <= 0 {
		pageSize = 100
	}
	if pageSize > 1000 {
		pageSize = 1000
	}
	return &Source{client: client, pageSize: pageSize}
}

// Changes fetches one page of the collection's delta feed. An empty link
// begins a fresh delta stream for the collection.
func (s *Source) Changes(ctx context.Context, col *sync.Collection, link string) (*sync.Page, error) {
	if link == "" {
		link = s.deltaURL(col)
	}

	page, err := s.client.FetchDeltaPage(ctx, link)
	if err != nil {
		return nil, translateErr(err)
	}

	dec, ok := decoders[col.Kind]
	if !ok {
		return nil, fmt.Errorf("graph: unsupported collection kind %q", col.Kind)
	}

	out := &sync.Page{
		Records:   make([]sync.RemoteRecord, 0, len(page.Items)),
		NextLink:  page.NextLink,
		DeltaLink: page.DeltaLink,
	}
	for _, raw := range page.Items {
		rec, err := dec(raw)
		if err != nil {
			// A single undecodable item is skipped, not fatal.
			logger.Warn("graph: skipping undecodable %s item: %v", col.Kind, err)
			continue
		}
		out.Records = append(out.Records, *rec)
	}
	return out, nil
}

// deltaURL builds the initial delta query URL for the collection.
func (s *Source) deltaURL(col *sync.Collection) string {
	base := s.client.BaseURL()
	switch col.Kind {
	case sync.KindContacts:
		return fmt.Sprintf("%s/me/contactFolders/%s/contacts/delta?$top=%d",
			base, col.ID, s.pageSize)
	case sync.KindCalendar:
		return fmt.Sprintf("%s/me/calendars/%s/events/delta?$top=%d",
			base, col.ID, s.pageSize)
	default:
		return fmt.Sprintf("%s/me/mailFolders/%s/messages/delta?$top=%d&$select=%s",
			base, col.ID, s.pageSize, mail.DeltaSelect)
	}
}

// UpdateFlags pushes flag/category changes as PATCH sub-requests through the
// $batch endpoint. The batch layer splits them into calls of at most
// MaxBatchSize sub-requests.
func (s *Source) UpdateFlags(ctx context.Context, col *sync.Collection, updates []sync.FlagUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	reqs := make([]BatchRequest, 0, len(updates))
	for _, u := range updates {
		reqs = append(reqs, BatchRequest{
			Method:  http.MethodPatch,
			URL:     s.patchURL(col, u.UID),
			Body:    patchBody(col.Kind, u),
			Headers: map[string]string{"Content-Type": "application/json"},
		})
	}

	resps, err := s.client.Batch(ctx, reqs)
	if err != nil {
		return translateErr(err)
	}
	for i := range resps {
		if err := resps[i].Err(); err != nil {
			return translateErr(err)
		}
	}
	return nil
}

func (s *Source) patchURL(col *sync.Collection, uid string) string {
	switch col.Kind {
	case sync.KindContacts:
		return "/me/contacts/" + uid
	case sync.KindCalendar:
		return "/me/events/" + uid
	default:
		return "/me/messages/" + uid
	}
}

// patchBody maps the server-owned fields of an update to the Graph PATCH
// payload for the collection kind. Only mail carries flag state; contacts and
// events get category updates only.
func patchBody(kind sync.Kind, u sync.FlagUpdate) map[string]any {
	body := map[string]any{}
	if u.Categories != nil {
		body["categories"] = u.Categories
	}
	if kind != sync.KindMail {
		return body
	}

	body["isRead"] = u.Flags.Has(sync.FlagSeen)
	flagStatus := "notFlagged"
	if u.Flags.Has(sync.FlagFlagged) {
		flagStatus = "flagged"
	}
	body["flag"] = map[string]string{"flagStatus": flagStatus}
	return body
}

// Move relocates records to a well-known destination folder, one POST
// sub-request per record, batched.
func (s *Source) Move(ctx context.Context, col *sync.Collection, uids []string, dest string) error {
	if col.Kind != sync.KindMail {
		return fmt.Errorf("graph: move is only supported for mail collections")
	}

	reqs := make([]BatchRequest, 0, len(uids))
	for _, uid := range uids {
		reqs = append(reqs, BatchRequest{
			Method:  http.MethodPost,
			URL:     "/me/messages/" + uid + "/move",
			Body:    map[string]string{"destinationId": dest},
			Headers: map[string]string{"Content-Type": "application/json"},
		})
	}

	resps, err := s.client.Batch(ctx, reqs)
	if err != nil {
		return translateErr(err)
	}
	for i := range resps {
		if err := resps[i].Err(); err != nil && !errors.Is(err, ErrNotFound) {
			// A record already gone on the server is fine for a move.
			return translateErr(err)
		}
	}
	return nil
}

// FetchContent downloads the full MIME body of one mail record.
func (s *Source) FetchContent(ctx context.Context, col *sync.Collection, uid string) ([]byte, error) {
	if col.Kind != sync.KindMail {
		return nil, fmt.Errorf("graph: content download is only supported for mail collections")
	}
	url := fmt.Sprintf("%s/me/messages/%s/$value", s.client.BaseURL(), uid)
	body, err := s.client.Download(ctx, url)
	if err != nil {
		return nil, translateErr(err)
	}
	return body, nil
}

// translateErr maps transport errors onto the engine's sentinels.
func translateErr(err error) error {
	switch {
	case errors.Is(err, ErrDeltaTokenExpired):
		return fmt.Errorf("%w: %w", sync.ErrDeltaExpired, err)
	case errors.Is(err, ErrUnauthorised):
		return fmt.Errorf("%w: %w", sync.ErrCredentialsRequired, err)
	default:
		return err
	}
}
