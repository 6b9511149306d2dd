package graph

import (
	"context"
	"fmt"

	"github.com/custodia-labs/graphmirror/internal/sync"
)

// folderPage is the common shape of Graph container listings.
type folderPage struct {
	Value []struct {
		ID                string `json:"id"`
		DisplayName       string `json:"displayName"`
		Name              string `json:"name"`
		ParentFolderID    string `json:"parentFolderId"`
		UnreadItemCount   int    `json:"unreadItemCount"`
		TotalItemCount    int    `json:"totalItemCount"`
		IsDefaultCalendar bool   `json:"isDefaultCalendar"`
	} `json:"value"`
	NextLink string `json:"@odata.nextLink"`
}

// ListCollections enumerates the account's synchronisable containers of the
// given kind: mail folders, contact folders, or calendars.
func (s *Source) ListCollections(ctx context.Context, kind sync.Kind) ([]sync.Collection, error) {
	url := s.listURL(kind)
	var out []sync.Collection

	for url != "" {
		var page folderPage
		if err := s.client.GetJSON(ctx, url, &page); err != nil {
			return nil, translateErr(fmt.Errorf("list %s collections: %w", kind, err))
		}
		for _, f := range page.Value {
			name := f.DisplayName
			if name == "" {
				name = f.Name
			}
			out = append(out, sync.Collection{
				ID:          f.ID,
				Kind:        kind,
				DisplayName: name,
				ParentID:    f.ParentFolderID,
				Unread:      f.UnreadItemCount,
				Total:       f.TotalItemCount,
			})
		}
		url = page.NextLink
	}
	return out, nil
}

func (s *Source) listURL(kind sync.Kind) string {
	base := s.client.BaseURL()
	switch kind {
	case sync.KindContacts:
		return base + "/me/contactFolders"
	case sync.KindCalendar:
		return base + "/me/calendars"
	default:
		return base + "/me/mailFolders"
	}
}
