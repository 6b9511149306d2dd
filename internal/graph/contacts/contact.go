// Package contacts maps Microsoft Graph contacts onto vCard records.
package contacts

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/emersion/go-vcard"

	"github.com/custodia-labs/graphmirror/internal/sync"
)

// Contact represents a personal contact from the Microsoft Graph delta feed.
type Contact struct {
	ID             string   `json:"id"`
	ChangeKey      string   `json:"changeKey"`
	DisplayName    string   `json:"displayName"`
	GivenName      string   `json:"givenName"`
	Surname        string   `json:"surname"`
	MiddleName     string   `json:"middleName"`
	NickName       string   `json:"nickName"`
	CompanyName    string   `json:"companyName"`
	JobTitle       string   `json:"jobTitle"`
	Birthday       string   `json:"birthday"`
	PersonalNotes  string   `json:"personalNotes"`
	Categories     []string `json:"categories"`
	EmailAddresses []struct {
		Name    string `json:"name"`
		Address string `json:"address"`
	} `json:"emailAddresses"`
	BusinessPhones []string `json:"businessPhones"`
	HomePhones     []string `json:"homePhones"`
	MobilePhone    string   `json:"mobilePhone"`

	Removed *struct {
		Reason string `json:"reason"`
	} `json:"@removed,omitempty"`
}

// fieldMapping binds one vCard property to the Graph contact field
// that feeds it. The table drives the whole projection; adding a field is a
// one-line change.
type fieldMapping struct {
	property string
	apply    func(card vcard.Card, c *Contact)
}

var mappings = []fieldMapping{
	{vcard.FieldFormattedName, func(card vcard.Card, c *Contact) {
		if c.DisplayName != "" {
			card.SetValue(vcard.FieldFormattedName, c.DisplayName)
		}
	}},
	{vcard.FieldName, func(card vcard.Card, c *Contact) {
		if c.GivenName == "" && c.Surname == "" {
			return
		}
		card.AddName(&vcard.Name{
			FamilyName:     c.Surname,
			GivenName:      c.GivenName,
			AdditionalName: c.MiddleName,
		})
	}},
	{vcard.FieldNickname, func(card vcard.Card, c *Contact) {
		if c.NickName != "" {
			card.SetValue(vcard.FieldNickname, c.NickName)
		}
	}},
	{vcard.FieldEmail, func(card vcard.Card, c *Contact) {
		for _, e := range c.EmailAddresses {
			if e.Address != "" {
				card.AddValue(vcard.FieldEmail, e.Address)
			}
		}
	}},
	{vcard.FieldTelephone, func(card vcard.Card, c *Contact) {
		addPhones(card, c.BusinessPhones, vcard.TypeWork)
		addPhones(card, c.HomePhones, vcard.TypeHome)
		if c.MobilePhone != "" {
			addPhones(card, []string{c.MobilePhone}, vcard.TypeCell)
		}
	}},
	{vcard.FieldOrganization, func(card vcard.Card, c *Contact) {
		if c.CompanyName != "" {
			card.SetValue(vcard.FieldOrganization, c.CompanyName)
		}
	}},
	{vcard.FieldTitle, func(card vcard.Card, c *Contact) {
		if c.JobTitle != "" {
			card.SetValue(vcard.FieldTitle, c.JobTitle)
		}
	}},
	{vcard.FieldBirthday, func(card vcard.Card, c *Contact) {
		if c.Birthday != "" {
			card.SetValue(vcard.FieldBirthday, c.Birthday)
		}
	}},
	{vcard.FieldNote, func(card vcard.Card, c *Contact) {
		if c.PersonalNotes != "" {
			card.SetValue(vcard.FieldNote, c.PersonalNotes)
		}
	}},
}

func addPhones(card vcard.Card, numbers []string, typ string) {
	for _, n := range numbers {
		if n == "" {
			continue
		}
		card.Add(vcard.FieldTelephone, &vcard.Field{
			Value:  n,
			Params: vcard.Params{vcard.ParamType: []string{typ}},
		})
	}
}

// DecodeChange decodes one raw delta item into a RemoteRecord.
func DecodeChange(raw []byte) (*sync.RemoteRecord, error) {
	var c Contact
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("contacts: decode delta item: %w", err)
	}
	if c.ID == "" {
		return nil, fmt.Errorf("contacts: delta item without id")
	}

	return &sync.RemoteRecord{
		ID:         c.ID,
		ChangeKey:  c.ChangeKey,
		Removed:    c.Removed != nil,
		Categories: c.Categories,
		Raw:        json.RawMessage(raw),
	}, nil
}

// Projector builds vCard records from contact delta payloads.
type Projector struct{}

// Project renders the contact as a vCard 4.0 payload.
func (Projector) Project(r *sync.RemoteRecord) (*sync.Record, error) {
	var c Contact
	if err := json.Unmarshal(r.Raw, &c); err != nil {
		return nil, fmt.Errorf("contacts: decode contact %s: %w", r.ID, err)
	}

	card := make(vcard.Card)
	card.SetValue(vcard.FieldUID, c.ID)
	for _, m := range mappings {
		m.apply(card, &c)
	}
	vcard.ToV4(card)

	var buf bytes.Buffer
	if err := vcard.NewEncoder(&buf).Encode(card); err != nil {
		return nil, fmt.Errorf("contacts: encode vcard %s: %w", r.ID, err)
	}

	return &sync.Record{
		UID:     r.ID,
		Summary: buf.Bytes(),
	}, nil
}
