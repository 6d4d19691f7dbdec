package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Item struct {
	bun.BaseModel `bun:"table:items,alias:i"`

	ID            int           `bun:",pk,nullzero" json:"id"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	Title         *string       `json:"title"`
	Description   *string       `json:"description"`
	Language      *string       `json:"language"`
	PublishedYear *int          `json:"published_year"`
	Series        *string       `json:"series"`
	SeriesNumber  *float64      `json:"series_number"`
	Authors       []*Author     `bun:"rel:has-many,join:id=item_id" json:"authors,omitempty"`
	Identifiers   []*Identifier `bun:"rel:has-many,join:id=item_id" json:"identifiers,omitempty"`
	Files         []*File       `bun:"rel:has-many,join:id=item_id" json:"files,omitempty"`
}

// PrimaryAuthor returns the name of the first author by sort order, or the
// empty string when the item has no authors.
func (i *Item) PrimaryAuthor() string {
	if len(i.Authors) == 0 {
		return ""
	}
	primary := i.Authors[0]
	for _, a := range i.Authors[1:] {
		if a.SortOrder < primary.SortOrder {
			primary = a
		}
	}
	return primary.Name
}

// IdentifierValue returns the value of the first identifier of the given type,
// or the empty string when none exists.
func (i *Item) IdentifierValue(identifierType string) string {
	for _, id := range i.Identifiers {
		if id.Type == identifierType {
			return id.Value
		}
	}
	return ""
}
