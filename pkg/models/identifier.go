package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	IdentifierTypeISBN10 = "isbn_10"
	IdentifierTypeISBN13 = "isbn_13"
	IdentifierTypeASIN   = "asin"
	IdentifierTypeUUID   = "uuid"
	IdentifierTypeOther  = "other"
)

const (
	IdentifierSourceFileMetadata = "file_metadata"
	IdentifierSourceUser         = "user"
)

type Identifier struct {
	bun.BaseModel `bun:"table:identifiers,alias:idn"`

	ID        int       `bun:",pk,nullzero" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	ItemID    int       `bun:",nullzero" json:"item_id"`
	Type      string    `bun:",nullzero" json:"type"`
	Value     string    `bun:",nullzero" json:"value"`
	Source    string    `bun:",nullzero,default:'file_metadata'" json:"source"`
}
