package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Author struct {
	bun.BaseModel `bun:"table:authors,alias:a"`

	ID        int       `bun:",pk,nullzero" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	ItemID    int       `bun:",nullzero" json:"item_id"`
	Name      string    `bun:",nullzero" json:"name"`
	SortOrder int       `json:"sort_order"`
}
