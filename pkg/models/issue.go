package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	IssueTypeDuplicate       = "duplicate"
	IssueTypeMissingMetadata = "missing_metadata"
)

type Issue struct {
	bun.BaseModel `bun:"table:issues,alias:iss"`

	ID         int        `bun:",pk,nullzero" json:"id"`
	CreatedAt  time.Time  `json:"created_at"`
	ItemID     int        `bun:",nullzero" json:"item_id"`
	FileID     *int       `json:"file_id,omitempty"`
	Type       string     `bun:",nullzero" json:"type"`
	Message    string     `bun:",nullzero" json:"message"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}
