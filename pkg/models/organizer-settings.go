package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	OrganizeModeMove      = "move"
	OrganizeModeCopy      = "copy"
	OrganizeModeReference = "reference"
)

const DefaultOrganizeTemplate = "{Author}/{Title} ({Year}) [{ISBN13}].{ext}"

// OrganizerSettings is a singleton row (id = 1).
type OrganizerSettings struct {
	bun.BaseModel `bun:"table:organizer_settings,alias:os"`

	ID          int       `bun:",pk" json:"id"`
	UpdatedAt   time.Time `json:"updated_at"`
	LibraryRoot *string   `json:"library_root"`
	Mode        string    `bun:",nullzero,default:'copy'" json:"mode"`
	Template    string    `bun:",nullzero" json:"template"`
}
