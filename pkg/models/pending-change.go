package models

import (
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/uptrace/bun"
)

const (
	ChangeTypeRename       = "rename"
	ChangeTypeDelete       = "delete"
	ChangeTypeMetadataEdit = "metadata_edit"
)

const (
	ChangeStatusPending = "pending"
	ChangeStatusApplied = "applied"
	ChangeStatusError   = "error"
)

// PendingChange is a staged mutation against a single file. Payload holds the
// type-specific parameters as a JSON string; PayloadParsed is the decoded
// form, populated by UnmarshalPayload.
type PendingChange struct {
	bun.BaseModel `bun:"table:pending_changes,alias:pc"`

	ID            int         `bun:",pk,nullzero" json:"id"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
	FileID        int         `bun:",nullzero" json:"file_id"`
	File          *File       `bun:"rel:belongs-to" json:"file,omitempty"`
	Type          string      `bun:",nullzero" json:"type"`
	FromPath      *string     `json:"from_path,omitempty"`
	ToPath        *string     `json:"to_path,omitempty"`
	Payload       string      `bun:",nullzero" json:"-"`
	PayloadParsed interface{} `bun:"-" json:"payload,omitempty"`
	Status        string      `bun:",nullzero,default:'pending'" json:"status"`
	AppliedAt     *time.Time  `json:"applied_at,omitempty"`
	Error         *string     `json:"error,omitempty"`
}

func (pc *PendingChange) UnmarshalPayload() error {
	if pc.Payload == "" {
		return nil
	}

	switch pc.Type {
	case ChangeTypeRename:
		pc.PayloadParsed = &RenamePayload{}
	case ChangeTypeDelete:
		pc.PayloadParsed = &DeletePayload{}
	case ChangeTypeMetadataEdit:
		pc.PayloadParsed = &MetadataEditPayload{}
	default:
		return errors.Errorf("unknown pending change type %q", pc.Type)
	}

	err := json.Unmarshal([]byte(pc.Payload), pc.PayloadParsed)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

type RenamePayload struct{}

type DeletePayload struct {
	// Reason records why the delete was queued, e.g. duplicate resolution.
	Reason string `json:"reason,omitempty"`
}

type MetadataEditPayload struct {
	Title       *string `json:"title,omitempty"`
	Author      *string `json:"author,omitempty"`
	Description *string `json:"description,omitempty"`
	ISBN        *string `json:"isbn,omitempty"`
}
