package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	ScanActionAdded     = "added"
	ScanActionUpdated   = "updated"
	ScanActionMoved     = "moved"
	ScanActionUnchanged = "unchanged"
	ScanActionMissing   = "missing"
)

// ScanEntry is an append-only audit record for a single file observation
// during a scan session.
type ScanEntry struct {
	bun.BaseModel `bun:"table:scan_entries,alias:se"`

	ID            int        `bun:",pk,nullzero" json:"id"`
	CreatedAt     time.Time  `json:"created_at"`
	SessionID     int        `bun:",nullzero" json:"session_id"`
	FileID        int        `bun:",nullzero" json:"file_id"`
	Path          string     `bun:",nullzero" json:"path"`
	Action        string     `bun:",nullzero" json:"action"`
	FilesizeBytes *int64     `json:"filesize_bytes,omitempty"`
	ModifiedAt    *time.Time `json:"modified_at,omitempty"`
	Sha256        *string    `json:"sha256,omitempty"`
}
