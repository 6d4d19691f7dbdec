package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	ScanSessionStatusRunning = "running"
	ScanSessionStatusSuccess = "success"
	ScanSessionStatusFailed  = "failed"
)

type ScanSession struct {
	bun.BaseModel `bun:"table:scan_sessions,alias:ss"`

	ID        int        `bun:",pk,nullzero" json:"id"`
	RootPath  string     `bun:",nullzero" json:"root_path"`
	Status    string     `bun:",nullzero,default:'running'" json:"status"`
	StartedAt time.Time  `bun:",nullzero" json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Added     int        `json:"added"`
	Updated   int        `json:"updated"`
	Moved     int        `json:"moved"`
	Unchanged int        `json:"unchanged"`
	Missing   int        `json:"missing"`
}
