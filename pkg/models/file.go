package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	FileStatusActive   = "active"
	FileStatusMissing  = "missing"
	FileStatusInactive = "inactive"
)

const (
	FileExtensionEPUB = ".epub"
	FileExtensionPDF  = ".pdf"
)

const HashAlgoSHA256 = "sha256"

type File struct {
	bun.BaseModel `bun:"table:files,alias:f"`

	ID             int       `bun:",pk,nullzero" json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	ItemID         int       `bun:",nullzero" json:"item_id"`
	Item           *Item     `bun:"rel:belongs-to" json:"item,omitempty"`
	Filepath       string    `bun:",nullzero" json:"filepath"`
	Filename       string    `bun:",nullzero" json:"filename"`
	Extension      string    `bun:",nullzero" json:"extension"`
	FilesizeBytes  int64     `json:"filesize_bytes"`
	ModifiedAt     time.Time `bun:",nullzero" json:"modified_at"`
	Sha256         *string   `json:"sha256"`
	HashAlgo       string    `bun:",nullzero,default:'sha256'" json:"hash_algo"`
	Status         string    `bun:",nullzero,default:'active'" json:"status"`
	CoverImagePath *string   `json:"cover_image_path"`
	CoverMimeType  *string   `json:"cover_mime_type"`
}

func (f *File) CoverExtension() string {
	if f.CoverMimeType == nil {
		return ""
	}
	ext := ""
	switch *f.CoverMimeType {
	case "image/jpeg":
		ext = ".jpg"
	case "image/png":
		ext = ".png"
	}
	return ext
}
