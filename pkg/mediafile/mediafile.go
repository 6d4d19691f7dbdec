package mediafile

import (
	"fmt"
	"strings"
)

// ParsedIdentifier represents an identifier parsed from file metadata.
type ParsedIdentifier struct {
	Type  string // One of the models.IdentifierType constants
	Value string
}

// ParsedMetadata is the common shape returned by the format parsers.
type ParsedMetadata struct {
	Title         string
	Authors       []string
	Description   string
	Language      string
	PublishedYear *int
	Series        string
	SeriesNumber  *float64
	Identifiers   []ParsedIdentifier
	CoverMimeType string
	CoverData     []byte
}

func (m *ParsedMetadata) String() string {
	return fmt.Sprintf("Title:           %s\nAuthor(s):       %s\nHas Cover Data:  %v\nCover Mime Type: %s", m.Title, strings.Join(m.Authors, ", "), len(m.CoverData) > 0, m.CoverMimeType)
}

func (m *ParsedMetadata) CoverExtension() string {
	ext := ""
	switch m.CoverMimeType {
	case "image/jpeg":
		ext = ".jpg"
	case "image/png":
		ext = ".png"
	}
	return ext
}
