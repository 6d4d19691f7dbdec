package epub

import (
	"archive/zip"
	"encoding/xml"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/foliobooks/folio/pkg/mediafile"
	"github.com/foliobooks/folio/pkg/models"
	"github.com/pkg/errors"
)

type OPF struct {
	Title         string
	Authors       []string
	Description   string
	Language      string
	PublishedYear *int
	Series        string
	SeriesNumber  *float64
	Identifiers   []mediafile.ParsedIdentifier
	CoverFilepath string
	CoverMimeType string
	CoverData     []byte
}

type Package struct {
	XMLName          xml.Name `xml:"package"`
	Text             string   `xml:",chardata"`
	Xmlns            string   `xml:"xmlns,attr"`
	Version          string   `xml:"version,attr"`
	UniqueIdentifier string   `xml:"unique-identifier,attr"`
	Metadata         struct {
		Text  string `xml:",chardata"`
		Opf   string `xml:"opf,attr"`
		Dc    string `xml:"dc,attr"`
		Title []struct {
			Text string `xml:",chardata"`
			ID   string `xml:"id,attr"`
		} `xml:"title"`
		Creator []struct {
			Text   string `xml:",chardata"`
			ID     string `xml:"id,attr"`
			Role   string `xml:"role,attr"`
			FileAs string `xml:"file-as,attr"`
		} `xml:"creator"`
		Description string `xml:"description"`
		Publisher   string `xml:"publisher"`
		Identifier  []struct {
			Text   string `xml:",chardata"`
			ID     string `xml:"id,attr"`
			Scheme string `xml:"scheme,attr"`
		} `xml:"identifier"`
		Date     string `xml:"date"`
		Language string `xml:"language"`
		Meta     []struct {
			Text     string `xml:",chardata"`
			Name     string `xml:"name,attr"`
			Content  string `xml:"content,attr"`
			Refines  string `xml:"refines,attr"`
			Property string `xml:"property,attr"`
		} `xml:"meta"`
	} `xml:"metadata"`
	Manifest struct {
		Text string `xml:",chardata"`
		Item []struct {
			Text      string `xml:",chardata"`
			ID        string `xml:"id,attr"`
			Href      string `xml:"href,attr"`
			MediaType string `xml:"media-type,attr"`
		} `xml:"item"`
	} `xml:"manifest"`
}

var yearRE = regexp.MustCompile(`\b(\d{4})\b`)

func Parse(path string) (*mediafile.ParsedMetadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	stats, err := f.Stat()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	size := stats.Size()

	zipReader, err := zip.NewReader(f, size)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var opf *OPF
	for _, file := range zipReader.File {
		ext := filepath.Ext(file.Name)
		if ext == ".opf" {
			r, err := file.Open()
			if err != nil {
				return nil, errors.WithStack(err)
			}
			opf, err = ParseOPF(file.Name, r)
			if err != nil {
				return nil, errors.WithStack(err)
			}
			break
		}
	}

	if opf == nil {
		return nil, errors.New("no opf file found")
	}

	if opf.CoverFilepath != "" {
		for _, file := range zipReader.File {
			if file.Name == opf.CoverFilepath {
				r, err := file.Open()
				if err != nil {
					return nil, errors.WithStack(err)
				}
				b, err := io.ReadAll(r)
				if err != nil {
					return nil, errors.WithStack(err)
				}
				opf.CoverData = b
			}
		}
	}

	return &mediafile.ParsedMetadata{
		Title:         opf.Title,
		Authors:       opf.Authors,
		Description:   opf.Description,
		Language:      opf.Language,
		PublishedYear: opf.PublishedYear,
		Series:        opf.Series,
		SeriesNumber:  opf.SeriesNumber,
		Identifiers:   opf.Identifiers,
		CoverMimeType: opf.CoverMimeType,
		CoverData:     opf.CoverData,
	}, nil
}

func ParseOPF(filename string, r io.ReadCloser) (*OPF, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	pkg := &Package{}
	err = xml.Unmarshal(b, pkg)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	// Determine the base path because all files are referenced from the location of the OPF file. If basePath is `.`,
	// that means it's at the root of the EPUB and should not be included. But if it's something else, we need to tack
	// on a `/` since we'll be adding it as a prefix to all file paths.
	basePath := filepath.Dir(filename)
	if basePath == "." {
		basePath = ""
	} else {
		basePath += "/"
	}

	// Parse out metadata into a more lookup-friendly structure.
	metaProperties := map[string]map[string]string{}
	metaContent := map[string]string{}
	for _, m := range pkg.Metadata.Meta {
		if m.Refines != "" {
			key := strings.ReplaceAll(m.Refines, "#", "")
			if _, ok := metaProperties[key]; !ok {
				metaProperties[key] = map[string]string{}
			}
			metaProperties[key][m.Property] = m.Text
		} else if m.Content != "" {
			metaContent[m.Name] = m.Content
		}
	}

	// Parse out the main title of the document.
	title := ""
	if len(pkg.Metadata.Title) == 1 {
		title = pkg.Metadata.Title[0].Text
	} else if len(pkg.Metadata.Title) > 1 {
		for _, t := range pkg.Metadata.Title {
			if t.ID != "" && metaProperties[t.ID] != nil && metaProperties[t.ID]["title-type"] == "main" {
				title = t.Text
				break
			}
		}
	}

	authors := []string{}
	for _, creator := range pkg.Metadata.Creator {
		role := creator.Role
		if role == "" && creator.ID != "" && metaProperties[creator.ID] != nil {
			role = metaProperties[creator.ID]["role"]
		}
		if role == "aut" || len(pkg.Metadata.Creator) == 1 {
			authors = append(authors, creator.Text)
		}
	}

	identifiers := []mediafile.ParsedIdentifier{}
	for _, id := range pkg.Metadata.Identifier {
		if parsed, ok := classifyIdentifier(id.Scheme, id.Text); ok {
			identifiers = append(identifiers, parsed)
		}
	}

	var publishedYear *int
	if matches := yearRE.FindStringSubmatch(pkg.Metadata.Date); len(matches) > 1 {
		if year, err := strconv.Atoi(matches[1]); err == nil {
			publishedYear = &year
		}
	}

	coverFilepath := ""
	coverMimeType := ""
	if metaContent["cover"] != "" {
		for _, item := range pkg.Manifest.Item {
			if item.ID == metaContent["cover"] {
				coverFilepath = basePath + item.Href
				coverMimeType = item.MediaType
			}
		}
	}

	// Parse series information from calibre meta tags
	series := metaContent["calibre:series"]
	var seriesNumber *float64
	if seriesIndexStr := metaContent["calibre:series_index"]; seriesIndexStr != "" {
		if num, err := strconv.ParseFloat(seriesIndexStr, 64); err == nil {
			seriesNumber = &num
		}
	}

	return &OPF{
		Title:         title,
		Authors:       authors,
		Description:   strings.TrimSpace(pkg.Metadata.Description),
		Language:      strings.TrimSpace(pkg.Metadata.Language),
		PublishedYear: publishedYear,
		Series:        series,
		SeriesNumber:  seriesNumber,
		Identifiers:   identifiers,
		CoverFilepath: coverFilepath,
		CoverMimeType: coverMimeType,
	}, nil
}

// classifyIdentifier maps a dc:identifier entry to an identifier type based on
// its scheme and shape. URN prefixes like urn:isbn: are stripped first.
func classifyIdentifier(scheme, value string) (mediafile.ParsedIdentifier, bool) {
	value = strings.TrimSpace(value)
	lower := strings.ToLower(value)
	switch {
	case strings.HasPrefix(lower, "urn:isbn:"):
		scheme = "isbn"
		value = value[len("urn:isbn:"):]
	case strings.HasPrefix(lower, "urn:uuid:"):
		scheme = "uuid"
		value = value[len("urn:uuid:"):]
	}
	if value == "" {
		return mediafile.ParsedIdentifier{}, false
	}

	switch strings.ToLower(scheme) {
	case "isbn":
		digits := strings.ReplaceAll(value, "-", "")
		if len(digits) == 13 {
			return mediafile.ParsedIdentifier{Type: models.IdentifierTypeISBN13, Value: digits}, true
		}
		return mediafile.ParsedIdentifier{Type: models.IdentifierTypeISBN10, Value: digits}, true
	case "amazon", "asin":
		return mediafile.ParsedIdentifier{Type: models.IdentifierTypeASIN, Value: value}, true
	case "uuid":
		return mediafile.ParsedIdentifier{Type: models.IdentifierTypeUUID, Value: value}, true
	case "":
		return mediafile.ParsedIdentifier{}, false
	default:
		return mediafile.ParsedIdentifier{Type: models.IdentifierTypeOther, Value: value}, true
	}
}
