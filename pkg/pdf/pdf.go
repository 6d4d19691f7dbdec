// Package pdf extracts document metadata from PDF files via the Info
// dictionary. PDFs are read-only for us: metadata edits are not supported for
// this format.
package pdf

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/foliobooks/folio/pkg/mediafile"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pkg/errors"
)

// creationDateRE matches the year out of a PDF date string like
// D:20190523120000Z.
var creationDateRE = regexp.MustCompile(`D:(\d{4})`)

func Parse(path string) (*mediafile.ParsedMetadata, error) {
	ctx, err := api.ReadContextFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read pdf")
	}

	meta := &mediafile.ParsedMetadata{
		Title:       strings.TrimSpace(ctx.Title),
		Description: strings.TrimSpace(ctx.Subject),
	}

	if author := strings.TrimSpace(ctx.Author); author != "" {
		// Info dictionaries commonly cram multiple authors into one field.
		for _, part := range strings.Split(author, ";") {
			for _, name := range strings.Split(part, ",") {
				if trimmed := strings.TrimSpace(name); trimmed != "" {
					meta.Authors = append(meta.Authors, trimmed)
				}
			}
		}
	}

	if matches := creationDateRE.FindStringSubmatch(ctx.XRefTable.CreationDate); len(matches) > 1 {
		if year, err := strconv.Atoi(matches[1]); err == nil {
			meta.PublishedYear = &year
		}
	}

	return meta, nil
}
