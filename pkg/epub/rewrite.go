package epub

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/foliobooks/folio/pkg/models"
	"github.com/pkg/errors"
)

// RewriteMetadata applies the given metadata edits to the EPUB at path,
// rewriting the OPF package document in place. The archive is rebuilt into a
// temp file next to the original and swapped in with an atomic rename, so a
// failure partway through leaves the original untouched.
func RewriteMetadata(path string, edits *models.MetadataEditPayload) error {
	srcFile, err := os.Open(path)
	if err != nil {
		return errors.WithStack(err)
	}
	defer srcFile.Close()

	srcStat, err := srcFile.Stat()
	if err != nil {
		return errors.WithStack(err)
	}

	srcZip, err := zip.NewReader(srcFile, srcStat.Size())
	if err != nil {
		return errors.Wrap(err, "failed to read epub as zip")
	}

	var opfPath string
	for _, f := range srcZip.File {
		if filepath.Ext(f.Name) == ".opf" {
			opfPath = f.Name
			break
		}
	}
	if opfPath == "" {
		return errors.New("no opf file found")
	}

	tmpPath := path + ".tmp"
	destFile, err := os.Create(tmpPath)
	if err != nil {
		return errors.WithStack(err)
	}
	defer func() {
		destFile.Close()
		os.Remove(tmpPath)
	}()

	destZip := zip.NewWriter(destFile)

	for _, srcZipFile := range srcZip.File {
		var content []byte

		if srcZipFile.Name == opfPath {
			content, err = rewriteOPF(srcZipFile, edits)
			if err != nil {
				return errors.Wrap(err, "failed to rewrite opf metadata")
			}
		} else {
			content, err = readZipFile(srcZipFile)
			if err != nil {
				return errors.WithStack(err)
			}
		}

		w, err := destZip.CreateHeader(&zip.FileHeader{
			Name:   srcZipFile.Name,
			Method: srcZipFile.Method,
		})
		if err != nil {
			return errors.WithStack(err)
		}
		if _, err := w.Write(content); err != nil {
			return errors.WithStack(err)
		}
	}

	if err := destZip.Close(); err != nil {
		return errors.WithStack(err)
	}
	if err := destFile.Close(); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(os.Rename(tmpPath, path))
}

// rewriteOPF edits the package document at the text level. A round trip
// through a generic unmarshal/marshal would strip the namespace declarations
// and prefixes the original carries, so only the edited elements are touched
// and every other byte survives as-is.
func rewriteOPF(opfFile *zip.File, edits *models.MetadataEditPayload) ([]byte, error) {
	data, err := readZipFile(opfFile)
	if err != nil {
		return nil, err
	}
	doc := string(data)

	if metadataCloseRE.FindStringIndex(doc) == nil {
		return nil, errors.New("no metadata element found in opf")
	}

	if edits.Title != nil {
		doc = setElementText(doc, titleElementRE, "title", escapeText(*edits.Title))
	}
	if edits.Author != nil {
		doc = setAuthor(doc, escapeText(*edits.Author))
	}
	if edits.Description != nil {
		doc = setElementText(doc, descriptionElementRE, "description", escapeText(*edits.Description))
	}
	if edits.ISBN != nil {
		doc = setISBN(doc, escapeText(*edits.ISBN))
	}

	return []byte(doc), nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	r, err := f.Open()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer r.Close()

	b, err := io.ReadAll(r)
	return b, errors.WithStack(err)
}

// opfElementRE matches an element by local name under any namespace prefix,
// capturing its attribute block and inner text.
func opfElementRE(local string) *regexp.Regexp {
	return regexp.MustCompile(`(?s)<(?:[A-Za-z0-9._-]+:)?` + local + `(\s[^>]*)?>(.*?)</(?:[A-Za-z0-9._-]+:)?` + local + `>`)
}

var (
	titleElementRE       = opfElementRE("title")
	creatorElementRE     = opfElementRE("creator")
	descriptionElementRE = opfElementRE("description")
	identifierElementRE  = opfElementRE("identifier")

	metadataCloseRE = regexp.MustCompile(`[ \t]*</(?:[A-Za-z0-9._-]+:)?metadata>`)
	roleAttrRE      = regexp.MustCompile(`(?:[A-Za-z0-9._-]+:)?role\s*=\s*"([^"]*)"`)
	schemeAttrRE    = regexp.MustCompile(`(?:[A-Za-z0-9._-]+:)?scheme\s*=\s*"([^"]*)"`)
)

// setElementText replaces the inner text of the first matching element,
// keeping its tags and attributes. When the document has none, a new
// dc-prefixed element is appended to the metadata block.
func setElementText(doc string, re *regexp.Regexp, local, value string) string {
	if loc := re.FindStringSubmatchIndex(doc); loc != nil {
		return doc[:loc[4]] + value + doc[loc[5]:]
	}
	return insertMetadataElement(doc, "<dc:"+local+">"+value+"</dc:"+local+">")
}

// setAuthor replaces the author creators with a single one. Creators carrying
// other contributor roles are left alone. A creator with no role attribute
// counts as an author.
func setAuthor(doc, value string) string {
	matches := creatorElementRE.FindAllStringSubmatchIndex(doc, -1)

	var b strings.Builder
	last := 0
	replaced := false
	for _, m := range matches {
		attrs := ""
		if m[2] >= 0 {
			attrs = doc[m[2]:m[3]]
		}
		if role := roleAttrRE.FindStringSubmatch(attrs); role != nil && role[1] != "aut" {
			continue
		}

		if !replaced {
			replaced = true
			b.WriteString(doc[last:m[4]])
			b.WriteString(value)
			last = m[5]
			continue
		}

		// Drop extra author elements along with their leading indentation.
		start := m[0]
		for start > last && (doc[start-1] == ' ' || doc[start-1] == '\t') {
			start--
		}
		if start > last && doc[start-1] == '\n' {
			start--
		}
		b.WriteString(doc[last:start])
		last = m[1]
	}
	b.WriteString(doc[last:])

	if !replaced {
		return insertMetadataElement(b.String(), `<dc:creator opf:role="aut">`+value+`</dc:creator>`)
	}
	return b.String()
}

// setISBN replaces the value of the first ISBN-scheme identifier, or appends
// one when the document has none. Identifiers with other schemes stay
// untouched so the package's unique-identifier keeps resolving.
func setISBN(doc, value string) string {
	for _, m := range identifierElementRE.FindAllStringSubmatchIndex(doc, -1) {
		attrs := ""
		if m[2] >= 0 {
			attrs = doc[m[2]:m[3]]
		}
		if scheme := schemeAttrRE.FindStringSubmatch(attrs); scheme != nil && strings.EqualFold(scheme[1], "ISBN") {
			return doc[:m[4]] + value + doc[m[5]:]
		}
	}
	return insertMetadataElement(doc, `<dc:identifier opf:scheme="ISBN">`+value+`</dc:identifier>`)
}

func insertMetadataElement(doc, element string) string {
	loc := metadataCloseRE.FindStringIndex(doc)
	if loc == nil {
		return doc
	}
	return doc[:loc[0]] + "    " + element + "\n" + doc[loc[0]:]
}

func escapeText(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(s)
}
