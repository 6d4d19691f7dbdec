package testgen

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// GenerateEPUB writes a minimal but valid EPUB to dir/filename and returns its
// path. The archive contains the stored mimetype entry, META-INF/container.xml,
// an OPF package document built from opts, one chapter, and optionally a cover
// image.
func GenerateEPUB(t *testing.T, dir, filename string, opts EPUBOptions) string {
	t.Helper()

	path := filepath.Join(dir, filename)

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create epub: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	defer zw.Close()

	// The mimetype entry must come first and be stored uncompressed so
	// readers can sniff it.
	w, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		t.Fatalf("create mimetype entry: %v", err)
	}
	if _, err := w.Write([]byte("application/epub+zip")); err != nil {
		t.Fatalf("write mimetype: %v", err)
	}

	addEntry(t, zw, "META-INF/container.xml", []byte(`<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`))

	coverName := ""
	coverMime := opts.CoverMimeType
	if coverMime == "" {
		coverMime = "image/png"
	}
	if opts.HasCover {
		if coverMime == "image/jpeg" {
			coverName = "cover.jpg"
		} else {
			coverName = "cover.png"
		}
		addEntry(t, zw, "OEBPS/"+coverName, encodeCover(t, coverMime))
	}

	addEntry(t, zw, "OEBPS/content.opf", buildOPF(opts, coverName, coverMime))

	addEntry(t, zw, "OEBPS/chapter1.xhtml", []byte(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
  <title>Chapter 1</title>
</head>
<body>
  <h1>Chapter 1</h1>
  <p>Generated fixture content.</p>
</body>
</html>`))

	return path
}

func addEntry(t *testing.T, zw *zip.Writer, name string, data []byte) {
	t.Helper()
	w, err := zw.Create(name)
	if err != nil {
		t.Fatalf("create zip entry %s: %v", name, err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatalf("write zip entry %s: %v", name, err)
	}
}

func buildOPF(opts EPUBOptions, coverName, coverMime string) []byte {
	var b strings.Builder

	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<package version="3.0" xmlns="http://www.idpf.org/2007/opf" unique-identifier="bookid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
`)

	// Omitting the title lets tests exercise the filename fallback.
	if opts.Title != "" {
		fmt.Fprintf(&b, "    <dc:title id=\"title\">%s</dc:title>\n", xmlEscape(opts.Title))
	}
	for i, author := range opts.Authors {
		fmt.Fprintf(&b, "    <dc:creator id=\"creator%d\" opf:role=\"aut\">%s</dc:creator>\n", i, xmlEscape(author))
	}

	b.WriteString("    <dc:identifier id=\"bookid\">urn:uuid:test-book-id</dc:identifier>\n")
	if opts.ISBN != "" {
		fmt.Fprintf(&b, "    <dc:identifier opf:scheme=\"ISBN\">%s</dc:identifier>\n", xmlEscape(opts.ISBN))
	}
	b.WriteString("    <dc:language>en</dc:language>\n")

	if opts.Series != "" {
		fmt.Fprintf(&b, "    <meta name=\"calibre:series\" content=\"%s\"/>\n", xmlEscape(opts.Series))
		if opts.SeriesNumber != nil {
			fmt.Fprintf(&b, "    <meta name=\"calibre:series_index\" content=\"%.1f\"/>\n", *opts.SeriesNumber)
		}
	}
	if coverName != "" {
		b.WriteString("    <meta name=\"cover\" content=\"cover-image\"/>\n")
	}

	b.WriteString("  </metadata>\n  <manifest>\n")
	b.WriteString("    <item id=\"chapter1\" href=\"chapter1.xhtml\" media-type=\"application/xhtml+xml\"/>\n")
	if coverName != "" {
		fmt.Fprintf(&b, "    <item id=\"cover-image\" href=\"%s\" media-type=\"%s\"/>\n", coverName, coverMime)
	}
	b.WriteString(`  </manifest>
  <spine>
    <itemref idref="chapter1"/>
  </spine>
</package>`)

	return []byte(b.String())
}

func encodeCover(t *testing.T, mimeType string) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 2), 100, uint8(y * 2), 255})
		}
	}

	var buf bytes.Buffer
	switch mimeType {
	case "image/jpeg":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
			t.Fatalf("encode jpeg cover: %v", err)
		}
	default:
		if err := png.Encode(&buf, img); err != nil {
			t.Fatalf("encode png cover: %v", err)
		}
	}
	return buf.Bytes()
}

func xmlEscape(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	return r.Replace(s)
}
