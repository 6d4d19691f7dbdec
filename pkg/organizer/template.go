package organizer

import (
	"strings"
)

// TemplateFields holds the values substituted into a naming template. Empty
// fields render as nothing and leave no dangling separators behind.
type TemplateFields struct {
	Author string
	Title  string
	Year   string
	ISBN13 string
	Ext    string
}

// illegalPathChars are characters that can't appear in a path segment on at
// least one supported filesystem.
const illegalPathChars = `<>:"/\|?*`

// RenderTemplate fills a naming template and returns a relative path. Each
// field is sanitized before substitution so a title like "TCP/IP Illustrated"
// can't escape into an extra directory level. The path separator in the
// template itself is kept.
func RenderTemplate(template string, fields TemplateFields) string {
	r := strings.NewReplacer(
		"{Author}", sanitizeField(fields.Author),
		"{Title}", sanitizeField(fields.Title),
		"{Year}", sanitizeField(fields.Year),
		"{ISBN13}", sanitizeField(fields.ISBN13),
		"{ext}", strings.TrimPrefix(fields.Ext, "."),
	)
	rendered := r.Replace(template)

	segments := strings.Split(rendered, "/")
	cleaned := make([]string, 0, len(segments))
	for _, segment := range segments {
		segment = stripEmptyGroups(segment)
		segment = collapseWhitespace(segment)
		segment = strings.ReplaceAll(segment, " .", ".")
		if segment == "" {
			continue
		}
		cleaned = append(cleaned, segment)
	}

	return strings.Join(cleaned, "/")
}

func sanitizeField(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(illegalPathChars, r) {
			b.WriteRune('-')
			continue
		}
		b.WriteRune(r)
	}
	return collapseWhitespace(b.String())
}

// stripEmptyGroups removes the "()" and "[]" wrappers left behind when an
// optional field like the year rendered empty.
func stripEmptyGroups(s string) string {
	s = strings.ReplaceAll(s, "()", "")
	s = strings.ReplaceAll(s, "[]", "")
	return s
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
