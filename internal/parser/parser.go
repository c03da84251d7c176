package parser

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"docintel/internal/models"
)

// Result is everything extracted from one file: structural sections for
// chunking, the concatenated full text for the lexical fallback, and
// auxiliary table/link artifacts.
type Result struct {
	Metadata models.Metadata
	Sections []models.Section
	FullText string
	Tables   []models.TableData
	Links    []string
}

// Parse extracts text, metadata, tables and links from raw file bytes.
// declaredType wins over the filename extension when set. Returns
// models.ErrUnsupportedFormat for types without a handler and
// models.ErrCorruptInput when a supported format cannot be read.
func Parse(data []byte, filename string, declaredType models.FileType) (*Result, error) {
	ft := declaredType
	if ft == "" || ft == models.FileTypeUnknown {
		ft = models.DetectFileType(filename)
	}

	var (
		res *Result
		err error
	)
	switch ft {
	case models.FileTypePDF:
		res, err = parsePDF(data)
	case models.FileTypeDOCX:
		res, err = parseDOCX(data)
	case models.FileTypePPTX:
		res, err = parsePPTX(data)
	case models.FileTypeXLSX:
		res, err = parseXLSX(data)
	case models.FileTypeODS:
		res, err = parseODS(data)
	case models.FileTypeCSV:
		res, err = parseCSV(data)
	case models.FileTypeTXT:
		res, err = parseText(data)
	case models.FileTypeMD:
		res, err = parseMarkdown(data)
	case models.FileTypeHTML:
		res, err = parseHTML(data)
	case models.FileTypeJSON:
		res, err = parseJSON(data)
	case models.FileTypeEML:
		res, err = parseEML(data)
	default:
		return nil, fmt.Errorf("%w: %s", models.ErrUnsupportedFormat, filename)
	}
	if err != nil {
		return nil, err
	}

	res.finish()
	return res, nil
}

// finish fills the derived fields shared by all formats.
func (r *Result) finish() {
	if r.FullText == "" {
		var parts []string
		for _, s := range r.Sections {
			if t := strings.TrimSpace(s.Text); t != "" {
				parts = append(parts, t)
			}
		}
		r.FullText = strings.Join(parts, "\n\n")
	}
	r.Metadata.WordCount = len(strings.Fields(r.FullText))
	r.Links = dedupeLinks(r.Links)
}

func dedupeLinks(links []string) []string {
	if len(links) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(links))
	out := make([]string, 0, len(links))
	for _, l := range links {
		l = strings.TrimSpace(l)
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}

// decodeText decodes bytes as UTF-8, falling back to latin-1 so legacy
// exports still yield something searchable.
func decodeText(data []byte) string {
	if utf8.Valid(data) {
		return strings.TrimPrefix(string(data), "\uFEFF")
	}
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes)
}

// xmlTagText pulls the text between every openTag/closeTag pair. Used for
// the office XML formats where a full XML parse buys nothing.
func xmlTagText(content, openTag, closeTag string) string {
	var text strings.Builder
	parts := strings.Split(content, openTag)
	for i, part := range parts {
		if i == 0 {
			continue
		}
		// Skip past the rest of the opening tag (attributes, '>').
		if gt := strings.Index(part, ">"); gt >= 0 && gt < strings.Index(part+closeTag, closeTag) {
			part = part[gt+1:]
		}
		if end := strings.Index(part, closeTag); end >= 0 {
			text.WriteString(part[:end] + " ")
		}
	}
	return strings.TrimSpace(text.String())
}
