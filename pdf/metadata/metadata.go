// Package metadata reads and builds the document information dictionary.
package metadata

import (
	"fmt"
	"strings"
	"time"

	"github.com/georgepadayatti/pdfstitch/pdf/document"
	"github.com/georgepadayatti/pdfstitch/pdf/generic"
)

// DocumentInfo represents the entries of a /Info dictionary.
type DocumentInfo struct {
	// Title is the document's title.
	Title string

	// Author is the document's author.
	Author string

	// Subject is the document's subject.
	Subject string

	// Keywords are keywords associated with the document.
	Keywords []string

	// Creator is the software that authored the original document.
	Creator string

	// Producer is the software that produced the PDF.
	Producer string

	// Created is when the document was created.
	Created *time.Time

	// LastModified is when the document was last modified.
	LastModified *time.Time
}

// InfoDictEntry represents an entry in the PDF info dictionary.
type InfoDictEntry struct {
	Key   string
	Value string
}

// Entries returns the non-empty entries in dictionary order.
func (m *DocumentInfo) Entries() []InfoDictEntry {
	var entries []InfoDictEntry

	add := func(key, value string) {
		if value != "" {
			entries = append(entries, InfoDictEntry{Key: key, Value: value})
		}
	}

	add("Title", m.Title)
	add("Author", m.Author)
	add("Subject", m.Subject)
	add("Keywords", strings.Join(m.Keywords, ", "))
	add("Creator", m.Creator)
	add("Producer", m.Producer)
	if m.Created != nil {
		add("CreationDate", FormatPDFDate(*m.Created))
	}
	if m.LastModified != nil {
		add("ModDate", FormatPDFDate(*m.LastModified))
	}

	return entries
}

// Dict builds the /Info dictionary. Values are text strings.
func (m *DocumentInfo) Dict() *generic.DictionaryObject {
	dict := generic.NewDictionary()
	for _, e := range m.Entries() {
		dict.Set(e.Key, generic.NewTextString(e.Value))
	}
	return dict
}

// ReadInfo returns the /Info dictionary of doc, or nil if the trailer has
// none. Entries that are not strings, and dates that do not parse, are
// ignored.
func ReadInfo(doc *document.Document) (*DocumentInfo, error) {
	trailer := doc.Trailer()
	if trailer == nil {
		return nil, nil
	}
	dict, err := doc.ResolveDict(trailer.Get("Info"))
	if err != nil || dict == nil {
		return nil, err
	}

	text := func(key string) (string, error) {
		obj, err := doc.ResolveObject(dict.Get(key))
		if err != nil {
			return "", err
		}
		if s, ok := obj.(*generic.StringObject); ok {
			return s.Text(), nil
		}
		return "", nil
	}

	info := &DocumentInfo{}
	fields := []struct {
		key string
		dst *string
	}{
		{"Title", &info.Title},
		{"Author", &info.Author},
		{"Subject", &info.Subject},
		{"Creator", &info.Creator},
		{"Producer", &info.Producer},
	}
	for _, f := range fields {
		if *f.dst, err = text(f.key); err != nil {
			return nil, fmt.Errorf("info %s: %w", f.key, err)
		}
	}

	keywords, err := text("Keywords")
	if err != nil {
		return nil, fmt.Errorf("info Keywords: %w", err)
	}
	for _, k := range strings.Split(keywords, ",") {
		if k = strings.TrimSpace(k); k != "" {
			info.Keywords = append(info.Keywords, k)
		}
	}

	for key, dst := range map[string]**time.Time{"CreationDate": &info.Created, "ModDate": &info.LastModified} {
		s, err := text(key)
		if err != nil {
			return nil, fmt.Errorf("info %s: %w", key, err)
		}
		if s == "" {
			continue
		}
		if t, err := ParsePDFDate(s); err == nil {
			*dst = t
		}
	}

	return info, nil
}

// FormatPDFDate formats a time as a PDF date string (D:YYYYMMDDHHmmSSOHH'mm').
func FormatPDFDate(t time.Time) string {
	_, offset := t.Zone()
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	hours := offset / 3600
	minutes := (offset % 3600) / 60

	return fmt.Sprintf("D:%04d%02d%02d%02d%02d%02d%s%02d'%02d'",
		t.Year(), t.Month(), t.Day(),
		t.Hour(), t.Minute(), t.Second(),
		sign, hours, minutes)
}

// pdfDateLayouts are tried in order after the apostrophes are removed.
var pdfDateLayouts = []string{
	"20060102150405Z0700",
	"20060102150405Z07",
	"20060102150405",
	"200601021504",
	"2006010215",
	"20060102",
	"200601",
	"2006",
}

// ParsePDFDate parses a PDF date string.
func ParsePDFDate(s string) (*time.Time, error) {
	if !strings.HasPrefix(s, "D:") {
		return nil, fmt.Errorf("invalid PDF date: missing D: prefix")
	}

	value := strings.ReplaceAll(s[2:], "'", "")
	for _, layout := range pdfDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, nil
		}
	}

	return nil, fmt.Errorf("unable to parse PDF date: %s", s)
}
