package generic

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

var (
	utf16BEBOM = []byte{0xFE, 0xFF}
	utf8BOM    = []byte{0xEF, 0xBB, 0xBF}
)

// NewTextString creates a PDF text string. Text that fits in Latin-1 is
// stored as single bytes; anything else becomes UTF-16BE with a BOM.
func NewTextString(s string) *StringObject {
	if isLatin1(s) {
		if encoded, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(s)); err == nil {
			return &StringObject{Value: encoded}
		}
	}
	encoded, err := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder().Bytes([]byte(s))
	if err != nil {
		return &StringObject{Value: []byte(s)}
	}
	return &StringObject{Value: encoded}
}

// Text returns the string value decoded as a PDF text string.
// PDFDocEncoding is read as Latin-1, which agrees with it outside 0x18-0x1F and 0x80-0x9F.
func (s *StringObject) Text() string {
	switch {
	case bytes.HasPrefix(s.Value, utf16BEBOM):
		out, err := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder().Bytes(s.Value)
		if err == nil {
			return string(out)
		}
	case bytes.HasPrefix(s.Value, utf8BOM):
		if rest := s.Value[len(utf8BOM):]; utf8.Valid(rest) {
			return string(rest)
		}
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(s.Value)
	if err != nil {
		return string(s.Value)
	}
	return string(out)
}

func isLatin1(s string) bool {
	for _, r := range s {
		if r > 0xFF {
			return false
		}
	}
	return true
}
