package generic

import (
	"bytes"
	"strings"
	"testing"
)

func writeString(t *testing.T, obj PdfObject) string {
	t.Helper()
	var buf bytes.Buffer
	if err := obj.Write(&buf); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	return buf.String()
}

func TestNullObject(t *testing.T) {
	if got := writeString(t, NullObject{}); got != "null" {
		t.Errorf("Expected 'null', got '%s'", got)
	}
	if _, ok := (NullObject{}).Clone().(NullObject); !ok {
		t.Error("Clone should return NullObject")
	}
	if !IsNull(nil) || !IsNull(NullObject{}) || IsNull(IntegerObject(0)) {
		t.Error("IsNull misclassified a value")
	}
}

func TestScalarWrite(t *testing.T) {
	tests := []struct {
		name     string
		obj      PdfObject
		expected string
	}{
		{"true", BooleanObject(true), "true"},
		{"false", BooleanObject(false), "false"},
		{"zero", IntegerObject(0), "0"},
		{"negative", IntegerObject(-123), "-123"},
		{"real", RealObject(1.5), "1.5"},
		{"real integral", RealObject(612), "612"},
		{"name", NameObject("Type"), "/Type"},
		{"name with space", NameObject("A B"), "/A#20B"},
		{"name with slash", NameObject("A/B"), "/A#2FB"},
		{"reference", NewReference(12, 0), "12 0 R"},
		{"literal", NewLiteralString("a(b)c\\"), `(a\(b\)c\\)`},
		{"literal control", NewLiteralString("x\ny\x01"), `(x\ny\001)`},
		{"hex", NewHexString([]byte{0xDE, 0xAD}), "<dead>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := writeString(t, tt.obj); got != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, got)
			}
		})
	}
}

func TestNameWriteMultiByte(t *testing.T) {
	tests := []struct {
		name     NameObject
		expected string
	}{
		{"Café", "/Caf#C3#A9"},
		{"日本", "/#E6#97#A5#E6#9C#AC"},
		{"F1#2", "/F1#232"},
		{"a\x00b", "/a#00b"},
	}

	for _, tt := range tests {
		t.Run(string(tt.name), func(t *testing.T) {
			got := writeString(t, tt.name)
			if got != tt.expected {
				t.Errorf("Write = %q, want %q", got, tt.expected)
			}

			parsed, err := NewParserFromBytes([]byte(got)).ParseObject()
			if err != nil {
				t.Fatalf("ParseObject failed: %v", err)
			}
			if parsed != tt.name {
				t.Errorf("round trip = %q, want %q", parsed, tt.name)
			}
		})
	}
}

func TestNameWriteDistinctKeys(t *testing.T) {
	dict := NewDictionary()
	dict.Set("Caf\xc3\xa9", IntegerObject(1))
	dict.Set("Caf\xc3\xa8", IntegerObject(2))

	parsed, err := NewParserFromBytes([]byte(writeString(t, dict))).ParseObject()
	if err != nil {
		t.Fatalf("ParseObject failed: %v", err)
	}
	out, ok := parsed.(*DictionaryObject)
	if !ok {
		t.Fatalf("parsed %T, want dictionary", parsed)
	}
	if len(out.Keys()) != 2 {
		t.Errorf("Keys = %q, want two distinct names", out.Keys())
	}
	if !Equal(out, dict) {
		t.Errorf("round trip = %s, want %s", writeString(t, out), writeString(t, dict))
	}
}

func TestArrayWrite(t *testing.T) {
	arr := NewArray(IntegerObject(1), NameObject("X"), NewReference(3, 0), nil)
	if got := writeString(t, arr); got != "[1 /X 3 0 R null]" {
		t.Errorf("Unexpected array output: %s", got)
	}
}

func TestDictionaryOrderAndDelete(t *testing.T) {
	dict := NewDictionary()
	dict.Set("Type", NameObject("Page"))
	dict.Set("Parent", NewReference(2, 0))
	dict.Set("Contents", NewReference(4, 0))
	dict.Set("Type", NameObject("Pages"))

	if keys := strings.Join(dict.Keys(), ","); keys != "Type,Parent,Contents" {
		t.Errorf("Keys = %s, want insertion order", keys)
	}
	if dict.GetName("Type") != "Pages" {
		t.Error("Set should replace an existing value in place")
	}

	dict.Delete("Parent")
	if dict.Has("Parent") || dict.Len() != 2 {
		t.Error("Delete did not remove the key")
	}
	if keys := strings.Join(dict.Keys(), ","); keys != "Type,Contents" {
		t.Errorf("Keys after delete = %s", keys)
	}

	out := writeString(t, dict)
	if !strings.HasPrefix(out, "<<") || !strings.HasSuffix(out, ">>") {
		t.Errorf("Dictionary output malformed: %s", out)
	}
}

func TestDictionaryClone(t *testing.T) {
	inner := NewDictionary()
	inner.Set("F1", NewReference(7, 0))
	dict := NewDictionary()
	dict.Set("Font", inner)

	clone := dict.Clone().(*DictionaryObject)
	clone.GetDict("Font").Set("F2", NewReference(8, 0))

	if inner.Has("F2") {
		t.Error("Clone must not share nested dictionaries")
	}
}

func TestStreamWriteUsesDataLength(t *testing.T) {
	dict := NewDictionary()
	dict.Set("Length", NewReference(9, 0))
	stream := &StreamObject{Dictionary: dict, Data: []byte("BT ET")}

	out := writeString(t, stream)
	if !strings.Contains(out, "/Length 5") {
		t.Errorf("Expected direct length, got %s", out)
	}
	if _, ok := dict.Get("Length").(Reference); !ok {
		t.Error("Write must not mutate the stream dictionary")
	}
	if !strings.Contains(out, "stream\nBT ET\nendstream") {
		t.Errorf("Payload not framed correctly: %s", out)
	}
}

func TestStreamFilters(t *testing.T) {
	dict := NewDictionary()
	dict.Set("Filter", NewArray(NameObject("ASCIIHexDecode"), NameObject("FlateDecode")))
	stream := NewStream(dict, nil)

	filters := stream.Filters()
	if len(filters) != 2 || filters[0] != "ASCIIHexDecode" || filters[1] != "FlateDecode" {
		t.Errorf("Filters = %v", filters)
	}
	if NewStream(nil, nil).Filters() != nil {
		t.Error("Stream without filter should report none")
	}
}

func TestRectangle(t *testing.T) {
	rect, err := NewRectangle(NewArray(IntegerObject(0), IntegerObject(0), RealObject(612), IntegerObject(792)))
	if err != nil {
		t.Fatalf("NewRectangle failed: %v", err)
	}
	if rect.Width() != 612 || rect.Height() != 792 {
		t.Errorf("Unexpected dimensions %vx%v", rect.Width(), rect.Height())
	}

	if _, err := NewRectangle(NewArray(IntegerObject(0))); err == nil {
		t.Error("Expected error for short array")
	}
	if _, err := NewRectangle(NewArray(IntegerObject(0), IntegerObject(0), NameObject("x"), IntegerObject(1))); err == nil {
		t.Error("Expected error for non-numeric element")
	}
}

func TestTrailerAccessors(t *testing.T) {
	trailer := NewTrailer()
	trailer.Set("Size", IntegerObject(6))
	trailer.Set("Root", NewReference(1, 0))
	trailer.Set("Prev", IntegerObject(1024))

	if root := trailer.GetRoot(); root == nil || root.ObjectNumber != 1 {
		t.Errorf("GetRoot = %v", root)
	}
	if trailer.GetInfo() != nil {
		t.Error("GetInfo should be nil when absent")
	}
	if trailer.GetSize() != 6 {
		t.Errorf("GetSize = %d", trailer.GetSize())
	}
	if prev, ok := trailer.GetPrev(); !ok || prev != 1024 {
		t.Errorf("GetPrev = %d, %v", prev, ok)
	}
}

func TestTextString(t *testing.T) {
	tests := []struct {
		name  string
		input string
		bom   bool
	}{
		{"ascii", "pdfstitch", false},
		{"latin1", "café", false},
		{"unicode", "日本語", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewTextString(tt.input)
			hasBOM := bytes.HasPrefix(s.Value, []byte{0xFE, 0xFF})
			if hasBOM != tt.bom {
				t.Errorf("BOM present = %v, want %v", hasBOM, tt.bom)
			}
			if got := s.Text(); got != tt.input {
				t.Errorf("Text() = %q, want %q", got, tt.input)
			}
		})
	}
}

func TestTextUTF8BOM(t *testing.T) {
	s := &StringObject{Value: append([]byte{0xEF, 0xBB, 0xBF}, "ok"...)}
	if s.Text() != "ok" {
		t.Errorf("Text() = %q", s.Text())
	}
}
