package reader

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/georgepadayatti/pdfstitch/pdf/filters"
	"github.com/georgepadayatti/pdfstitch/pdf/generic"
)

// XRefType represents different types of cross-reference entries.
type XRefType int

const (
	// XRefTypeFree represents a freeing instruction.
	XRefTypeFree XRefType = iota
	// XRefTypeStandard represents a regular top-level object.
	XRefTypeStandard
	// XRefTypeInObjStream represents an object that's part of an object stream.
	XRefTypeInObjStream
)

// String returns the string representation of the XRef type.
func (t XRefType) String() string {
	switch t {
	case XRefTypeFree:
		return "free"
	case XRefTypeStandard:
		return "standard"
	case XRefTypeInObjStream:
		return "in_obj_stream"
	default:
		return "unknown"
	}
}

// XRefEntry locates one object.
type XRefEntry struct {
	Type XRefType
	// Offset is the byte offset of a standard entry.
	Offset     int64
	Generation int
	// StreamNumber and Index locate an object inside an object stream.
	StreamNumber int
	Index        int
}

// XRefTable maps object numbers to entries, merged across every section of
// a file.
type XRefTable struct {
	Entries map[int]XRefEntry
	// Sections holds the byte offset of each section read, newest first.
	Sections []int64
}

func newXRefTable() *XRefTable {
	return &XRefTable{Entries: make(map[int]XRefEntry)}
}

// mergeOlder adds the entries of an older section. Entries already present
// came from a newer section and win.
func (t *XRefTable) mergeOlder(entries map[int]XRefEntry) {
	for num, entry := range entries {
		if _, exists := t.Entries[num]; !exists {
			t.Entries[num] = entry
		}
	}
}

// Lookup returns the entry for an object number.
func (t *XRefTable) Lookup(objNum int) (XRefEntry, bool) {
	entry, ok := t.Entries[objNum]
	return entry, ok
}

// parseXRefTable parses a classic table starting at the "xref" keyword and
// returns its entries with the trailer that follows.
func parseXRefTable(data []byte, offset int64) (map[int]XRefEntry, *generic.DictionaryObject, error) {
	pos := offset + int64(len("xref"))
	entries := make(map[int]XRefEntry)

	for {
		pos = skipSpace(data, pos)
		if bytes.HasPrefix(data[pos:], []byte("trailer")) {
			pos += int64(len("trailer"))
			break
		}

		startObj, count, next, err := parseSubsectionHeader(data, pos)
		if err != nil {
			return nil, nil, err
		}
		pos = next

		for i := 0; i < count; i++ {
			entry, next, err := parseTableEntry(data, pos)
			if err != nil {
				return nil, nil, err
			}
			pos = next
			if _, dup := entries[startObj+i]; !dup {
				entries[startObj+i] = entry
			}
		}
	}

	parser := generic.NewParserFromBytes(data)
	parser.SetPos(pos)
	obj, err := parser.ParseObject()
	if err != nil {
		return nil, nil, newParseError(MalformedTrailer, pos, "trailer: %w", err)
	}
	dict, ok := obj.(*generic.DictionaryObject)
	if !ok {
		return nil, nil, newParseError(MalformedTrailer, pos, "trailer is %T, not a dictionary", obj)
	}
	return entries, dict, nil
}

func parseSubsectionHeader(data []byte, pos int64) (startObj, count int, next int64, err error) {
	start, pos := readDigits(data, pos)
	if start == "" {
		return 0, 0, pos, newParseError(UnresolvableXRef, pos, "missing subsection start")
	}
	for pos < int64(len(data)) && (data[pos] == ' ' || data[pos] == '\t') {
		pos++
	}
	n, pos := readDigits(data, pos)
	if n == "" {
		return 0, 0, pos, newParseError(UnresolvableXRef, pos, "missing subsection count")
	}

	startObj, _ = strconv.Atoi(start)
	count, _ = strconv.Atoi(n)
	return startObj, count, skipSpace(data, pos), nil
}

// parseTableEntry parses "nnnnnnnnnn ggggg n" and the end of line after it.
// Producers disagree on the two-byte line ending, so the entry is split on
// whitespace rather than sliced at fixed columns.
func parseTableEntry(data []byte, pos int64) (XRefEntry, int64, error) {
	pos = skipSpace(data, pos)
	offsetStr, p := readDigits(data, pos)
	p = skipInline(data, p)
	genStr, p := readDigits(data, p)
	p = skipInline(data, p)
	if offsetStr == "" || genStr == "" || p >= int64(len(data)) {
		return XRefEntry{}, pos, newParseError(UnresolvableXRef, pos, "truncated xref entry")
	}

	offset, err := strconv.ParseInt(offsetStr, 10, 64)
	if err != nil {
		return XRefEntry{}, pos, newParseError(UnresolvableXRef, pos, "invalid offset: %w", err)
	}
	gen, err := strconv.Atoi(genStr)
	if err != nil {
		return XRefEntry{}, pos, newParseError(UnresolvableXRef, pos, "invalid generation: %w", err)
	}

	entry := XRefEntry{Offset: offset, Generation: gen}
	switch data[p] {
	case 'n':
		entry.Type = XRefTypeStandard
	case 'f':
		entry.Type = XRefTypeFree
	default:
		return XRefEntry{}, pos, newParseError(UnresolvableXRef, p, "invalid xref entry type %q", data[p])
	}
	return entry, p + 1, nil
}

// parseXRefStream reads the entries of a decoded cross-reference stream.
func parseXRefStream(stream *generic.StreamObject, offset int64) (map[int]XRefEntry, error) {
	dict := stream.Dictionary

	wArray := dict.GetArray("W")
	if len(wArray) != 3 {
		return nil, newParseError(UnresolvableXRef, offset, "invalid /W array in xref stream")
	}
	var w [3]int
	for i, v := range wArray {
		n, ok := v.(generic.IntegerObject)
		if !ok || n < 0 || n > 8 {
			return nil, newParseError(UnresolvableXRef, offset, "invalid /W entry %v", v)
		}
		w[i] = int(n)
	}
	entrySize := w[0] + w[1] + w[2]
	if entrySize == 0 {
		return nil, newParseError(UnresolvableXRef, offset, "zero xref stream entry size")
	}

	var subsections [][2]int
	if index := dict.GetArray("Index"); index != nil {
		for i := 0; i+1 < len(index); i += 2 {
			start, _ := index[i].(generic.IntegerObject)
			count, _ := index[i+1].(generic.IntegerObject)
			subsections = append(subsections, [2]int{int(start), int(count)})
		}
	} else {
		size, _ := dict.GetInt("Size")
		subsections = [][2]int{{0, int(size)}}
	}

	data, err := filters.DecodeStream(stream)
	if err != nil {
		return nil, newParseError(UnresolvableXRef, offset, "decoding xref stream: %w", err)
	}

	entries := make(map[int]XRefEntry)
	pos := 0
	for _, subsec := range subsections {
		for i := 0; i < subsec[1]; i++ {
			if pos+entrySize > len(data) {
				return nil, newParseError(UnresolvableXRef, offset, "xref stream shorter than its /Index")
			}
			row := data[pos : pos+entrySize]
			pos += entrySize

			entryType := 1
			if w[0] > 0 {
				entryType = readXRefField(row, 0, w[0])
			}
			field2 := readXRefField(row, w[0], w[1])
			field3 := readXRefField(row, w[0]+w[1], w[2])

			var entry XRefEntry
			switch entryType {
			case 0:
				entry = XRefEntry{Type: XRefTypeFree, Offset: int64(field2), Generation: field3}
			case 1:
				entry = XRefEntry{Type: XRefTypeStandard, Offset: int64(field2), Generation: field3}
			case 2:
				entry = XRefEntry{Type: XRefTypeInObjStream, StreamNumber: field2, Index: field3}
			default:
				// Unknown types are references to the null object.
				continue
			}
			entries[subsec[0]+i] = entry
		}
	}
	return entries, nil
}

func readXRefField(data []byte, offset, width int) int {
	var value int
	for i := 0; i < width; i++ {
		value = value<<8 | int(data[offset+i])
	}
	return value
}

// objectStream is a decoded object stream: N objects whose offsets, relative
// to First, are listed as pairs at the start of the data.
type objectStream struct {
	data    []byte
	first   int
	numbers []int
	offsets []int
}

func parseObjectStream(stream *generic.StreamObject) (*objectStream, error) {
	dict := stream.Dictionary
	n, ok := dict.GetInt("N")
	if !ok || n < 0 {
		return nil, fmt.Errorf("object stream missing /N")
	}
	first, ok := dict.GetInt("First")
	if !ok || first < 0 {
		return nil, fmt.Errorf("object stream missing /First")
	}

	data, err := filters.DecodeStream(stream)
	if err != nil {
		return nil, fmt.Errorf("decoding object stream: %w", err)
	}
	if int(first) > len(data) {
		return nil, fmt.Errorf("object stream /First %d beyond data length %d", first, len(data))
	}

	os := &objectStream{data: data, first: int(first)}
	parser := generic.NewParserFromBytes(data[:first])
	for i := int64(0); i < n; i++ {
		numObj, err := parser.ParseObject()
		if err != nil {
			return nil, fmt.Errorf("object stream index: %w", err)
		}
		offObj, err := parser.ParseObject()
		if err != nil {
			return nil, fmt.Errorf("object stream index: %w", err)
		}
		num, ok1 := numObj.(generic.IntegerObject)
		off, ok2 := offObj.(generic.IntegerObject)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("object stream index holds non-integers")
		}
		os.numbers = append(os.numbers, int(num))
		os.offsets = append(os.offsets, int(off))
	}
	return os, nil
}

// object parses the object at index, checking that it is objNum.
func (os *objectStream) object(index, objNum int) (generic.PdfObject, error) {
	if index < 0 || index >= len(os.offsets) {
		return nil, fmt.Errorf("object index %d out of range [0, %d)", index, len(os.offsets))
	}
	if os.numbers[index] != objNum {
		return nil, fmt.Errorf("object stream holds %d at index %d, not %d", os.numbers[index], index, objNum)
	}
	start := os.first + os.offsets[index]
	if start >= len(os.data) {
		return nil, fmt.Errorf("object %d offset beyond object stream data", objNum)
	}
	parser := generic.NewParserFromBytes(os.data)
	parser.SetPos(int64(start))
	return parser.ParseObjectOrReference()
}

func skipSpace(data []byte, pos int64) int64 {
	for pos < int64(len(data)) && generic.IsWhitespace(data[pos]) {
		pos++
	}
	return pos
}

func skipInline(data []byte, pos int64) int64 {
	for pos < int64(len(data)) && (data[pos] == ' ' || data[pos] == '\t') {
		pos++
	}
	return pos
}

func readDigits(data []byte, pos int64) (string, int64) {
	start := pos
	for pos < int64(len(data)) && data[pos] >= '0' && data[pos] <= '9' {
		pos++
	}
	return string(data[start:pos]), pos
}
