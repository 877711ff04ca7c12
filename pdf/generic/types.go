// Package generic provides PDF object types and manipulation utilities.
package generic

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
)

// PdfObject is the base interface for all PDF objects.
type PdfObject interface {
	// Write serializes the object to PDF format.
	Write(w io.Writer) error
	// Clone creates a deep copy of the object. References are copied, not followed.
	Clone() PdfObject
}

// Resolver resolves indirect references to the objects they denote.
type Resolver interface {
	Resolve(ref Reference) (PdfObject, error)
}

// Reference represents an indirect reference to a PDF object.
type Reference struct {
	ObjectNumber     int
	GenerationNumber int
}

// NewReference creates a new reference.
func NewReference(objNum, genNum int) Reference {
	return Reference{ObjectNumber: objNum, GenerationNumber: genNum}
}

// Write implements PdfObject.
func (r Reference) Write(w io.Writer) error {
	_, err := fmt.Fprintf(w, "%d %d R", r.ObjectNumber, r.GenerationNumber)
	return err
}

// Clone implements PdfObject.
func (r Reference) Clone() PdfObject {
	return r
}

// IsZero reports whether r is the zero reference (object 0 is always free).
func (r Reference) IsZero() bool {
	return r.ObjectNumber == 0 && r.GenerationNumber == 0
}

// String returns the string representation.
func (r Reference) String() string {
	return fmt.Sprintf("%d %d R", r.ObjectNumber, r.GenerationNumber)
}

// IndirectObject wraps a PDF object with its object and generation numbers.
type IndirectObject struct {
	ObjectNumber     int
	GenerationNumber int
	Object           PdfObject
}

// NewIndirectObject creates a new indirect object.
func NewIndirectObject(objNum, genNum int, obj PdfObject) *IndirectObject {
	return &IndirectObject{
		ObjectNumber:     objNum,
		GenerationNumber: genNum,
		Object:           obj,
	}
}

// Write implements PdfObject.
func (i *IndirectObject) Write(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "%d %d obj\n", i.ObjectNumber, i.GenerationNumber); err != nil {
		return err
	}
	obj := i.Object
	if obj == nil {
		obj = NullObject{}
	}
	if err := obj.Write(w); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\nendobj\n")
	return err
}

// Clone implements PdfObject.
func (i *IndirectObject) Clone() PdfObject {
	var obj PdfObject
	if i.Object != nil {
		obj = i.Object.Clone()
	}
	return NewIndirectObject(i.ObjectNumber, i.GenerationNumber, obj)
}

// Reference returns a reference to this indirect object.
func (i *IndirectObject) Reference() Reference {
	return Reference{ObjectNumber: i.ObjectNumber, GenerationNumber: i.GenerationNumber}
}

// NullObject represents the PDF null value.
type NullObject struct{}

// Write implements PdfObject.
func (n NullObject) Write(w io.Writer) error {
	_, err := io.WriteString(w, "null")
	return err
}

// Clone implements PdfObject.
func (n NullObject) Clone() PdfObject {
	return NullObject{}
}

// IsNull reports whether obj is nil or the PDF null object.
func IsNull(obj PdfObject) bool {
	if obj == nil {
		return true
	}
	_, ok := obj.(NullObject)
	return ok
}

// BooleanObject represents a PDF boolean value.
type BooleanObject bool

// Write implements PdfObject.
func (b BooleanObject) Write(w io.Writer) error {
	_, err := io.WriteString(w, strconv.FormatBool(bool(b)))
	return err
}

// Clone implements PdfObject.
func (b BooleanObject) Clone() PdfObject {
	return b
}

// IntegerObject represents a PDF integer value.
type IntegerObject int64

// Write implements PdfObject.
func (i IntegerObject) Write(w io.Writer) error {
	_, err := io.WriteString(w, strconv.FormatInt(int64(i), 10))
	return err
}

// Clone implements PdfObject.
func (i IntegerObject) Clone() PdfObject {
	return i
}

// RealObject represents a PDF real (floating point) value.
type RealObject float64

// Write implements PdfObject.
func (r RealObject) Write(w io.Writer) error {
	_, err := io.WriteString(w, strconv.FormatFloat(float64(r), 'f', -1, 64))
	return err
}

// Clone implements PdfObject.
func (r RealObject) Clone() PdfObject {
	return r
}

// NumberValue returns the numeric value of an integer or real object.
func NumberValue(obj PdfObject) (float64, bool) {
	switch v := obj.(type) {
	case IntegerObject:
		return float64(v), true
	case RealObject:
		return float64(v), true
	}
	return 0, false
}

// NameObject represents a PDF name object (e.g., /Type).
type NameObject string

// nameNeedsEscape reports whether b must be written as #XX inside a name.
func nameNeedsEscape(b byte) bool {
	if b < '!' || b > '~' {
		return true
	}
	switch b {
	case '#', '%', '/', '[', ']', '(', ')', '<', '>', '{', '}':
		return true
	}
	return false
}

// Write implements PdfObject. Each byte of a multi-byte name is escaped
// separately.
func (n NameObject) Write(w io.Writer) error {
	var buf bytes.Buffer
	buf.Grow(len(n) + 1)
	buf.WriteByte('/')
	for i := 0; i < len(n); i++ {
		b := n[i]
		if nameNeedsEscape(b) {
			fmt.Fprintf(&buf, "#%02X", b)
			continue
		}
		buf.WriteByte(b)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// Clone implements PdfObject.
func (n NameObject) Clone() PdfObject {
	return n
}

// String returns the name without the leading slash.
func (n NameObject) String() string {
	return string(n)
}

// StringObject represents a PDF string object.
type StringObject struct {
	Value []byte
	IsHex bool
}

// NewLiteralString creates a new literal string.
func NewLiteralString(s string) *StringObject {
	return &StringObject{Value: []byte(s)}
}

// NewHexString creates a new hex string.
func NewHexString(data []byte) *StringObject {
	return &StringObject{Value: data, IsHex: true}
}

// Write implements PdfObject.
func (s *StringObject) Write(w io.Writer) error {
	if s.IsHex {
		_, err := fmt.Fprintf(w, "<%s>", hex.EncodeToString(s.Value))
		return err
	}

	var buf bytes.Buffer
	buf.WriteByte('(')
	for _, b := range s.Value {
		switch b {
		case '\\':
			buf.WriteString(`\\`)
		case '(':
			buf.WriteString(`\(`)
		case ')':
			buf.WriteString(`\)`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if b < 32 || b > 126 {
				fmt.Fprintf(&buf, "\\%03o", b)
			} else {
				buf.WriteByte(b)
			}
		}
	}
	buf.WriteByte(')')
	_, err := w.Write(buf.Bytes())
	return err
}

// Clone implements PdfObject.
func (s *StringObject) Clone() PdfObject {
	return &StringObject{Value: bytes.Clone(s.Value), IsHex: s.IsHex}
}

// ArrayObject represents a PDF array.
type ArrayObject []PdfObject

// NewArray creates a new array.
func NewArray(items ...PdfObject) ArrayObject {
	return ArrayObject(items)
}

// Write implements PdfObject.
func (a ArrayObject) Write(w io.Writer) error {
	if _, err := io.WriteString(w, "["); err != nil {
		return err
	}
	for i, item := range a {
		if i > 0 {
			if _, err := io.WriteString(w, " "); err != nil {
				return err
			}
		}
		if item == nil {
			item = NullObject{}
		}
		if err := item.Write(w); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "]")
	return err
}

// Clone implements PdfObject.
func (a ArrayObject) Clone() PdfObject {
	result := make(ArrayObject, len(a))
	for i, item := range a {
		if item != nil {
			result[i] = item.Clone()
		}
	}
	return result
}

// Get returns the item at the given index.
func (a ArrayObject) Get(index int) PdfObject {
	if index < 0 || index >= len(a) {
		return nil
	}
	return a[index]
}

// DictionaryObject represents a PDF dictionary. Keys keep insertion order.
type DictionaryObject struct {
	entries map[string]PdfObject
	order   []string
}

// NewDictionary creates a new dictionary.
func NewDictionary() *DictionaryObject {
	return &DictionaryObject{
		entries: make(map[string]PdfObject),
	}
}

// Write implements PdfObject.
func (d *DictionaryObject) Write(w io.Writer) error {
	return d.writeWith(w, "", nil)
}

// writeWith writes the dictionary, substituting override for the value of key.
func (d *DictionaryObject) writeWith(w io.Writer, key string, override PdfObject) error {
	if _, err := io.WriteString(w, "<<"); err != nil {
		return err
	}
	seen := false
	writeEntry := func(k string, v PdfObject) error {
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
		if err := NameObject(k).Write(w); err != nil {
			return err
		}
		if _, err := io.WriteString(w, " "); err != nil {
			return err
		}
		if v == nil {
			v = NullObject{}
		}
		return v.Write(w)
	}
	for _, k := range d.order {
		v := d.entries[k]
		if override != nil && k == key {
			v = override
			seen = true
		}
		if err := writeEntry(k, v); err != nil {
			return err
		}
	}
	if override != nil && !seen {
		if err := writeEntry(key, override); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "\n>>")
	return err
}

// Clone implements PdfObject.
func (d *DictionaryObject) Clone() PdfObject {
	result := NewDictionary()
	for _, key := range d.order {
		var v PdfObject
		if e := d.entries[key]; e != nil {
			v = e.Clone()
		}
		result.Set(key, v)
	}
	return result
}

// Set sets a key-value pair.
func (d *DictionaryObject) Set(key string, value PdfObject) {
	if _, exists := d.entries[key]; !exists {
		d.order = append(d.order, key)
	}
	d.entries[key] = value
}

// Get returns the value for a key.
func (d *DictionaryObject) Get(key string) PdfObject {
	return d.entries[key]
}

// GetName returns a name value.
func (d *DictionaryObject) GetName(key string) string {
	if name, ok := d.Get(key).(NameObject); ok {
		return string(name)
	}
	return ""
}

// GetInt returns an integer value.
func (d *DictionaryObject) GetInt(key string) (int64, bool) {
	if i, ok := d.Get(key).(IntegerObject); ok {
		return int64(i), true
	}
	return 0, false
}

// GetArray returns an array value.
func (d *DictionaryObject) GetArray(key string) ArrayObject {
	if arr, ok := d.Get(key).(ArrayObject); ok {
		return arr
	}
	return nil
}

// GetDict returns a dictionary value.
func (d *DictionaryObject) GetDict(key string) *DictionaryObject {
	if dict, ok := d.Get(key).(*DictionaryObject); ok {
		return dict
	}
	return nil
}

// Delete removes a key.
func (d *DictionaryObject) Delete(key string) {
	if _, exists := d.entries[key]; !exists {
		return
	}
	delete(d.entries, key)
	for i, k := range d.order {
		if k == key {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

// Has returns true if the key exists.
func (d *DictionaryObject) Has(key string) bool {
	_, exists := d.entries[key]
	return exists
}

// Keys returns all keys in insertion order. The slice must not be modified.
func (d *DictionaryObject) Keys() []string {
	return d.order
}

// Len returns the number of entries.
func (d *DictionaryObject) Len() int {
	return len(d.entries)
}

// StreamObject represents a PDF stream.
type StreamObject struct {
	Dictionary *DictionaryObject
	// Data is the payload as stored, still encoded by the stream's filters.
	Data []byte
	// Decoded holds the unfiltered payload once a reader has decoded it.
	Decoded []byte
}

// NewStream creates a new stream whose payload is stored unfiltered.
func NewStream(dict *DictionaryObject, data []byte) *StreamObject {
	if dict == nil {
		dict = NewDictionary()
	}
	return &StreamObject{
		Dictionary: dict,
		Data:       data,
		Decoded:    data,
	}
}

// Write implements PdfObject. Length is always written as the direct size of Data.
func (s *StreamObject) Write(w io.Writer) error {
	dict := s.Dictionary
	if dict == nil {
		dict = NewDictionary()
	}
	if err := dict.writeWith(w, "Length", IntegerObject(len(s.Data))); err != nil {
		return err
	}
	if _, err := io.WriteString(w, "\nstream\n"); err != nil {
		return err
	}
	if _, err := w.Write(s.Data); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\nendstream")
	return err
}

// Clone implements PdfObject.
func (s *StreamObject) Clone() PdfObject {
	var dict *DictionaryObject
	if s.Dictionary != nil {
		dict = s.Dictionary.Clone().(*DictionaryObject)
	}
	return &StreamObject{
		Dictionary: dict,
		Data:       bytes.Clone(s.Data),
		Decoded:    bytes.Clone(s.Decoded),
	}
}

// GetDecodedData returns the decoded stream data.
func (s *StreamObject) GetDecodedData() []byte {
	if s.Decoded != nil {
		return s.Decoded
	}
	return s.Data
}

// Filters returns the names of the filters applied to the stream, in order.
func (s *StreamObject) Filters() []string {
	if s.Dictionary == nil {
		return nil
	}
	switch f := s.Dictionary.Get("Filter").(type) {
	case NameObject:
		return []string{string(f)}
	case ArrayObject:
		names := make([]string, 0, len(f))
		for _, item := range f {
			if name, ok := item.(NameObject); ok {
				names = append(names, string(name))
			}
		}
		return names
	}
	return nil
}

// Rectangle represents a PDF rectangle (lower-left and upper-right coordinates).
type Rectangle struct {
	LLX, LLY float64
	URX, URY float64
}

// NewRectangle creates a rectangle from an array.
func NewRectangle(arr ArrayObject) (*Rectangle, error) {
	if len(arr) != 4 {
		return nil, fmt.Errorf("rectangle must have 4 elements, got %d", len(arr))
	}

	var values [4]float64
	for i, obj := range arr {
		v, ok := NumberValue(obj)
		if !ok {
			return nil, fmt.Errorf("rectangle element %d must be numeric", i)
		}
		values[i] = v
	}

	return &Rectangle{
		LLX: values[0],
		LLY: values[1],
		URX: values[2],
		URY: values[3],
	}, nil
}

// ToArray converts the rectangle to a PDF array.
func (r *Rectangle) ToArray() ArrayObject {
	return ArrayObject{
		RealObject(r.LLX),
		RealObject(r.LLY),
		RealObject(r.URX),
		RealObject(r.URY),
	}
}

// Width returns the rectangle width.
func (r *Rectangle) Width() float64 {
	return r.URX - r.LLX
}

// Height returns the rectangle height.
func (r *Rectangle) Height() float64 {
	return r.URY - r.LLY
}

// TrailerDictionary represents the PDF trailer.
type TrailerDictionary struct {
	*DictionaryObject
}

// NewTrailer creates a new trailer dictionary.
func NewTrailer() *TrailerDictionary {
	return &TrailerDictionary{DictionaryObject: NewDictionary()}
}

// GetRoot returns the document catalog reference.
func (t *TrailerDictionary) GetRoot() *Reference {
	if ref, ok := t.Get("Root").(Reference); ok {
		return &ref
	}
	return nil
}

// GetInfo returns the document info reference.
func (t *TrailerDictionary) GetInfo() *Reference {
	if ref, ok := t.Get("Info").(Reference); ok {
		return &ref
	}
	return nil
}

// GetSize returns the size (one greater than the highest object number).
func (t *TrailerDictionary) GetSize() int64 {
	if size, ok := t.GetInt("Size"); ok {
		return size
	}
	return 0
}

// GetPrev returns the previous xref offset.
func (t *TrailerDictionary) GetPrev() (int64, bool) {
	return t.GetInt("Prev")
}
