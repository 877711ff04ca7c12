package generic

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// Common errors
var (
	ErrInvalidObject     = errors.New("invalid PDF object")
	ErrInvalidStream     = errors.New("invalid PDF stream")
	ErrTruncatedStream   = errors.New("truncated PDF stream")
	ErrInvalidDictionary = errors.New("invalid PDF dictionary")
	ErrInvalidArray      = errors.New("invalid PDF array")
	ErrInvalidString     = errors.New("invalid PDF string")
	ErrInvalidName       = errors.New("invalid PDF name")
	ErrInvalidNumber     = errors.New("invalid PDF number")
)

// LengthResolver resolves a stream /Length given as an indirect reference.
type LengthResolver func(ref Reference) (int64, bool)

// Parser parses PDF objects from a byte slice.
type Parser struct {
	data []byte
	pos  int64

	// ResolveLength is consulted when a stream dictionary carries an
	// indirect /Length. Without it the parser falls back to scanning for
	// the endstream keyword.
	ResolveLength LengthResolver
}

// NewParserFromBytes creates a parser from a byte slice.
func NewParserFromBytes(data []byte) *Parser {
	return &Parser{data: data}
}

// Pos returns the current read position.
func (p *Parser) Pos() int64 {
	return p.pos
}

// SetPos moves the read position.
func (p *Parser) SetPos(pos int64) {
	p.pos = pos
}

func (p *Parser) readByte() (byte, error) {
	if p.pos >= int64(len(p.data)) {
		return 0, io.EOF
	}
	b := p.data[p.pos]
	p.pos++
	return b, nil
}

func (p *Parser) peekByte() (byte, error) {
	if p.pos >= int64(len(p.data)) {
		return 0, io.EOF
	}
	return p.data[p.pos], nil
}

// skipWhitespace skips whitespace and comments.
func (p *Parser) skipWhitespace() {
	for p.pos < int64(len(p.data)) {
		b := p.data[p.pos]
		switch {
		case IsWhitespace(b):
			p.pos++
		case b == '%':
			for p.pos < int64(len(p.data)) && p.data[p.pos] != '\n' && p.data[p.pos] != '\r' {
				p.pos++
			}
		default:
			return
		}
	}
}

// IsWhitespace returns true if the byte is PDF whitespace.
func IsWhitespace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\x00' || b == '\x0c'
}

// IsDelimiter returns true if the byte is a PDF delimiter.
func IsDelimiter(b byte) bool {
	return b == '(' || b == ')' || b == '<' || b == '>' ||
		b == '[' || b == ']' || b == '{' || b == '}' ||
		b == '/' || b == '%'
}

// readToken reads a run of regular characters.
func (p *Parser) readToken() string {
	p.skipWhitespace()
	start := p.pos
	for p.pos < int64(len(p.data)) {
		b := p.data[p.pos]
		if IsWhitespace(b) || IsDelimiter(b) {
			break
		}
		p.pos++
	}
	return string(p.data[start:p.pos])
}

// ParseObject parses a direct PDF object. A leading integer is never
// combined with what follows; use ParseObjectOrReference for that.
func (p *Parser) ParseObject() (PdfObject, error) {
	p.skipWhitespace()

	b, err := p.peekByte()
	if err != nil {
		return nil, fmt.Errorf("%w: unexpected end of data", ErrInvalidObject)
	}

	switch b {
	case '(':
		return p.parseString()
	case '<':
		return p.parseHexOrDict()
	case '[':
		return p.parseArray()
	case '/':
		return p.parseName()
	case 't', 'f':
		return p.parseBoolean()
	case 'n':
		return p.parseNull()
	default:
		if b == '-' || b == '+' || b == '.' || (b >= '0' && b <= '9') {
			return p.parseNumber()
		}
		return nil, fmt.Errorf("%w: unexpected character %q at offset %d", ErrInvalidObject, b, p.pos)
	}
}

// parseString parses a literal string.
func (p *Parser) parseString() (*StringObject, error) {
	p.pos++ // (

	var buf bytes.Buffer
	depth := 1

	for depth > 0 {
		b, err := p.readByte()
		if err != nil {
			return nil, fmt.Errorf("%w: unterminated string", ErrInvalidString)
		}

		switch b {
		case '(':
			depth++
			buf.WriteByte(b)
		case ')':
			depth--
			if depth > 0 {
				buf.WriteByte(b)
			}
		case '\\':
			escaped, err := p.readByte()
			if err != nil {
				return nil, fmt.Errorf("%w: unterminated escape", ErrInvalidString)
			}
			switch escaped {
			case 'n':
				buf.WriteByte('\n')
			case 'r':
				buf.WriteByte('\r')
			case 't':
				buf.WriteByte('\t')
			case 'b':
				buf.WriteByte('\b')
			case 'f':
				buf.WriteByte('\f')
			case '\r':
				// Line continuation
				if next, err := p.peekByte(); err == nil && next == '\n' {
					p.pos++
				}
			case '\n':
				// Line continuation
			default:
				if escaped >= '0' && escaped <= '7' {
					octal := []byte{escaped}
					for i := 0; i < 2; i++ {
						next, err := p.peekByte()
						if err != nil || next < '0' || next > '7' {
							break
						}
						p.pos++
						octal = append(octal, next)
					}
					val, _ := strconv.ParseUint(string(octal), 8, 16)
					buf.WriteByte(byte(val))
				} else {
					// Covers \( \) \\ and unknown escapes, which drop the backslash.
					buf.WriteByte(escaped)
				}
			}
		default:
			buf.WriteByte(b)
		}
	}

	return &StringObject{Value: buf.Bytes()}, nil
}

// parseHexOrDict parses a hex string or dictionary.
func (p *Parser) parseHexOrDict() (PdfObject, error) {
	p.pos++ // <
	if next, err := p.peekByte(); err == nil && next == '<' {
		p.pos++
		return p.parseDictionary()
	}
	return p.parseHexString()
}

// parseHexString parses a hexadecimal string (after < has been consumed).
func (p *Parser) parseHexString() (*StringObject, error) {
	var buf bytes.Buffer

	for {
		b, err := p.readByte()
		if err != nil {
			return nil, fmt.Errorf("%w: unterminated hex string", ErrInvalidString)
		}
		if b == '>' {
			break
		}
		if IsWhitespace(b) {
			continue
		}
		buf.WriteByte(b)
	}

	if buf.Len()%2 != 0 {
		buf.WriteByte('0')
	}

	data, err := hex.DecodeString(buf.String())
	if err != nil {
		return nil, fmt.Errorf("%w: invalid hex string: %v", ErrInvalidString, err)
	}

	return &StringObject{Value: data, IsHex: true}, nil
}

// parseDictionary parses a dictionary (after << has been consumed).
func (p *Parser) parseDictionary() (*DictionaryObject, error) {
	dict := NewDictionary()

	for {
		p.skipWhitespace()

		b, err := p.peekByte()
		if err != nil {
			return nil, fmt.Errorf("%w: unterminated dictionary", ErrInvalidDictionary)
		}

		if b == '>' {
			p.pos++
			if next, err := p.readByte(); err != nil || next != '>' {
				return nil, fmt.Errorf("%w: expected '>>'", ErrInvalidDictionary)
			}
			return dict, nil
		}

		key, err := p.parseName()
		if err != nil {
			return nil, fmt.Errorf("%w: invalid dictionary key: %v", ErrInvalidDictionary, err)
		}

		value, err := p.ParseObjectOrReference()
		if err != nil {
			return nil, fmt.Errorf("%w: invalid value for key '%s': %v", ErrInvalidDictionary, key, err)
		}

		dict.Set(string(key), value)
	}
}

// parseArray parses an array.
func (p *Parser) parseArray() (ArrayObject, error) {
	p.pos++ // [

	arr := ArrayObject{}

	for {
		p.skipWhitespace()

		b, err := p.peekByte()
		if err != nil {
			return nil, fmt.Errorf("%w: unterminated array", ErrInvalidArray)
		}

		if b == ']' {
			p.pos++
			return arr, nil
		}

		obj, err := p.ParseObjectOrReference()
		if err != nil {
			return nil, fmt.Errorf("%w: invalid array element: %v", ErrInvalidArray, err)
		}

		arr = append(arr, obj)
	}
}

// parseName parses a name object.
func (p *Parser) parseName() (NameObject, error) {
	b, err := p.readByte()
	if err != nil || b != '/' {
		return "", ErrInvalidName
	}

	var buf bytes.Buffer

	for p.pos < int64(len(p.data)) {
		b := p.data[p.pos]
		if IsWhitespace(b) || IsDelimiter(b) {
			break
		}
		p.pos++

		if b == '#' && p.pos+2 <= int64(len(p.data)) {
			val, err := strconv.ParseUint(string(p.data[p.pos:p.pos+2]), 16, 8)
			if err != nil {
				return "", fmt.Errorf("%w: invalid hex escape in name", ErrInvalidName)
			}
			p.pos += 2
			buf.WriteByte(byte(val))
			continue
		}
		buf.WriteByte(b)
	}

	return NameObject(buf.String()), nil
}

// parseBoolean parses a boolean.
func (p *Parser) parseBoolean() (BooleanObject, error) {
	switch token := p.readToken(); token {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, fmt.Errorf("%w: expected 'true' or 'false', got '%s'", ErrInvalidObject, token)
	}
}

// parseNull parses a null object.
func (p *Parser) parseNull() (NullObject, error) {
	if token := p.readToken(); token != "null" {
		return NullObject{}, fmt.Errorf("%w: expected 'null', got '%s'", ErrInvalidObject, token)
	}
	return NullObject{}, nil
}

// parseNumber parses a number (integer or real).
func (p *Parser) parseNumber() (PdfObject, error) {
	p.skipWhitespace()
	start := p.pos
	hasDecimal := false

scan:
	for p.pos < int64(len(p.data)) {
		b := p.data[p.pos]
		switch {
		case b == '.' && !hasDecimal:
			hasDecimal = true
		case (b == '-' || b == '+') && p.pos == start:
		case b >= '0' && b <= '9':
		default:
			break scan
		}
		p.pos++
	}

	str := string(p.data[start:p.pos])
	if str == "" || str == "-" || str == "+" || str == "." {
		return nil, fmt.Errorf("%w: invalid number '%s'", ErrInvalidNumber, str)
	}

	if hasDecimal {
		val, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidNumber, err)
		}
		return RealObject(val), nil
	}

	val, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidNumber, err)
	}
	return IntegerObject(val), nil
}

// ParseObjectOrReference parses an object, recognising "N G R" as an indirect reference.
func (p *Parser) ParseObjectOrReference() (PdfObject, error) {
	p.skipWhitespace()

	b, err := p.peekByte()
	if err != nil {
		return nil, fmt.Errorf("%w: unexpected end of data", ErrInvalidObject)
	}
	if b < '0' || b > '9' {
		return p.ParseObject()
	}

	first, err := p.parseNumber()
	if err != nil {
		return nil, err
	}
	objNum, ok := first.(IntegerObject)
	if !ok {
		return first, nil
	}

	afterFirst := p.pos
	p.skipWhitespace()
	if next, err := p.peekByte(); err != nil || next < '0' || next > '9' {
		p.pos = afterFirst
		return first, nil
	}

	second, err := p.parseNumber()
	genNum, ok := second.(IntegerObject)
	if err != nil || !ok {
		p.pos = afterFirst
		return first, nil
	}

	p.skipWhitespace()
	if b, err := p.peekByte(); err == nil && b == 'R' && p.atTokenEnd(p.pos+1) {
		p.pos++
		return Reference{ObjectNumber: int(objNum), GenerationNumber: int(genNum)}, nil
	}

	// Not a reference - backtrack and return the first number only
	p.pos = afterFirst
	return first, nil
}

func (p *Parser) atTokenEnd(pos int64) bool {
	if pos >= int64(len(p.data)) {
		return true
	}
	b := p.data[pos]
	return IsWhitespace(b) || IsDelimiter(b)
}

// ParseIndirectObject parses an indirect object definition "N G obj ... endobj".
func (p *Parser) ParseIndirectObject() (*IndirectObject, error) {
	objNumObj, err := p.parseNumber()
	if err != nil {
		return nil, fmt.Errorf("%w: invalid object number: %v", ErrInvalidObject, err)
	}
	objNum, ok := objNumObj.(IntegerObject)
	if !ok {
		return nil, fmt.Errorf("%w: object number must be integer", ErrInvalidObject)
	}

	genNumObj, err := p.parseNumber()
	if err != nil {
		return nil, fmt.Errorf("%w: invalid generation number: %v", ErrInvalidObject, err)
	}
	genNum, ok := genNumObj.(IntegerObject)
	if !ok {
		return nil, fmt.Errorf("%w: generation number must be integer", ErrInvalidObject)
	}

	if token := p.readToken(); token != "obj" {
		return nil, fmt.Errorf("%w: expected 'obj', got '%s'", ErrInvalidObject, token)
	}

	obj, err := p.ParseObjectOrReference()
	if err != nil {
		return nil, err
	}

	if dict, ok := obj.(*DictionaryObject); ok {
		mark := p.pos
		if p.readToken() == "stream" {
			data, err := p.readStreamData(dict)
			if err != nil {
				return nil, err
			}
			obj = &StreamObject{Dictionary: dict, Data: data}
		} else {
			p.pos = mark
		}
	}

	// Some producers omit endobj; tolerate it.
	mark := p.pos
	if p.readToken() != "endobj" {
		p.pos = mark
	}

	return NewIndirectObject(int(objNum), int(genNum), obj), nil
}

var endstreamKeyword = []byte("endstream")

// readStreamData reads a stream payload after the stream keyword.
func (p *Parser) readStreamData(dict *DictionaryObject) ([]byte, error) {
	// The keyword is followed by CRLF or LF.
	if b, err := p.peekByte(); err == nil {
		switch b {
		case '\r':
			p.pos++
			if next, err := p.peekByte(); err == nil && next == '\n' {
				p.pos++
			}
		case '\n':
			p.pos++
		}
	}

	start := p.pos
	total := int64(len(p.data))

	length := int64(-1)
	switch v := dict.Get("Length").(type) {
	case IntegerObject:
		length = int64(v)
	case Reference:
		if p.ResolveLength != nil {
			if n, ok := p.ResolveLength(v); ok {
				length = n
			}
		}
	}

	var end int64
	if length >= 0 && start+length <= total && p.endstreamFollows(start+length) {
		end = start + length
	} else {
		idx := bytes.Index(p.data[start:], endstreamKeyword)
		if idx < 0 {
			return nil, fmt.Errorf("%w: no endstream after offset %d", ErrTruncatedStream, start)
		}
		end = start + int64(idx)
		if end > start && p.data[end-1] == '\n' {
			end--
		}
		if end > start && p.data[end-1] == '\r' {
			end--
		}
	}

	data := bytes.Clone(p.data[start:end])
	p.pos = end
	if token := p.readToken(); token != "endstream" {
		return nil, fmt.Errorf("%w: expected 'endstream', got '%s'", ErrInvalidStream, token)
	}
	return data, nil
}

func (p *Parser) endstreamFollows(pos int64) bool {
	for pos < int64(len(p.data)) && IsWhitespace(p.data[pos]) {
		pos++
	}
	return bytes.HasPrefix(p.data[pos:], endstreamKeyword)
}

// ParseRectangle parses a rectangle from an array.
func ParseRectangle(obj PdfObject) (*Rectangle, error) {
	arr, ok := obj.(ArrayObject)
	if !ok {
		return nil, fmt.Errorf("expected array for rectangle")
	}
	return NewRectangle(arr)
}
