// Package filters provides PDF stream filter implementations.
package filters

import (
	"bytes"
	"compress/zlib"
	"encoding/ascii85"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/georgepadayatti/pdfstitch/pdf/generic"
)

// Common errors
var (
	ErrUnsupportedFilter = errors.New("unsupported filter")
	ErrDecodeFailed      = errors.New("decode failed")
)

// Filter represents a PDF stream filter. Params is the filter's entry in
// /DecodeParms and may be nil.
type Filter interface {
	Decode(data []byte, params *generic.DictionaryObject) ([]byte, error)
	Encode(data []byte, params *generic.DictionaryObject) ([]byte, error)
	Name() string
}

func intParam(params *generic.DictionaryObject, key string, def int) int {
	if params == nil {
		return def
	}
	if v, ok := params.GetInt(key); ok {
		return int(v)
	}
	return def
}

// FlateDecodeFilter implements the FlateDecode filter (zlib compression).
type FlateDecodeFilter struct{}

// Name implements Filter.
func (f *FlateDecodeFilter) Name() string {
	return "FlateDecode"
}

// Decode implements Filter.
func (f *FlateDecodeFilter) Decode(data []byte, params *generic.DictionaryObject) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	defer r.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}

	return applyPredictor(buf.Bytes(), params)
}

// Encode implements Filter.
func (f *FlateDecodeFilter) Encode(data []byte, params *generic.DictionaryObject) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("flate encode failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("flate encode failed: %w", err)
	}
	return buf.Bytes(), nil
}

// applyPredictor undoes TIFF or PNG prediction described by params.
func applyPredictor(data []byte, params *generic.DictionaryObject) ([]byte, error) {
	predictor := intParam(params, "Predictor", 1)
	if predictor <= 1 {
		return data, nil
	}

	columns := intParam(params, "Columns", 1)
	colors := intParam(params, "Colors", 1)
	bitsPerComponent := intParam(params, "BitsPerComponent", 8)
	if columns < 1 || colors < 1 || bitsPerComponent < 1 {
		return nil, fmt.Errorf("%w: invalid predictor parameters", ErrDecodeFailed)
	}

	bytesPerPixel := (colors*bitsPerComponent + 7) / 8
	rowBytes := (columns*colors*bitsPerComponent + 7) / 8

	switch {
	case predictor == 2:
		return decodeTIFFPredictor(data, rowBytes, bytesPerPixel, bitsPerComponent)
	case predictor >= 10 && predictor <= 15:
		return decodePNGPredictor(data, rowBytes+1, bytesPerPixel)
	}
	return nil, fmt.Errorf("%w: unknown predictor %d", ErrDecodeFailed, predictor)
}

// decodeTIFFPredictor handles TIFF predictor 2 for 8-bit components.
func decodeTIFFPredictor(data []byte, rowBytes, bytesPerPixel, bitsPerComponent int) ([]byte, error) {
	if bitsPerComponent != 8 {
		return nil, fmt.Errorf("%w: TIFF predictor with %d bits per component", ErrUnsupportedFilter, bitsPerComponent)
	}
	out := bytes.Clone(data)
	for start := 0; start+rowBytes <= len(out); start += rowBytes {
		row := out[start : start+rowBytes]
		for j := bytesPerPixel; j < len(row); j++ {
			row[j] += row[j-bytesPerPixel]
		}
	}
	return out, nil
}

// decodePNGPredictor decodes rows that each start with a PNG filter-type byte.
func decodePNGPredictor(data []byte, rowLength, bytesPerPixel int) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	output := make([]byte, 0, (len(data)/rowLength)*(rowLength-1))
	prevRow := make([]byte, rowLength-1)

	for i := 0; i+rowLength <= len(data); i += rowLength {
		filterType := data[i]
		row := data[i+1 : i+rowLength]
		decodedRow := make([]byte, len(row))

		for j := range row {
			var left, upLeft byte
			if j >= bytesPerPixel {
				left = decodedRow[j-bytesPerPixel]
				upLeft = prevRow[j-bytesPerPixel]
			}
			up := prevRow[j]

			switch filterType {
			case 0: // None
				decodedRow[j] = row[j]
			case 1: // Sub
				decodedRow[j] = row[j] + left
			case 2: // Up
				decodedRow[j] = row[j] + up
			case 3: // Average
				decodedRow[j] = row[j] + byte((int(left)+int(up))/2)
			case 4: // Paeth
				decodedRow[j] = row[j] + paethPredictor(left, up, upLeft)
			default:
				return nil, fmt.Errorf("%w: invalid PNG filter type %d", ErrDecodeFailed, filterType)
			}
		}

		output = append(output, decodedRow...)
		prevRow = decodedRow
	}

	return output, nil
}

func paethPredictor(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa := abs(p - int(a))
	pb := abs(p - int(b))
	pc := abs(p - int(c))

	if pa <= pb && pa <= pc {
		return a
	} else if pb <= pc {
		return b
	}
	return c
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// ASCIIHexDecodeFilter implements the ASCIIHexDecode filter.
type ASCIIHexDecodeFilter struct{}

// Name implements Filter.
func (f *ASCIIHexDecodeFilter) Name() string {
	return "ASCIIHexDecode"
}

// Decode implements Filter.
func (f *ASCIIHexDecodeFilter) Decode(data []byte, params *generic.DictionaryObject) ([]byte, error) {
	var cleaned bytes.Buffer
	for _, b := range data {
		if b == '>' {
			break
		}
		if !generic.IsWhitespace(b) {
			cleaned.WriteByte(b)
		}
	}

	if cleaned.Len()%2 != 0 {
		cleaned.WriteByte('0')
	}

	out, err := hex.DecodeString(cleaned.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	return out, nil
}

// Encode implements Filter.
func (f *ASCIIHexDecodeFilter) Encode(data []byte, params *generic.DictionaryObject) ([]byte, error) {
	return []byte(hex.EncodeToString(data) + ">"), nil
}

// ASCII85DecodeFilter implements the ASCII85Decode filter.
type ASCII85DecodeFilter struct{}

// Name implements Filter.
func (f *ASCII85DecodeFilter) Name() string {
	return "ASCII85Decode"
}

// Decode implements Filter.
func (f *ASCII85DecodeFilter) Decode(data []byte, params *generic.DictionaryObject) ([]byte, error) {
	if end := bytes.Index(data, []byte("~>")); end != -1 {
		data = data[:end]
	}
	data = bytes.TrimPrefix(bytes.TrimSpace(data), []byte("<~"))

	var cleaned bytes.Buffer
	for _, b := range data {
		if !generic.IsWhitespace(b) {
			cleaned.WriteByte(b)
		}
	}

	decoder := ascii85.NewDecoder(&cleaned)
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, decoder); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}

	return buf.Bytes(), nil
}

// Encode implements Filter.
func (f *ASCII85DecodeFilter) Encode(data []byte, params *generic.DictionaryObject) ([]byte, error) {
	var buf bytes.Buffer
	encoder := ascii85.NewEncoder(&buf)
	if _, err := encoder.Write(data); err != nil {
		return nil, err
	}
	if err := encoder.Close(); err != nil {
		return nil, err
	}
	buf.WriteString("~>")
	return buf.Bytes(), nil
}

// LZWDecodeFilter implements the LZWDecode filter.
type LZWDecodeFilter struct{}

// Name implements Filter.
func (f *LZWDecodeFilter) Name() string {
	return "LZWDecode"
}

// Decode implements Filter.
func (f *LZWDecodeFilter) Decode(data []byte, params *generic.DictionaryObject) ([]byte, error) {
	out, err := lzwDecode(data, intParam(params, "EarlyChange", 1) == 1)
	if err != nil {
		return nil, err
	}
	return applyPredictor(out, params)
}

// Encode implements Filter.
func (f *LZWDecodeFilter) Encode(data []byte, params *generic.DictionaryObject) ([]byte, error) {
	return nil, fmt.Errorf("%w: LZW encoding not implemented", ErrUnsupportedFilter)
}

// lzwDecode decodes PDF LZW data, which uses MSB-first codes of 9 to 12 bits.
func lzwDecode(data []byte, earlyChange bool) ([]byte, error) {
	const (
		clearCode = 256
		eodCode   = 257
	)

	table := make([][]byte, 258, 4096)
	reset := func() {
		table = table[:258]
		for i := 0; i < 256; i++ {
			table[i] = []byte{byte(i)}
		}
	}
	reset()

	codeLen := 9
	bitPos := 0
	readCode := func() int {
		if bitPos+codeLen > len(data)*8 {
			return eodCode
		}
		code := 0
		for i := 0; i < codeLen; i++ {
			byteIdx := (bitPos + i) / 8
			bitIdx := 7 - ((bitPos + i) % 8)
			code = code<<1 | int(data[byteIdx]>>bitIdx&1)
		}
		bitPos += codeLen
		return code
	}

	var output bytes.Buffer
	var prev []byte

	for {
		code := readCode()
		if code == eodCode {
			break
		}
		if code == clearCode {
			reset()
			codeLen = 9
			prev = nil
			continue
		}

		var seq []byte
		switch {
		case code < len(table):
			seq = table[code]
		case code == len(table) && prev != nil:
			seq = append(bytes.Clone(prev), prev[0])
		default:
			return nil, fmt.Errorf("%w: invalid LZW code %d", ErrDecodeFailed, code)
		}
		output.Write(seq)

		if prev != nil && len(table) < 4096 {
			table = append(table, append(bytes.Clone(prev), seq[0]))
		}
		prev = seq

		next := len(table)
		if earlyChange {
			next++
		}
		switch {
		case next >= 2048 && codeLen < 12:
			codeLen = 12
		case next >= 1024 && codeLen < 11:
			codeLen = 11
		case next >= 512 && codeLen < 10:
			codeLen = 10
		}
	}

	return output.Bytes(), nil
}

// RunLengthDecodeFilter implements the RunLengthDecode filter.
type RunLengthDecodeFilter struct{}

// Name implements Filter.
func (f *RunLengthDecodeFilter) Name() string {
	return "RunLengthDecode"
}

// Decode implements Filter.
func (f *RunLengthDecodeFilter) Decode(data []byte, params *generic.DictionaryObject) ([]byte, error) {
	var output bytes.Buffer
	i := 0

	for i < len(data) {
		length := int(data[i])
		i++

		switch {
		case length == 128:
			return output.Bytes(), nil
		case length < 128:
			count := length + 1
			if i+count > len(data) {
				return nil, fmt.Errorf("%w: truncated run-length data", ErrDecodeFailed)
			}
			output.Write(data[i : i+count])
			i += count
		default:
			if i >= len(data) {
				return nil, fmt.Errorf("%w: truncated run-length data", ErrDecodeFailed)
			}
			output.Write(bytes.Repeat(data[i:i+1], 257-length))
			i++
		}
	}

	return output.Bytes(), nil
}

// Encode implements Filter.
func (f *RunLengthDecodeFilter) Encode(data []byte, params *generic.DictionaryObject) ([]byte, error) {
	var output bytes.Buffer
	i := 0

	for i < len(data) {
		runStart := i
		for i < len(data)-1 && data[i] == data[i+1] && i-runStart < 127 {
			i++
		}

		if runLength := i - runStart + 1; runLength > 1 {
			output.WriteByte(byte(257 - runLength))
			output.WriteByte(data[runStart])
			i++
			continue
		}

		literalStart := i
		for i < len(data) && (i == len(data)-1 || data[i] != data[i+1]) && i-literalStart < 128 {
			i++
		}
		output.WriteByte(byte(i - literalStart - 1))
		output.Write(data[literalStart:i])
	}

	output.WriteByte(128) // EOD
	return output.Bytes(), nil
}

// Registry holds all registered filters, including the abbreviated names
// allowed in inline images.
var Registry = map[string]Filter{
	"FlateDecode":     &FlateDecodeFilter{},
	"Fl":              &FlateDecodeFilter{},
	"ASCIIHexDecode":  &ASCIIHexDecodeFilter{},
	"AHx":             &ASCIIHexDecodeFilter{},
	"ASCII85Decode":   &ASCII85DecodeFilter{},
	"A85":             &ASCII85DecodeFilter{},
	"LZWDecode":       &LZWDecodeFilter{},
	"LZW":             &LZWDecodeFilter{},
	"RunLengthDecode": &RunLengthDecodeFilter{},
	"RL":              &RunLengthDecodeFilter{},
}

// GetFilter returns a filter by name.
func GetFilter(name string) (Filter, error) {
	if f, ok := Registry[name]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFilter, name)
}

// Decode applies the named filters in order.
func Decode(data []byte, filters []string, decodeParms []*generic.DictionaryObject) ([]byte, error) {
	result := data

	for i, filterName := range filters {
		filter, err := GetFilter(filterName)
		if err != nil {
			return nil, err
		}

		var params *generic.DictionaryObject
		if i < len(decodeParms) {
			params = decodeParms[i]
		}

		result, err = filter.Decode(result, params)
		if err != nil {
			return nil, fmt.Errorf("filter %s decode failed: %w", filterName, err)
		}
	}

	return result, nil
}

// Encode applies the named filters so that Decode with the same list
// reverses them.
func Encode(data []byte, filters []string, encodeParms []*generic.DictionaryObject) ([]byte, error) {
	result := data

	for i := len(filters) - 1; i >= 0; i-- {
		filterName := filters[i]
		filter, err := GetFilter(filterName)
		if err != nil {
			return nil, err
		}

		var params *generic.DictionaryObject
		if i < len(encodeParms) {
			params = encodeParms[i]
		}

		result, err = filter.Encode(result, params)
		if err != nil {
			return nil, fmt.Errorf("filter %s encode failed: %w", filterName, err)
		}
	}

	return result, nil
}

// DecodeParms returns the per-filter parameter dictionaries of a stream,
// aligned with its /Filter entries. Params that are not direct
// dictionaries are reported as nil.
func DecodeParms(s *generic.StreamObject) []*generic.DictionaryObject {
	if s.Dictionary == nil {
		return nil
	}
	switch v := s.Dictionary.Get("DecodeParms").(type) {
	case *generic.DictionaryObject:
		return []*generic.DictionaryObject{v}
	case generic.ArrayObject:
		out := make([]*generic.DictionaryObject, len(v))
		for i, item := range v {
			out[i], _ = item.(*generic.DictionaryObject)
		}
		return out
	}
	return nil
}

// DecodeStream returns the unfiltered payload of s. The result is cached
// in s.Decoded.
func DecodeStream(s *generic.StreamObject) ([]byte, error) {
	if s.Decoded != nil {
		return s.Decoded, nil
	}
	names := s.Filters()
	if len(names) == 0 {
		s.Decoded = s.Data
		return s.Data, nil
	}
	out, err := Decode(s.Data, names, DecodeParms(s))
	if err != nil {
		return nil, err
	}
	s.Decoded = out
	return out, nil
}
