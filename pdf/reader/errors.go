package reader

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a parse failure.
type ErrorKind int

const (
	// MalformedTrailer means startxref, the trailer dictionary or its /Root is unusable.
	MalformedTrailer ErrorKind = iota
	// UnresolvableXRef means a cross-reference offset or entry does not lead to the object it names.
	UnresolvableXRef
	// TruncatedStream means a stream payload runs past the end of the file.
	TruncatedStream
	// MalformedHeader means the %PDF-x.y header is missing.
	MalformedHeader
	// Encrypted means the document is encrypted, which is not supported.
	Encrypted
)

// Sentinels matched by errors.Is against a *ParseError of the same kind.
var (
	ErrMalformedTrailer = errors.New("malformed trailer")
	ErrUnresolvableXRef = errors.New("unresolvable cross-reference")
	ErrTruncatedStream  = errors.New("truncated stream")
	ErrMalformedHeader  = errors.New("malformed header")
	ErrEncrypted        = errors.New("encrypted documents are not supported")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case MalformedTrailer:
		return ErrMalformedTrailer
	case UnresolvableXRef:
		return ErrUnresolvableXRef
	case TruncatedStream:
		return ErrTruncatedStream
	case MalformedHeader:
		return ErrMalformedHeader
	case Encrypted:
		return ErrEncrypted
	}
	return nil
}

// String returns the name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case MalformedTrailer:
		return "MalformedTrailer"
	case UnresolvableXRef:
		return "UnresolvableXRef"
	case TruncatedStream:
		return "TruncatedStream"
	case MalformedHeader:
		return "MalformedHeader"
	case Encrypted:
		return "Encrypted"
	}
	return "Unknown"
}

// ParseError reports a structural problem in the input file.
type ParseError struct {
	Kind ErrorKind
	// Offset is the byte position the problem was found at, or -1.
	Offset int64
	Err    error
}

func newParseError(kind ErrorKind, offset int64, format string, args ...any) *ParseError {
	return &ParseError{Kind: kind, Offset: offset, Err: fmt.Errorf(format, args...)}
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	msg := e.Kind.sentinel().Error()
	if e.Offset >= 0 {
		msg = fmt.Sprintf("%s at offset %d", msg, e.Offset)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *ParseError) Is(target error) bool {
	return target == e.Kind.sentinel()
}
