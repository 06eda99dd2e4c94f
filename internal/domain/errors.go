package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrNoSources    = errors.New("no source could be fetched")

	ErrFormat   = errors.New("format error")
	ErrOverflow = errors.New("overflow error")
)

// FormatError reports a record line or field that could not be parsed.
// Line is 1-based and zero when the line number is unknown.
type FormatError struct {
	Line  int
	Field string
	Value string
	Err   error
}

func (e *FormatError) Error() string {
	msg := fmt.Sprintf("format error: field %s: invalid value %q", e.Field, e.Value)
	if e.Line > 0 {
		msg = fmt.Sprintf("line %d: %s", e.Line, msg)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FormatError) Unwrap() error { return e.Err }

func (e *FormatError) Is(target error) bool { return target == ErrFormat }

// OverflowError reports an IPv4 range whose end lies beyond 255.255.255.255.
type OverflowError struct {
	Start uint32
	Count uint64
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("overflow error: range of %d addresses starting at %d.%d.%d.%d exceeds the IPv4 address space",
		e.Count, byte(e.Start>>24), byte(e.Start>>16), byte(e.Start>>8), byte(e.Start))
}

func (e *OverflowError) Is(target error) bool { return target == ErrOverflow }

type Kind uint8

const (
	KindOther Kind = iota
	KindFormat
	KindOverflow
)

// ErrorKind classifies err within the record error taxonomy.
func ErrorKind(err error) Kind {
	var formatErr *FormatError
	var overflowErr *OverflowError
	switch {
	case errors.As(err, &formatErr):
		return KindFormat
	case errors.As(err, &overflowErr):
		return KindOverflow
	default:
		return KindOther
	}
}
