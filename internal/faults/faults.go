// Package faults defines the error kinds reported by band detection and
// resistance coding, and the client/computation split the transport relies on.
package faults

import (
	"errors"
	"fmt"
)

// Kind 区分错误类别，决定上游的重试语义。
type Kind int

const (
	KindUnknown Kind = iota
	KindUnknownColor
	KindInvalidSequence
	KindValueTooSmall
	KindExtraction
	KindOutOfRange
	KindRoundTripMismatch
	KindMalformedInput
	KindStorage
)

var kindNames = map[Kind]string{
	KindUnknown:           "unknown",
	KindUnknownColor:      "unknown_color",
	KindInvalidSequence:   "invalid_sequence",
	KindValueTooSmall:     "value_too_small",
	KindExtraction:        "extraction",
	KindOutOfRange:        "out_of_range",
	KindRoundTripMismatch: "round_trip_mismatch",
	KindMalformedInput:    "malformed_input",
	KindStorage:           "storage",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error carries a Kind together with a human readable message.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Msg == "" && e.Err == nil:
		return e.Kind.String()
	case e.Err == nil:
		return e.Msg
	case e.Msg == "":
		return e.Err.Error()
	default:
		return e.Msg + ": " + e.Err.Error()
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches another *Error of the same kind, so errors.Is(err, faults.ErrUnknownColor) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || t == nil || e == nil {
		return false
	}
	return t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrUnknownColor      = &Error{Kind: KindUnknownColor}
	ErrInvalidSequence   = &Error{Kind: KindInvalidSequence}
	ErrValueTooSmall     = &Error{Kind: KindValueTooSmall}
	ErrExtraction        = &Error{Kind: KindExtraction}
	ErrOutOfRange        = &Error{Kind: KindOutOfRange}
	ErrRoundTripMismatch = &Error{Kind: KindRoundTripMismatch}
	ErrMalformedInput    = &Error{Kind: KindMalformedInput}
	ErrStorage           = &Error{Kind: KindStorage}
)

func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) && fe != nil {
		return fe.Kind
	}
	return KindUnknown
}

// IsClientError reports whether err stems from a malformed request that
// must not be retried unchanged.
func IsClientError(err error) bool {
	return KindOf(err) == KindMalformedInput
}

// IsComputation reports whether err is a detection/decoding failure, which
// callers render as "no result" rather than as a request failure.
func IsComputation(err error) bool {
	switch KindOf(err) {
	case KindUnknownColor, KindInvalidSequence, KindValueTooSmall,
		KindExtraction, KindOutOfRange, KindRoundTripMismatch:
		return true
	default:
		return false
	}
}
