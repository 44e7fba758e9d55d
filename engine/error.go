package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSources is reported when a spec carries no usable source.
	ErrNoSources = errors.New("no usable sources")
	// ErrSurfaceBusy is returned when a surface still has a live handle.
	ErrSurfaceBusy = errors.New("surface already has a live handle")
)

// Kind classifies engine errors for recovery.
type Kind int

const (
	KindNetwork Kind = iota
	KindMedia
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindMedia:
		return "media"
	default:
		return "fatal"
	}
}

// Error is a classified engine error. Fatal errors need a recovery action;
// non-fatal ones are informational and the engine heals them itself.
type Error struct {
	Kind   Kind
	Detail string
	Fatal  bool
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error: %s", e.Kind, e.Detail)
	if e.Fatal {
		msg = "fatal " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NetworkError reports a failed upstream request.
func NetworkError(detail string, fatal bool, err error) *Error {
	return &Error{Kind: KindNetwork, Detail: detail, Fatal: fatal, Err: err}
}

// MediaError reports a decode or pipeline failure.
func MediaError(detail string, fatal bool, err error) *Error {
	return &Error{Kind: KindMedia, Detail: detail, Fatal: fatal, Err: err}
}

// FatalError reports an error no recovery action can address.
func FatalError(detail string, err error) *Error {
	return &Error{Kind: KindFatal, Detail: detail, Fatal: true, Err: err}
}
