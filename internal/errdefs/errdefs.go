package errdefs

import (
	"errors"
	"fmt"
)

// Kind classifies a harness error. The runner's error policy dispatches on
// kind, not on concrete types: config errors are fatal at startup, device
// errors are recoverable, device-not-responding triggers the hard-reset path,
// timeouts are iteration-level.
type Kind string

const (
	KindConfig              Kind = "config"
	KindDevice              Kind = "device"
	KindDeviceNotResponding Kind = "device-not-responding"
	KindTimeout             Kind = "timeout"
	KindInstrument          Kind = "instrument"
	KindWorkload            Kind = "workload"
)

type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind) + " error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Err: errors.New(msg)}
}

func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Wrap attaches a kind to err. Wrapping nil returns nil. Re-wrapping an
// already-classified error replaces the outer kind but keeps the chain, so
// promotion (device -> device-not-responding) preserves the original message.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the outermost kind in err's chain, or "" for unclassified
// errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// IsKnown reports whether err carries any harness kind. The iteration error
// handler probes device responsiveness only for known kinds; arbitrary
// errors are recorded without touching the device.
func IsKnown(err error) bool {
	var e *Error
	return errors.As(err, &e)
}
