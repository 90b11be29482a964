package core

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers that surface it outside the core
type Kind string

const (
	KindUnknown          Kind = "UNKNOWN"
	KindInvalidArgument  Kind = "INVALID_ARGUMENT"
	KindNotFound         Kind = "NOT_FOUND"
	KindDataIntegrity    Kind = "DATA_INTEGRITY"
	KindIO               Kind = "IO_ERROR"
	KindEngine           Kind = "ENGINE_ERROR"
	KindInsufficientData Kind = "INSUFFICIENT_DATA"
)

// Error carries a Kind along with the failing operation
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf builds an Error with a formatted message
func Errorf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind and op to err. A nil err stays nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the outermost core Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
