package embeddings

import (
	"errors"
	"fmt"
)

// ErrEmbedding is returned by backends when embedding generation fails.
var ErrEmbedding = errors.New("embedding failed")

// Kind tags an Error with who caused it.
type Kind int

const (
	// KindUnknown is reported for errors that carry no tag.
	KindUnknown Kind = iota

	// KindValidation is a client-caused failure: bad shape, size or format.
	KindValidation

	// KindInference is a server-caused failure during model execution.
	KindInference

	// KindInitialization is a fatal start-up failure.
	KindInitialization
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindInference:
		return "inference"
	case KindInitialization:
		return "initialization"
	default:
		return "unknown"
	}
}

// Error is the tagged error returned across the validator, generator and
// model host. Reason is the human-readable detail surfaced to clients.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	if e.Reason == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches two tagged errors of the same kind and reason so sentinel
// validation errors can be compared with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Reason == t.Reason
}

// Validation reasons surfaced to clients.
var (
	ErrEmptyText         = &Error{Kind: KindValidation, Reason: "empty text input"}
	ErrTextTooLong       = &Error{Kind: KindValidation, Reason: "text too long: exceeds maximum length of 512 characters"}
	ErrUnsupportedFormat = &Error{Kind: KindValidation, Reason: "unsupported image format"}
	ErrPayloadTooLarge   = &Error{Kind: KindValidation, Reason: "payload too large: image exceeds maximum size of 10 MiB"}
)

// Validation returns a client-caused error with the given reason.
func Validation(reason string) error {
	return &Error{Kind: KindValidation, Reason: reason}
}

// Inference wraps a server-side failure, keeping the cause for diagnosis.
func Inference(reason string, err error) error {
	return &Error{Kind: KindInference, Reason: reason, Err: err}
}

// Initialization wraps a fatal start-up failure.
func Initialization(reason string, err error) error {
	return &Error{Kind: KindInitialization, Reason: reason, Err: err}
}

// KindOf reports the tag of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsValidation reports whether err is client-caused.
func IsValidation(err error) bool {
	return KindOf(err) == KindValidation
}
