package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is the client-facing error taxonomy.
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindOriginDenied ErrorKind = "origin_denied"
	KindRateLimited  ErrorKind = "rate_limited"
	KindUpstream     ErrorKind = "upstream_error"
	KindStore        ErrorKind = "store_error"
)

// Error is a classified failure. Message is safe to show to the caller;
// Err holds detail that must only be logged.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrRateLimited) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// Sentinels for errors.Is checks.
var (
	ErrValidation   = &Error{Kind: KindValidation}
	ErrOriginDenied = &Error{Kind: KindOriginDenied}
	ErrRateLimited  = &Error{Kind: KindRateLimited}
	ErrUpstream     = &Error{Kind: KindUpstream}
	ErrStore        = &Error{Kind: KindStore}
)

const (
	MsgRateLimited = "Too many requests. Please wait a moment and try again."
	MsgUpstream    = "Something went wrong. Please try again."
	MsgOrigin      = "Origin not allowed."
)

func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func RateLimited(msg string) *Error {
	if msg == "" {
		msg = MsgRateLimited
	}
	return &Error{Kind: KindRateLimited, Message: msg}
}

func Upstream(err error) *Error {
	return &Error{Kind: KindUpstream, Message: MsgUpstream, Err: err}
}

// UpstreamRateLimited marks a provider-side quota refusal.
func UpstreamRateLimited(err error) *Error {
	return &Error{Kind: KindRateLimited, Message: MsgRateLimited, Err: err}
}

func OriginDenied(origin string) *Error {
	return &Error{Kind: KindOriginDenied, Message: MsgOrigin, Err: fmt.Errorf("origin %q not in allow-list", origin)}
}

func StoreFailure(err error) *Error {
	return &Error{Kind: KindStore, Message: "history store unavailable", Err: err}
}

// KindOf classifies err. Unclassified errors count as upstream failures.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUpstream
}

// PublicMessage returns the caller-safe message for err.
func PublicMessage(err error) string {
	var de *Error
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return MsgUpstream
}
