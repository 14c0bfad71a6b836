package domain

import (
	"errors"
	"fmt"
	"maps"
)

// ErrKind groups errors that share a transport status.
type ErrKind string

const (
	KindValidation  ErrKind = "validation"
	KindDuplicate   ErrKind = "duplicate"
	KindAuth        ErrKind = "auth"
	KindNotFound    ErrKind = "not_found"
	KindRateLimited ErrKind = "rate_limited"
	KindInternal    ErrKind = "internal"
)

// Stable machine codes. Clients switch on these; rename with care.
const (
	CodeInvalidJSON       = "invalid_json"
	CodeValidationFailed  = "validation_failed"
	CodeMissingField      = "missing_field"
	CodeUserAlreadyExists = "user_already_exists"
	CodeTokenInvalid      = "token_invalid"
	CodeTokenExpired      = "token_expired"
	CodeUnauthorized      = "unauthorized"
	CodeUserNotFound      = "user_not_found"
	CodeContactNotFound   = "contact_not_found"
	CodeRateLimited       = "rate_limited"
	CodeDB                = "db_error"
	CodeHashFailed        = "hash_failed"
	CodeTokenSignFailed   = "token_sign_failed"
	CodeMisconfigured     = "misconfigured"
)

// Error is the one error type handlers know how to render. Message is safe
// to show a client; Cause is for logs only.
type Error struct {
	Kind    ErrKind
	Code    string
	Message string
	Meta    map[string]string
	Cause   error
}

func (e *Error) Error() string {
	s := fmt.Sprintf("%s/%s: %s", e.Kind, e.Code, e.Message)
	if e.Cause == nil {
		return s
	}
	return s + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind ErrKind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

func Wrap(kind ErrKind, code, msg string, cause error) *Error {
	e := New(kind, code, msg)
	e.Cause = cause
	return e
}

// WithMeta returns a copy of err carrying meta.
func WithMeta(err *Error, meta map[string]string) *Error {
	cp := *err
	cp.Meta = maps.Clone(meta)
	return &cp
}

func (e *Error) with(key, value string) *Error {
	return WithMeta(e, map[string]string{key: value})
}

func as(err error) (*Error, bool) {
	var de *Error
	ok := errors.As(err, &de)
	return de, ok
}

// Is reports whether any error in err's chain is an *Error with code.
func Is(err error, code string) bool {
	de, ok := as(err)
	return ok && de.Code == code
}

// KindOf returns the kind of a domain error, or KindInternal for anything else.
func KindOf(err error) ErrKind {
	if de, ok := as(err); ok {
		return de.Kind
	}
	return KindInternal
}

func ErrInvalidJSON(cause error) *Error {
	return Wrap(KindValidation, CodeInvalidJSON, "invalid JSON body", cause)
}

// ErrValidation maps JSON field names to the reason each was rejected.
func ErrValidation(details map[string]string) *Error {
	return WithMeta(New(KindValidation, CodeValidationFailed, "Validation failed"), details)
}

func ErrMissingField(field string) *Error {
	return New(KindValidation, CodeMissingField, "missing required field").with("field", field)
}

func ErrUserAlreadyExists() *Error {
	return New(KindDuplicate, CodeUserAlreadyExists, "User with this email already exists")
}

func ErrTokenInvalid() *Error {
	return New(KindAuth, CodeTokenInvalid, "invalid token")
}

func ErrTokenExpired() *Error {
	return New(KindAuth, CodeTokenExpired, "token is expired")
}

func ErrUnauthorized() *Error {
	return New(KindAuth, CodeUnauthorized, "unauthorized")
}

func ErrUserNotFound() *Error {
	return New(KindNotFound, CodeUserNotFound, "user not found")
}

func ErrContactNotFound() *Error {
	return New(KindNotFound, CodeContactNotFound, "contact not found")
}

func ErrRateLimited(scope string) *Error {
	return New(KindRateLimited, CodeRateLimited, "too many requests").with("scope", scope)
}

func ErrDB(cause error) *Error {
	return Wrap(KindInternal, CodeDB, "database error", cause)
}

func ErrHashFailed(cause error) *Error {
	return Wrap(KindInternal, CodeHashFailed, "password hashing failed", cause)
}

func ErrTokenSignFailed(cause error) *Error {
	return Wrap(KindInternal, CodeTokenSignFailed, "token signing failed", cause)
}

// ErrMisconfigured names the setting whose absence makes a route unusable.
func ErrMisconfigured(what string) *Error {
	return New(KindInternal, CodeMisconfigured, "service misconfigured").with("missing", what)
}
