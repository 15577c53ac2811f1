package apperr

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Kind classifies a user-visible failure; the HTTP boundary maps each kind
// to an error code in the response envelope.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindUnauthorized
	KindForbidden
	KindEventInProgress
	KindLimitExceeded
	KindProvider
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindEventInProgress:
		return "event_in_progress"
	case KindLimitExceeded:
		return "limit_exceeded"
	case KindProvider:
		return "provider_error"
	default:
		return "internal_error"
	}
}

// Well-known messages preserved verbatim for client compatibility.
const (
	MsgBotNotTrained   = "Bot has not been trained yet!"
	MsgBotAccessDenied = "Access to bot is denied"
	MsgEventInProgress = "Event already in progress! Check logs."
	MsgDailyLimit      = "Daily limit exceeded."
	MsgSessionExpired  = "Session expired. Please login again!"
)

type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, cause: cause}
}

func Validation(msg string) *Error   { return New(KindValidation, msg) }
func Conflict(msg string) *Error     { return New(KindConflict, msg) }
func NotFound(msg string) *Error     { return New(KindNotFound, msg) }
func Unauthorized(msg string) *Error { return New(KindUnauthorized, msg) }
func Forbidden(msg string) *Error    { return New(KindForbidden, msg) }
func EventInProgress() *Error        { return New(KindEventInProgress, MsgEventInProgress) }
func LimitExceeded() *Error          { return New(KindLimitExceeded, MsgDailyLimit) }
func Provider(msg string) *Error     { return New(KindProvider, msg) }

func Internal(msg string, cause error) *Error { return Wrap(KindInternal, msg, cause) }

// KindOf extracts the kind from any error chain; unknown errors are internal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return KindNotFound
	}
	return KindInternal
}

// FromDB translates storage-driver sentinel errors at the repo boundary.
func FromDB(err error, notFoundMsg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFound(notFoundMsg)
	}
	return err
}
