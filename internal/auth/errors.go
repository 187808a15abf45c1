package auth

import (
	"errors"
	"fmt"
)

// Kind classifies an authentication or authorization failure.
// Kinds are stable and appear on the wire as the "error" field of rejection bodies.
type Kind string

const (
	KindMissingCredential        Kind = "MissingCredential"
	KindMalformedCredential      Kind = "MalformedCredential"
	KindInvalidSignatureOrClaims Kind = "InvalidSignatureOrClaims"
	KindExpired                  Kind = "Expired"
	KindWrongTokenType           Kind = "WrongTokenType"
	KindTenantInactive           Kind = "TenantInactive"
	KindTenantNotFound           Kind = "TenantNotFound"
	KindTenantMismatch           Kind = "TenantMismatch"
	KindInsufficientRole         Kind = "InsufficientRole"
	KindOwnershipViolation       Kind = "OwnershipViolation"
	KindMissingPathParam         Kind = "MissingPathParam"
	KindInvalidAPIKey            Kind = "InvalidAPIKey"
	KindBodyTooLarge             Kind = "BodyTooLarge"
	KindTenantResolutionFailed   Kind = "TenantResolutionFailed"
	KindInternal                 Kind = "Internal"
)

// Error is the typed failure returned by the token and authorization layers.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func NewError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so errors.Is(err, ErrExpired) works for every expired failure.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrMissingCredential        = &Error{Kind: KindMissingCredential}
	ErrMalformedCredential      = &Error{Kind: KindMalformedCredential}
	ErrInvalidSignatureOrClaims = &Error{Kind: KindInvalidSignatureOrClaims}
	ErrExpired                  = &Error{Kind: KindExpired}
	ErrWrongTokenType           = &Error{Kind: KindWrongTokenType}
	ErrTenantInactive           = &Error{Kind: KindTenantInactive}
	ErrTenantNotFound           = &Error{Kind: KindTenantNotFound}
	ErrTenantMismatch           = &Error{Kind: KindTenantMismatch}
	ErrInsufficientRole         = &Error{Kind: KindInsufficientRole}
	ErrOwnershipViolation       = &Error{Kind: KindOwnershipViolation}
	ErrMissingPathParam         = &Error{Kind: KindMissingPathParam}
	ErrInvalidAPIKey            = &Error{Kind: KindInvalidAPIKey}
	ErrBodyTooLarge             = &Error{Kind: KindBodyTooLarge}
	ErrTenantResolutionFailed   = &Error{Kind: KindTenantResolutionFailed}
)

// KindOf returns the Kind carried by err, or KindInternal for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the client-safe message carried by err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "internal error"
}
