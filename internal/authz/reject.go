package authz

import (
	"net/http"
	"time"

	"tenant-auth/internal/auth"
)

// timestampLayout is ISO-8601 with millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Body is the JSON contract for every rejected request.
type Body struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type Rejection struct {
	Status  int
	Kind    auth.Kind
	Message string
}

func (r Rejection) Body(now time.Time) Body {
	return Body{
		Error:     string(r.Kind),
		Message:   r.Message,
		Timestamp: now.UTC().Format(timestampLayout),
	}
}

// RejectionFrom maps a chain error onto its HTTP status and client-safe message.
func RejectionFrom(err error) Rejection {
	kind := auth.KindOf(err)
	return Rejection{
		Status:  StatusFor(kind),
		Kind:    kind,
		Message: auth.MessageOf(err),
	}
}

func StatusFor(kind auth.Kind) int {
	switch kind {
	case auth.KindMissingCredential,
		auth.KindMalformedCredential,
		auth.KindInvalidSignatureOrClaims,
		auth.KindExpired,
		auth.KindWrongTokenType,
		auth.KindTenantInactive,
		auth.KindTenantNotFound,
		auth.KindInvalidAPIKey:
		return http.StatusUnauthorized
	case auth.KindTenantMismatch,
		auth.KindInsufficientRole,
		auth.KindOwnershipViolation:
		return http.StatusForbidden
	case auth.KindMissingPathParam:
		return http.StatusBadRequest
	case auth.KindBodyTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}
