package audit

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidEvent = errors.New("audit: invalid event")

// Event is an immutable, append-only security audit record.
//
// Invariants:
// - Events are never updated or deleted.
// - Recording is best-effort; audit failures never change the outcome of a request.
type Event struct {
	ID   string    `json:"id" db:"id"`
	Type EventType `json:"type" db:"type"`

	Method     string  `json:"method" db:"method"`
	Path       string  `json:"path" db:"path"`
	Status     int     `json:"status" db:"status"`
	DurationMS float64 `json:"duration_ms" db:"duration_ms"`

	// Kind is the authorization failure kind, when the request was rejected by the auth chain.
	Kind string `json:"kind,omitempty" db:"kind"`

	// Actor fields are set only when the request carried a verified principal.
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`
	TenantID    string `json:"tenant_id,omitempty" db:"tenant_id"`

	// SubjectUserID is the user a token was issued for.
	SubjectUserID string `json:"subject_user_id,omitempty" db:"subject_user_id"`

	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`
	RequestID string `json:"request_id,omitempty" db:"request_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

// Validate reports why an event cannot be stored. Request-derived events need method and status.
func (e Event) Validate() error {
	switch e.Type {
	case EventTypeAuthRejected, EventTypeRequestFailed:
		if e.Method == "" || e.Status == 0 {
			return fmt.Errorf("%w: %s requires method and status", ErrInvalidEvent, e.Type)
		}
	case EventTypeTokenIssued:
		if e.SubjectUserID == "" {
			return fmt.Errorf("%w: %s requires subject user", ErrInvalidEvent, e.Type)
		}
	case EventTypeAPIKeyIssued, EventTypeAPIKeyRevoked:
		if e.ActorUserID == "" {
			return fmt.Errorf("%w: %s requires actor", ErrInvalidEvent, e.Type)
		}
	case "":
		return fmt.Errorf("%w: type required", ErrInvalidEvent)
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, e.Type)
	}
	return nil
}

const (
	EventTypeAuthRejected  EventType = "auth_rejected"
	EventTypeRequestFailed EventType = "request_failed"
	EventTypeTokenIssued   EventType = "token_issued"
	EventTypeAPIKeyIssued  EventType = "api_key_issued"
	EventTypeAPIKeyRevoked EventType = "api_key_revoked"
)
