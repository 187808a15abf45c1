package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the append-only persistence contract for audit events.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records security events. Callers treat failures as best-effort and never fail a request on them.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// WithClock returns a copy of the service stamping events with now.
func (s *Service) WithClock(now func() time.Time) *Service {
	cp := *s
	cp.clock = now
	return &cp
}

// Append validates e, assigns its id and timestamp when unset, and stores it.
func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if err := e.Validate(); err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// LogTokenIssued records an administrative token issuance for subjectUserID.
func (s *Service) LogTokenIssued(ctx context.Context, actorUserID, actorRole, subjectUserID, tenantID, ip string) error {
	return s.Append(ctx, Event{
		Type:          EventTypeTokenIssued,
		ActorUserID:   actorUserID,
		ActorRole:     actorRole,
		SubjectUserID: subjectUserID,
		TenantID:      tenantID,
		IPAddress:     ip,
	})
}

// LogAPIKeyChange records an integration key being issued or revoked.
func (s *Service) LogAPIKeyChange(ctx context.Context, t EventType, actorUserID, actorRole, tenantID, ip string) error {
	return s.Append(ctx, Event{
		Type:        t,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		TenantID:    tenantID,
		IPAddress:   ip,
	})
}
