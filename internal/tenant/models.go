package tenant

import (
	"sort"
	"time"
)

type Plan string

const (
	PlanFree         Plan = "free"
	PlanStarter      Plan = "starter"
	PlanProfessional Plan = "professional"
	PlanEnterprise   Plan = "enterprise"
)

func (p Plan) Valid() bool {
	switch p {
	case PlanFree, PlanStarter, PlanProfessional, PlanEnterprise:
		return true
	default:
		return false
	}
}

type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusInactive  Status = "inactive"
)

// Default limits applied when a tenant record or claim leaves a limit unset.
const (
	DefaultMaxUsers    = 5
	DefaultMaxStorage  = 1000
	DefaultMaxAPICalls = 10000
)

type Limits struct {
	MaxUsers    int `json:"maxUsers"`
	MaxStorage  int `json:"maxStorage"`
	MaxAPICalls int `json:"maxApiCalls"`
}

// WithDefaults fills zero limits with the plan-independent defaults.
func (l Limits) WithDefaults() Limits {
	out := l
	if out.MaxUsers <= 0 {
		out.MaxUsers = DefaultMaxUsers
	}
	if out.MaxStorage <= 0 {
		out.MaxStorage = DefaultMaxStorage
	}
	if out.MaxAPICalls <= 0 {
		out.MaxAPICalls = DefaultMaxAPICalls
	}
	return out
}

// Tenant is the persisted organization record.
type Tenant struct {
	ID        string    `json:"id" db:"id"`
	Slug      string    `json:"slug" db:"slug"`
	Plan      Plan      `json:"plan" db:"plan"`
	IsActive  bool      `json:"isActive" db:"is_active"`
	MaxUsers  int       `json:"maxUsers" db:"max_users"`
	Settings  Settings  `json:"settings" db:"settings"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Settings is stored as JSON alongside the tenant row.
type Settings struct {
	Features map[string]bool `json:"features,omitempty"`
	Limits   StorageLimits   `json:"limits"`
}

type StorageLimits struct {
	MaxStorage  int `json:"maxStorage"`
	MaxAPICalls int `json:"maxApiCalls"`
}

// Context is the authoritative tenant view attached to an authenticated request.
// It is always derived from a live Tenant record, never from a token claim.
type Context struct {
	ID       string   `json:"id"`
	Slug     string   `json:"slug"`
	Plan     Plan     `json:"plan"`
	Features []string `json:"features"`
	Limits   Limits   `json:"limits"`
	Status   Status   `json:"status"`
}

func (c Context) HasFeature(name string) bool {
	for _, f := range c.Features {
		if f == name {
			return true
		}
	}
	return false
}

// Context projects the record into a request-scoped tenant context.
func (t Tenant) Context() Context {
	features := make([]string, 0, len(t.Settings.Features))
	for name, on := range t.Settings.Features {
		if on {
			features = append(features, name)
		}
	}
	sort.Strings(features)

	status := StatusActive
	if !t.IsActive {
		status = StatusInactive
	}

	plan := t.Plan
	if !plan.Valid() {
		plan = PlanFree
	}

	return Context{
		ID:       t.ID,
		Slug:     t.Slug,
		Plan:     plan,
		Features: features,
		Limits: Limits{
			MaxUsers:    t.MaxUsers,
			MaxStorage:  t.Settings.Limits.MaxStorage,
			MaxAPICalls: t.Settings.Limits.MaxAPICalls,
		}.WithDefaults(),
		Status: status,
	}
}
