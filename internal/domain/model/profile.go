package model

import (
	"strings"
	"time"

	"github.com/LucasBuchC/takeone-ai/internal/domain"
)

// SubscriptionStatus mirrors the processor's subscription lifecycle.
type SubscriptionStatus string

const (
	StatusActive            SubscriptionStatus = "active"
	StatusPastDue           SubscriptionStatus = "past_due"
	StatusCanceled          SubscriptionStatus = "canceled"
	StatusTrialing          SubscriptionStatus = "trialing"
	StatusIncomplete        SubscriptionStatus = "incomplete"
	StatusIncompleteExpired SubscriptionStatus = "incomplete_expired"
	StatusUnpaid            SubscriptionStatus = "unpaid"
	StatusInactive          SubscriptionStatus = "inactive"
)

var knownStatuses = map[SubscriptionStatus]struct{}{
	StatusActive: {}, StatusPastDue: {}, StatusCanceled: {}, StatusTrialing: {},
	StatusIncomplete: {}, StatusIncompleteExpired: {}, StatusUnpaid: {}, StatusInactive: {},
}

// ParseSubscriptionStatus maps unknown values to inactive.
func ParseSubscriptionStatus(s string) SubscriptionStatus {
	st := SubscriptionStatus(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := knownStatuses[st]; ok {
		return st
	}
	return StatusInactive
}

// Ended reports whether the processor will never reactivate the subscription.
func (s SubscriptionStatus) Ended() bool {
	return s == StatusCanceled || s == StatusIncompleteExpired
}

// Profile is the account record: credit ledger plus the mirrored subscription state.
// The ID is owned by the auth provider.
type Profile struct {
	ID                string
	Email             string
	Credits           int
	Plan              PlanTier
	Status            SubscriptionStatus
	CustomerID        string
	SubscriptionID    string
	PriceID           string
	PeriodStart       *time.Time
	PeriodEnd         *time.Time
	CreditsResetAt    *time.Time
	CancelAtPeriodEnd bool
	// BillingEventAt is the creation time of the newest billing event applied.
	BillingEventAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewProfile returns a profile with free-tier defaults.
func NewProfile(id, email string) (*Profile, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Profile{
		ID:        id,
		Email:     email,
		Credits:   FreeCredits,
		Plan:      PlanFree,
		Status:    StatusInactive,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (p *Profile) HasCredits() bool { return p != nil && p.Credits > 0 }

func (p *Profile) HasLinkedSubscription() bool {
	return p != nil && strings.TrimSpace(p.SubscriptionID) != ""
}

// SupersededBy reports whether a billing event created at t is older than
// the newest one already applied. Events without a timestamp never are.
func (p *Profile) SupersededBy(t time.Time) bool {
	return p != nil && p.BillingEventAt != nil && !t.IsZero() && t.Before(*p.BillingEventAt)
}

// BillingMutation is the state transition a billing event applies to a profile.
// Nil fields are left unchanged; a non-nil empty id clears the stored id.
type BillingMutation struct {
	Status            *SubscriptionStatus
	Plan              *PlanTier
	Credits           *int
	CustomerID        *string
	SubscriptionID    *string
	PriceID           *string
	PeriodStart       *time.Time
	PeriodEnd         *time.Time
	CreditsResetAt    *time.Time
	CancelAtPeriodEnd *bool
	BillingEventAt    *time.Time
}

func (m BillingMutation) IsEmpty() bool {
	return m.Status == nil && m.Plan == nil && m.Credits == nil &&
		m.CustomerID == nil && m.SubscriptionID == nil && m.PriceID == nil &&
		m.PeriodStart == nil && m.PeriodEnd == nil && m.CreditsResetAt == nil && m.CancelAtPeriodEnd == nil
}

// Apply writes the mutation onto p in place.
func (m BillingMutation) Apply(p *Profile) {
	if m.Status != nil {
		p.Status = *m.Status
	}
	if m.Plan != nil {
		p.Plan = *m.Plan
	}
	if m.Credits != nil {
		p.Credits = *m.Credits
	}
	if m.CustomerID != nil {
		p.CustomerID = *m.CustomerID
	}
	if m.SubscriptionID != nil {
		p.SubscriptionID = *m.SubscriptionID
	}
	if m.PriceID != nil {
		p.PriceID = *m.PriceID
	}
	if m.PeriodStart != nil {
		t := *m.PeriodStart
		p.PeriodStart = &t
	}
	if m.PeriodEnd != nil {
		t := *m.PeriodEnd
		p.PeriodEnd = &t
	}
	if m.CreditsResetAt != nil {
		t := *m.CreditsResetAt
		p.CreditsResetAt = &t
	}
	if m.CancelAtPeriodEnd != nil {
		p.CancelAtPeriodEnd = *m.CancelAtPeriodEnd
	}
	if m.BillingEventAt != nil {
		t := *m.BillingEventAt
		p.BillingEventAt = &t
	}
	p.UpdatedAt = time.Now()
}

// Ptr is a small helper for building mutations.
func Ptr[T any](v T) *T { return &v }
