package model

import "time"

// EventKind is the closed set of processor events the reconciler acts on.
type EventKind string

const (
	EventCheckoutCompleted       EventKind = "checkout.session.completed"
	EventSubscriptionUpdated     EventKind = "customer.subscription.updated"
	EventSubscriptionDeleted     EventKind = "customer.subscription.deleted"
	EventInvoicePaymentFailed    EventKind = "invoice.payment_failed"
	EventInvoicePaymentSucceeded EventKind = "invoice.payment_succeeded"
	EventUnhandled               EventKind = "unhandled"
)

// KindOf classifies a raw processor event type.
func KindOf(eventType string) EventKind {
	switch k := EventKind(eventType); k {
	case EventCheckoutCompleted, EventSubscriptionUpdated, EventSubscriptionDeleted,
		EventInvoicePaymentFailed, EventInvoicePaymentSucceeded:
		return k
	}
	return EventUnhandled
}

// SubscriptionSnapshot is the processor's view of one subscription.
type SubscriptionSnapshot struct {
	ID                string
	CustomerID        string
	Status            SubscriptionStatus
	PriceID           string
	PeriodStart       time.Time
	PeriodEnd         time.Time
	CancelAtPeriodEnd bool
	// AccountID is read from subscription metadata when checkout tagged it.
	AccountID string
}

// BillingEvent is a verified, decoded processor event.
type BillingEvent struct {
	ID             string
	Type           string
	Kind           EventKind
	CustomerID     string
	SubscriptionID string
	// AccountID comes from checkout session metadata.
	AccountID    string
	Subscription *SubscriptionSnapshot
	Payload      []byte
	CreatedAt    time.Time
}

// BillingEventRecord is the append-only audit row; EventID is unique.
type BillingEventRecord struct {
	EventID        string
	Type           string
	CustomerID     string
	SubscriptionID string
	Payload        []byte
	Processed      bool
	CreatedAt      time.Time
}

func (e *BillingEvent) Record() *BillingEventRecord {
	return &BillingEventRecord{
		EventID:        e.ID,
		Type:           e.Type,
		CustomerID:     e.CustomerID,
		SubscriptionID: e.SubscriptionID,
		Payload:        e.Payload,
		Processed:      true,
		CreatedAt:      time.Now(),
	}
}
