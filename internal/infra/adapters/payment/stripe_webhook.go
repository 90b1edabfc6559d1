package payment

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/LucasBuchC/takeone-ai/internal/domain"
	"github.com/LucasBuchC/takeone-ai/internal/domain/model"
	"github.com/LucasBuchC/takeone-ai/internal/domain/ports/adapter"
)

var _ adapter.WebhookVerifier = (*StripeWebhookVerifier)(nil)

type StripeWebhookVerifier struct {
	secret    string
	tolerance time.Duration
}

func NewStripeWebhookVerifier(secret string) *StripeWebhookVerifier {
	return &StripeWebhookVerifier{secret: strings.TrimSpace(secret), tolerance: webhook.DefaultTolerance}
}

// Verify checks the Stripe-Signature header against the raw body and decodes
// the fields the reconciler needs. An empty secret rejects every delivery.
func (v *StripeWebhookVerifier) Verify(payload []byte, signatureHeader string) (*model.BillingEvent, error) {
	if v.secret == "" || strings.TrimSpace(signatureHeader) == "" {
		return nil, domain.ErrSignatureInvalid
	}
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSignatureInvalid, err)
	}

	ev := &model.BillingEvent{
		ID:        event.ID,
		Type:      string(event.Type),
		Kind:      model.KindOf(string(event.Type)),
		Payload:   payload,
		CreatedAt: unixTime(event.Created),
	}
	if event.Data == nil {
		return ev, nil
	}
	if err := decodeObject(ev, event.Data.Raw); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", domain.ErrInvalidRequest, ev.Type, err)
	}
	return ev, nil
}

func decodeObject(ev *model.BillingEvent, raw json.RawMessage) error {
	switch ev.Kind {
	case model.EventCheckoutCompleted:
		var s checkoutSessionObject
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		ev.CustomerID = string(s.Customer)
		ev.SubscriptionID = string(s.Subscription)
		ev.AccountID = strings.TrimSpace(s.Metadata[AccountMetadataKey])
		if ev.AccountID == "" {
			ev.AccountID = strings.TrimSpace(s.ClientReferenceID)
		}

	case model.EventSubscriptionUpdated, model.EventSubscriptionDeleted:
		var s subscriptionObject
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		ev.Subscription = s.snapshot()
		ev.CustomerID = ev.Subscription.CustomerID
		ev.SubscriptionID = ev.Subscription.ID
		ev.AccountID = ev.Subscription.AccountID

	case model.EventInvoicePaymentFailed, model.EventInvoicePaymentSucceeded:
		var inv invoiceObject
		if err := json.Unmarshal(raw, &inv); err != nil {
			return err
		}
		ev.CustomerID = string(inv.Customer)
		ev.SubscriptionID = inv.subscriptionID()
		if inv.Parent.SubscriptionDetails != nil {
			ev.AccountID = inv.Parent.SubscriptionDetails.Metadata[AccountMetadataKey]
		}
	}
	return nil
}

// expandableID accepts either a bare id or an expanded object with an id.
type expandableID string

func (e *expandableID) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*e = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*e = expandableID(s)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*e = expandableID(obj.ID)
	return nil
}

type checkoutSessionObject struct {
	ID                string            `json:"id"`
	Mode              string            `json:"mode"`
	Customer          expandableID      `json:"customer"`
	Subscription      expandableID      `json:"subscription"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

type subscriptionObject struct {
	ID                 string       `json:"id"`
	Customer           expandableID `json:"customer"`
	Status             string       `json:"status"`
	CancelAtPeriodEnd  bool         `json:"cancel_at_period_end"`
	CurrentPeriodStart int64        `json:"current_period_start"`
	CurrentPeriodEnd   int64        `json:"current_period_end"`
	Items              struct {
		Data []struct {
			CurrentPeriodStart int64 `json:"current_period_start"`
			CurrentPeriodEnd   int64 `json:"current_period_end"`
			Price              struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
	Metadata map[string]string `json:"metadata"`
}

// snapshot reads the period from the subscription or, on newer API versions,
// from its first item.
func (s *subscriptionObject) snapshot() *model.SubscriptionSnapshot {
	snap := &model.SubscriptionSnapshot{
		ID:                s.ID,
		CustomerID:        string(s.Customer),
		Status:            model.ParseSubscriptionStatus(s.Status),
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
		AccountID:         strings.TrimSpace(s.Metadata[AccountMetadataKey]),
		PeriodStart:       unixTime(s.CurrentPeriodStart),
		PeriodEnd:         unixTime(s.CurrentPeriodEnd),
	}
	if len(s.Items.Data) > 0 {
		item := s.Items.Data[0]
		snap.PriceID = strings.TrimSpace(item.Price.ID)
		if snap.PeriodStart.IsZero() {
			snap.PeriodStart = unixTime(item.CurrentPeriodStart)
		}
		if snap.PeriodEnd.IsZero() {
			snap.PeriodEnd = unixTime(item.CurrentPeriodEnd)
		}
	}
	return snap
}

type invoiceObject struct {
	ID           string       `json:"id"`
	Customer     expandableID `json:"customer"`
	Subscription expandableID `json:"subscription"`
	Parent       struct {
		SubscriptionDetails *struct {
			Subscription expandableID      `json:"subscription"`
			Metadata     map[string]string `json:"metadata"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

func (i *invoiceObject) subscriptionID() string {
	if i.Subscription != "" {
		return string(i.Subscription)
	}
	if i.Parent.SubscriptionDetails != nil {
		return string(i.Parent.SubscriptionDetails.Subscription)
	}
	return ""
}
