package adapter

import (
	"context"

	"github.com/LucasBuchC/takeone-ai/internal/domain/model"
)

type CheckoutRequest struct {
	AccountID string
	Email     string
	// CustomerID is reused when the account is already linked.
	CustomerID string
	PriceID    string
	SuccessURL string
	CancelURL  string
}

type CheckoutSession struct {
	ID  string
	URL string
}

// PaymentGateway is the hex port for the payment processor.
type PaymentGateway interface {
	Name() string

	// CreateCheckoutSession opens a hosted subscription checkout tagged with the account id.
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	// CreatePortalSession opens the hosted self-service portal for a customer.
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (url string, err error)
	// GetSubscription fetches the processor's current view of a subscription.
	GetSubscription(ctx context.Context, subscriptionID string) (*model.SubscriptionSnapshot, error)
}

// WebhookVerifier authenticates and decodes processor webhook deliveries.
// Any verification failure returns domain.ErrSignatureInvalid.
type WebhookVerifier interface {
	Verify(payload []byte, signatureHeader string) (*model.BillingEvent, error)
}
