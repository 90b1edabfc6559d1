package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	portalsession "github.com/stripe/stripe-go/v82/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/subscription"

	"github.com/LucasBuchC/takeone-ai/internal/domain"
	"github.com/LucasBuchC/takeone-ai/internal/domain/model"
	"github.com/LucasBuchC/takeone-ai/internal/domain/ports/adapter"
)

// AccountMetadataKey tags checkout sessions and subscriptions with the local account id.
const AccountMetadataKey = "account_id"

var _ adapter.PaymentGateway = (*StripeGateway)(nil)

// StripeGateway implements PaymentGateway using the stripe-go package API.
// The call fields default to the SDK functions and are swapped in tests.
type StripeGateway struct {
	createCheckoutSession func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	createPortalSession   func(params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error)
	getSubscription       func(id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
}

func NewStripeGateway(secretKey string) (*StripeGateway, error) {
	if strings.TrimSpace(secretKey) == "" {
		return nil, errors.New("stripe: empty secret key")
	}
	stripe.Key = strings.TrimSpace(secretKey)
	return &StripeGateway{
		createCheckoutSession: checkoutsession.New,
		createPortalSession:   portalsession.New,
		getSubscription:       subscription.Get,
	}, nil
}

func (g *StripeGateway) Name() string { return "stripe" }

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req adapter.CheckoutRequest) (*adapter.CheckoutSession, error) {
	if req.AccountID == "" || req.PriceID == "" {
		return nil, domain.ErrInvalidArgument
	}
	meta := map[string]string{AccountMetadataKey: req.AccountID}
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		AllowPromotionCodes:      stripe.Bool(true),
		BillingAddressCollection: stripe.String(string(stripe.CheckoutSessionBillingAddressCollectionAuto)),
		ClientReferenceID:        stripe.String(req.AccountID),
		Metadata:                 meta,
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: meta,
		},
	}
	params.Context = ctx
	if req.CustomerID != "" {
		params.Customer = stripe.String(req.CustomerID)
	} else if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}

	s, err := g.createCheckoutSession(params)
	if err != nil {
		return nil, fmt.Errorf("%w: stripe checkout: %v", domain.ErrUpstreamFailure, err)
	}
	if s == nil || strings.TrimSpace(s.URL) == "" {
		return nil, fmt.Errorf("%w: stripe checkout returned no url", domain.ErrUpstreamFailure)
	}
	return &adapter.CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

func (g *StripeGateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	if customerID == "" {
		return "", domain.ErrNoActiveSubscription
	}
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx
	s, err := g.createPortalSession(params)
	if err != nil {
		return "", fmt.Errorf("%w: stripe portal: %v", domain.ErrUpstreamFailure, err)
	}
	if s == nil || s.URL == "" {
		return "", fmt.Errorf("%w: stripe portal returned no url", domain.ErrUpstreamFailure)
	}
	return s.URL, nil
}

func (g *StripeGateway) GetSubscription(ctx context.Context, subscriptionID string) (*model.SubscriptionSnapshot, error) {
	if subscriptionID == "" {
		return nil, domain.ErrInvalidArgument
	}
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := g.getSubscription(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("%w: stripe subscription %s: %v", domain.ErrUpstreamFailure, subscriptionID, err)
	}
	return snapshotFromStripe(sub), nil
}

func snapshotFromStripe(sub *stripe.Subscription) *model.SubscriptionSnapshot {
	snap := &model.SubscriptionSnapshot{
		ID:                sub.ID,
		Status:            model.ParseSubscriptionStatus(string(sub.Status)),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		AccountID:         sub.Metadata[AccountMetadataKey],
	}
	if sub.Customer != nil {
		snap.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		if item.Price != nil {
			snap.PriceID = item.Price.ID
		}
		snap.PeriodStart = unixTime(item.CurrentPeriodStart)
		snap.PeriodEnd = unixTime(item.CurrentPeriodEnd)
	}
	return snap
}

func unixTime(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
