package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/LucasBuchC/takeone-ai/internal/domain"
	"github.com/LucasBuchC/takeone-ai/internal/domain/model"
	"github.com/LucasBuchC/takeone-ai/internal/domain/ports/adapter"
	"github.com/LucasBuchC/takeone-ai/internal/domain/ports/repository"
	"github.com/LucasBuchC/takeone-ai/internal/infra/logging"
	"github.com/LucasBuchC/takeone-ai/internal/infra/metrics"
)

// Compile-time check
var _ CheckoutUseCase = (*checkoutUC)(nil)

// CheckoutUseCase opens hosted processor sessions. It never writes local state.
type CheckoutUseCase interface {
	Checkout(ctx context.Context, accountID, priceID string) (*adapter.CheckoutSession, error)
	// Portal fails with domain.ErrNoActiveSubscription, without calling the
	// processor, when the account has no linked subscription.
	Portal(ctx context.Context, accountID string) (string, error)
}

type checkoutUC struct {
	profiles repository.ProfileRepository
	gateway  adapter.PaymentGateway
	prices   model.PriceTable
	siteURL  string
	log      *zerolog.Logger
}

func NewCheckoutUseCase(profiles repository.ProfileRepository, gateway adapter.PaymentGateway, prices model.PriceTable, siteURL string, logger *zerolog.Logger) *checkoutUC {
	return &checkoutUC{
		profiles: profiles,
		gateway:  gateway,
		prices:   prices,
		siteURL:  strings.TrimRight(siteURL, "/"),
		log:      logger,
	}
}

func (c *checkoutUC) Checkout(ctx context.Context, accountID, priceID string) (*adapter.CheckoutSession, error) {
	defer logging.TraceDuration(c.log, "CheckoutUC.Checkout")()
	profile, err := c.profile(ctx, accountID)
	if err != nil {
		return nil, err
	}
	priceID = strings.TrimSpace(priceID)
	if priceID == "" || !c.prices.Tier(priceID).Paid() {
		return nil, domain.ErrInvalidRequest
	}

	s, err := c.gateway.CreateCheckoutSession(ctx, adapter.CheckoutRequest{
		AccountID:  profile.ID,
		Email:      profile.Email,
		CustomerID: profile.CustomerID,
		PriceID:    priceID,
		SuccessURL: c.siteURL + "/dashboard?success=true&session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  c.siteURL + "/pricing?canceled=true",
	})
	if err != nil {
		metrics.IncBillingSession("checkout", "error")
		logging.With(ctx, c.log).Error().Err(err).Str("price_id", priceID).Msg("checkout session failed")
		return nil, err
	}
	metrics.IncBillingSession("checkout", "created")
	return s, nil
}

func (c *checkoutUC) Portal(ctx context.Context, accountID string) (string, error) {
	defer logging.TraceDuration(c.log, "CheckoutUC.Portal")()
	profile, err := c.profile(ctx, accountID)
	if err != nil {
		return "", err
	}
	if !profile.HasLinkedSubscription() || profile.CustomerID == "" {
		metrics.IncBillingSession("portal", "no_subscription")
		return "", domain.ErrNoActiveSubscription
	}
	url, err := c.gateway.CreatePortalSession(ctx, profile.CustomerID, c.siteURL+"/dashboard")
	if err != nil {
		metrics.IncBillingSession("portal", "error")
		logging.With(ctx, c.log).Error().Err(err).Msg("portal session failed")
		return "", err
	}
	metrics.IncBillingSession("portal", "created")
	return url, nil
}

func (c *checkoutUC) profile(ctx context.Context, accountID string) (*model.Profile, error) {
	if accountID == "" {
		return nil, domain.ErrUnauthorized
	}
	p, err := c.profiles.FindByID(ctx, repository.NoTX, accountID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrUnauthorized
	}
	return p, err
}
