package repository

import (
	"context"

	"github.com/LucasBuchC/takeone-ai/internal/domain/model"
)

type ProfileRepository interface {
	// Ensure inserts the profile if it does not exist yet and returns the stored row.
	Ensure(ctx context.Context, tx Tx, p *model.Profile) (*model.Profile, error)
	FindByID(ctx context.Context, tx Tx, id string) (*model.Profile, error)
	// FindByExternal matches on subscription id first, then customer id.
	FindByExternal(ctx context.Context, tx Tx, customerID, subscriptionID string) (*model.Profile, error)
	ApplyBilling(ctx context.Context, tx Tx, id string, m model.BillingMutation) error
	// DebitCredit decrements the balance by one only when it is positive and
	// returns the remaining balance, or domain.ErrInsufficientCredits.
	DebitCredit(ctx context.Context, tx Tx, id string) (int, error)
}
