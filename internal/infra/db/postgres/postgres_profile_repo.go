package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/LucasBuchC/takeone-ai/internal/domain"
	"github.com/LucasBuchC/takeone-ai/internal/domain/model"
	"github.com/LucasBuchC/takeone-ai/internal/domain/ports/repository"
)

var _ repository.ProfileRepository = (*PostgresProfileRepo)(nil)

type PostgresProfileRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresProfileRepo(pool *pgxpool.Pool) *PostgresProfileRepo {
	return &PostgresProfileRepo{pool: pool}
}

const profileColumns = `
id, email, credits_remaining, plan_type, subscription_status,
COALESCE(stripe_customer_id, ''), COALESCE(stripe_subscription_id, ''), COALESCE(stripe_price_id, ''),
current_period_start, current_period_end, credits_reset_date, cancel_at_period_end,
last_billing_event_at, created_at, updated_at`

func scanProfile(row pgx.Row) (*model.Profile, error) {
	var (
		p            model.Profile
		plan, status string
	)
	if err := row.Scan(
		&p.ID, &p.Email, &p.Credits, &plan, &status,
		&p.CustomerID, &p.SubscriptionID, &p.PriceID,
		&p.PeriodStart, &p.PeriodEnd, &p.CreditsResetAt, &p.CancelAtPeriodEnd,
		&p.BillingEventAt, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.Plan = model.ParsePlanTier(plan)
	p.Status = model.ParseSubscriptionStatus(status)
	return &p, nil
}

func (r *PostgresProfileRepo) Ensure(ctx context.Context, tx repository.Tx, p *model.Profile) (*model.Profile, error) {
	const q = `
INSERT INTO profiles (id, email, credits_remaining, plan_type, subscription_status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)
ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email
 WHERE profiles.email = '' AND EXCLUDED.email <> '';`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	if _, err := ex.Exec(ctx, q, p.ID, p.Email, p.Credits, string(p.Plan), string(p.Status), p.CreatedAt); err != nil {
		return nil, mapErr("ensure profile", err)
	}
	return r.FindByID(ctx, tx, p.ID)
}

func (r *PostgresProfileRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Profile, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	p, err := scanProfile(ex.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1;`, id))
	if err != nil {
		return nil, mapErr("find profile", err)
	}
	return p, nil
}

// FindByExternal locks the matched row; a subscription id match wins over a customer id match.
func (r *PostgresProfileRepo) FindByExternal(ctx context.Context, tx repository.Tx, customerID, subscriptionID string) (*model.Profile, error) {
	customerID, subscriptionID = strings.TrimSpace(customerID), strings.TrimSpace(subscriptionID)
	if customerID == "" && subscriptionID == "" {
		return nil, domain.ErrNotFound
	}
	const q = `
SELECT ` + profileColumns + `
  FROM profiles
 WHERE ($1::text <> '' AND stripe_subscription_id = $1::text)
    OR ($2::text <> '' AND stripe_customer_id = $2::text)
 ORDER BY CASE WHEN stripe_subscription_id = $1::text THEN 0 ELSE 1 END, updated_at DESC
 LIMIT 1
   FOR UPDATE;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	p, err := scanProfile(ex.QueryRow(ctx, q, subscriptionID, customerID))
	if err != nil {
		return nil, mapErr("find profile by external id", err)
	}
	return p, nil
}

func (r *PostgresProfileRepo) ApplyBilling(ctx context.Context, tx repository.Tx, id string, m model.BillingMutation) error {
	if m.IsEmpty() {
		return nil
	}
	const q = `
UPDATE profiles SET
  subscription_status    = COALESCE($2::text, subscription_status),
  plan_type              = COALESCE($3::text, plan_type),
  credits_remaining      = COALESCE($4::int, credits_remaining),
  stripe_customer_id     = CASE WHEN $5::boolean THEN NULLIF($6::text, '') ELSE stripe_customer_id END,
  stripe_subscription_id = CASE WHEN $7::boolean THEN NULLIF($8::text, '') ELSE stripe_subscription_id END,
  stripe_price_id        = CASE WHEN $9::boolean THEN NULLIF($10::text, '') ELSE stripe_price_id END,
  current_period_start   = COALESCE($11::timestamptz, current_period_start),
  current_period_end     = COALESCE($12::timestamptz, current_period_end),
  credits_reset_date     = COALESCE($13::timestamptz, credits_reset_date),
  cancel_at_period_end   = COALESCE($14::boolean, cancel_at_period_end),
  last_billing_event_at  = COALESCE($15::timestamptz, last_billing_event_at),
  updated_at             = NOW()
WHERE id = $1;`

	var status, plan *string
	if m.Status != nil {
		status = model.Ptr(string(*m.Status))
	}
	if m.Plan != nil {
		plan = model.Ptr(string(*m.Plan))
	}
	setCust, cust := optString(m.CustomerID)
	setSub, sub := optString(m.SubscriptionID)
	setPrice, price := optString(m.PriceID)

	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	tag, err := ex.Exec(ctx, q, id, status, plan, m.Credits,
		setCust, cust, setSub, sub, setPrice, price,
		m.PeriodStart, m.PeriodEnd, m.CreditsResetAt, m.CancelAtPeriodEnd, m.BillingEventAt)
	if err != nil {
		return mapErr("apply billing", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DebitCredit is a single conditional UPDATE so concurrent debits can never
// drive the balance below zero.
func (r *PostgresProfileRepo) DebitCredit(ctx context.Context, tx repository.Tx, id string) (int, error) {
	const q = `
UPDATE profiles
   SET credits_remaining = credits_remaining - 1, updated_at = NOW()
 WHERE id = $1 AND credits_remaining > 0
RETURNING credits_remaining;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return 0, err
	}
	var remaining int
	if err := ex.QueryRow(ctx, q, id).Scan(&remaining); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrInsufficientCredits
		}
		return 0, mapErr("debit credit", err)
	}
	return remaining, nil
}

func optString(p *string) (bool, string) {
	if p == nil {
		return false, ""
	}
	return true, strings.TrimSpace(*p)
}
