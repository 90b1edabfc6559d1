package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/LucasBuchC/takeone-ai/internal/domain/model"
	"github.com/LucasBuchC/takeone-ai/internal/domain/ports/repository"
)

var _ repository.BillingEventRepository = (*PostgresBillingEventRepo)(nil)

type PostgresBillingEventRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresBillingEventRepo(pool *pgxpool.Pool) *PostgresBillingEventRepo {
	return &PostgresBillingEventRepo{pool: pool}
}

func (r *PostgresBillingEventRepo) IsProcessed(ctx context.Context, tx repository.Tx, eventID string) (bool, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return false, err
	}
	var processed bool
	if err := ex.QueryRow(ctx, `SELECT processed FROM stripe_events WHERE event_id = $1;`, eventID).Scan(&processed); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, mapErr("lookup event", err)
	}
	return processed, nil
}

// Record relies on the event_id primary key: a concurrent duplicate blocks
// until the first tx finishes and then inserts nothing.
func (r *PostgresBillingEventRepo) Record(ctx context.Context, tx repository.Tx, rec *model.BillingEventRecord) (bool, error) {
	const q = `
INSERT INTO stripe_events (event_id, type, customer_id, subscription_id, payload, processed, created_at)
VALUES ($1, $2, NULLIF($3::text, ''), NULLIF($4::text, ''), $5, $6, $7)
ON CONFLICT (event_id) DO NOTHING;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return false, err
	}
	payload := rec.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	tag, err := ex.Exec(ctx, q, rec.EventID, rec.Type, rec.CustomerID, rec.SubscriptionID, payload, rec.Processed, rec.CreatedAt)
	if err != nil {
		return false, mapErr("record event", err)
	}
	return tag.RowsAffected() == 1, nil
}
