package repository

import (
	"context"

	"github.com/LucasBuchC/takeone-ai/internal/domain/model"
)

type BillingEventRepository interface {
	IsProcessed(ctx context.Context, tx Tx, eventID string) (bool, error)
	// Record inserts the audit row; inserted is false when the event id already exists.
	Record(ctx context.Context, tx Tx, rec *model.BillingEventRecord) (inserted bool, err error)
}
