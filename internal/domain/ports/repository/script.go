package repository

import (
	"context"

	"github.com/LucasBuchC/takeone-ai/internal/domain/model"
)

type ScriptRepository interface {
	// Append assigns s.Version = max(existing)+1 for its project and inserts it.
	// Callers pass a tx so the version read and insert are serialized per project.
	Append(ctx context.Context, tx Tx, s *model.Script) error
	ListByProject(ctx context.Context, tx Tx, projectID string) ([]*model.Script, error)
	CountByUser(ctx context.Context, tx Tx, userID string) (int, error)
}
