package repository

import (
	"context"

	"github.com/LucasBuchC/takeone-ai/internal/domain/model"
)

type ProjectRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Project) error
	// FindByID only returns projects owned by userID.
	FindByID(ctx context.Context, tx Tx, userID, id string) (*model.Project, error)
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.ProjectSummary, error)
	UpdateLastPrompt(ctx context.Context, tx Tx, id, prompt string) error
	CountByUser(ctx context.Context, tx Tx, userID string) (int, error)
}
