package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/LucasBuchC/takeone-ai/internal/domain"
	"github.com/LucasBuchC/takeone-ai/internal/domain/model"
	"github.com/LucasBuchC/takeone-ai/internal/domain/ports/repository"
	"github.com/LucasBuchC/takeone-ai/internal/infra/logging"
)

// Compile-time check
var _ ProjectUseCase = (*projectUC)(nil)

type ProjectDetail struct {
	Project *model.Project
	// Scripts are newest version first.
	Scripts []*model.Script
}

type ProjectUseCase interface {
	Create(ctx context.Context, userID, title string, vt model.VideoType, duration int, lastPrompt string) (*model.Project, error)
	List(ctx context.Context, userID string) ([]*model.ProjectSummary, error)
	// Get returns domain.ErrNotFound for projects owned by someone else.
	Get(ctx context.Context, userID, projectID string) (*ProjectDetail, error)
}

type projectUC struct {
	projects repository.ProjectRepository
	scripts  repository.ScriptRepository
	log      *zerolog.Logger
}

func NewProjectUseCase(projects repository.ProjectRepository, scripts repository.ScriptRepository, logger *zerolog.Logger) *projectUC {
	return &projectUC{projects: projects, scripts: scripts, log: logger}
}

func (p *projectUC) Create(ctx context.Context, userID, title string, vt model.VideoType, duration int, lastPrompt string) (*model.Project, error) {
	defer logging.TraceDuration(p.log, "ProjectUC.Create")()
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	proj, err := model.NewProject(userID, title, vt, duration, lastPrompt)
	if err != nil {
		return nil, err
	}
	if err := p.projects.Save(ctx, repository.NoTX, proj); err != nil {
		return nil, err
	}
	logging.With(logging.WithProjectID(ctx, proj.ID), p.log).Info().Str("video_type", string(vt)).Msg("project created")
	return proj, nil
}

func (p *projectUC) List(ctx context.Context, userID string) ([]*model.ProjectSummary, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	return p.projects.ListByUser(ctx, repository.NoTX, userID)
}

func (p *projectUC) Get(ctx context.Context, userID, projectID string) (*ProjectDetail, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	proj, err := p.projects.FindByID(ctx, repository.NoTX, userID, projectID)
	if err != nil {
		return nil, err
	}
	scripts, err := p.scripts.ListByProject(ctx, repository.NoTX, proj.ID)
	if err != nil {
		return nil, err
	}
	return &ProjectDetail{Project: proj, Scripts: scripts}, nil
}
