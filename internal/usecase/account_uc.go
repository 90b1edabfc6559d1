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
var _ AccountUseCase = (*accountUC)(nil)

type AccountSummary struct {
	Profile  *model.Profile
	Projects int
	Scripts  int
}

type AccountUseCase interface {
	// Ensure provisions a free-tier profile on first sight of an account.
	Ensure(ctx context.Context, accountID, email string) (*model.Profile, error)
	Me(ctx context.Context, accountID string) (*AccountSummary, error)
}

type accountUC struct {
	profiles repository.ProfileRepository
	projects repository.ProjectRepository
	scripts  repository.ScriptRepository
	log      *zerolog.Logger
}

func NewAccountUseCase(profiles repository.ProfileRepository, projects repository.ProjectRepository, scripts repository.ScriptRepository, logger *zerolog.Logger) *accountUC {
	return &accountUC{profiles: profiles, projects: projects, scripts: scripts, log: logger}
}

func (a *accountUC) Ensure(ctx context.Context, accountID, email string) (*model.Profile, error) {
	defer logging.TraceDuration(a.log, "AccountUC.Ensure")()
	p, err := model.NewProfile(accountID, email)
	if err != nil {
		return nil, domain.ErrUnauthorized
	}
	return a.profiles.Ensure(ctx, repository.NoTX, p)
}

func (a *accountUC) Me(ctx context.Context, accountID string) (*AccountSummary, error) {
	defer logging.TraceDuration(a.log, "AccountUC.Me")()
	if accountID == "" {
		return nil, domain.ErrUnauthorized
	}
	p, err := a.profiles.FindByID(ctx, repository.NoTX, accountID)
	if err != nil {
		return nil, err
	}
	projects, err := a.projects.CountByUser(ctx, repository.NoTX, accountID)
	if err != nil {
		return nil, err
	}
	scripts, err := a.scripts.CountByUser(ctx, repository.NoTX, accountID)
	if err != nil {
		return nil, err
	}
	return &AccountSummary{Profile: p, Projects: projects, Scripts: scripts}, nil
}
