package api

import (
	"time"

	"github.com/LucasBuchC/takeone-ai/internal/domain/model"
	"github.com/LucasBuchC/takeone-ai/internal/usecase"
)

type profileDTO struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email,omitempty"`
	Credits            int        `json:"credits"`
	Plan               string     `json:"subscription_tier"`
	Status             string     `json:"subscription_status"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd  bool       `json:"cancel_at_period_end"`
	CreditsResetAt     *time.Time `json:"credits_reset_at,omitempty"`
	HasSubscription    bool       `json:"has_subscription"`
	CanManageBilling   bool       `json:"can_manage_billing"`
	UnlimitedGenerates bool       `json:"unlimited"`
}

type meDTO struct {
	Profile  profileDTO `json:"profile"`
	Projects int        `json:"projects"`
	Scripts  int        `json:"scripts"`
}

type projectDTO struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	VideoType   string    `json:"video_type"`
	Duration    int       `json:"duration"`
	LastPrompt  string    `json:"last_prompt,omitempty"`
	ScriptCount int       `json:"script_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type scriptDTO struct {
	ID        string                 `json:"id"`
	Version   int                    `json:"version"`
	Content   string                 `json:"content"`
	Prompt    string                 `json:"prompt"`
	Params    model.GenerationParams `json:"generation_params"`
	CreatedAt time.Time              `json:"created_at"`
}

type projectDetailDTO struct {
	projectDTO
	Scripts []scriptDTO `json:"scripts"`
}

func toMeDTO(s *usecase.AccountSummary) meDTO {
	p := s.Profile
	return meDTO{
		Profile: profileDTO{
			ID:                 p.ID,
			Email:              p.Email,
			Credits:            p.Credits,
			Plan:               string(p.Plan),
			Status:             string(p.Status),
			CurrentPeriodEnd:   p.PeriodEnd,
			CancelAtPeriodEnd:  p.CancelAtPeriodEnd,
			CreditsResetAt:     p.CreditsResetAt,
			HasSubscription:    p.HasLinkedSubscription(),
			CanManageBilling:   p.HasLinkedSubscription() && p.CustomerID != "",
			UnlimitedGenerates: p.Credits >= model.UnlimitedCredits,
		},
		Projects: s.Projects,
		Scripts:  s.Scripts,
	}
}

func toProjectDTO(p *model.Project, scripts int) projectDTO {
	return projectDTO{
		ID:          p.ID,
		Title:       p.Title,
		VideoType:   string(p.VideoType),
		Duration:    p.Duration,
		LastPrompt:  p.LastPrompt,
		ScriptCount: scripts,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func toProjectDetailDTO(d *usecase.ProjectDetail) projectDetailDTO {
	out := projectDetailDTO{
		projectDTO: toProjectDTO(d.Project, len(d.Scripts)),
		Scripts:    make([]scriptDTO, 0, len(d.Scripts)),
	}
	for _, s := range d.Scripts {
		out.Scripts = append(out.Scripts, scriptDTO{
			ID:        s.ID,
			Version:   s.Version,
			Content:   s.Content,
			Prompt:    s.Prompt,
			Params:    s.Params,
			CreatedAt: s.CreatedAt,
		})
	}
	return out
}
