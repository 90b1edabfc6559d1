//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/LucasBuchC/takeone-ai/internal/domain"
	"github.com/LucasBuchC/takeone-ai/internal/domain/model"
	"github.com/LucasBuchC/takeone-ai/internal/infra/db/memory"
	"github.com/LucasBuchC/takeone-ai/internal/usecase"
)

func TestProjectUseCase_CreateListGet(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedProfile(t, store, "acc-1", 5)
	seedProfile(t, store, "acc-2", 5)
	uc := usecase.NewProjectUseCase(store.Projects(), store.Scripts(), newTestLogger())

	p, err := uc.Create(ctx, "acc-1", "  Recipe reel ", model.VideoInstagram, 30, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.Title != "Recipe reel" {
		t.Fatalf("title not trimmed: %q", p.Title)
	}
	for i := 0; i < 2; i++ {
		s, _ := model.NewScript(p.ID, "draft", "brief", model.GenerationParams{})
		if err := store.Scripts().Append(ctx, nil, s); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	list, err := uc.List(ctx, "acc-1")
	if err != nil || len(list) != 1 || list[0].ScriptCount != 2 {
		t.Fatalf("unexpected list %+v err=%v", list, err)
	}
	detail, err := uc.Get(ctx, "acc-1", p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(detail.Scripts) != 2 || detail.Scripts[0].Version != 2 {
		t.Fatalf("scripts should be newest first: %+v", detail.Scripts)
	}
	if _, err := uc.Get(ctx, "acc-2", p.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("foreign project must be not found, got %v", err)
	}
}

func TestProjectUseCase_CreateValidates(t *testing.T) {
	store := memory.NewStore()
	seedProfile(t, store, "acc-1", 5)
	uc := usecase.NewProjectUseCase(store.Projects(), store.Scripts(), newTestLogger())

	cases := []struct {
		name     string
		user     string
		title    string
		vt       model.VideoType
		duration int
		want     error
	}{
		{"no user", "", "t", model.VideoShorts, 30, domain.ErrUnauthorized},
		{"blank title", "acc-1", " ", model.VideoShorts, 30, domain.ErrInvalidArgument},
		{"bad type", "acc-1", "t", "podcast", 30, domain.ErrInvalidArgument},
		{"zero duration", "acc-1", "t", model.VideoShorts, 0, domain.ErrInvalidArgument},
		{"too long", "acc-1", "t", model.VideoShorts, model.MaxDurationSeconds + 1, domain.ErrInvalidArgument},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := uc.Create(context.Background(), tc.user, tc.title, tc.vt, tc.duration, ""); !errors.Is(err, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, err)
			}
		})
	}
}

func TestAccountUseCase_EnsureAndMe(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	uc := usecase.NewAccountUseCase(store.Profiles(), store.Projects(), store.Scripts(), newTestLogger())

	p, err := uc.Ensure(ctx, "acc-1", "")
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if p.Credits != model.FreeCredits || p.Plan != model.PlanFree || p.Status != model.StatusInactive {
		t.Fatalf("want free defaults, got %+v", p)
	}
	_ = store.Profiles().ApplyBilling(ctx, nil, "acc-1", model.BillingMutation{Credits: model.Ptr(2)})

	again, err := uc.Ensure(ctx, "acc-1", "late@example.com")
	if err != nil || again.Credits != 2 || again.Email != "late@example.com" {
		t.Fatalf("Ensure must not reset an existing profile: %+v err=%v", again, err)
	}
	if _, err := uc.Ensure(ctx, "", ""); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}

	seedProject(t, store, "acc-1")
	me, err := uc.Me(ctx, "acc-1")
	if err != nil || me.Projects != 1 || me.Scripts != 0 || me.Profile.Credits != 2 {
		t.Fatalf("unexpected summary %+v err=%v", me, err)
	}
}
