//go:build integration

package postgres

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/LucasBuchC/takeone-ai/internal/domain"
	"github.com/LucasBuchC/takeone-ai/internal/domain/model"
)

func TestScriptRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	profiles := NewPostgresProfileRepo(testPool)
	projects := NewPostgresProjectRepo(testPool)
	scripts := NewPostgresScriptRepo(testPool)
	ctx := context.Background()

	t.Run("concurrent appends produce 1..N", func(t *testing.T) {
		cleanup(t)
		seedProfile(t, profiles, "acc-1", 5)
		p, _ := model.NewProject("acc-1", "Launch", model.VideoYouTube, 60, "")
		if err := projects.Save(ctx, nil, p); err != nil {
			t.Fatalf("Save project: %v", err)
		}

		const n = 12
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				s, _ := model.NewScript(p.ID, "content", "brief", model.GenerationParams{Model: "m"})
				if err := scripts.Append(ctx, nil, s); err != nil {
					t.Errorf("Append: %v", err)
				}
			}()
		}
		wg.Wait()

		list, err := scripts.ListByProject(ctx, nil, p.ID)
		if err != nil {
			t.Fatalf("ListByProject: %v", err)
		}
		if len(list) != n {
			t.Fatalf("want %d scripts, got %d", n, len(list))
		}
		versions := make([]int, 0, n)
		for _, s := range list {
			versions = append(versions, s.Version)
		}
		if !sort.SliceIsSorted(versions, func(i, j int) bool { return versions[i] > versions[j] }) {
			t.Fatalf("scripts not ordered by version desc: %v", versions)
		}
		for i, v := range versions {
			if v != n-i {
				t.Fatalf("gap or duplicate in versions: %v", versions)
			}
		}
		if list[0].Params.Model != "m" {
			t.Fatalf("generation params not round-tripped: %+v", list[0].Params)
		}

		summaries, err := projects.ListByUser(ctx, nil, "acc-1")
		if err != nil || len(summaries) != 1 || summaries[0].ScriptCount != n {
			t.Fatalf("unexpected summaries: %+v err=%v", summaries, err)
		}
		count, err := scripts.CountByUser(ctx, nil, "acc-1")
		if err != nil || count != n {
			t.Fatalf("want %d scripts for user, got %d err=%v", n, count, err)
		}
	})

	t.Run("foreign and malformed project ids are not found", func(t *testing.T) {
		cleanup(t)
		seedProfile(t, profiles, "acc-1", 5)
		seedProfile(t, profiles, "acc-2", 5)
		p, _ := model.NewProject("acc-1", "Mine", model.VideoShorts, 30, "")
		if err := projects.Save(ctx, nil, p); err != nil {
			t.Fatalf("Save project: %v", err)
		}
		if _, err := projects.FindByID(ctx, nil, "acc-2", p.ID); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("want ErrNotFound for foreign project, got %v", err)
		}
		if _, err := projects.FindByID(ctx, nil, "acc-1", "not-a-uuid"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("want ErrNotFound for malformed id, got %v", err)
		}
	})
}

func TestBillingEventRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	repo := NewPostgresBillingEventRepo(testPool)
	ctx := context.Background()
	cleanup(t)

	rec := &model.BillingEventRecord{EventID: "evt_1", Type: "invoice.payment_failed", CustomerID: "cus_1", Payload: []byte(`{"id":"evt_1"}`), Processed: true}
	inserted, err := repo.Record(ctx, nil, rec)
	if err != nil || !inserted {
		t.Fatalf("first Record: inserted=%v err=%v", inserted, err)
	}
	inserted, err = repo.Record(ctx, nil, rec)
	if err != nil || inserted {
		t.Fatalf("duplicate Record: inserted=%v err=%v", inserted, err)
	}
	processed, err := repo.IsProcessed(ctx, nil, "evt_1")
	if err != nil || !processed {
		t.Fatalf("IsProcessed: %v %v", processed, err)
	}
	processed, err = repo.IsProcessed(ctx, nil, "evt_unknown")
	if err != nil || processed {
		t.Fatalf("IsProcessed(unknown): %v %v", processed, err)
	}
}
