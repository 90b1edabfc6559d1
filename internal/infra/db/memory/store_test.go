//go:build !integration

package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jackc/pgx/v4"

	"github.com/LucasBuchC/takeone-ai/internal/domain"
	"github.com/LucasBuchC/takeone-ai/internal/domain/model"
	"github.com/LucasBuchC/takeone-ai/internal/domain/ports/repository"
)

func seed(t *testing.T, s *Store, id string, credits int) {
	t.Helper()
	p, _ := model.NewProfile(id, "")
	p.Credits = credits
	if _, err := s.Profiles().Ensure(context.Background(), nil, p); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
}

func TestDebitCredit_NeverNegative(t *testing.T) {
	s := NewStore()
	seed(t, s, "acc-1", 2)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Profiles().DebitCredit(context.Background(), nil, "acc-1"); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			} else if !errors.Is(err, domain.ErrInsufficientCredits) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	p, _ := s.Profiles().FindByID(context.Background(), nil, "acc-1")
	if ok != 2 || p.Credits != 0 {
		t.Fatalf("want 2 debits and 0 credits, got %d and %d", ok, p.Credits)
	}
}

func TestWithTx_RollbackRestoresState(t *testing.T) {
	s := NewStore()
	seed(t, s, "acc-1", 1)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if _, err := s.Profiles().DebitCredit(ctx, tx, "acc-1"); err != nil {
			return err
		}
		_, err := s.BillingEvents().Record(ctx, tx, &model.BillingEventRecord{EventID: "evt_1"})
		if err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}

	p, _ := s.Profiles().FindByID(ctx, nil, "acc-1")
	if p.Credits != 1 {
		t.Fatalf("debit should be rolled back, credits=%d", p.Credits)
	}
	if processed, _ := s.BillingEvents().IsProcessed(ctx, nil, "evt_1"); processed {
		t.Fatal("event row should be rolled back")
	}
}

func TestScripts_VersionsPerProject(t *testing.T) {
	s := NewStore()
	seed(t, s, "acc-1", 5)
	ctx := context.Background()

	a, _ := model.NewProject("acc-1", "A", model.VideoYouTube, 60, "")
	b, _ := model.NewProject("acc-1", "B", model.VideoTikTok, 30, "")
	for _, p := range []*model.Project{a, b} {
		if err := s.Projects().Save(ctx, nil, p); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sc, _ := model.NewScript(a.ID, "text", "brief", model.GenerationParams{})
			_ = s.Scripts().Append(ctx, nil, sc)
		}()
	}
	wg.Wait()
	sc, _ := model.NewScript(b.ID, "text", "brief", model.GenerationParams{})
	if err := s.Scripts().Append(ctx, nil, sc); err != nil || sc.Version != 1 {
		t.Fatalf("first script of project b should be version 1, got %d err=%v", sc.Version, err)
	}

	list, _ := s.Scripts().ListByProject(ctx, nil, a.ID)
	for i, sc := range list {
		if sc.Version != 8-i {
			t.Fatalf("unexpected version order at %d: %d", i, sc.Version)
		}
	}
	if n, _ := s.Scripts().CountByUser(ctx, nil, "acc-1"); n != 9 {
		t.Fatalf("want 9 scripts, got %d", n)
	}
}

func TestFindByExternal_PrefersSubscription(t *testing.T) {
	s := NewStore()
	seed(t, s, "acc-1", 5)
	seed(t, s, "acc-2", 5)
	ctx := context.Background()

	_ = s.Profiles().ApplyBilling(ctx, nil, "acc-1", model.BillingMutation{CustomerID: model.Ptr("cus_shared")})
	_ = s.Profiles().ApplyBilling(ctx, nil, "acc-2", model.BillingMutation{SubscriptionID: model.Ptr("sub_2")})

	p, err := s.Profiles().FindByExternal(ctx, nil, "cus_shared", "sub_2")
	if err != nil || p.ID != "acc-2" {
		t.Fatalf("want acc-2, got %+v err=%v", p, err)
	}
	p, err = s.Profiles().FindByExternal(ctx, nil, "cus_shared", "")
	if err != nil || p.ID != "acc-1" {
		t.Fatalf("want acc-1, got %+v err=%v", p, err)
	}
	if _, err := s.Profiles().FindByExternal(ctx, nil, "", ""); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestProjects_Ownership(t *testing.T) {
	s := NewStore()
	seed(t, s, "acc-1", 5)
	ctx := context.Background()

	p, _ := model.NewProject("acc-1", "Mine", model.VideoShorts, 45, "")
	if err := s.Projects().Save(ctx, nil, p); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := s.Projects().FindByID(ctx, nil, "acc-2", p.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	orphan, _ := model.NewProject("ghost", "x", model.VideoShorts, 45, "")
	if err := s.Projects().Save(ctx, nil, orphan); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument for unknown owner, got %v", err)
	}
}
