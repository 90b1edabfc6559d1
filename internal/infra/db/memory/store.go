// Package memory is an in-process implementation of the repository ports.
// It backs dev mode (database.driver: memory) and unit tests. WithTx holds a
// store-wide lock and restores a snapshot when fn fails.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"

	"github.com/LucasBuchC/takeone-ai/internal/domain"
	"github.com/LucasBuchC/takeone-ai/internal/domain/model"
	"github.com/LucasBuchC/takeone-ai/internal/domain/ports/repository"
)

var (
	_ repository.TransactionManager     = (*Store)(nil)
	_ repository.ProfileRepository      = (*ProfileRepo)(nil)
	_ repository.ProjectRepository      = (*ProjectRepo)(nil)
	_ repository.ScriptRepository       = (*ScriptRepo)(nil)
	_ repository.BillingEventRepository = (*BillingEventRepo)(nil)
)

type state struct {
	profiles map[string]model.Profile
	projects map[string]model.Project
	scripts  map[string][]model.Script
	events   map[string]model.BillingEventRecord
}

func newState() state {
	return state{
		profiles: map[string]model.Profile{},
		projects: map[string]model.Project{},
		scripts:  map[string][]model.Script{},
		events:   map[string]model.BillingEventRecord{},
	}
}

func (s state) clone() state {
	c := newState()
	for k, v := range s.profiles {
		c.profiles[k] = v
	}
	for k, v := range s.projects {
		c.projects[k] = v
	}
	for k, v := range s.scripts {
		c.scripts[k] = append([]model.Script(nil), v...)
	}
	for k, v := range s.events {
		c.events[k] = v
	}
	return c
}

type memTx struct{}

type Store struct {
	mu sync.Mutex
	st state
}

func NewStore() *Store {
	return &Store{st: newState()}
}

func (s *Store) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.st.clone()
	if err := fn(ctx, &memTx{}); err != nil {
		s.st = snap
		return err
	}
	return nil
}

// lock is a no-op inside WithTx, which already holds the mutex.
func (s *Store) lock(tx repository.Tx) func() {
	if _, ok := tx.(*memTx); ok {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) Profiles() *ProfileRepo {
	return &ProfileRepo{s: s}
}

func (s *Store) Projects() *ProjectRepo {
	return &ProjectRepo{s: s}
}

func (s *Store) Scripts() *ScriptRepo {
	return &ScriptRepo{s: s}
}

func (s *Store) BillingEvents() *BillingEventRepo {
	return &BillingEventRepo{s: s}
}

// ---- profiles ----

type ProfileRepo struct{ s *Store }

func cloneProfile(p model.Profile) *model.Profile {
	for _, t := range []**time.Time{&p.PeriodStart, &p.PeriodEnd, &p.CreditsResetAt, &p.BillingEventAt} {
		if *t != nil {
			v := **t
			*t = &v
		}
	}
	return &p
}

func (r *ProfileRepo) Ensure(ctx context.Context, tx repository.Tx, p *model.Profile) (*model.Profile, error) {
	defer r.s.lock(tx)()
	cur, ok := r.s.st.profiles[p.ID]
	if !ok {
		cur = *cloneProfile(*p)
	} else if cur.Email == "" && p.Email != "" {
		cur.Email = p.Email
	}
	r.s.st.profiles[p.ID] = cur
	return cloneProfile(cur), nil
}

func (r *ProfileRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Profile, error) {
	defer r.s.lock(tx)()
	p, ok := r.s.st.profiles[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneProfile(p), nil
}

func (r *ProfileRepo) FindByExternal(ctx context.Context, tx repository.Tx, customerID, subscriptionID string) (*model.Profile, error) {
	customerID, subscriptionID = strings.TrimSpace(customerID), strings.TrimSpace(subscriptionID)
	defer r.s.lock(tx)()
	var byCustomer *model.Profile
	for _, p := range r.s.st.profiles {
		if subscriptionID != "" && p.SubscriptionID == subscriptionID {
			return cloneProfile(p), nil
		}
		if customerID != "" && p.CustomerID == customerID && byCustomer == nil {
			byCustomer = cloneProfile(p)
		}
	}
	if byCustomer == nil {
		return nil, domain.ErrNotFound
	}
	return byCustomer, nil
}

func (r *ProfileRepo) ApplyBilling(ctx context.Context, tx repository.Tx, id string, m model.BillingMutation) error {
	defer r.s.lock(tx)()
	p, ok := r.s.st.profiles[id]
	if !ok {
		return domain.ErrNotFound
	}
	m.Apply(&p)
	if p.Credits < 0 {
		return domain.ErrInvalidArgument
	}
	r.s.st.profiles[id] = *cloneProfile(p)
	return nil
}

func (r *ProfileRepo) DebitCredit(ctx context.Context, tx repository.Tx, id string) (int, error) {
	defer r.s.lock(tx)()
	p, ok := r.s.st.profiles[id]
	if !ok || p.Credits <= 0 {
		return 0, domain.ErrInsufficientCredits
	}
	p.Credits--
	p.UpdatedAt = time.Now()
	r.s.st.profiles[id] = p
	return p.Credits, nil
}

// ---- projects ----

type ProjectRepo struct{ s *Store }

func (r *ProjectRepo) Save(ctx context.Context, tx repository.Tx, p *model.Project) error {
	defer r.s.lock(tx)()
	if cur, ok := r.s.st.projects[p.ID]; ok && cur.UserID != p.UserID {
		return domain.ErrNotFound
	}
	if _, ok := r.s.st.profiles[p.UserID]; !ok {
		return domain.ErrInvalidArgument
	}
	r.s.st.projects[p.ID] = *p
	return nil
}

func (r *ProjectRepo) FindByID(ctx context.Context, tx repository.Tx, userID, id string) (*model.Project, error) {
	defer r.s.lock(tx)()
	p, ok := r.s.st.projects[id]
	if !ok || p.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (r *ProjectRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.ProjectSummary, error) {
	defer r.s.lock(tx)()
	var out []*model.ProjectSummary
	for _, p := range r.s.st.projects {
		if p.UserID == userID {
			out = append(out, &model.ProjectSummary{Project: p, ScriptCount: len(r.s.st.scripts[p.ID])})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *ProjectRepo) UpdateLastPrompt(ctx context.Context, tx repository.Tx, id, prompt string) error {
	defer r.s.lock(tx)()
	p, ok := r.s.st.projects[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.LastPrompt = prompt
	p.UpdatedAt = time.Now()
	r.s.st.projects[id] = p
	return nil
}

func (r *ProjectRepo) CountByUser(ctx context.Context, tx repository.Tx, userID string) (int, error) {
	defer r.s.lock(tx)()
	n := 0
	for _, p := range r.s.st.projects {
		if p.UserID == userID {
			n++
		}
	}
	return n, nil
}

// ---- scripts ----

type ScriptRepo struct{ s *Store }

func (r *ScriptRepo) Append(ctx context.Context, tx repository.Tx, s *model.Script) error {
	defer r.s.lock(tx)()
	if _, ok := r.s.st.projects[s.ProjectID]; !ok {
		return domain.ErrNotFound
	}
	list := r.s.st.scripts[s.ProjectID]
	last := 0
	for _, existing := range list {
		if existing.Version > last {
			last = existing.Version
		}
	}
	s.Version = last + 1
	r.s.st.scripts[s.ProjectID] = append(list, *s)
	return nil
}

func (r *ScriptRepo) ListByProject(ctx context.Context, tx repository.Tx, projectID string) ([]*model.Script, error) {
	defer r.s.lock(tx)()
	list := r.s.st.scripts[projectID]
	out := make([]*model.Script, 0, len(list))
	for i := range list {
		s := list[i]
		out = append(out, &s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

func (r *ScriptRepo) CountByUser(ctx context.Context, tx repository.Tx, userID string) (int, error) {
	defer r.s.lock(tx)()
	n := 0
	for id, p := range r.s.st.projects {
		if p.UserID == userID {
			n += len(r.s.st.scripts[id])
		}
	}
	return n, nil
}

// ---- billing events ----

type BillingEventRepo struct{ s *Store }

func (r *BillingEventRepo) IsProcessed(ctx context.Context, tx repository.Tx, eventID string) (bool, error) {
	defer r.s.lock(tx)()
	rec, ok := r.s.st.events[eventID]
	return ok && rec.Processed, nil
}

func (r *BillingEventRepo) Record(ctx context.Context, tx repository.Tx, rec *model.BillingEventRecord) (bool, error) {
	defer r.s.lock(tx)()
	if _, ok := r.s.st.events[rec.EventID]; ok {
		return false, nil
	}
	r.s.st.events[rec.EventID] = *rec
	return true, nil
}

// Events returns a copy of the recorded audit rows, for inspection in dev and tests.
func (r *BillingEventRepo) Events() []model.BillingEventRecord {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]model.BillingEventRecord, 0, len(r.s.st.events))
	for _, e := range r.s.st.events {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventID < out[j].EventID })
	return out
}
