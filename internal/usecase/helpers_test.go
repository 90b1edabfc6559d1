//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/LucasBuchC/takeone-ai/internal/domain/model"
	"github.com/LucasBuchC/takeone-ai/internal/domain/ports/adapter"
	"github.com/LucasBuchC/takeone-ai/internal/infra/db/memory"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// fakeStreamer replays fragments. hold, when set, blocks after the first
// fragment until closed.
type fakeStreamer struct {
	mu        sync.Mutex
	calls     int
	lastReq   adapter.CompletionRequest
	fragments []string
	openErr   error
	midErr    error
	hold      chan struct{}
}

func (f *fakeStreamer) Provider() string { return "fake" }
func (f *fakeStreamer) Model() string    { return "fake-model" }

func (f *fakeStreamer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeStreamer) Stream(ctx context.Context, req adapter.CompletionRequest) (<-chan adapter.Chunk, error) {
	f.mu.Lock()
	f.calls++
	f.lastReq = req
	f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	out := make(chan adapter.Chunk)
	go func() {
		defer close(out)
		for i, frag := range f.fragments {
			select {
			case out <- adapter.Chunk{Content: frag}:
			case <-ctx.Done():
				return
			}
			if i == 0 && f.hold != nil {
				select {
				case <-f.hold:
				case <-ctx.Done():
					return
				}
			}
		}
		if f.midErr != nil {
			select {
			case out <- adapter.Chunk{Err: f.midErr}:
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}

type fakeLimiter struct {
	allow bool
	err   error
}

func (f fakeLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return f.allow, f.err
}

var errBoom = errors.New("boom")

func seedProfile(t *testing.T, store *memory.Store, id string, credits int) *model.Profile {
	t.Helper()
	p, err := model.NewProfile(id, id+"@example.com")
	if err != nil {
		t.Fatalf("NewProfile: %v", err)
	}
	p.Credits = credits
	got, err := store.Profiles().Ensure(context.Background(), nil, p)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	return got
}

func seedProject(t *testing.T, store *memory.Store, userID string) *model.Project {
	t.Helper()
	p, err := model.NewProject(userID, "Launch video", model.VideoTikTok, 45, "")
	if err != nil {
		t.Fatalf("NewProject: %v", err)
	}
	if err := store.Projects().Save(context.Background(), nil, p); err != nil {
		t.Fatalf("Save project: %v", err)
	}
	return p
}

func credits(t *testing.T, store *memory.Store, id string) int {
	t.Helper()
	p, err := store.Profiles().FindByID(context.Background(), nil, id)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	return p.Credits
}
