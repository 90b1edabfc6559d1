package ai

import (
	"context"

	"github.com/LucasBuchC/takeone-ai/internal/domain/ports/adapter"
)

// LimitedStreamer caps the number of concurrently open upstream streams.
type LimitedStreamer struct {
	inner adapter.CompletionStreamer
	sem   chan struct{}
}

func NewLimitedStreamer(inner adapter.CompletionStreamer, max int) adapter.CompletionStreamer {
	if max <= 0 {
		return inner
	}
	return &LimitedStreamer{inner: inner, sem: make(chan struct{}, max)}
}

func (l *LimitedStreamer) Provider() string { return l.inner.Provider() }
func (l *LimitedStreamer) Model() string    { return l.inner.Model() }

// Stream waits for a free slot and holds it until the returned channel closes.
func (l *LimitedStreamer) Stream(ctx context.Context, req adapter.CompletionRequest) (<-chan adapter.Chunk, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	in, err := l.inner.Stream(ctx, req)
	if err != nil {
		<-l.sem
		return nil, err
	}
	out := make(chan adapter.Chunk, cap(in))
	go func() {
		defer func() { <-l.sem }()
		defer close(out)
		for c := range in {
			if !send(ctx, out, c) {
				// drain so the producer can exit
				for range in {
				}
				return
			}
		}
	}()
	return out, nil
}
