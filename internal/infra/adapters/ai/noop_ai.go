package ai

import (
	"context"
	"strings"
	"time"

	"github.com/LucasBuchC/takeone-ai/internal/domain/ports/adapter"
)

var _ adapter.CompletionStreamer = (*NoopStreamer)(nil)

const noopScript = `## HOOK
Stop scrolling: this is the one trick nobody tells you.

## INTRODUCTION
Today we break the topic down in under a minute.

## DEVELOPMENT
First, the context. Then, the practical steps. Finally, the common mistake to avoid.

## CONCLUSION & CTA
Try it today and follow for the next part.`

// NoopStreamer replays a canned script word by word. Used in dev mode.
type NoopStreamer struct {
	Delay time.Duration
}

func (NoopStreamer) Provider() string { return "noop" }
func (NoopStreamer) Model() string    { return "noop" }

func (n NoopStreamer) Stream(ctx context.Context, _ adapter.CompletionRequest) (<-chan adapter.Chunk, error) {
	out := make(chan adapter.Chunk)
	go func() {
		defer close(out)
		words := strings.SplitAfter(noopScript, " ")
		for _, w := range words {
			if n.Delay > 0 {
				select {
				case <-time.After(n.Delay):
				case <-ctx.Done():
					return
				}
			}
			if !send(ctx, out, adapter.Chunk{Content: w}) {
				return
			}
		}
	}()
	return out, nil
}
