//go:build !integration

package ai

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/LucasBuchC/takeone-ai/internal/domain/ports/adapter"
)

type gatedStreamer struct {
	release chan struct{}
	open    atomic.Int32
	peak    atomic.Int32
}

func (g *gatedStreamer) Provider() string { return "gated" }
func (g *gatedStreamer) Model() string    { return "gated" }

func (g *gatedStreamer) Stream(ctx context.Context, _ adapter.CompletionRequest) (<-chan adapter.Chunk, error) {
	n := g.open.Add(1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	out := make(chan adapter.Chunk, 1)
	go func() {
		defer close(out)
		defer g.open.Add(-1)
		<-g.release
		out <- adapter.Chunk{Content: "x"}
	}()
	return out, nil
}

func TestLimitedStreamer_CapsConcurrency(t *testing.T) {
	inner := &gatedStreamer{release: make(chan struct{})}
	l := NewLimitedStreamer(inner, 2)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch, err := l.Stream(context.Background(), adapter.CompletionRequest{})
			if err != nil {
				t.Errorf("Stream: %v", err)
				return
			}
			for range ch {
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(inner.release)
	wg.Wait()

	require.LessOrEqual(t, inner.peak.Load(), int32(2))
}

func TestLimitedStreamer_AcquireHonoursContext(t *testing.T) {
	inner := &gatedStreamer{release: make(chan struct{})}
	defer close(inner.release)
	l := NewLimitedStreamer(inner, 1)

	_, err := l.Stream(context.Background(), adapter.CompletionRequest{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Stream(ctx, adapter.CompletionRequest{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLimitedStreamer_ZeroIsPassthrough(t *testing.T) {
	inner := NoopStreamer{}
	require.Equal(t, adapter.CompletionStreamer(inner), NewLimitedStreamer(inner, 0))
}

func TestNoopStreamer_EmitsSections(t *testing.T) {
	ch, err := NoopStreamer{}.Stream(context.Background(), adapter.CompletionRequest{})
	require.NoError(t, err)
	text, err := collect(t, ch)
	require.NoError(t, err)
	require.Equal(t, noopScript, text)
	require.Contains(t, text, "## CONCLUSION & CTA")
}

func TestEstimateCounter(t *testing.T) {
	require.Equal(t, 0, EstimateCounter{}.Count(""))
	require.Equal(t, 3, EstimateCounter{}.Count("twelve chars"))
}
