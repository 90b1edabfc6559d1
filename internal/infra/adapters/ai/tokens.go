package ai

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/LucasBuchC/takeone-ai/internal/domain/model"
	"github.com/LucasBuchC/takeone-ai/internal/domain/ports/adapter"
)

const DefaultEncoding = "cl100k_base"

// TiktokenCounter counts BPE tokens. The encoding is loaded on first use; when
// it cannot be loaded the counter falls back to the chars/4 estimate.
type TiktokenCounter struct {
	encoding string
	once     sync.Once
	enc      *tiktoken.Tiktoken
}

var _ adapter.TokenCounter = (*TiktokenCounter)(nil)

func NewTiktokenCounter(encoding string) *TiktokenCounter {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	return &TiktokenCounter{encoding: encoding}
}

func (c *TiktokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	c.once.Do(func() {
		if enc, err := tiktoken.GetEncoding(c.encoding); err == nil {
			c.enc = enc
		}
	})
	if c.enc == nil {
		return model.EstimateTokens(text)
	}
	return len(c.enc.Encode(text, nil, nil))
}

// EstimateCounter is the offline heuristic.
type EstimateCounter struct{}

func (EstimateCounter) Count(text string) int { return model.EstimateTokens(text) }
