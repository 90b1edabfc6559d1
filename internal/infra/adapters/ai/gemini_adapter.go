package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/LucasBuchC/takeone-ai/internal/domain"
	"github.com/LucasBuchC/takeone-ai/internal/domain/ports/adapter"
)

var _ adapter.CompletionStreamer = (*GeminiStreamer)(nil)

type GeminiStreamer struct {
	client *genai.Client
	model  string
}

// NewGeminiStreamer creates a Gemini streamer using the official SDK.
func NewGeminiStreamer(ctx context.Context, apiKey, baseURL, model string) (*GeminiStreamer, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiStreamer{client: c, model: model}, nil
}

func (g *GeminiStreamer) Provider() string { return "gemini" }
func (g *GeminiStreamer) Model() string    { return g.model }

func (g *GeminiStreamer) Stream(ctx context.Context, req adapter.CompletionRequest) (<-chan adapter.Chunk, error) {
	system, contents := toGenAIContents(req.Messages)
	if len(contents) == 0 {
		return nil, domain.ErrInvalidArgument
	}
	cfg := &genai.GenerateContentConfig{SystemInstruction: system}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature > 0 {
		t := float32(req.Temperature)
		cfg.Temperature = &t
	}
	if req.TopP > 0 {
		p := float32(req.TopP)
		cfg.TopP = &p
	}

	out := make(chan adapter.Chunk, 16)
	go func() {
		defer close(out)
		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, contents, cfg) {
			if err != nil {
				if ctx.Err() == nil {
					send(ctx, out, adapter.Chunk{Err: fmt.Errorf("%w: gemini stream: %v", domain.ErrUpstreamFailure, err)})
				}
				return
			}
			if text := responseText(resp); text != "" {
				if !send(ctx, out, adapter.Chunk{Content: text}) {
					return
				}
			}
		}
	}()
	return out, nil
}

// toGenAIContents lifts system messages into the system instruction.
func toGenAIContents(msgs []adapter.Message) (*genai.Content, []*genai.Content) {
	var (
		system   *genai.Content
		contents []*genai.Content
	)
	for _, m := range msgs {
		switch strings.ToLower(m.Role) {
		case "system":
			if system == nil {
				system = &genai.Content{}
			}
			system.Parts = append(system.Parts, &genai.Part{Text: m.Content})
		case "assistant", "model":
			contents = append(contents, &genai.Content{Role: "model", Parts: []*genai.Part{{Text: m.Content}}})
		default:
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: m.Content}}})
		}
	}
	return system, contents
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil && !p.Thought {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}
