package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/azure"
	"github.com/openai/openai-go/v2/option"

	"github.com/LucasBuchC/takeone-ai/internal/domain"
	"github.com/LucasBuchC/takeone-ai/internal/domain/ports/adapter"
)

var _ adapter.CompletionStreamer = (*OpenAIStreamer)(nil)

// OpenAIStreamer streams chat completions from OpenAI or an Azure OpenAI deployment.
type OpenAIStreamer struct {
	client   openai.Client
	provider string
	model    string
}

// NewAzureOpenAIStreamer targets {endpoint}/openai/deployments/{deployment}; the
// deployment name travels as the model.
func NewAzureOpenAIStreamer(endpoint, apiKey, deployment, apiVersion string, hc *http.Client) (*OpenAIStreamer, error) {
	if strings.TrimSpace(endpoint) == "" || apiKey == "" || deployment == "" {
		return nil, errors.New("azure openai: endpoint, api key and deployment are required")
	}
	opts := []option.RequestOption{
		azure.WithEndpoint(strings.TrimRight(endpoint, "/"), apiVersion),
		azure.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if hc != nil {
		opts = append(opts, option.WithHTTPClient(hc))
	}
	return &OpenAIStreamer{client: openai.NewClient(opts...), provider: "azure-openai", model: deployment}, nil
}

// NewOpenAIStreamer talks to api.openai.com, or baseURL when set.
func NewOpenAIStreamer(apiKey, model, baseURL string, hc *http.Client) (*OpenAIStreamer, error) {
	if apiKey == "" {
		return nil, errors.New("openai: empty api key")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if hc != nil {
		opts = append(opts, option.WithHTTPClient(hc))
	}
	return &OpenAIStreamer{client: openai.NewClient(opts...), provider: "openai", model: model}, nil
}

func (s *OpenAIStreamer) Provider() string { return s.provider }
func (s *OpenAIStreamer) Model() string    { return s.model }

func (s *OpenAIStreamer) Stream(ctx context.Context, req adapter.CompletionRequest) (<-chan adapter.Chunk, error) {
	if len(req.Messages) == 0 {
		return nil, domain.ErrInvalidArgument
	}
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(s.model),
		Messages: toOpenAIMessages(req.Messages),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.TopP > 0 {
		params.TopP = openai.Float(req.TopP)
	}

	stream := s.client.Chat.Completions.NewStreaming(ctx, params)
	out := make(chan adapter.Chunk, 16)
	go func() {
		defer close(out)
		defer stream.Close()
		for stream.Next() {
			chunk := stream.Current()
			// Azure sends a leading chunk with only content filter results.
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			if !send(ctx, out, adapter.Chunk{Content: delta}) {
				return
			}
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			send(ctx, out, adapter.Chunk{Err: fmt.Errorf("%w: %s stream: %v", domain.ErrUpstreamFailure, s.provider, err)})
		}
	}()
	return out, nil
}

func toOpenAIMessages(msgs []adapter.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch strings.ToLower(m.Role) {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// send delivers c unless ctx is done first.
func send(ctx context.Context, out chan<- adapter.Chunk, c adapter.Chunk) bool {
	select {
	case out <- c:
		return true
	case <-ctx.Done():
		return false
	}
}
