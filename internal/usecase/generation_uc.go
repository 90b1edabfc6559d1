package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"github.com/LucasBuchC/takeone-ai/internal/domain"
	"github.com/LucasBuchC/takeone-ai/internal/domain/model"
	"github.com/LucasBuchC/takeone-ai/internal/domain/ports/adapter"
	"github.com/LucasBuchC/takeone-ai/internal/domain/ports/repository"
	"github.com/LucasBuchC/takeone-ai/internal/infra/logging"
	"github.com/LucasBuchC/takeone-ai/internal/infra/metrics"
)

// Compile-time check
var _ GenerationUseCase = (*generationUC)(nil)

type GenerateRequest struct {
	AccountID string
	ProjectID string
	Prompt    string
	VideoType model.VideoType
	Duration  int
	Tone      string
}

// GenerationUseCase runs one credit-metered streaming generation.
type GenerationUseCase interface {
	// Begin checks entitlement and input, opens the upstream stream and waits
	// for its first fragment. Every error it returns happens before any byte
	// reaches the caller.
	Begin(ctx context.Context, req GenerateRequest) (*GenerationSession, error)
}

type GenerationOptions struct {
	Temperature float64
	TopP        float64
	MaxTokens   int
	// RateLimit is generations per account per RateWindow; 0 disables.
	RateLimit  int
	RateWindow time.Duration
}

type generationUC struct {
	profiles repository.ProfileRepository
	projects repository.ProjectRepository
	scripts  repository.ScriptRepository
	tm       repository.TransactionManager
	ai       adapter.CompletionStreamer
	tokens   adapter.TokenCounter
	limiter  adapter.RateLimiter
	opts     GenerationOptions
	log      *zerolog.Logger
}

// NewGenerationUseCase wires the generation flow. limiter may be nil.
func NewGenerationUseCase(
	profiles repository.ProfileRepository,
	projects repository.ProjectRepository,
	scripts repository.ScriptRepository,
	tm repository.TransactionManager,
	ai adapter.CompletionStreamer,
	tokens adapter.TokenCounter,
	limiter adapter.RateLimiter,
	opts GenerationOptions,
	logger *zerolog.Logger,
) *generationUC {
	return &generationUC{
		profiles: profiles,
		projects: projects,
		scripts:  scripts,
		tm:       tm,
		ai:       ai,
		tokens:   tokens,
		limiter:  limiter,
		opts:     opts,
		log:      logger,
	}
}

func (g *generationUC) Begin(ctx context.Context, req GenerateRequest) (*GenerationSession, error) {
	if req.AccountID == "" {
		return nil, domain.ErrUnauthorized
	}
	profile, err := g.profiles.FindByID(ctx, repository.NoTX, req.AccountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}
	if !profile.HasCredits() {
		metrics.PrecheckBlocked("no_credits")
		return nil, domain.ErrInsufficientCredits
	}

	req.Prompt = strings.TrimSpace(req.Prompt)
	req.ProjectID = strings.TrimSpace(req.ProjectID)
	if req.Prompt == "" || req.ProjectID == "" {
		metrics.PrecheckBlocked("invalid_request")
		return nil, domain.ErrInvalidRequest
	}
	if (req.VideoType != "" && !req.VideoType.Valid()) || req.Duration < 0 || req.Duration > model.MaxDurationSeconds {
		metrics.PrecheckBlocked("invalid_request")
		return nil, domain.ErrInvalidRequest
	}

	project, err := g.projects.FindByID(ctx, repository.NoTX, req.AccountID, req.ProjectID)
	if err != nil {
		return nil, err
	}
	if req.VideoType == "" {
		req.VideoType = project.VideoType
	}
	if req.Duration == 0 {
		req.Duration = project.Duration
	}
	if strings.TrimSpace(req.Tone) == "" {
		req.Tone = DefaultTone
	}

	if err := g.checkRate(ctx, req.AccountID); err != nil {
		return nil, err
	}

	messages := scriptMessages(req.VideoType, req.Duration, req.Tone, req.Prompt)
	tokensIn := 0
	if g.tokens != nil {
		for _, m := range messages {
			tokensIn += g.tokens.Count(m.Content)
		}
	}

	start := time.Now()
	streamCtx, cancel := context.WithCancel(ctx)
	chunks, err := g.ai.Stream(streamCtx, adapter.CompletionRequest{
		Messages:    messages,
		Temperature: g.opts.Temperature,
		TopP:        g.opts.TopP,
		MaxTokens:   g.opts.MaxTokens,
	})
	if err != nil {
		cancel()
		g.observe("upstream_error", tokensIn, 0, start)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if !errors.Is(err, domain.ErrUpstreamFailure) {
			err = fmt.Errorf("%w: %v", domain.ErrUpstreamFailure, err)
		}
		return nil, err
	}

	var first adapter.Chunk
	select {
	case c, ok := <-chunks:
		if !ok {
			cancel()
			g.observe("upstream_error", tokensIn, 0, start)
			return nil, fmt.Errorf("%w: empty completion", domain.ErrUpstreamFailure)
		}
		if c.Err != nil {
			cancel()
			g.observe("upstream_error", tokensIn, 0, start)
			return nil, c.Err
		}
		first = c
	case <-ctx.Done():
		cancel()
		g.observe("client_gone", tokensIn, 0, start)
		return nil, ctx.Err()
	}
	metrics.ObserveFirstChunk(g.ai.Provider(), g.ai.Model(), time.Since(start).Milliseconds())

	return &GenerationSession{
		uc:       g,
		req:      req,
		first:    first,
		chunks:   chunks,
		cancel:   cancel,
		start:    start,
		tokensIn: tokensIn,
	}, nil
}

// checkRate fails open when the limiter backend is unavailable.
func (g *generationUC) checkRate(ctx context.Context, accountID string) error {
	if g.limiter == nil || g.opts.RateLimit <= 0 {
		return nil
	}
	ok, err := g.limiter.Allow(ctx, GenerationRateKey(accountID), g.opts.RateLimit, g.opts.RateWindow)
	if err != nil {
		logging.With(ctx, g.log).Warn().Err(err).Msg("rate limiter unavailable")
		return nil
	}
	if !ok {
		metrics.PrecheckBlocked("rate_limited")
		return domain.ErrRateLimited
	}
	return nil
}

func GenerationRateKey(accountID string) string {
	return "rate_limit:" + accountID + ":generate"
}

func (g *generationUC) observe(result string, tokensIn, tokensOut int, start time.Time) {
	metrics.ObserveGeneration(g.ai.Provider(), g.ai.Model(), result, tokensIn, tokensOut, time.Since(start).Milliseconds())
}

// GenerationSession is an opened upstream stream waiting to be relayed.
type GenerationSession struct {
	uc       *generationUC
	req      GenerateRequest
	first    adapter.Chunk
	chunks   <-chan adapter.Chunk
	cancel   context.CancelFunc
	start    time.Time
	tokensIn int
}

// Close releases the upstream stream. Relay calls it; it is safe to call again.
func (s *GenerationSession) Close() { s.cancel() }

// Relay forwards every fragment to emit in arrival order and, once the
// upstream completes, persists the script and debits one credit in a single
// transaction. Nothing is persisted when the upstream fails, emit fails or
// ctx ends first.
func (s *GenerationSession) Relay(ctx context.Context, emit func(fragment string) error) (*model.Script, error) {
	defer s.Close()
	var content strings.Builder
	forward := func(fragment string) error {
		content.WriteString(fragment)
		if err := emit(fragment); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrClientGone, err)
		}
		return nil
	}

	if err := forward(s.first.Content); err != nil {
		return nil, s.abort(ctx, "client_gone", content.String(), err)
	}
	for {
		select {
		case c, ok := <-s.chunks:
			if !ok {
				return s.persist(ctx, content.String())
			}
			if c.Err != nil {
				return nil, s.abort(ctx, "upstream_error", content.String(), c.Err)
			}
			if err := forward(c.Content); err != nil {
				return nil, s.abort(ctx, "client_gone", content.String(), err)
			}
		case <-ctx.Done():
			return nil, s.abort(ctx, "client_gone", content.String(), fmt.Errorf("%w: %v", domain.ErrClientGone, ctx.Err()))
		}
	}
}

func (s *GenerationSession) abort(ctx context.Context, result, partial string, err error) error {
	s.uc.observe(result, s.tokensIn, model.EstimateTokens(partial), s.start)
	logging.With(ctx, s.uc.log).Warn().Err(err).
		Str("result", result).
		Str("project_id", s.req.ProjectID).
		Int("partial_chars", len(partial)).
		Msg("generation aborted")
	return err
}

func (s *GenerationSession) persist(ctx context.Context, content string) (*model.Script, error) {
	if err := ctx.Err(); err != nil {
		return nil, s.abort(ctx, "client_gone", content, fmt.Errorf("%w: %v", domain.ErrClientGone, err))
	}
	elapsed := time.Since(s.start)
	script, err := model.NewScript(s.req.ProjectID, content, s.req.Prompt, model.GenerationParams{
		TokensUsed:     model.EstimateTokens(content),
		GenerationTime: elapsed.Seconds(),
		Model:          s.uc.ai.Model(),
		VideoType:      string(s.req.VideoType),
		Duration:       s.req.Duration,
		Tone:           s.req.Tone,
	})
	if err != nil {
		return nil, s.abort(ctx, "upstream_error", content, fmt.Errorf("%w: blank completion", domain.ErrUpstreamFailure))
	}

	var remaining int
	err = s.uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		if remaining, err = s.uc.profiles.DebitCredit(ctx, tx, s.req.AccountID); err != nil {
			return err
		}
		if err := s.uc.scripts.Append(ctx, tx, script); err != nil {
			return err
		}
		return s.uc.projects.UpdateLastPrompt(ctx, tx, s.req.ProjectID, s.req.Prompt)
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientCredits) {
			return nil, s.abort(ctx, "no_credits", content, err)
		}
		if !errors.Is(err, domain.ErrPersistenceFailure) {
			err = fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
		}
		return nil, s.abort(ctx, "persist_error", content, err)
	}

	s.uc.observe("persisted", s.tokensIn, script.Params.TokensUsed, s.start)
	logging.With(ctx, s.uc.log).Info().
		Str("project_id", script.ProjectID).
		Int("version", script.Version).
		Int("credits_remaining", remaining).
		Dur("elapsed", elapsed).
		Msg("script generated")
	return script, nil
}
