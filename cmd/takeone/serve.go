package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/LucasBuchC/takeone-ai/internal/config"
	"github.com/LucasBuchC/takeone-ai/internal/domain/model"
	"github.com/LucasBuchC/takeone-ai/internal/domain/ports/adapter"
	"github.com/LucasBuchC/takeone-ai/internal/domain/ports/repository"
	aiAdapters "github.com/LucasBuchC/takeone-ai/internal/infra/adapters/ai"
	payAdapters "github.com/LucasBuchC/takeone-ai/internal/infra/adapters/payment"
	"github.com/LucasBuchC/takeone-ai/internal/infra/api"
	"github.com/LucasBuchC/takeone-ai/internal/infra/db/memory"
	pg "github.com/LucasBuchC/takeone-ai/internal/infra/db/postgres"
	"github.com/LucasBuchC/takeone-ai/internal/infra/logging"
	"github.com/LucasBuchC/takeone-ai/internal/infra/metrics"
	red "github.com/LucasBuchC/takeone-ai/internal/infra/redis"
	"github.com/LucasBuchC/takeone-ai/internal/usecase"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(cfgPath, devMode)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		return serve(cmd.Context(), cfg)
	},
}

type stores struct {
	tm       repository.TransactionManager
	profiles repository.ProfileRepository
	projects repository.ProjectRepository
	scripts  repository.ScriptRepository
	events   repository.BillingEventRepository
	pool     *pgxpool.Pool
}

func openStores(ctx context.Context, cfg config.DatabaseConfig) (*stores, error) {
	if cfg.Driver == "memory" {
		m := memory.NewStore()
		return &stores{tm: m, profiles: m.Profiles(), projects: m.Projects(), scripts: m.Scripts(), events: m.BillingEvents()}, nil
	}
	pool, err := pg.NewPgxPool(ctx, cfg.URL, cfg.MaxConns)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	return &stores{
		tm:       pg.NewTxManager(pool),
		profiles: pg.NewPostgresProfileRepo(pool),
		projects: pg.NewPostgresProjectRepo(pool),
		scripts:  pg.NewPostgresScriptRepo(pool),
		events:   pg.NewPostgresBillingEventRepo(pool),
		pool:     pool,
	}, nil
}

func newStreamer(ctx context.Context, cfg config.AIConfig) (adapter.CompletionStreamer, error) {
	switch cfg.Provider {
	case "azure":
		return aiAdapters.NewAzureOpenAIStreamer(cfg.AzureEndpoint, cfg.AzureAPIKey, cfg.AzureDeployment, cfg.AzureAPIVersion, nil)
	case "openai":
		return aiAdapters.NewOpenAIStreamer(cfg.OpenAIKey, cfg.DefaultModel, cfg.OpenAIBaseURL, nil)
	case "gemini":
		return aiAdapters.NewGeminiStreamer(ctx, cfg.GeminiKey, "", cfg.DefaultModel)
	case "noop":
		return aiAdapters.NoopStreamer{Delay: 20 * time.Millisecond}, nil
	}
	return nil, fmt.Errorf("ai.provider %q is not supported", cfg.Provider)
}

func newGateway(cfg config.StripeConfig, dev bool, logger *zerolog.Logger) (adapter.PaymentGateway, error) {
	if cfg.SecretKey == "" && dev {
		logger.Warn().Msg("stripe.secret_key not set; using noop payment gateway")
		return payAdapters.NewNoopGateway(), nil
	}
	return payAdapters.NewStripeGateway(cfg.SecretKey)
}

func newLimiter(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (adapter.RateLimiter, func()) {
	if cfg.Redis.URL == "" || cfg.RateLimit.Generations <= 0 {
		return nil, func() {}
	}
	client, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable; generation rate limit disabled")
		return nil, func() {}
	}
	return red.NewRateLimiter(client), func() { _ = client.Close() }
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	st, err := openStores(ctx, cfg.Database)
	if err != nil {
		return err
	}
	if st.pool != nil {
		defer st.pool.Close()
	}

	streamer, err := newStreamer(ctx, cfg.AI)
	if err != nil {
		return fmt.Errorf("ai: %w", err)
	}
	logger.Info().Str("provider", streamer.Provider()).Str("model", streamer.Model()).Msg("ai streamer ready")
	streamer = aiAdapters.NewLimitedStreamer(streamer, cfg.AI.ConcurrentLimit)

	gateway, err := newGateway(cfg.Stripe, cfg.Runtime.Dev, logger)
	if err != nil {
		return fmt.Errorf("payment: %w", err)
	}
	var verifier adapter.WebhookVerifier
	if cfg.Stripe.WebhookSecret != "" {
		verifier = payAdapters.NewStripeWebhookVerifier(cfg.Stripe.WebhookSecret)
	} else {
		logger.Warn().Msg("stripe.webhook_secret not set; webhook endpoint disabled")
	}
	limiter, closeLimiter := newLimiter(ctx, cfg, logger)
	defer closeLimiter()

	prices := model.NewPriceTable(cfg.Stripe.PriceCreator, cfg.Stripe.PricePro, cfg.Stripe.PriceBusiness)
	accounts := usecase.NewAccountUseCase(st.profiles, st.projects, st.scripts, logger)
	srv := api.NewServer(api.Deps{
		Auth:     api.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.CookieName),
		Accounts: accounts,
		Projects: usecase.NewProjectUseCase(st.projects, st.scripts, logger),
		Generate: usecase.NewGenerationUseCase(st.profiles, st.projects, st.scripts, st.tm,
			streamer, aiAdapters.NewTiktokenCounter(aiAdapters.DefaultEncoding), limiter,
			usecase.GenerationOptions{
				Temperature: cfg.AI.Temperature,
				TopP:        cfg.AI.TopP,
				MaxTokens:   cfg.AI.MaxTokens,
				RateLimit:   cfg.RateLimit.Generations,
				RateWindow:  cfg.RateLimit.Window,
			}, logger),
		Checkout:       usecase.NewCheckoutUseCase(st.profiles, gateway, prices, cfg.HTTP.SiteURL, logger),
		Billing:        usecase.NewBillingUseCase(st.profiles, st.events, st.tm, gateway, prices, logger),
		Verifier:       verifier,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		StreamTimeout:  cfg.HTTP.StreamTimeout,
	}, logger)

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", httpServer.Addr).Str("gateway", gateway.Name()).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutdown requested")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(sctx)
	})
	if st.pool != nil {
		g.Go(func() error {
			reportPoolStats(gctx, st.pool, 15*time.Second)
			return nil
		})
	}
	return g.Wait()
}

func reportPoolStats(ctx context.Context, pool *pgxpool.Pool, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		s := pool.Stat()
		metrics.SetDBPoolStats(s.TotalConns(), s.IdleConns(), s.AcquiredConns())
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
