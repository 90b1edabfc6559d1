// Package api is the HTTP surface: generation streaming, billing bridges,
// the processor webhook and the dashboard reads.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/LucasBuchC/takeone-ai/internal/domain/ports/adapter"
	"github.com/LucasBuchC/takeone-ai/internal/usecase"
)

// maxWebhookBytes caps webhook bodies; processor events are far smaller.
const maxWebhookBytes = 1 << 20

type Deps struct {
	Auth     *AuthManager
	Accounts usecase.AccountUseCase
	Projects usecase.ProjectUseCase
	Generate usecase.GenerationUseCase
	Checkout usecase.CheckoutUseCase
	Billing  usecase.BillingUseCase
	// Verifier is nil when no webhook secret is configured; the webhook
	// route then answers 503.
	Verifier adapter.WebhookVerifier

	RequestTimeout time.Duration
	StreamTimeout  time.Duration
}

type Server struct {
	deps Deps
	log  *zerolog.Logger
}

func NewServer(deps Deps, logger *zerolog.Logger) *Server {
	return &Server{deps: deps, log: logger}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.With(Timeout(s.deps.RequestTimeout)).Post("/webhooks/stripe", s.handleStripeWebhook)

		r.Group(func(r chi.Router) {
			r.Use(Authenticate(s.deps.Auth, s.deps.Accounts, s.log))

			r.With(Timeout(s.deps.StreamTimeout)).Post("/generate-script", s.handleGenerate)

			r.Group(func(r chi.Router) {
				r.Use(Timeout(s.deps.RequestTimeout))
				r.Post("/create-checkout-session", s.handleCheckout)
				r.Post("/create-portal-session", s.handlePortal)
				r.Get("/me", s.handleMe)
				r.Post("/projects", s.handleCreateProject)
				r.Get("/projects", s.handleListProjects)
				r.Get("/projects/{id}", s.handleGetProject)
			})
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
