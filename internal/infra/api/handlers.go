package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/LucasBuchC/takeone-ai/internal/domain"
	"github.com/LucasBuchC/takeone-ai/internal/domain/model"
	"github.com/LucasBuchC/takeone-ai/internal/infra/logging"
	"github.com/LucasBuchC/takeone-ai/internal/usecase"
)

type generateBody struct {
	Prompt    string `json:"prompt"`
	ProjectID string `json:"projectId"`
	VideoType string `json:"videoType"`
	Duration  int    `json:"duration"`
	Tone      string `json:"tone"`
}

// handleGenerate streams one script as server-sent events. Entitlement and
// input errors are plain JSON responses; once the stream is open a failure
// ends it with an error event instead of [DONE].
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var body generateBody
	// A malformed body is reported by Begin after the credit check.
	_ = json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&body)

	sess, err := s.deps.Generate.Begin(ctx, usecase.GenerateRequest{
		AccountID: AccountIDFrom(ctx),
		ProjectID: body.ProjectID,
		Prompt:    body.Prompt,
		VideoType: model.VideoType(body.VideoType),
		Duration:  body.Duration,
		Tone:      body.Tone,
	})
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		sess.Close()
		writeError(w, r, s.log, err)
		return
	}
	sse.Open()
	if _, err := sess.Relay(ctx, sse.Content); err != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			_ = sse.Error("generation timed out")
		case ctx.Err() == nil && !errors.Is(err, domain.ErrClientGone):
			_ = sse.Error(publicMessage(err))
		}
		return
	}
	if err := sse.Done(); err != nil {
		logging.With(ctx, s.log).Warn().Err(err).Msg("write done frame")
	}
}

type checkoutBody struct {
	PriceID string `json:"priceId"`
}

type checkoutResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

type urlResponse struct {
	URL string `json:"url"`
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var body checkoutBody
	if err := json.NewDecoder(io.LimitReader(r.Body, 16<<10)).Decode(&body); err != nil {
		writeError(w, r, s.log, domain.ErrInvalidRequest)
		return
	}
	sess, err := s.deps.Checkout.Checkout(r.Context(), AccountIDFrom(r.Context()), body.PriceID)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, checkoutResponse{SessionID: sess.ID, URL: sess.URL})
}

func (s *Server) handlePortal(w http.ResponseWriter, r *http.Request) {
	url, err := s.deps.Checkout.Portal(r.Context(), AccountIDFrom(r.Context()))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, urlResponse{URL: url})
}

type webhookAck struct {
	Received bool `json:"received"`
}

func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if s.deps.Verifier == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "webhook not configured"})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unreadable body"})
		return
	}
	sig := r.Header.Get("Stripe-Signature")
	if sig == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing Stripe signature"})
		return
	}
	ev, err := s.deps.Verifier.Verify(payload, sig)
	if err != nil {
		l := logging.With(r.Context(), s.log)
		if errors.Is(err, domain.ErrSignatureInvalid) {
			l.Warn().Err(err).Msg("webhook rejected")
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid Stripe signature"})
			return
		}
		// a signed event that fails to decode is a processing failure
		l.Error().Err(err).Msg("webhook decode failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "processing failed"})
		return
	}
	if _, err := s.deps.Billing.Reconcile(r.Context(), ev); err != nil {
		l := logging.With(logging.WithEventID(r.Context(), ev.ID), s.log)
		l.Error().Err(err).Str("type", ev.Type).Msg("webhook processing failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "processing failed"})
		return
	}
	writeJSON(w, http.StatusOK, webhookAck{Received: true})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	sum, err := s.deps.Accounts.Me(r.Context(), AccountIDFrom(r.Context()))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toMeDTO(sum))
}

type createProjectBody struct {
	Title      string `json:"title"`
	VideoType  string `json:"videoType"`
	Duration   int    `json:"duration"`
	LastPrompt string `json:"lastPrompt"`
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var body createProjectBody
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&body); err != nil {
		writeError(w, r, s.log, domain.ErrInvalidRequest)
		return
	}
	p, err := s.deps.Projects.Create(r.Context(), AccountIDFrom(r.Context()), body.Title, model.VideoType(body.VideoType), body.Duration, body.LastPrompt)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProjectDTO(p, 0))
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Projects.List(r.Context(), AccountIDFrom(r.Context()))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	out := make([]projectDTO, 0, len(list))
	for _, p := range list {
		out = append(out, toProjectDTO(&p.Project, p.ScriptCount))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	d, err := s.deps.Projects.Get(r.Context(), AccountIDFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectDetailDTO(d))
}
