package usecase

import (
	"context"
	"errors"
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
var _ BillingUseCase = (*billingUC)(nil)

// Outcome is what a webhook delivery did to local state.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeUnmatched Outcome = "unmatched"
	OutcomeStale     Outcome = "stale"
	OutcomeIgnored   Outcome = "ignored"
)

// BillingUseCase reconciles verified processor events into the profile mirror.
type BillingUseCase interface {
	// Reconcile applies ev at most once per event id. A returned error means
	// nothing was committed and the processor should redeliver.
	Reconcile(ctx context.Context, ev *model.BillingEvent) (Outcome, error)
}

// reconcilePlan is computed before the transaction so processor calls never
// run while rows are locked. mutate sees the current profile and returns
// false when the event no longer applies to it.
type reconcilePlan struct {
	mutate func(p *model.Profile) (model.BillingMutation, bool)
}

type eventHandler func(ctx context.Context, ev *model.BillingEvent) (*reconcilePlan, error)

type billingUC struct {
	profiles repository.ProfileRepository
	events   repository.BillingEventRepository
	tm       repository.TransactionManager
	gateway  adapter.PaymentGateway
	prices   model.PriceTable
	handlers map[model.EventKind]eventHandler
	log      *zerolog.Logger
}

func NewBillingUseCase(
	profiles repository.ProfileRepository,
	events repository.BillingEventRepository,
	tm repository.TransactionManager,
	gateway adapter.PaymentGateway,
	prices model.PriceTable,
	logger *zerolog.Logger,
) *billingUC {
	b := &billingUC{
		profiles: profiles,
		events:   events,
		tm:       tm,
		gateway:  gateway,
		prices:   prices,
		log:      logger,
	}
	b.handlers = map[model.EventKind]eventHandler{
		model.EventCheckoutCompleted:       b.onCheckoutCompleted,
		model.EventSubscriptionUpdated:     b.onSubscriptionUpdated,
		model.EventSubscriptionDeleted:     b.onSubscriptionDeleted,
		model.EventInvoicePaymentFailed:    b.onInvoicePaymentFailed,
		model.EventInvoicePaymentSucceeded: b.onInvoicePaymentSucceeded,
	}
	return b
}

func (b *billingUC) Reconcile(ctx context.Context, ev *model.BillingEvent) (outcome Outcome, err error) {
	defer logging.TraceDuration(b.log, "BillingUC.Reconcile")()
	if ev == nil || ev.ID == "" {
		return "", domain.ErrInvalidRequest
	}
	ctx = logging.WithEventID(ctx, ev.ID)
	start := time.Now()
	defer func() {
		result := string(outcome)
		if err != nil {
			result = "failed"
		}
		metrics.IncWebhookEvent(ev.Type, result)
		metrics.ObserveWebhook(ev.Type, time.Since(start).Milliseconds())
	}()

	processed, err := b.events.IsProcessed(ctx, repository.NoTX, ev.ID)
	if err != nil {
		return "", err
	}
	if processed {
		logging.With(ctx, b.log).Info().Str("type", ev.Type).Msg("duplicate billing event skipped")
		return OutcomeDuplicate, nil
	}

	var plan *reconcilePlan
	if h, ok := b.handlers[ev.Kind]; ok {
		if plan, err = h(ctx, ev); err != nil {
			return "", err
		}
	}

	var accountID string
	err = b.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		inserted, err := b.events.Record(ctx, tx, ev.Record())
		if err != nil {
			return err
		}
		if !inserted {
			outcome = OutcomeDuplicate
			return nil
		}
		if plan == nil {
			outcome = OutcomeIgnored
			return nil
		}

		profile, err := b.match(ctx, tx, ev)
		if errors.Is(err, domain.ErrNotFound) {
			outcome = OutcomeUnmatched
			return nil
		}
		if err != nil {
			return err
		}
		if profile.SupersededBy(ev.CreatedAt) {
			outcome = OutcomeStale
			return nil
		}
		m, ok := plan.mutate(profile)
		if !ok || m.IsEmpty() {
			outcome = OutcomeStale
			return nil
		}
		if !ev.CreatedAt.IsZero() {
			m.BillingEventAt = model.Ptr(ev.CreatedAt)
		}
		if err := b.profiles.ApplyBilling(ctx, tx, profile.ID, m); err != nil {
			return err
		}
		accountID = profile.ID
		outcome = OutcomeApplied
		return nil
	})
	if err != nil {
		logging.With(ctx, b.log).Error().Err(err).Str("type", ev.Type).Msg("billing event failed")
		return "", err
	}

	if accountID != "" {
		ctx = logging.WithUserID(ctx, accountID)
	}
	l := logging.With(ctx, b.log)
	switch outcome {
	case OutcomeUnmatched:
		l.Warn().Str("type", ev.Type).
			Str("customer_id", ev.CustomerID).
			Str("subscription_id", ev.SubscriptionID).
			Msg("billing event matches no profile")
	case OutcomeIgnored:
		l.Debug().Str("type", ev.Type).Msg("billing event type not handled")
	default:
		l.Info().Str("type", ev.Type).Str("outcome", string(outcome)).Msg("billing event reconciled")
	}
	return outcome, nil
}

// match resolves the profile by subscription id, then customer id, then the
// account id carried in metadata.
func (b *billingUC) match(ctx context.Context, tx repository.Tx, ev *model.BillingEvent) (*model.Profile, error) {
	if ev.SubscriptionID != "" || ev.CustomerID != "" {
		p, err := b.profiles.FindByExternal(ctx, tx, ev.CustomerID, ev.SubscriptionID)
		if err == nil || !errors.Is(err, domain.ErrNotFound) {
			return p, err
		}
	}
	if ev.AccountID != "" {
		return b.profiles.FindByID(ctx, tx, ev.AccountID)
	}
	return nil, domain.ErrNotFound
}

// fetchSubscription prefers the event's embedded snapshot over a processor call.
func (b *billingUC) fetchSubscription(ctx context.Context, ev *model.BillingEvent) (*model.SubscriptionSnapshot, error) {
	if ev.Subscription != nil {
		return ev.Subscription, nil
	}
	if ev.SubscriptionID == "" {
		return nil, nil
	}
	return b.gateway.GetSubscription(ctx, ev.SubscriptionID)
}

// cycleMutation is the full overwrite derived from a subscription snapshot,
// including the credit reset to the tier allotment.
func (b *billingUC) cycleMutation(snap *model.SubscriptionSnapshot) model.BillingMutation {
	tier := b.prices.Tier(snap.PriceID)
	m := model.BillingMutation{
		Status:            model.Ptr(snap.Status),
		Plan:              model.Ptr(tier),
		Credits:           model.Ptr(tier.Credits()),
		SubscriptionID:    model.Ptr(snap.ID),
		PriceID:           model.Ptr(snap.PriceID),
		CancelAtPeriodEnd: model.Ptr(snap.CancelAtPeriodEnd),
	}
	if snap.CustomerID != "" {
		m.CustomerID = model.Ptr(snap.CustomerID)
	}
	if !snap.PeriodStart.IsZero() {
		m.PeriodStart = model.Ptr(snap.PeriodStart)
	}
	if !snap.PeriodEnd.IsZero() {
		m.PeriodEnd = model.Ptr(snap.PeriodEnd)
		m.CreditsResetAt = model.Ptr(snap.PeriodEnd)
	}
	return m
}

func (b *billingUC) onCheckoutCompleted(ctx context.Context, ev *model.BillingEvent) (*reconcilePlan, error) {
	snap, err := b.fetchSubscription(ctx, ev)
	if err != nil {
		return nil, err
	}
	return &reconcilePlan{mutate: func(p *model.Profile) (model.BillingMutation, bool) {
		if snap != nil && snap.Status.Ended() {
			return model.BillingMutation{}, false
		}
		var m model.BillingMutation
		if snap != nil {
			m = b.cycleMutation(snap)
		} else if ev.SubscriptionID != "" {
			m.SubscriptionID = model.Ptr(ev.SubscriptionID)
		}
		m.Status = model.Ptr(model.StatusActive)
		if ev.CustomerID != "" {
			m.CustomerID = model.Ptr(ev.CustomerID)
		}
		return m, true
	}}, nil
}

// onSubscriptionUpdated mirrors the snapshot onto the subscription the profile
// points at. An unlinked profile is only linked to a live subscription, and
// never after it canceled one; its next checkout links it instead.
func (b *billingUC) onSubscriptionUpdated(_ context.Context, ev *model.BillingEvent) (*reconcilePlan, error) {
	if ev.Subscription == nil {
		return nil, domain.ErrInvalidRequest
	}
	snap := ev.Subscription
	return &reconcilePlan{mutate: func(p *model.Profile) (model.BillingMutation, bool) {
		switch {
		case p.SubscriptionID == snap.ID:
		case p.SubscriptionID != "":
			return model.BillingMutation{}, false
		case snap.Status.Ended() || p.Status == model.StatusCanceled:
			return model.BillingMutation{}, false
		}
		return b.cycleMutation(snap), true
	}}, nil
}

// onSubscriptionDeleted downgrades only the subscription the profile still
// points at, so a late delete of a replaced subscription is stale.
func (b *billingUC) onSubscriptionDeleted(_ context.Context, ev *model.BillingEvent) (*reconcilePlan, error) {
	return &reconcilePlan{mutate: func(p *model.Profile) (model.BillingMutation, bool) {
		if p.SubscriptionID != "" && ev.SubscriptionID != "" && p.SubscriptionID != ev.SubscriptionID {
			return model.BillingMutation{}, false
		}
		return model.BillingMutation{
			Status:            model.Ptr(model.StatusCanceled),
			Plan:              model.Ptr(model.PlanFree),
			Credits:           model.Ptr(model.PlanFree.Credits()),
			SubscriptionID:    model.Ptr(""),
			PriceID:           model.Ptr(""),
			CancelAtPeriodEnd: model.Ptr(false),
		}, true
	}}, nil
}

func (b *billingUC) onInvoicePaymentFailed(_ context.Context, ev *model.BillingEvent) (*reconcilePlan, error) {
	return &reconcilePlan{mutate: func(p *model.Profile) (model.BillingMutation, bool) {
		return model.BillingMutation{Status: model.Ptr(model.StatusPastDue)}, true
	}}, nil
}

// onInvoicePaymentSucceeded marks the profile active and resets credits only
// when the paid invoice opened a new cycle.
func (b *billingUC) onInvoicePaymentSucceeded(ctx context.Context, ev *model.BillingEvent) (*reconcilePlan, error) {
	if ev.SubscriptionID == "" {
		return nil, nil
	}
	snap, err := b.fetchSubscription(ctx, ev)
	if err != nil {
		return nil, err
	}
	return &reconcilePlan{mutate: func(p *model.Profile) (model.BillingMutation, bool) {
		active := model.BillingMutation{Status: model.Ptr(model.StatusActive)}
		if snap == nil || (p.PeriodStart != nil && !snap.PeriodStart.After(*p.PeriodStart)) {
			return active, true
		}
		m := b.cycleMutation(snap)
		m.Status = active.Status
		return m, true
	}}, nil
}
