//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/LucasBuchC/takeone-ai/internal/domain"
	"github.com/LucasBuchC/takeone-ai/internal/domain/model"
	"github.com/LucasBuchC/takeone-ai/internal/infra/adapters/payment"
	"github.com/LucasBuchC/takeone-ai/internal/infra/db/memory"
	"github.com/LucasBuchC/takeone-ai/internal/usecase"
)

var (
	testPrices  = model.NewPriceTable("price_creator", "price_pro", "price_business")
	periodStart = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	periodEnd   = time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
)

type billingDeps struct {
	store   *memory.Store
	gateway *payment.NoopGateway
	uc      usecase.BillingUseCase
}

func newBillingDeps() *billingDeps {
	store := memory.NewStore()
	gw := payment.NewNoopGateway()
	return &billingDeps{
		store:   store,
		gateway: gw,
		uc:      usecase.NewBillingUseCase(store.Profiles(), store.BillingEvents(), store, gw, testPrices, newTestLogger()),
	}
}

func event(id, typ string) *model.BillingEvent {
	return &model.BillingEvent{ID: id, Type: typ, Kind: model.KindOf(typ), Payload: []byte(`{}`), CreatedAt: time.Now()}
}

func subscriptionEvent(id, typ, subID, customerID, priceID string, status model.SubscriptionStatus) *model.BillingEvent {
	ev := event(id, typ)
	ev.CustomerID, ev.SubscriptionID = customerID, subID
	ev.Subscription = &model.SubscriptionSnapshot{
		ID:          subID,
		CustomerID:  customerID,
		Status:      status,
		PriceID:     priceID,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	}
	return ev
}

func (d *billingDeps) link(t *testing.T, accountID, customerID, subID string) {
	t.Helper()
	err := d.store.Profiles().ApplyBilling(context.Background(), nil, accountID, model.BillingMutation{
		CustomerID:     model.Ptr(customerID),
		SubscriptionID: model.Ptr(subID),
		Status:         model.Ptr(model.StatusActive),
	})
	if err != nil {
		t.Fatalf("link: %v", err)
	}
}

func (d *billingDeps) profile(t *testing.T, id string) *model.Profile {
	t.Helper()
	p, err := d.store.Profiles().FindByID(context.Background(), nil, id)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	return p
}

func TestBilling_ScenarioB_SubscriptionUpdatedResetsToTier(t *testing.T) {
	d := newBillingDeps()
	seedProfile(t, d.store, "acc-1", 3)
	d.link(t, "acc-1", "cus_1", "sub_1")

	out, err := d.uc.Reconcile(context.Background(), subscriptionEvent("evt_1", "customer.subscription.updated", "sub_1", "cus_1", "price_pro", model.StatusActive))
	if err != nil || out != usecase.OutcomeApplied {
		t.Fatalf("want applied, got %v %v", out, err)
	}
	p := d.profile(t, "acc-1")
	if p.Plan != model.PlanPro || p.Credits != 200 {
		t.Fatalf("want pro/200, got %s/%d", p.Plan, p.Credits)
	}
	if p.PriceID != "price_pro" || p.PeriodEnd == nil || !p.PeriodEnd.Equal(periodEnd) || p.CreditsResetAt == nil {
		t.Fatalf("cycle fields not mirrored: %+v", p)
	}
}

func TestBilling_TierTable(t *testing.T) {
	for price, want := range map[string]int{"price_creator": 50, "price_pro": 200, "price_business": model.UnlimitedCredits, "price_legacy": 5} {
		d := newBillingDeps()
		seedProfile(t, d.store, "acc-1", 1)
		d.link(t, "acc-1", "cus_1", "sub_1")
		if _, err := d.uc.Reconcile(context.Background(), subscriptionEvent("evt_"+price, "customer.subscription.updated", "sub_1", "cus_1", price, model.StatusActive)); err != nil {
			t.Fatalf("%s: %v", price, err)
		}
		if got := d.profile(t, "acc-1").Credits; got != want {
			t.Fatalf("%s: want %d credits, got %d", price, want, got)
		}
	}
}

func TestBilling_ScenarioC_SubscriptionDeletedDowngrades(t *testing.T) {
	d := newBillingDeps()
	seedProfile(t, d.store, "acc-1", 150)
	d.link(t, "acc-1", "cus_1", "sub_1")

	ev := event("evt_del", "customer.subscription.deleted")
	ev.CustomerID, ev.SubscriptionID = "cus_1", "sub_1"
	if out, err := d.uc.Reconcile(context.Background(), ev); err != nil || out != usecase.OutcomeApplied {
		t.Fatalf("want applied, got %v %v", out, err)
	}
	p := d.profile(t, "acc-1")
	if p.Plan != model.PlanFree || p.Credits != model.FreeCredits || p.SubscriptionID != "" || p.Status != model.StatusCanceled {
		t.Fatalf("unexpected profile after delete: %+v", p)
	}
	if p.CustomerID != "cus_1" {
		t.Fatalf("customer link must survive cancellation, got %q", p.CustomerID)
	}
}

func TestBilling_StaleDeleteOfReplacedSubscription(t *testing.T) {
	d := newBillingDeps()
	seedProfile(t, d.store, "acc-1", 200)
	d.link(t, "acc-1", "cus_1", "sub_new")

	ev := event("evt_old_del", "customer.subscription.deleted")
	ev.CustomerID, ev.SubscriptionID = "cus_1", "sub_old"
	out, err := d.uc.Reconcile(context.Background(), ev)
	if err != nil || out != usecase.OutcomeStale {
		t.Fatalf("want stale, got %v %v", out, err)
	}
	if p := d.profile(t, "acc-1"); p.SubscriptionID != "sub_new" || p.Credits != 200 {
		t.Fatalf("replacement subscription must be untouched: %+v", p)
	}
}

func TestBilling_LateUpdateAfterDelete(t *testing.T) {
	ctx := context.Background()
	d := newBillingDeps()
	seedProfile(t, d.store, "acc-1", 150)
	d.link(t, "acc-1", "cus_1", "sub_1")

	del := event("evt_del", "customer.subscription.deleted")
	del.CustomerID, del.SubscriptionID = "cus_1", "sub_1"
	if out, err := d.uc.Reconcile(ctx, del); err != nil || out != usecase.OutcomeApplied {
		t.Fatalf("want applied, got %v %v", out, err)
	}

	for _, status := range []model.SubscriptionStatus{model.StatusActive, model.StatusCanceled} {
		late := subscriptionEvent("evt_upd_"+string(status), "customer.subscription.updated", "sub_1", "cus_1", "price_pro", status)
		out, err := d.uc.Reconcile(ctx, late)
		if err != nil || out != usecase.OutcomeStale {
			t.Fatalf("%s: want stale, got %v %v", status, out, err)
		}
	}
	p := d.profile(t, "acc-1")
	if p.Plan != model.PlanFree || p.Credits != model.FreeCredits || p.SubscriptionID != "" || p.Status != model.StatusCanceled {
		t.Fatalf("canceled account must stay free: %+v", p)
	}
}

func TestBilling_LateUpdateOfReplacedSubscription(t *testing.T) {
	d := newBillingDeps()
	seedProfile(t, d.store, "acc-1", 200)
	d.link(t, "acc-1", "cus_1", "sub_new")

	late := subscriptionEvent("evt_upd_old", "customer.subscription.updated", "sub_old", "cus_1", "price_creator", model.StatusActive)
	out, err := d.uc.Reconcile(context.Background(), late)
	if err != nil || out != usecase.OutcomeStale {
		t.Fatalf("want stale, got %v %v", out, err)
	}
	if p := d.profile(t, "acc-1"); p.SubscriptionID != "sub_new" || p.Credits != 200 || p.Plan == model.PlanCreator {
		t.Fatalf("replacement subscription must be untouched: %+v", p)
	}
}

func TestBilling_OlderEventIsSuperseded(t *testing.T) {
	ctx := context.Background()
	d := newBillingDeps()
	seedProfile(t, d.store, "acc-1", 5)
	d.link(t, "acc-1", "cus_1", "sub_1")

	newer := subscriptionEvent("evt_upd_2", "customer.subscription.updated", "sub_1", "cus_1", "price_pro", model.StatusActive)
	older := subscriptionEvent("evt_upd_1", "customer.subscription.updated", "sub_1", "cus_1", "price_creator", model.StatusActive)
	older.CreatedAt = newer.CreatedAt.Add(-time.Minute)

	if out, err := d.uc.Reconcile(ctx, newer); err != nil || out != usecase.OutcomeApplied {
		t.Fatalf("want applied, got %v %v", out, err)
	}
	if out, err := d.uc.Reconcile(ctx, older); err != nil || out != usecase.OutcomeStale {
		t.Fatalf("want stale, got %v %v", out, err)
	}
	p := d.profile(t, "acc-1")
	if p.Plan != model.PlanPro || p.Credits != 200 {
		t.Fatalf("older snapshot overwrote newer one: %s/%d", p.Plan, p.Credits)
	}
	if p.BillingEventAt == nil || !p.BillingEventAt.Equal(newer.CreatedAt) {
		t.Fatalf("watermark not advanced: %v", p.BillingEventAt)
	}
	if processed, _ := d.store.BillingEvents().IsProcessed(ctx, nil, "evt_upd_1"); !processed {
		t.Fatal("superseded event must still be recorded")
	}
}

func TestBilling_CheckoutOfEndedSubscriptionIsStale(t *testing.T) {
	d := newBillingDeps()
	seedProfile(t, d.store, "acc-1", 5)
	d.gateway.PutSubscription(model.SubscriptionSnapshot{
		ID: "sub_1", CustomerID: "cus_1", Status: model.StatusCanceled, PriceID: "price_pro",
		PeriodStart: periodStart, PeriodEnd: periodEnd,
	})

	ev := event("evt_co", "checkout.session.completed")
	ev.CustomerID, ev.SubscriptionID, ev.AccountID = "cus_1", "sub_1", "acc-1"
	if out, err := d.uc.Reconcile(context.Background(), ev); err != nil || out != usecase.OutcomeStale {
		t.Fatalf("want stale, got %v %v", out, err)
	}
	p := d.profile(t, "acc-1")
	if p.SubscriptionID != "" || p.Status == model.StatusActive || p.Credits != 5 {
		t.Fatalf("ended subscription must not activate the account: %+v", p)
	}
}

func TestBilling_ReplayIsNoop(t *testing.T) {
	ctx := context.Background()
	d := newBillingDeps()
	seedProfile(t, d.store, "acc-1", 0)
	d.link(t, "acc-1", "cus_1", "sub_1")
	ev := subscriptionEvent("evt_renew", "customer.subscription.updated", "sub_1", "cus_1", "price_creator", model.StatusActive)

	if _, err := d.uc.Reconcile(ctx, ev); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if _, err := d.store.Profiles().DebitCredit(ctx, nil, "acc-1"); err != nil {
		t.Fatalf("debit: %v", err)
	}
	out, err := d.uc.Reconcile(ctx, ev)
	if err != nil || out != usecase.OutcomeDuplicate {
		t.Fatalf("want duplicate, got %v %v", out, err)
	}
	if got := d.profile(t, "acc-1").Credits; got != 49 {
		t.Fatalf("replay must not reset credits again, got %d", got)
	}
	if n := len(d.store.BillingEvents().Events()); n != 1 {
		t.Fatalf("want one audit row, got %d", n)
	}
}

func TestBilling_CheckoutCompletedLinksAccount(t *testing.T) {
	d := newBillingDeps()
	seedProfile(t, d.store, "acc-1", 5)
	d.gateway.PutSubscription(model.SubscriptionSnapshot{
		ID: "sub_1", CustomerID: "cus_1", Status: model.StatusActive, PriceID: "price_creator",
		PeriodStart: periodStart, PeriodEnd: periodEnd,
	})

	ev := event("evt_co", "checkout.session.completed")
	ev.CustomerID, ev.SubscriptionID, ev.AccountID = "cus_1", "sub_1", "acc-1"
	if out, err := d.uc.Reconcile(context.Background(), ev); err != nil || out != usecase.OutcomeApplied {
		t.Fatalf("want applied, got %v %v", out, err)
	}
	p := d.profile(t, "acc-1")
	if p.SubscriptionID != "sub_1" || p.CustomerID != "cus_1" || p.Status != model.StatusActive {
		t.Fatalf("checkout must link and activate: %+v", p)
	}
	if p.Plan != model.PlanCreator || p.Credits != 50 {
		t.Fatalf("want creator/50, got %s/%d", p.Plan, p.Credits)
	}
}

func TestBilling_CheckoutGatewayFailureIsRetryable(t *testing.T) {
	ctx := context.Background()
	d := newBillingDeps()
	seedProfile(t, d.store, "acc-1", 5)
	ev := event("evt_co", "checkout.session.completed")
	ev.CustomerID, ev.SubscriptionID, ev.AccountID = "cus_1", "sub_missing", "acc-1"

	if _, err := d.uc.Reconcile(ctx, ev); err == nil {
		t.Fatal("want error so the processor redelivers")
	}
	if processed, _ := d.store.BillingEvents().IsProcessed(ctx, nil, "evt_co"); processed {
		t.Fatal("failed event must not be recorded")
	}

	d.gateway.PutSubscription(model.SubscriptionSnapshot{ID: "sub_missing", CustomerID: "cus_1", Status: model.StatusActive, PriceID: "price_pro"})
	if out, err := d.uc.Reconcile(ctx, ev); err != nil || out != usecase.OutcomeApplied {
		t.Fatalf("redelivery should apply, got %v %v", out, err)
	}
}

func TestBilling_OutOfOrderDelivery(t *testing.T) {
	ctx := context.Background()
	d := newBillingDeps()
	seedProfile(t, d.store, "acc-1", 5)
	d.gateway.PutSubscription(model.SubscriptionSnapshot{
		ID: "sub_1", CustomerID: "cus_1", Status: model.StatusActive, PriceID: "price_pro",
		PeriodStart: periodStart, PeriodEnd: periodEnd,
	})

	updated := subscriptionEvent("evt_upd", "customer.subscription.updated", "sub_1", "cus_1", "price_pro", model.StatusActive)
	updated.AccountID = "acc-1"
	checkout := event("evt_co", "checkout.session.completed")
	checkout.CustomerID, checkout.SubscriptionID, checkout.AccountID = "cus_1", "sub_1", "acc-1"

	for _, ev := range []*model.BillingEvent{updated, checkout} {
		if out, err := d.uc.Reconcile(ctx, ev); err != nil || out != usecase.OutcomeApplied {
			t.Fatalf("%s: want applied, got %v %v", ev.Type, out, err)
		}
	}
	p := d.profile(t, "acc-1")
	if p.Plan != model.PlanPro || p.Credits != 200 || p.SubscriptionID != "sub_1" || p.Status != model.StatusActive {
		t.Fatalf("unexpected converged state: %+v", p)
	}
}

func TestBilling_UnmatchedIsRecordedAndSucceeds(t *testing.T) {
	ctx := context.Background()
	d := newBillingDeps()
	seedProfile(t, d.store, "acc-1", 5)

	ev := subscriptionEvent("evt_orphan", "customer.subscription.updated", "sub_x", "cus_x", "price_pro", model.StatusActive)
	out, err := d.uc.Reconcile(ctx, ev)
	if err != nil || out != usecase.OutcomeUnmatched {
		t.Fatalf("want unmatched, got %v %v", out, err)
	}
	if processed, _ := d.store.BillingEvents().IsProcessed(ctx, nil, "evt_orphan"); !processed {
		t.Fatal("unmatched event must still be recorded")
	}
	if got := d.profile(t, "acc-1").Credits; got != 5 {
		t.Fatalf("unrelated profile changed: %d", got)
	}
}

func TestBilling_InvoicePaymentFailedMarksPastDue(t *testing.T) {
	d := newBillingDeps()
	seedProfile(t, d.store, "acc-1", 42)
	d.link(t, "acc-1", "cus_1", "sub_1")
	_ = d.store.Profiles().ApplyBilling(context.Background(), nil, "acc-1", model.BillingMutation{Plan: model.Ptr(model.PlanCreator)})

	ev := event("evt_fail", "invoice.payment_failed")
	ev.CustomerID, ev.SubscriptionID = "cus_1", "sub_1"
	if _, err := d.uc.Reconcile(context.Background(), ev); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	p := d.profile(t, "acc-1")
	if p.Status != model.StatusPastDue || p.Credits != 42 || p.Plan != model.PlanCreator {
		t.Fatalf("only status may change: %+v", p)
	}
}

func TestBilling_InvoicePaymentSucceededResetsOnNewCycle(t *testing.T) {
	ctx := context.Background()
	d := newBillingDeps()
	seedProfile(t, d.store, "acc-1", 7)
	d.link(t, "acc-1", "cus_1", "sub_1")
	_ = d.store.Profiles().ApplyBilling(ctx, nil, "acc-1", model.BillingMutation{PeriodStart: model.Ptr(periodStart), Status: model.Ptr(model.StatusPastDue)})

	snap := model.SubscriptionSnapshot{ID: "sub_1", CustomerID: "cus_1", Status: model.StatusActive, PriceID: "price_creator", PeriodStart: periodStart, PeriodEnd: periodEnd}
	d.gateway.PutSubscription(snap)

	same := event("evt_inv_1", "invoice.payment_succeeded")
	same.CustomerID, same.SubscriptionID = "cus_1", "sub_1"
	if _, err := d.uc.Reconcile(ctx, same); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if p := d.profile(t, "acc-1"); p.Status != model.StatusActive || p.Credits != 7 {
		t.Fatalf("same cycle only reactivates: %+v", p)
	}

	snap.PeriodStart, snap.PeriodEnd = periodEnd, periodEnd.AddDate(0, 1, 0)
	d.gateway.PutSubscription(snap)
	next := event("evt_inv_2", "invoice.payment_succeeded")
	next.CustomerID, next.SubscriptionID = "cus_1", "sub_1"
	if _, err := d.uc.Reconcile(ctx, next); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if p := d.profile(t, "acc-1"); p.Credits != 50 || !p.PeriodStart.Equal(periodEnd) {
		t.Fatalf("new cycle resets credits: %+v", p)
	}
}

func TestBilling_UnhandledTypeIsRecorded(t *testing.T) {
	ctx := context.Background()
	d := newBillingDeps()
	out, err := d.uc.Reconcile(ctx, event("evt_misc", "customer.created"))
	if err != nil || out != usecase.OutcomeIgnored {
		t.Fatalf("want ignored, got %v %v", out, err)
	}
	if processed, _ := d.store.BillingEvents().IsProcessed(ctx, nil, "evt_misc"); !processed {
		t.Fatal("unhandled event must be recorded")
	}
}

func TestBilling_RejectsEventWithoutID(t *testing.T) {
	d := newBillingDeps()
	if _, err := d.uc.Reconcile(context.Background(), event("", "customer.subscription.updated")); err == nil {
		t.Fatal("want error")
	}
	if _, err := d.uc.Reconcile(context.Background(), nil); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("want ErrInvalidRequest, got %v", err)
	}
}
