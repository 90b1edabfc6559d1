package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/LucasBuchC/takeone-ai/internal/domain"
	"github.com/LucasBuchC/takeone-ai/internal/domain/model"
	"github.com/LucasBuchC/takeone-ai/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopGateway)(nil)

// NoopGateway is an in-memory gateway for dev mode and tests.
type NoopGateway struct {
	mu            sync.Mutex
	seq           int64
	Checkouts     []adapter.CheckoutRequest
	PortalCalls   int
	subscriptions map[string]model.SubscriptionSnapshot
}

func NewNoopGateway() *NoopGateway {
	return &NoopGateway{subscriptions: make(map[string]model.SubscriptionSnapshot)}
}

func (g *NoopGateway) Name() string { return "noop" }

// PutSubscription sets what GetSubscription returns for snap.ID.
func (g *NoopGateway) PutSubscription(snap model.SubscriptionSnapshot) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.subscriptions[snap.ID] = snap
}

func (g *NoopGateway) CreateCheckoutSession(ctx context.Context, req adapter.CheckoutRequest) (*adapter.CheckoutSession, error) {
	if req.AccountID == "" || req.PriceID == "" {
		return nil, domain.ErrInvalidArgument
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	g.Checkouts = append(g.Checkouts, req)
	id := fmt.Sprintf("cs_noop_%d", g.seq)
	return &adapter.CheckoutSession{ID: id, URL: "https://checkout.example.test/" + id}, nil
}

func (g *NoopGateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	if customerID == "" {
		return "", domain.ErrNoActiveSubscription
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.PortalCalls++
	return "https://billing.example.test/p/" + customerID, nil
}

func (g *NoopGateway) GetSubscription(ctx context.Context, subscriptionID string) (*model.SubscriptionSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	snap, ok := g.subscriptions[subscriptionID]
	if !ok {
		return nil, fmt.Errorf("%w: noop subscription %s", domain.ErrUpstreamFailure, subscriptionID)
	}
	return &snap, nil
}
