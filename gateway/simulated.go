package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SimulatedGateway stands in for Stripe in development. It remembers the
// references it handed out per idempotency key, so a retried call returns
// the original reference instead of minting a new one.
type SimulatedGateway struct {
	Logger *zap.Logger

	mu   sync.Mutex
	refs map[string]string
}

func NewSimulatedGateway(logger *zap.Logger) *SimulatedGateway {
	return &SimulatedGateway{
		Logger: logger,
		refs:   make(map[string]string),
	}
}

func (g *SimulatedGateway) ChargeFee(ctx context.Context, professionalID string, amount float64, idempotencyKey string) (string, error) {
	return g.record("ch_sim", professionalID, amount, idempotencyKey)
}

func (g *SimulatedGateway) Transfer(ctx context.Context, professionalID string, amount float64, idempotencyKey string) (string, error) {
	return g.record("tr_sim", professionalID, amount, idempotencyKey)
}

func (g *SimulatedGateway) record(prefix, professionalID string, amount float64, idempotencyKey string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if ref, ok := g.refs[idempotencyKey]; ok {
		return ref, nil
	}
	ref := fmt.Sprintf("%s_%s", prefix, uuid.New().String())
	g.refs[idempotencyKey] = ref
	g.Logger.Info("Simulated gateway call",
		zap.String("ref", ref),
		zap.String("professionalId", professionalID),
		zap.Float64("amount", amount))
	return ref, nil
}
