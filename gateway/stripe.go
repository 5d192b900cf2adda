package gateway

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/charge"
	"github.com/stripe/stripe-go/v76/transfer"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// StripeGateway moves real money through Stripe. Fee collection charges the
// professional's stored payment method; disbursement transfers to their
// connected account. Amounts arrive in the platform currency and are
// converted to cents here.
type StripeGateway struct {
	Currency string
	Limiter  *rate.Limiter
	Logger   *zap.Logger
}

// NewStripeGateway sets the package-level Stripe key and caps outbound
// calls so batch runs stay under the API rate limit.
func NewStripeGateway(apiKey, currency string, logger *zap.Logger) *StripeGateway {
	stripe.Key = apiKey
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}
	return &StripeGateway{
		Currency: currency,
		Limiter:  rate.NewLimiter(rate.Limit(25), 50),
		Logger:   logger,
	}
}

func (g *StripeGateway) ChargeFee(ctx context.Context, professionalID string, amount float64, idempotencyKey string) (string, error) {
	if err := g.Limiter.Wait(ctx); err != nil {
		return "", err
	}

	params := &stripe.ChargeParams{
		Amount:      stripe.Int64(toCents(amount)),
		Currency:    stripe.String(g.Currency),
		Customer:    stripe.String(professionalID),
		Description: stripe.String("platform service fee"),
		Metadata: map[string]string{
			"professionalId": professionalID,
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey)

	ch, err := charge.New(params)
	if err != nil {
		g.Logger.Warn("Stripe fee charge failed",
			zap.String("professionalId", professionalID),
			zap.Float64("amount", amount),
			zap.Error(err))
		return "", fmt.Errorf("stripe charge: %w", err)
	}
	return ch.ID, nil
}

func (g *StripeGateway) Transfer(ctx context.Context, professionalID string, amount float64, idempotencyKey string) (string, error) {
	if err := g.Limiter.Wait(ctx); err != nil {
		return "", err
	}

	params := &stripe.TransferParams{
		Amount:      stripe.Int64(toCents(amount)),
		Currency:    stripe.String(g.Currency),
		Destination: stripe.String(professionalID),
		Metadata: map[string]string{
			"professionalId": professionalID,
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey)

	t, err := transfer.New(params)
	if err != nil {
		g.Logger.Warn("Stripe transfer failed",
			zap.String("professionalId", professionalID),
			zap.Float64("amount", amount),
			zap.Error(err))
		return "", fmt.Errorf("stripe transfer: %w", err)
	}
	return t.ID, nil
}

func toCents(amount float64) int64 {
	return int64(amount*100 + 0.5)
}
