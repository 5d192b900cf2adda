package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const feePercentKey = "settlement:platformFeePercent"

// CachedFeeSource serves the platform fee percent from configuration with a
// Redis override, so the value can change without a redeploy. The cache is
// advisory: if Redis is unreachable the configured default applies.
type CachedFeeSource struct {
	Cache   *redis.Client
	Default float64
	Logger  *zap.Logger
}

func (s *CachedFeeSource) FeePercent(ctx context.Context) (float64, error) {
	if s.Cache == nil {
		return s.Default, nil
	}
	val, err := s.Cache.Get(ctx, feePercentKey).Float64()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.Logger.Warn("Fee percent cache read failed, using default", zap.Error(err))
		}
		return s.Default, nil
	}
	if val < 0 || val > 100 {
		return 0, NewError(CodeFatalData, "cached platform fee percent %.2f out of range", val)
	}
	return val, nil
}

// SetFeePercent stores an override; admin-only.
func (s *CachedFeeSource) SetFeePercent(ctx context.Context, percent float64) error {
	if percent < 0 || percent > 100 {
		return NewError(CodeNotEligible, "platform fee percent %.2f out of range", percent)
	}
	if s.Cache == nil {
		return fmt.Errorf("fee percent override requires a cache client")
	}
	return s.Cache.Set(ctx, feePercentKey, percent, 0).Err()
}
