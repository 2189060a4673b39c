package ratelimit

import (
	"context"

	"github.com/vmelnikov/notiflow/internal/domain"
)

// RateLimiter throttles delivery throughput per channel.
type RateLimiter interface {
	Allow(ctx context.Context, channel domain.Channel) (bool, error)
	Wait(ctx context.Context, channel domain.Channel) error
}

// NopRateLimiter admits everything. Used when Redis is not configured.
type NopRateLimiter struct{}

func NewNopRateLimiter() *NopRateLimiter {
	return &NopRateLimiter{}
}

func (*NopRateLimiter) Allow(_ context.Context, _ domain.Channel) (bool, error) {
	return true, nil
}

func (*NopRateLimiter) Wait(_ context.Context, _ domain.Channel) error {
	return nil
}
