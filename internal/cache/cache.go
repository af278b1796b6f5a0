package cache

import (
	"context"
	"time"

	"shoplite/backend/internal/domain"
)

type AnalyticsCache interface {
	GetSummary(ctx context.Context, key string) (*domain.SalesSummary, bool, error)
	SetSummary(ctx context.Context, key string, value *domain.SalesSummary, ttl time.Duration) error
	GetSeries(ctx context.Context, key string) (*domain.SalesSeries, bool, error)
	SetSeries(ctx context.Context, key string, value *domain.SalesSeries, ttl time.Duration) error
}

type NoopAnalyticsCache struct{}

func (NoopAnalyticsCache) GetSummary(_ context.Context, _ string) (*domain.SalesSummary, bool, error) {
	return nil, false, nil
}

func (NoopAnalyticsCache) SetSummary(_ context.Context, _ string, _ *domain.SalesSummary, _ time.Duration) error {
	return nil
}

func (NoopAnalyticsCache) GetSeries(_ context.Context, _ string) (*domain.SalesSeries, bool, error) {
	return nil, false, nil
}

func (NoopAnalyticsCache) SetSeries(_ context.Context, _ string, _ *domain.SalesSeries, _ time.Duration) error {
	return nil
}
