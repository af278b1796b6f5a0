package checkout

import (
	"context"
	"time"

	"shoplite/backend/internal/domain"
)

// OrderSubmitter is the port an order snapshot is handed to when the
// shopper places it. The checkout session only cares whether submission
// resolves or rejects; it owns no timing of its own.
type OrderSubmitter interface {
	Submit(ctx context.Context, order domain.Order) error
}

// SubmitterFunc adapts a function to the OrderSubmitter interface.
type SubmitterFunc func(ctx context.Context, order domain.Order) error

func (f SubmitterFunc) Submit(ctx context.Context, order domain.Order) error {
	return f(ctx, order)
}

// SimulatedSubmitter accepts every order after a fixed latency. It stands
// in for a real order backend in demo mode.
type SimulatedSubmitter struct {
	Delay time.Duration
}

func (s SimulatedSubmitter) Submit(ctx context.Context, _ domain.Order) error {
	delay := s.Delay
	if delay <= 0 {
		delay = 800 * time.Millisecond
	}
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
