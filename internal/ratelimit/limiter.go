package ratelimit

import "context"

// Limiter decides whether one more request for key fits the current budget.
// An error means the decision could not be made.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}
