package core

import (
	"context"
	"time"
)

// Ticker abstracts a periodic tick source so the reconciliation loop can be
// driven manually in tests.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TimeProvider abstracts time operations for the domain
type TimeProvider interface {
	Now() time.Time
	Until(t time.Time) time.Duration
	WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc)
	NewTicker(d time.Duration) Ticker
}
