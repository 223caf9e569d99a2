package boltstore

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lekhanhduc/qrpay/internal/domain/port/core"
)

// testClock is a TimeProvider moved by hand.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2023, 5, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *testClock) Until(t time.Time) time.Duration {
	return t.Sub(c.Now())
}

func (c *testClock) WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithCancel(ctx)
}

func (c *testClock) NewTicker(d time.Duration) core.Ticker { return nil }

// quietLogger discards everything.
type quietLogger struct{}

func (quietLogger) Debug(string, map[string]any) {}
func (quietLogger) Info(string, map[string]any)  {}
func (quietLogger) Warn(string, map[string]any)  {}
func (quietLogger) Error(string, map[string]any) {}
func (quietLogger) Flush() error                 { return nil }

// openTestDB opens a fresh database file under the test's temp directory.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}
