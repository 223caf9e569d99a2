package gateway

import (
	"context"

	"github.com/lekhanhduc/qrpay/internal/domain/entity"
)

// StatementSource provides the current view of the external bank-statement
// feed. Implementations are expected to fail open: when the feed cannot be
// reached the source returns an empty slice, with at most an informational
// error, so one bad poll never blocks expiry handling of pending intents.
type StatementSource interface {
	Fetch(ctx context.Context) ([]entity.StatementLine, error)
}
