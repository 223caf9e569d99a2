package entity

import (
	"strings"
	"time"
)

// StatementLine is one row of the external bank-statement feed. The feed is
// not owned by this system; lines are only observed, never written back.
type StatementLine struct {
	RefNo          string `json:"refNo"`
	CreditAmount   int64  `json:"creditAmount"`
	Description    string `json:"description"`
	AddDescription string `json:"addDescription"`
}

// ContainsCode reports whether either description field embeds the given
// transfer memo code, case-insensitively. Bank clients reformat memos so an
// exact match cannot be required.
func (l *StatementLine) ContainsCode(code string) bool {
	upper := strings.ToUpper(code)
	return strings.Contains(strings.ToUpper(l.Description), upper) ||
		strings.Contains(strings.ToUpper(l.AddDescription), upper)
}

// ProcessedRefTTL is how long a reconciled refNo stays in the dedup ledger.
// Much longer than the QR validity window so feed rows that post with delay
// still dedup correctly.
const ProcessedRefTTL = 5 * 24 * time.Hour

// ProcessedRefEntry records that a feed refNo has already been reconciled
// against an intent. Written at most once, before any fulfillment side effect.
type ProcessedRefEntry struct {
	RefNo         string
	TransactionID string
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// IsExpired reports whether the ledger entry is due for sweeping.
func (e *ProcessedRefEntry) IsExpired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}
