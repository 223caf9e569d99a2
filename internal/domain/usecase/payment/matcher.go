package payment

import (
	"github.com/lekhanhduc/qrpay/internal/domain/entity"
)

// Match pairs a pending intent with the first statement line that carries it.
// A line matches iff its credit amount equals the intent amount exactly and
// either description field contains the intent's code case-insensitively.
// Lines are scanned in feed order and the first hit wins; there is no
// secondary ranking. Returns nil when nothing matches yet.
//
// Two concurrently active codes with equal amounts could in principle collide
// through memo truncation; the one-active-intent-per-user guard keeps that
// window to distinct users with coincidentally equal amounts.
func Match(intent *entity.PendingTransaction, lines []entity.StatementLine) *entity.StatementLine {
	for i := range lines {
		line := &lines[i]
		if line.CreditAmount != intent.Amount {
			continue
		}
		if line.ContainsCode(intent.Code) {
			return line
		}
	}
	return nil
}
