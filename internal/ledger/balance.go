package ledger

import (
	"neurosync-rewards-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Reconstruct returns the current balance as the arithmetic sum of all
// transaction amounts. Sum is commutative, so the result is independent of
// list order; no total order over concurrent appends is needed. Transactions
// whose persisted amount could not be parsed contribute zero and are logged
// as data-integrity warnings, never treated as fatal.
func Reconstruct(transactions []models.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range transactions {
		if tx.AmountInvalid {
			zap.L().Warn("Data integrity warning: transaction with malformed amount excluded from balance",
				zap.String("transaction_id", tx.Id),
				zap.String("identity", tx.Identity),
				zap.String("type", string(tx.Type)))
			continue
		}
		total = total.Add(tx.Amount)
	}
	return total
}
