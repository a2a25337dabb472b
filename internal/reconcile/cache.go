package reconcile

import (
	"context"
	"sync"
	"time"

	"neurosync-rewards-go/internal/ledger"
	"neurosync-rewards-go/internal/models"
	"neurosync-rewards-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Cache is the client-facing reconciliation layer over the ledger. It keeps a
// per-identity local view so the UI always has something to show: when the
// store is reachable the view is the authoritative snapshot merged with any
// optimistically applied transactions, and when it is not, the last known
// local view (or a baseline balance) is served with the Degraded flag set.
//
// The displayed balance is always recomputed as the sum of the displayed
// transactions. A separately cached balance number is never trusted.
type Cache struct {
	ledger   store.RewardLedger
	journal  store.PendingJournal
	baseline decimal.Decimal

	mu    sync.Mutex
	local map[string][]models.Transaction
}

// NewCache builds a reconciliation cache. journal is the same pending-write
// journal the ledger feeds; it anchors which optimistic entries are still
// alive. baseline is the balance displayed for an identity with no local
// state when the store is unreachable.
func NewCache(rewardLedger store.RewardLedger, journal store.PendingJournal, baseline decimal.Decimal) *Cache {
	return &Cache{
		ledger:   rewardLedger,
		journal:  journal,
		baseline: baseline,
		local:    make(map[string][]models.Transaction),
	}
}

// Load produces the view for an identity. Three cases:
//
//   - History found: the server list is merged with locally known
//     transactions (union by id, so writes whose response was lost are
//     picked up rather than dropped) and becomes the new local view.
//   - Never-seen identity: bootstrap runs and the welcome transaction is
//     recorded locally even if its persistence is still pending.
//   - Store unreachable: the last local view is served degraded; an identity
//     with no local state gets the baseline balance. Load never fails.
func (c *Cache) Load(ctx context.Context, identity string) *models.LedgerView {
	key := models.NormalizeIdentity(identity)

	snapshot, err := c.ledger.History(ctx, key)
	if err != nil {
		zap.L().Warn("History fetch failed, serving degraded view",
			zap.String("identity", key), zap.Error(err))
		return c.degradedView(key)
	}

	if len(snapshot.Transactions) == 0 {
		transactions, err := c.ledger.EnsureBootstrapped(ctx, key)
		if err != nil {
			zap.L().Warn("Bootstrap failed, serving degraded view",
				zap.String("identity", key), zap.Error(err))
			return c.degradedView(key)
		}
		return c.reconcile(ctx, key, transactions, snapshot.LastUpdated)
	}

	return c.reconcile(ctx, key, snapshot.Transactions, snapshot.LastUpdated)
}

// ApplyReward records a reward response optimistically, without waiting for
// the next full history fetch.
func (c *Cache) ApplyReward(tx *models.Transaction) {
	if tx == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.local[tx.Identity] = mergeById([]models.Transaction{*tx}, c.local[tx.Identity])
}

// ApplyRedemption records a redemption response optimistically.
func (c *Cache) ApplyRedemption(result *models.RedeemResult) {
	if result == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	key := result.Transaction.Identity
	c.local[key] = mergeById([]models.Transaction{result.Transaction}, c.local[key])
}

// reconcile merges the fetched list with the local view, expires abandoned
// optimistic entries, and installs the result as the new local state.
func (c *Cache) reconcile(ctx context.Context, identity string, fetched []models.Transaction, lastUpdated time.Time) *models.LedgerView {
	c.mu.Lock()
	defer c.mu.Unlock()

	merged := mergeById(fetched, c.local[identity])
	merged = c.pruneAbandoned(ctx, identity, merged, len(fetched))
	c.local[identity] = merged

	return &models.LedgerView{
		Identity:     identity,
		Balance:      ledger.Reconstruct(merged),
		Transactions: merged,
		LastUpdated:  lastUpdated,
	}
}

// degradedView serves the last local view, or the baseline for an identity
// with no local state. The caller surfaces Degraded as a non-blocking notice.
func (c *Cache) degradedView(identity string) *models.LedgerView {
	c.mu.Lock()
	defer c.mu.Unlock()

	transactions := c.local[identity]
	balance := c.baseline
	if len(transactions) > 0 {
		balance = ledger.Reconstruct(transactions)
	}

	return &models.LedgerView{
		Identity:     identity,
		Balance:      balance,
		Transactions: transactions,
		Degraded:     true,
	}
}

// pruneAbandoned drops local-only Pending entries that no longer have a
// journal counterpart: the retrier either landed them (they arrive in the
// fetched list under the same id) or gave up on them, and a given-up write
// must not inflate the local balance forever. Called with c.mu held; the
// first fetchedCount entries of merged came from the server and are always
// kept. A journal read failure keeps everything, next Load retries.
func (c *Cache) pruneAbandoned(ctx context.Context, identity string, merged []models.Transaction, fetchedCount int) []models.Transaction {
	hasPendingLocal := false
	for _, tx := range merged[fetchedCount:] {
		if tx.Pending {
			hasPendingLocal = true
			break
		}
	}
	if !hasPendingLocal || c.journal == nil {
		return merged
	}

	entries, err := c.journal.ListByIdentity(ctx, identity)
	if err != nil {
		zap.L().Warn("Failed to read journal while reconciling, keeping local view",
			zap.String("identity", identity), zap.Error(err))
		return merged
	}
	journaled := make(map[string]bool, len(entries))
	for _, entry := range entries {
		journaled[entry.Transaction.Id] = true
	}

	kept := merged[:fetchedCount:fetchedCount]
	for _, tx := range merged[fetchedCount:] {
		if tx.Pending && !journaled[tx.Id] {
			zap.L().Info("Expiring abandoned optimistic transaction",
				zap.String("identity", identity),
				zap.String("transaction_id", tx.Id))
			continue
		}
		kept = append(kept, tx)
	}
	return kept
}

// mergeById unions two transaction lists by id, preferring the fetched copy
// (it may have gained a content address or dropped its pending mark). Order
// is fetched-first, then local-only entries.
func mergeById(fetched, local []models.Transaction) []models.Transaction {
	seen := make(map[string]bool, len(fetched))
	merged := make([]models.Transaction, 0, len(fetched)+len(local))
	for _, tx := range fetched {
		seen[tx.Id] = true
		merged = append(merged, tx)
	}
	for _, tx := range local {
		if !seen[tx.Id] {
			merged = append(merged, tx)
		}
	}
	return merged
}
