package store

import (
	"context"
	"errors"

	"neurosync-rewards-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across all backend implementations.
var (
	// ErrStoreUnavailable marks a transient persistence failure. Bootstrap and
	// reward callers degrade to client-local display; redemption callers must
	// block the purchase.
	ErrStoreUnavailable = errors.New("content store unavailable")

	// ErrInsufficientBalance is the expected business error when a redemption
	// would drive the balance below zero. No side effects occur.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrConcurrencyConflict is returned when the append retry loop keeps
	// losing the compare-and-swap race on the History Index pointer.
	ErrConcurrencyConflict = errors.New("concurrent modification detected")

	// ErrStalePointer is returned by a single failed compare-and-swap; the
	// caller refetches the snapshot and retries the whole append.
	ErrStalePointer = errors.New("stale history index pointer")

	// ErrUnknownItem marks a redemption against an item not in the catalog.
	ErrUnknownItem = errors.New("unknown catalog item")

	// ErrInvalidAmount marks an amount whose sign does not match its
	// transaction type (INITIAL/REWARD positive, REDEEM negative).
	ErrInvalidAmount = errors.New("invalid amount for transaction type")

	// ErrNotFound marks a missing blob or index entry.
	ErrNotFound = errors.New("not found")

	// ErrActivityLimit marks a reward request outside its activity window,
	// e.g. a second spin within 24 hours or a second check-in the same day.
	ErrActivityLimit = errors.New("activity limit reached")
)

// IssueRewardParams contains the parameters for issuing a reward transaction.
type IssueRewardParams struct {
	Identity    string
	Reason      string // activity tag, e.g. "daily-spin"
	Description string // human-readable label, e.g. "Daily Spin Reward"
	Amount      decimal.Decimal
}

// RedeemParams contains the parameters for redeeming a catalog item.
type RedeemParams struct {
	Identity string
	ItemId   string
}

// RewardLedger defines the contract the ledger engine exposes to the API
// layer, the CLIs, and the reconciler.
type RewardLedger interface {
	// EnsureBootstrapped grants the welcome transaction to a never-seen
	// identity and is idempotent for identities that already have history.
	EnsureBootstrapped(ctx context.Context, identity string) ([]models.Transaction, error)

	// IssueReward appends a REWARD transaction. Persistence failures degrade:
	// the transaction is returned marked Pending and journaled for retry.
	IssueReward(ctx context.Context, params IssueRewardParams) (*models.Transaction, error)

	// Redeem validates the balance invariant and appends a REDEEM transaction.
	// Persistence failures block the purchase; no receipt without a durable debit.
	Redeem(ctx context.Context, params RedeemParams) (*models.RedeemResult, error)

	// History returns the latest persisted snapshot for an identity, or an
	// empty snapshot when none exists.
	History(ctx context.Context, identity string) (*models.HistorySnapshot, error)

	// Balance reconstructs the current balance by summing the latest snapshot.
	Balance(ctx context.Context, identity string) (decimal.Decimal, error)
}

// PendingJournal records transactions whose snapshot write has not been
// confirmed, so a retry can re-attempt the append without the UI losing the
// balance.
type PendingJournal interface {
	Enqueue(ctx context.Context, tx models.Transaction) error
	List(ctx context.Context, limit int) ([]models.PendingWrite, error)

	// ListByIdentity returns every journaled write for one identity. Callers
	// use it to reuse an already-journaled transaction instead of minting a
	// duplicate, and to expire optimistic entries the journal has given up on.
	ListByIdentity(ctx context.Context, identity string) ([]models.PendingWrite, error)

	MarkAttempt(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
}
