package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the tagged variant of a ledger transaction.
type TransactionType string

const (
	TxInitial TransactionType = "INITIAL" // welcome grant for a never-seen identity
	TxReward  TransactionType = "REWARD"  // earned through an engagement activity
	TxRedeem  TransactionType = "REDEEM"  // spent on a catalog item
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case TxInitial, TxReward, TxRedeem:
		return true
	}
	return false
}

// Transaction is the atomic, immutable unit of the ledger. Once appended to a
// history snapshot it is never edited or removed; corrections are modeled as
// new offsetting transactions.
type Transaction struct {
	Id             string          `json:"id"`
	Type           TransactionType `json:"type"`
	Amount         decimal.Decimal `json:"amount"`
	Description    string          `json:"description"`
	Timestamp      time.Time       `json:"timestamp"`
	Identity       string          `json:"identity"`
	ContentAddress string          `json:"contentAddress,omitempty"`
	Receipt        *Receipt        `json:"receipt,omitempty"`

	// Pending marks a transaction that was handed to the caller before its
	// snapshot write succeeded. It is journaled for retry by the reconciler.
	Pending bool `json:"pending,omitempty"`

	// AmountInvalid is set during decoding when the persisted amount could not
	// be parsed. Such transactions contribute zero to the balance and are
	// reported as data-integrity warnings, never as fatal errors.
	AmountInvalid bool `json:"-"`
}

// transactionWire mirrors Transaction but defers amount parsing so a malformed
// amount in a persisted snapshot degrades to a warning instead of failing the
// whole history read.
type transactionWire struct {
	Id             string          `json:"id"`
	Type           TransactionType `json:"type"`
	Amount         json.RawMessage `json:"amount"`
	Description    string          `json:"description"`
	Timestamp      time.Time       `json:"timestamp"`
	Identity       string          `json:"identity"`
	ContentAddress string          `json:"contentAddress,omitempty"`
	Receipt        *Receipt        `json:"receipt,omitempty"`
	Pending        bool            `json:"pending,omitempty"`
}

func (t *Transaction) UnmarshalJSON(data []byte) error {
	var w transactionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	t.Id = w.Id
	t.Type = w.Type
	t.Description = w.Description
	t.Timestamp = w.Timestamp
	t.Identity = w.Identity
	t.ContentAddress = w.ContentAddress
	t.Receipt = w.Receipt
	t.Pending = w.Pending

	t.Amount = decimal.Zero
	t.AmountInvalid = false
	if len(w.Amount) == 0 {
		t.AmountInvalid = true
		return nil
	}
	raw := strings.Trim(string(w.Amount), `"`)
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		t.AmountInvalid = true
		return nil
	}
	t.Amount = amount
	return nil
}

// Receipt is the structured proof-of-purchase attached to a REDEEM transaction.
type Receipt struct {
	Id              string          `json:"id"`
	ItemId          string          `json:"itemId"`
	ItemName        string          `json:"itemName,omitempty"`
	PriceAtPurchase decimal.Decimal `json:"priceAtPurchase"`
	BalanceAfter    decimal.Decimal `json:"balanceAfter"`
	Timestamp       time.Time       `json:"timestamp"`
	Identity        string          `json:"identity"`
	ContentAddress  string          `json:"contentAddress,omitempty"`
}

// HistorySnapshot is the persisted unit written to the content-addressable
// store: the full transaction list for one identity, newest-first. Every write
// produces a new content address; the History Index points at the latest one.
type HistorySnapshot struct {
	Identity     string        `json:"identity"`
	LastUpdated  time.Time     `json:"lastUpdated"`
	Transactions []Transaction `json:"transactions"`
}

// Contains reports whether the snapshot already holds a transaction with the
// given id. Used to detect writes that were applied even though the response
// was lost.
func (s *HistorySnapshot) Contains(txId string) bool {
	for _, tx := range s.Transactions {
		if tx.Id == txId {
			return true
		}
	}
	return false
}

// NormalizeIdentity maps an identity string to its canonical form. Identities
// are case-insensitive: two spellings that differ only in case name the same
// ledger owner.
func NormalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

// CatalogItem is a redeemable good from the redemption catalog. The catalog
// price is authoritative at redemption time; client-supplied costs are not
// trusted.
type CatalogItem struct {
	Id   string          `json:"id"`
	Name string          `json:"name"`
	Cost decimal.Decimal `json:"cost"`
}

// PendingWrite is a journaled transaction whose snapshot write has not yet
// been confirmed. The reconciler retries these until they land.
type PendingWrite struct {
	Id          int64       `json:"id"`
	Transaction Transaction `json:"transaction"`
	Attempts    int         `json:"attempts"`
	EnqueuedAt  time.Time   `json:"enqueued_at"`
}
