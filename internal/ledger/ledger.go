/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"neurosync-rewards-go/internal/cas"
	"neurosync-rewards-go/internal/index"
	"neurosync-rewards-go/internal/models"
	"neurosync-rewards-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.RewardLedger.
var _ store.RewardLedger = (*Service)(nil)

// errAlreadyApplied signals that a replayed transaction is already present in
// the latest snapshot (the original write landed even though its response was
// lost).
var errAlreadyApplied = errors.New("transaction already applied")

const defaultMaxAppendRetries = 5

// Service is the reward token ledger: a per-identity, append-only transaction
// log persisted as immutable snapshots on a content-addressable store, with
// the History Index as the single mutable pointer.
//
// Every append is a read-modify-write: fetch the latest snapshot through the
// index, prepend the new transaction, write a new snapshot, swap the pointer.
// Appends to the same identity are serialized by a per-identity mutex within
// the process and by compare-and-swap on the index pointer across processes;
// a lost swap retries the whole append with a freshly fetched snapshot.
type Service struct {
	objects    cas.ObjectStore
	index      index.HistoryIndex
	journal    store.PendingJournal
	catalog    map[string]models.CatalogItem
	welcome    decimal.Decimal
	maxRetries int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Config assembles a ledger Service.
type Config struct {
	Objects          cas.ObjectStore
	Index            index.HistoryIndex
	Journal          store.PendingJournal
	Catalog          []models.CatalogItem
	WelcomeAmount    decimal.Decimal
	MaxAppendRetries int
}

func NewService(cfg Config) (*Service, error) {
	if cfg.Objects == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if cfg.Index == nil {
		return nil, fmt.Errorf("history index is required")
	}
	if !cfg.WelcomeAmount.IsPositive() {
		return nil, fmt.Errorf("welcome amount must be positive, got %s", cfg.WelcomeAmount.String())
	}

	maxRetries := cfg.MaxAppendRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxAppendRetries
	}

	journal := cfg.Journal
	if journal == nil {
		journal = index.NewMemoryJournal()
	}

	catalog := make(map[string]models.CatalogItem, len(cfg.Catalog))
	for _, item := range cfg.Catalog {
		catalog[item.Id] = item
	}

	return &Service{
		objects:    cfg.Objects,
		index:      cfg.Index,
		journal:    journal,
		catalog:    catalog,
		welcome:    cfg.WelcomeAmount,
		maxRetries: maxRetries,
		locks:      make(map[string]*sync.Mutex),
	}, nil
}

// History returns the latest persisted snapshot for an identity, or an empty
// snapshot for a never-seen identity. Pure read, never blocks on appends.
func (s *Service) History(ctx context.Context, identity string) (*models.HistorySnapshot, error) {
	key := models.NormalizeIdentity(identity)
	snapshot, _, err := s.loadSnapshot(ctx, key)
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// Balance reconstructs the current balance from the latest snapshot. The
// balance is always derived from the transaction list, never an independent
// counter that could drift.
func (s *Service) Balance(ctx context.Context, identity string) (decimal.Decimal, error) {
	snapshot, err := s.History(ctx, identity)
	if err != nil {
		return decimal.Zero, err
	}
	return Reconstruct(snapshot.Transactions), nil
}

// EnsureBootstrapped grants a welcome transaction to a never-seen identity
// and returns its transaction list. Idempotent: an identity with existing
// history gets its list back unchanged, never a second welcome grant.
//
// If the persistence write fails the welcome transaction is still returned,
// marked Pending and journaled so the reconciler can re-attempt the write
// without the UI losing the balance.
func (s *Service) EnsureBootstrapped(ctx context.Context, identity string) ([]models.Transaction, error) {
	key := models.NormalizeIdentity(identity)
	if key == "" {
		return nil, fmt.Errorf("identity is required")
	}

	lock := s.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	snapshot, address, err := s.loadSnapshot(ctx, key)
	if err != nil {
		return nil, err
	}
	if address != "" {
		return snapshot.Transactions, nil
	}

	// A prior bootstrap attempt may already have journaled a welcome grant
	// during an outage. Reuse it so repeated calls surface one grant with one
	// id, never a second balance.
	welcome, journalId, journaled := s.journaledWelcome(ctx, key)
	if !journaled {
		welcome = models.Transaction{
			Id:          uuid.New().String(),
			Type:        models.TxInitial,
			Amount:      s.welcome,
			Description: "Welcome Bonus",
			Timestamp:   time.Now().UTC(),
			Identity:    key,
		}
	}
	welcome.Pending = false

	newAddress, err := s.persist(ctx, snapshot, welcome, "")
	switch {
	case err == nil:
		welcome.ContentAddress = newAddress
		if journaled {
			if derr := s.journal.Delete(ctx, journalId); derr != nil {
				zap.L().Warn("Failed to drop persisted welcome grant from journal",
					zap.String("identity", key), zap.Error(derr))
			}
		}
		zap.L().Info("Identity bootstrapped",
			zap.String("identity", key),
			zap.String("amount", welcome.Amount.String()),
			zap.String("content_address", newAddress))
		return []models.Transaction{welcome}, nil

	case errors.Is(err, store.ErrStalePointer):
		// Lost the bootstrap race to a concurrent request; the existing
		// history is authoritative.
		snapshot, _, err := s.loadSnapshot(ctx, key)
		if err != nil {
			return nil, err
		}
		return snapshot.Transactions, nil

	case errors.Is(err, store.ErrStoreUnavailable):
		welcome.Pending = true
		if !journaled {
			if jerr := s.journal.Enqueue(ctx, welcome); jerr != nil {
				zap.L().Error("Failed to journal unpersisted welcome grant",
					zap.String("identity", key), zap.Error(jerr))
			}
		}
		zap.L().Warn("Welcome grant unpersisted, returned for optimistic display",
			zap.String("identity", key), zap.Error(err))
		return []models.Transaction{welcome}, nil

	default:
		return nil, err
	}
}

// journaledWelcome looks for an INITIAL grant already sitting in the
// pending-write journal for this identity.
func (s *Service) journaledWelcome(ctx context.Context, identity string) (models.Transaction, int64, bool) {
	entries, err := s.journal.ListByIdentity(ctx, identity)
	if err != nil {
		zap.L().Warn("Failed to check journal for pending welcome grant",
			zap.String("identity", identity), zap.Error(err))
		return models.Transaction{}, 0, false
	}
	for _, entry := range entries {
		if entry.Transaction.Type == models.TxInitial {
			return entry.Transaction, entry.Id, true
		}
	}
	return models.Transaction{}, 0, false
}

// IssueReward appends a REWARD transaction for a completed engagement
// activity. Rewards only increase the balance, so no balance check is made.
// Persistence failures degrade: the transaction is journaled for retry and
// returned marked Pending so the UI can display it immediately.
func (s *Service) IssueReward(ctx context.Context, params store.IssueRewardParams) (*models.Transaction, error) {
	key := models.NormalizeIdentity(params.Identity)
	if key == "" {
		return nil, fmt.Errorf("identity is required")
	}
	if !params.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: reward amount must be positive, got %s", store.ErrInvalidAmount, params.Amount.String())
	}

	description := params.Description
	if description == "" {
		description = params.Reason
	}

	reward := models.Transaction{
		Id:          uuid.New().String(),
		Type:        models.TxReward,
		Amount:      params.Amount,
		Description: description,
		Timestamp:   time.Now().UTC(),
		Identity:    key,
	}

	appended, err := s.append(ctx, key, func(_ decimal.Decimal, _ *models.HistorySnapshot) (*models.Transaction, error) {
		tx := reward
		return &tx, nil
	})
	if err == nil {
		zap.L().Info("Reward issued",
			zap.String("identity", key),
			zap.String("reason", params.Reason),
			zap.String("amount", params.Amount.String()),
			zap.String("transaction_id", appended.Id))
		return appended, nil
	}

	if errors.Is(err, store.ErrStoreUnavailable) {
		reward.Pending = true
		if jerr := s.journal.Enqueue(ctx, reward); jerr != nil {
			zap.L().Error("Failed to journal unpersisted reward",
				zap.String("identity", key), zap.Error(jerr))
		}
		zap.L().Warn("Reward unpersisted, returned for optimistic display",
			zap.String("identity", key),
			zap.String("reason", params.Reason),
			zap.Error(err))
		return &reward, nil
	}

	return nil, err
}

// Redeem validates the non-negative balance invariant and appends a REDEEM
// transaction with its receipt. The catalog price is authoritative. Unlike
// rewards, persistence failures block the purchase: no receipt is ever
// granted for an unpersisted debit.
func (s *Service) Redeem(ctx context.Context, params store.RedeemParams) (*models.RedeemResult, error) {
	key := models.NormalizeIdentity(params.Identity)
	if key == "" {
		return nil, fmt.Errorf("identity is required")
	}

	item, ok := s.catalog[params.ItemId]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrUnknownItem, params.ItemId)
	}

	var receipt models.Receipt
	appended, err := s.append(ctx, key, func(balance decimal.Decimal, _ *models.HistorySnapshot) (*models.Transaction, error) {
		if balance.LessThan(item.Cost) {
			return nil, fmt.Errorf("%w: balance %s, cost %s",
				store.ErrInsufficientBalance, balance.String(), item.Cost.String())
		}

		now := time.Now().UTC()
		receipt = models.Receipt{
			Id:              uuid.New().String(),
			ItemId:          item.Id,
			ItemName:        item.Name,
			PriceAtPurchase: item.Cost,
			BalanceAfter:    balance.Sub(item.Cost),
			Timestamp:       now,
			Identity:        key,
		}
		return &models.Transaction{
			Id:          uuid.New().String(),
			Type:        models.TxRedeem,
			Amount:      item.Cost.Neg(),
			Description: fmt.Sprintf("Redeemed: %s", item.Name),
			Timestamp:   now,
			Identity:    key,
			Receipt:     &receipt,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	// The receipt carries the snapshot address as durable proof of purchase.
	receipt.ContentAddress = appended.ContentAddress
	if appended.Receipt != nil {
		appended.Receipt.ContentAddress = appended.ContentAddress
	}

	zap.L().Info("Redemption completed",
		zap.String("identity", key),
		zap.String("item_id", item.Id),
		zap.String("price", item.Cost.String()),
		zap.String("balance_after", receipt.BalanceAfter.String()),
		zap.String("content_address", appended.ContentAddress))

	return &models.RedeemResult{
		Receipt:     receipt,
		Transaction: *appended,
		NewBalance:  receipt.BalanceAfter,
	}, nil
}

// ReplayPending re-attempts a journaled transaction. Safe against writes that
// were applied even though the original response was lost: a transaction id
// already present in the latest snapshot, or a second INITIAL grant, is
// treated as applied and not appended again.
func (s *Service) ReplayPending(ctx context.Context, tx models.Transaction) error {
	tx.Pending = false
	_, err := s.append(ctx, tx.Identity, func(_ decimal.Decimal, snapshot *models.HistorySnapshot) (*models.Transaction, error) {
		if snapshot.Contains(tx.Id) {
			return nil, errAlreadyApplied
		}
		if tx.Type == models.TxInitial {
			for _, existing := range snapshot.Transactions {
				if existing.Type == models.TxInitial {
					return nil, errAlreadyApplied
				}
			}
		}
		replay := tx
		return &replay, nil
	})
	if errors.Is(err, errAlreadyApplied) {
		zap.L().Info("Pending transaction already applied, dropping",
			zap.String("identity", tx.Identity),
			zap.String("transaction_id", tx.Id))
		return nil
	}
	return err
}

// Journal exposes the pending-write journal to the reconciler.
func (s *Service) Journal() store.PendingJournal { return s.journal }

// Catalog returns the redemption catalog items.
func (s *Service) Catalog() []models.CatalogItem {
	items := make([]models.CatalogItem, 0, len(s.catalog))
	for _, item := range s.catalog {
		items = append(items, item)
	}
	return items
}

// --- append protocol ---

type buildFunc func(balance decimal.Decimal, snapshot *models.HistorySnapshot) (*models.Transaction, error)

// append runs the read-modify-write protocol under the per-identity lock,
// retrying on a stale index pointer with a freshly fetched snapshot.
func (s *Service) append(ctx context.Context, identity string, build buildFunc) (*models.Transaction, error) {
	lock := s.lockFor(identity)
	lock.Lock()
	defer lock.Unlock()

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		snapshot, address, err := s.loadSnapshot(ctx, identity)
		if err != nil {
			return nil, err
		}

		balance := Reconstruct(snapshot.Transactions)
		tx, err := build(balance, snapshot)
		if err != nil {
			return nil, err
		}

		newAddress, err := s.persist(ctx, snapshot, *tx, address)
		if err == nil {
			tx.ContentAddress = newAddress
			return tx, nil
		}
		if errors.Is(err, store.ErrStalePointer) {
			zap.L().Warn("Append lost pointer race, retrying with fresh snapshot",
				zap.String("identity", identity),
				zap.Int("attempt", attempt+1))
			continue
		}
		return nil, err
	}

	return nil, fmt.Errorf("append retries exhausted - %w", store.ErrConcurrencyConflict)
}

// persist validates the transaction, writes the new snapshot, and swaps the
// index pointer. The old snapshot is never mutated; content-addressable
// writes always yield a fresh address.
func (s *Service) persist(ctx context.Context, snapshot *models.HistorySnapshot, tx models.Transaction, oldAddress string) (string, error) {
	if err := validateSign(tx); err != nil {
		return "", err
	}

	newSnapshot := models.HistorySnapshot{
		Identity:    snapshot.Identity,
		LastUpdated: time.Now().UTC(),
		// Newest-first: prepend.
		Transactions: append([]models.Transaction{tx}, snapshot.Transactions...),
	}

	blob, err := json.Marshal(&newSnapshot)
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}

	newAddress, err := s.objects.Put(ctx, blob)
	if err != nil {
		return "", err
	}

	if err := s.index.CompareAndSwap(ctx, snapshot.Identity, oldAddress, newAddress); err != nil {
		return "", err
	}
	return newAddress, nil
}

// loadSnapshot fetches the latest snapshot reachable through the index. A
// never-seen identity yields an empty snapshot and an empty address.
func (s *Service) loadSnapshot(ctx context.Context, identity string) (*models.HistorySnapshot, string, error) {
	address, found, err := s.index.Get(ctx, identity)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read history index: %w", err)
	}
	if !found {
		return &models.HistorySnapshot{Identity: identity}, "", nil
	}

	blob, err := s.objects.Get(ctx, address)
	if err != nil {
		return nil, "", err
	}

	var snapshot models.HistorySnapshot
	if err := json.Unmarshal(blob, &snapshot); err != nil {
		return nil, "", fmt.Errorf("failed to decode snapshot at %s: %w", address, err)
	}
	snapshot.Identity = identity
	return &snapshot, address, nil
}

// validateSign enforces the sign convention at write time instead of trusting
// caller-supplied signs: INITIAL and REWARD are positive, REDEEM is negative.
func validateSign(tx models.Transaction) error {
	if !tx.Type.Valid() {
		return fmt.Errorf("unknown transaction type %q", tx.Type)
	}
	switch tx.Type {
	case models.TxRedeem:
		if !tx.Amount.IsNegative() {
			return fmt.Errorf("%w: REDEEM amount must be negative, got %s", store.ErrInvalidAmount, tx.Amount.String())
		}
	default:
		if !tx.Amount.IsPositive() {
			return fmt.Errorf("%w: %s amount must be positive, got %s", store.ErrInvalidAmount, tx.Type, tx.Amount.String())
		}
	}
	return nil
}

// lockFor returns the mutex serializing appends for one identity.
func (s *Service) lockFor(identity string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[identity]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[identity] = lock
	}
	return lock
}
