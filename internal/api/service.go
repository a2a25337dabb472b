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

package api

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"neurosync-rewards-go/internal/index"
	"neurosync-rewards-go/internal/models"
	"neurosync-rewards-go/internal/reconcile"
	"neurosync-rewards-go/internal/rewards"
	"neurosync-rewards-go/internal/store"

	"github.com/shopspring/decimal"
)

// LedgerService is the validated facade the HTTP handlers and CLIs call into.
// It owns input validation, activity-window enforcement, and the optimistic
// client view; ledger semantics live below it in internal/ledger.
type LedgerService struct {
	ledger  store.RewardLedger
	index   index.HistoryIndex
	cache   *reconcile.Cache
	tracker *rewards.Tracker
	catalog []models.CatalogItem

	mu  sync.Mutex
	rng *rand.Rand
}

func NewLedgerService(rewardLedger store.RewardLedger, historyIndex index.HistoryIndex, cache *reconcile.Cache, catalog []models.CatalogItem) *LedgerService {
	return &LedgerService{
		ledger:  rewardLedger,
		index:   historyIndex,
		cache:   cache,
		tracker: rewards.NewTracker(),
		catalog: catalog,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *LedgerService) HealthCheck(ctx context.Context) error {
	_, _, err := s.index.Get(ctx, "healthcheck")
	if err != nil {
		return fmt.Errorf("history index health check failed: %w", err)
	}
	return nil
}

// Catalog returns the redeemable items.
func (s *LedgerService) Catalog() []models.CatalogItem {
	return s.catalog
}

// draw returns a wheel spin amount from the service's seeded source.
func (s *LedgerService) draw() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return rewards.Spin(s.rng)
}
