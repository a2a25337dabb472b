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

	"neurosync-rewards-go/internal/models"
)

// GetLedger returns the reconciled view for an identity: transactions merged
// with any optimistically applied ones, and the balance recomputed from that
// list. A new identity is bootstrapped on first load. Never fails outright;
// an unreachable store yields the last known view flagged Degraded.
func (s *LedgerService) GetLedger(ctx context.Context, identity string) (*models.LedgerView, error) {
	if models.NormalizeIdentity(identity) == "" {
		return nil, fmt.Errorf("identity is required")
	}
	return s.cache.Load(ctx, identity), nil
}

// Bootstrap ensures an identity has its welcome grant and returns the
// resulting view. Idempotent; an identity with history gets it back unchanged.
func (s *LedgerService) Bootstrap(ctx context.Context, identity string) (*models.LedgerView, error) {
	key := models.NormalizeIdentity(identity)
	if key == "" {
		return nil, fmt.Errorf("identity is required")
	}

	if _, err := s.ledger.EnsureBootstrapped(ctx, key); err != nil {
		return nil, err
	}
	return s.cache.Load(ctx, key), nil
}
