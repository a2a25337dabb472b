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

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerView is the authoritative server-side view of one identity: the full
// transaction list plus the balance reconstructed from it. The balance is
// always derived, never a separately maintained counter.
type LedgerView struct {
	Identity     string          `json:"identity"`
	Balance      decimal.Decimal `json:"balance"`
	Transactions []Transaction   `json:"transactions"`
	LastUpdated  time.Time       `json:"lastUpdated"`
	Degraded     bool            `json:"degraded,omitempty"`
}

// RewardResult represents the immediate response to a reward issuance, used
// by clients to update their optimistic view without a full history refetch.
type RewardResult struct {
	Transaction Transaction     `json:"transaction"`
	NewBalance  decimal.Decimal `json:"newBalance"`
}

// RedeemResult represents a successful redemption.
type RedeemResult struct {
	Receipt     Receipt         `json:"receipt"`
	Transaction Transaction     `json:"transaction"`
	NewBalance  decimal.Decimal `json:"newBalance"`
}
