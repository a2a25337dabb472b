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
	"neurosync-rewards-go/internal/rewards"
	"neurosync-rewards-go/internal/store"

	"go.uber.org/zap"
)

// CheckIn issues the daily mood check-in reward. Crisis check-ins pay a higher
// fixed amount and are exempt from the one-per-day cap; a user reaching out in
// a bad moment is never told they already checked in.
func (s *LedgerService) CheckIn(ctx context.Context, identity string, crisis bool) (*models.RewardResult, error) {
	key := models.NormalizeIdentity(identity)
	if key == "" {
		return nil, fmt.Errorf("identity is required")
	}

	reason := rewards.ReasonDailyCheckIn
	description := "Daily Check-in Reward"
	amount := rewards.CheckInAmount
	if crisis {
		reason = rewards.ReasonCrisisCheckIn
		description = "Check-in Reward"
		amount = rewards.CrisisCheckInAmount
	} else if !s.tracker.TryCheckIn(key) {
		zap.L().Info("Check-in outside activity window",
			zap.String("identity", key))
		return nil, fmt.Errorf("already checked in today - %w", store.ErrActivityLimit)
	}

	tx, err := s.ledger.IssueReward(ctx, store.IssueRewardParams{
		Identity:    key,
		Reason:      reason,
		Description: description,
		Amount:      amount,
	})
	if err != nil {
		// The check-in never happened; release the window so the user can try
		// again today.
		if !crisis {
			s.tracker.ResetCheckIn(key)
		}
		return nil, err
	}
	return s.rewardResult(ctx, tx), nil
}

// CompleteQuiz issues the reward for a finished quiz round, scaled by correct
// answers. Quiz progress itself is client-local; only the payout is recorded.
func (s *LedgerService) CompleteQuiz(ctx context.Context, identity string, correct int) (*models.RewardResult, error) {
	key := models.NormalizeIdentity(identity)
	if key == "" {
		return nil, fmt.Errorf("identity is required")
	}

	amount, err := rewards.QuizAmount(correct)
	if err != nil {
		return nil, err
	}
	if amount.IsZero() {
		// Nothing to append; an all-wrong round is not a ledger event.
		return &models.RewardResult{NewBalance: s.cache.Load(ctx, key).Balance}, nil
	}

	tx, err := s.ledger.IssueReward(ctx, store.IssueRewardParams{
		Identity:    key,
		Reason:      rewards.ReasonQuizCompletion,
		Description: fmt.Sprintf("Quiz Reward (%d/%d correct)", correct, rewards.QuizQuestionCount),
		Amount:      amount,
	})
	if err != nil {
		return nil, err
	}
	return s.rewardResult(ctx, tx), nil
}

// Spin runs the daily reward wheel: one spin per rolling 24-hour window, with
// a uniform draw over the wheel segments.
func (s *LedgerService) Spin(ctx context.Context, identity string) (*models.RewardResult, error) {
	key := models.NormalizeIdentity(identity)
	if key == "" {
		return nil, fmt.Errorf("identity is required")
	}

	if !s.tracker.TrySpin(key) {
		zap.L().Info("Spin outside activity window",
			zap.String("identity", key))
		return nil, fmt.Errorf("already spun within the last 24 hours - %w", store.ErrActivityLimit)
	}

	amount := s.draw()
	tx, err := s.ledger.IssueReward(ctx, store.IssueRewardParams{
		Identity:    key,
		Reason:      rewards.ReasonDailySpin,
		Description: fmt.Sprintf("Daily Spin Reward (%s tokens)", amount.String()),
		Amount:      amount,
	})
	if err != nil {
		// No reward was issued, so the spin must not consume the window.
		s.tracker.ResetSpin(key)
		return nil, err
	}
	return s.rewardResult(ctx, tx), nil
}

// rewardResult applies the new transaction to the optimistic view and reports
// the balance recomputed from the merged list.
func (s *LedgerService) rewardResult(ctx context.Context, tx *models.Transaction) *models.RewardResult {
	s.cache.ApplyReward(tx)
	view := s.cache.Load(ctx, tx.Identity)
	return &models.RewardResult{
		Transaction: *tx,
		NewBalance:  view.Balance,
	}
}
