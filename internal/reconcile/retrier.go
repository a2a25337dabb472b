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

package reconcile

import (
	"context"
	"fmt"
	"time"

	"neurosync-rewards-go/internal/models"
	"neurosync-rewards-go/internal/store"

	"go.uber.org/zap"
)

// Replayer re-attempts a journaled transaction. Implemented by the ledger
// engine, which dedups against writes that were applied even though the
// original response was lost.
type Replayer interface {
	ReplayPending(ctx context.Context, tx models.Transaction) error
}

// Retrier drains the pending-write journal on a polling interval: degraded
// bootstrap and reward appends are replayed until they land or exhaust their
// attempt budget.
type Retrier struct {
	replayer        Replayer
	journal         store.PendingJournal
	pollingInterval time.Duration
	batchSize       int
	maxAttempts     int

	stopChan chan struct{}
	doneChan chan struct{}
}

func NewRetrier(replayer Replayer, journal store.PendingJournal, cfg models.ReconcilerConfig) (*Retrier, error) {
	if replayer == nil {
		return nil, fmt.Errorf("replayer is required")
	}
	if journal == nil {
		return nil, fmt.Errorf("journal is required")
	}
	if cfg.PollingInterval <= 0 {
		return nil, fmt.Errorf("polling interval must be positive, got %v", cfg.PollingInterval)
	}
	if cfg.MaxAttempts <= 0 {
		return nil, fmt.Errorf("max attempts must be positive, got %d", cfg.MaxAttempts)
	}

	return &Retrier{
		replayer:        replayer,
		journal:         journal,
		pollingInterval: cfg.PollingInterval,
		batchSize:       cfg.BatchSize,
		maxAttempts:     cfg.MaxAttempts,
		stopChan:        make(chan struct{}),
		doneChan:        make(chan struct{}),
	}, nil
}

// Start begins the replay loop. An immediate first pass runs before the
// ticker so restarts drain the backlog without waiting a full interval.
func (r *Retrier) Start(ctx context.Context) {
	zap.L().Info("Starting pending-write retrier",
		zap.Duration("polling_interval", r.pollingInterval),
		zap.Int("batch_size", r.batchSize),
		zap.Int("max_attempts", r.maxAttempts))
	go r.replayLoop(ctx)
}

// Stop gracefully stops the retrier.
func (r *Retrier) Stop() {
	zap.L().Info("Stopping pending-write retrier")
	close(r.stopChan)
	<-r.doneChan
	zap.L().Info("Pending-write retrier stopped")
}

func (r *Retrier) replayLoop(ctx context.Context) {
	defer close(r.doneChan)

	ticker := time.NewTicker(r.pollingInterval)
	defer ticker.Stop()

	r.ReplayBatch(ctx)

	for {
		select {
		case <-ticker.C:
			r.ReplayBatch(ctx)
		case <-r.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// ReplayBatch drains one batch from the journal. Entries that land (or turn
// out to be already applied) are deleted; entries still failing transiently
// stay for the next pass; entries past their attempt budget are dropped with
// an error log, since endless retries would wedge the journal.
func (r *Retrier) ReplayBatch(ctx context.Context) {
	pending, err := r.journal.List(ctx, r.batchSize)
	if err != nil {
		zap.L().Error("Failed to list pending writes", zap.Error(err))
		return
	}
	if len(pending) == 0 {
		return
	}

	zap.L().Info("Replaying pending writes", zap.Int("count", len(pending)))

	var landed, dropped int
	for _, entry := range pending {
		if err := r.journal.MarkAttempt(ctx, entry.Id); err != nil {
			zap.L().Warn("Failed to mark replay attempt",
				zap.Int64("entry_id", entry.Id), zap.Error(err))
		}

		err := r.replayer.ReplayPending(ctx, entry.Transaction)
		if err == nil {
			if derr := r.journal.Delete(ctx, entry.Id); derr != nil {
				zap.L().Warn("Failed to delete replayed entry",
					zap.Int64("entry_id", entry.Id), zap.Error(derr))
			}
			landed++
			continue
		}

		if entry.Attempts+1 >= r.maxAttempts {
			zap.L().Error("Dropping pending write after exhausting attempts",
				zap.Int64("entry_id", entry.Id),
				zap.String("identity", entry.Transaction.Identity),
				zap.String("transaction_id", entry.Transaction.Id),
				zap.Int("attempts", entry.Attempts+1),
				zap.Error(err))
			if derr := r.journal.Delete(ctx, entry.Id); derr != nil {
				zap.L().Warn("Failed to delete exhausted entry",
					zap.Int64("entry_id", entry.Id), zap.Error(derr))
			}
			dropped++
			continue
		}

		zap.L().Warn("Pending write replay failed, will retry",
			zap.Int64("entry_id", entry.Id),
			zap.String("identity", entry.Transaction.Identity),
			zap.Int("attempts", entry.Attempts+1),
			zap.Error(err))
	}

	zap.L().Info("Replay batch finished",
		zap.Int("landed", landed),
		zap.Int("dropped", dropped),
		zap.Int("remaining", len(pending)-landed-dropped))
}
