package reconcile

import (
	"context"
	"testing"
	"time"

	"neurosync-rewards-go/internal/index"
	"neurosync-rewards-go/internal/models"
	"neurosync-rewards-go/internal/store"

	"github.com/shopspring/decimal"
)

// flakyReplayer fails replays until unblocked.
type flakyReplayer struct {
	blocked  bool
	replayed []string
}

func (f *flakyReplayer) ReplayPending(ctx context.Context, tx models.Transaction) error {
	if f.blocked {
		return store.ErrStoreUnavailable
	}
	f.replayed = append(f.replayed, tx.Id)
	return nil
}

func newRetrierForTest(t *testing.T, replayer Replayer, journal store.PendingJournal, maxAttempts int) *Retrier {
	t.Helper()
	retrier, err := NewRetrier(replayer, journal, models.ReconcilerConfig{
		PollingInterval: time.Minute,
		BatchSize:       10,
		MaxAttempts:     maxAttempts,
	})
	if err != nil {
		t.Fatalf("Failed to build retrier: %v", err)
	}
	return retrier
}

func TestReplayBatchDrainsJournal(t *testing.T) {
	ctx := context.Background()
	journal := index.NewMemoryJournal()
	replayer := &flakyReplayer{}

	for _, id := range []string{"a", "b"} {
		err := journal.Enqueue(ctx, models.Transaction{
			Id:       id,
			Type:     models.TxReward,
			Amount:   decimal.NewFromInt(5),
			Identity: "0xabc",
			Pending:  true,
		})
		if err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	retrier := newRetrierForTest(t, replayer, journal, 3)
	retrier.ReplayBatch(ctx)

	if len(replayer.replayed) != 2 {
		t.Fatalf("Expected 2 replays, got %d", len(replayer.replayed))
	}
	remaining, _ := journal.List(ctx, 10)
	if len(remaining) != 0 {
		t.Fatalf("Expected drained journal, got %d entries", len(remaining))
	}
}

func TestReplayBatchKeepsTransientFailures(t *testing.T) {
	ctx := context.Background()
	journal := index.NewMemoryJournal()
	replayer := &flakyReplayer{blocked: true}

	if err := journal.Enqueue(ctx, models.Transaction{
		Id: "a", Type: models.TxReward, Amount: decimal.NewFromInt(5), Identity: "0xabc",
	}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	retrier := newRetrierForTest(t, replayer, journal, 5)
	retrier.ReplayBatch(ctx)

	remaining, _ := journal.List(ctx, 10)
	if len(remaining) != 1 {
		t.Fatalf("Expected entry to remain, got %d entries", len(remaining))
	}
	if remaining[0].Attempts != 1 {
		t.Errorf("Expected 1 recorded attempt, got %d", remaining[0].Attempts)
	}

	// Store recovers: the next pass lands the write.
	replayer.blocked = false
	retrier.ReplayBatch(ctx)
	remaining, _ = journal.List(ctx, 10)
	if len(remaining) != 0 {
		t.Fatalf("Expected drained journal after recovery, got %d entries", len(remaining))
	}
}

func TestReplayBatchDropsExhaustedEntries(t *testing.T) {
	ctx := context.Background()
	journal := index.NewMemoryJournal()
	replayer := &flakyReplayer{blocked: true}

	if err := journal.Enqueue(ctx, models.Transaction{
		Id: "a", Type: models.TxReward, Amount: decimal.NewFromInt(5), Identity: "0xabc",
	}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	retrier := newRetrierForTest(t, replayer, journal, 2)
	retrier.ReplayBatch(ctx)
	retrier.ReplayBatch(ctx)

	remaining, _ := journal.List(ctx, 10)
	if len(remaining) != 0 {
		t.Fatalf("Expected exhausted entry to be dropped, got %d entries", len(remaining))
	}
}

func TestRetrierStartStop(t *testing.T) {
	journal := index.NewMemoryJournal()
	retrier := newRetrierForTest(t, &flakyReplayer{}, journal, 3)

	retrier.Start(context.Background())
	retrier.Stop()
}
