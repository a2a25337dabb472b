package api

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"neurosync-rewards-go/internal/cas"
	"neurosync-rewards-go/internal/index"
	"neurosync-rewards-go/internal/ledger"
	"neurosync-rewards-go/internal/models"
	"neurosync-rewards-go/internal/reconcile"
	"neurosync-rewards-go/internal/store"

	"github.com/shopspring/decimal"
)

// hardFailLedger rejects every append outright, as when the retry loop keeps
// losing the index pointer race. Unlike a store outage nothing is journaled,
// so no reward exists at all.
type hardFailLedger struct{}

func (hardFailLedger) EnsureBootstrapped(_ context.Context, _ string) ([]models.Transaction, error) {
	return nil, nil
}

func (hardFailLedger) IssueReward(_ context.Context, _ store.IssueRewardParams) (*models.Transaction, error) {
	return nil, fmt.Errorf("append retries exhausted - %w", store.ErrConcurrencyConflict)
}

func (hardFailLedger) Redeem(_ context.Context, _ store.RedeemParams) (*models.RedeemResult, error) {
	return nil, fmt.Errorf("append retries exhausted - %w", store.ErrConcurrencyConflict)
}

func (hardFailLedger) History(_ context.Context, identity string) (*models.HistorySnapshot, error) {
	return &models.HistorySnapshot{Identity: models.NormalizeIdentity(identity)}, nil
}

func (hardFailLedger) Balance(_ context.Context, _ string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func newHardFailService() *LedgerService {
	failing := hardFailLedger{}
	cache := reconcile.NewCache(failing, index.NewMemoryJournal(), decimal.NewFromInt(100))
	return NewLedgerService(failing, index.NewMemoryIndex(), cache, nil)
}

func newTestService(t *testing.T) *LedgerService {
	t.Helper()

	catalog := []models.CatalogItem{
		{Id: "journal", Name: "Gratitude Journal", Cost: decimal.NewFromInt(100)},
		{Id: "sticker", Name: "Sticker Pack", Cost: decimal.NewFromInt(60)},
	}

	svc, err := ledger.NewService(ledger.Config{
		Objects:       cas.NewMemoryStore(),
		Index:         index.NewMemoryIndex(),
		Catalog:       catalog,
		WelcomeAmount: decimal.NewFromInt(100),
	})
	if err != nil {
		t.Fatalf("Failed to build ledger service: %v", err)
	}

	cache := reconcile.NewCache(svc, svc.Journal(), decimal.NewFromInt(100))
	return NewLedgerService(svc, index.NewMemoryIndex(), cache, catalog)
}

func TestGetLedgerBootstrapsOnFirstLoad(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	view, err := svc.GetLedger(ctx, "0xAlice")
	if err != nil {
		t.Fatalf("GetLedger failed: %v", err)
	}
	if len(view.Transactions) != 1 || view.Transactions[0].Type != models.TxInitial {
		t.Fatalf("Expected the welcome transaction, got %+v", view.Transactions)
	}
	if !view.Balance.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected balance 100, got %s", view.Balance.String())
	}

	if _, err := svc.GetLedger(ctx, ""); err == nil {
		t.Error("Expected error for empty identity")
	}
}

func TestCheckInEnforcesDailyCap(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	result, err := svc.CheckIn(ctx, "0xalice", false)
	if err != nil {
		t.Fatalf("First check-in failed: %v", err)
	}
	if !result.Transaction.Amount.Equal(decimal.NewFromInt(5)) {
		t.Errorf("Expected check-in amount 5, got %s", result.Transaction.Amount.String())
	}

	if _, err := svc.CheckIn(ctx, "0xalice", false); !errors.Is(err, store.ErrActivityLimit) {
		t.Fatalf("Expected ErrActivityLimit on second check-in, got %v", err)
	}

	// Crisis check-ins bypass the cap and pay the higher amount.
	result, err = svc.CheckIn(ctx, "0xalice", true)
	if err != nil {
		t.Fatalf("Crisis check-in failed: %v", err)
	}
	if !result.Transaction.Amount.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Expected crisis amount 10, got %s", result.Transaction.Amount.String())
	}
}

func TestSpinEnforcesWindow(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	result, err := svc.Spin(ctx, "0xalice")
	if err != nil {
		t.Fatalf("First spin failed: %v", err)
	}
	one := decimal.NewFromInt(1)
	ten := decimal.NewFromInt(10)
	if result.Transaction.Amount.LessThan(one) || result.Transaction.Amount.GreaterThan(ten) {
		t.Errorf("Spin amount off the wheel: %s", result.Transaction.Amount.String())
	}

	if _, err := svc.Spin(ctx, "0xalice"); !errors.Is(err, store.ErrActivityLimit) {
		t.Fatalf("Expected ErrActivityLimit on second spin, got %v", err)
	}
}

func TestSpinWindowSurvivesFailedIssue(t *testing.T) {
	svc := newHardFailService()
	ctx := context.Background()

	// The first spin fails hard: no reward was issued, so the attempt must
	// not consume the daily window.
	if _, err := svc.Spin(ctx, "0xalice"); !errors.Is(err, store.ErrConcurrencyConflict) {
		t.Fatalf("Expected ErrConcurrencyConflict, got %v", err)
	}

	_, err := svc.Spin(ctx, "0xalice")
	if errors.Is(err, store.ErrActivityLimit) {
		t.Fatal("Failed spin consumed the activity window")
	}
	if !errors.Is(err, store.ErrConcurrencyConflict) {
		t.Fatalf("Expected ErrConcurrencyConflict on retry, got %v", err)
	}
}

func TestCheckInWindowSurvivesFailedIssue(t *testing.T) {
	svc := newHardFailService()
	ctx := context.Background()

	if _, err := svc.CheckIn(ctx, "0xalice", false); !errors.Is(err, store.ErrConcurrencyConflict) {
		t.Fatalf("Expected ErrConcurrencyConflict, got %v", err)
	}

	_, err := svc.CheckIn(ctx, "0xalice", false)
	if errors.Is(err, store.ErrActivityLimit) {
		t.Fatal("Failed check-in consumed the daily cap")
	}
	if !errors.Is(err, store.ErrConcurrencyConflict) {
		t.Fatalf("Expected ErrConcurrencyConflict on retry, got %v", err)
	}
}

func TestCompleteQuizScalesWithScore(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	result, err := svc.CompleteQuiz(ctx, "0xalice", 4)
	if err != nil {
		t.Fatalf("Quiz completion failed: %v", err)
	}
	if !result.Transaction.Amount.Equal(decimal.NewFromInt(8)) {
		t.Errorf("Expected 8 tokens for 4 correct, got %s", result.Transaction.Amount.String())
	}

	// An all-wrong round pays nothing and appends nothing.
	before, _ := svc.GetLedger(ctx, "0xalice")
	zero, err := svc.CompleteQuiz(ctx, "0xalice", 0)
	if err != nil {
		t.Fatalf("Zero-score quiz failed: %v", err)
	}
	if !zero.NewBalance.Equal(before.Balance) {
		t.Errorf("Zero-score quiz changed the balance: %s != %s", zero.NewBalance.String(), before.Balance.String())
	}

	if _, err := svc.CompleteQuiz(ctx, "0xalice", 9); err == nil {
		t.Error("Expected error for out-of-range score")
	}
}

func TestRedeemUpdatesViewAndBalance(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	// Bootstrap (100) + quiz (10) = 110.
	if _, err := svc.GetLedger(ctx, "0xalice"); err != nil {
		t.Fatalf("GetLedger failed: %v", err)
	}
	if _, err := svc.CompleteQuiz(ctx, "0xalice", 5); err != nil {
		t.Fatalf("Quiz failed: %v", err)
	}

	result, err := svc.Redeem(ctx, "0xalice", "journal")
	if err != nil {
		t.Fatalf("Redeem failed: %v", err)
	}
	if !result.NewBalance.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Expected balance 10 after redemption, got %s", result.NewBalance.String())
	}
	if result.Receipt.ContentAddress == "" {
		t.Error("Receipt should carry the snapshot content address")
	}

	view, _ := svc.GetLedger(ctx, "0xalice")
	if !view.Balance.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Expected reconciled balance 10, got %s", view.Balance.String())
	}

	if _, err := svc.Redeem(ctx, "0xalice", "journal"); !errors.Is(err, store.ErrInsufficientBalance) {
		t.Fatalf("Expected ErrInsufficientBalance, got %v", err)
	}
	if _, err := svc.Redeem(ctx, "0xalice", "unicorn"); !errors.Is(err, store.ErrUnknownItem) {
		t.Fatalf("Expected ErrUnknownItem, got %v", err)
	}
}
