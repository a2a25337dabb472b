package ledger

import (
	"encoding/json"
	"math/rand"
	"testing"

	"neurosync-rewards-go/internal/models"

	"github.com/shopspring/decimal"
)

func tx(txType models.TransactionType, amount int64) models.Transaction {
	return models.Transaction{Type: txType, Amount: decimal.NewFromInt(amount)}
}

func TestReconstructEmptyListIsZero(t *testing.T) {
	if balance := Reconstruct(nil); !balance.Equal(decimal.Zero) {
		t.Errorf("Expected 0 for empty list, got %s", balance.String())
	}
}

func TestReconstructSumsAmounts(t *testing.T) {
	transactions := []models.Transaction{
		tx(models.TxInitial, 100),
		tx(models.TxReward, 5),
		tx(models.TxReward, 6),
		tx(models.TxRedeem, -100),
	}
	balance := Reconstruct(transactions)
	if !balance.Equal(decimal.NewFromInt(11)) {
		t.Errorf("Expected 11, got %s", balance.String())
	}
}

func TestReconstructIsOrderIndependent(t *testing.T) {
	transactions := []models.Transaction{
		tx(models.TxInitial, 100),
		tx(models.TxReward, 3),
		tx(models.TxReward, 8),
		tx(models.TxRedeem, -50),
		tx(models.TxReward, 2),
	}
	want := Reconstruct(transactions)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := make([]models.Transaction, len(transactions))
		copy(shuffled, transactions)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		if got := Reconstruct(shuffled); !got.Equal(want) {
			t.Fatalf("Order changed the balance: %s != %s", got.String(), want.String())
		}
	}
}

func TestReconstructSkipsMalformedAmounts(t *testing.T) {
	// A snapshot persisted with a corrupted amount must not abort the read;
	// the bad transaction contributes zero.
	blob := []byte(`{
		"identity": "0xabc",
		"transactions": [
			{"id": "a", "type": "INITIAL", "amount": "100", "identity": "0xabc"},
			{"id": "b", "type": "REWARD", "amount": "not-a-number", "identity": "0xabc"},
			{"id": "c", "type": "REWARD", "amount": 6, "identity": "0xabc"}
		]
	}`)

	var snapshot models.HistorySnapshot
	if err := json.Unmarshal(blob, &snapshot); err != nil {
		t.Fatalf("Snapshot decode failed: %v", err)
	}

	if !snapshot.Transactions[1].AmountInvalid {
		t.Error("Expected malformed amount to be flagged")
	}

	balance := Reconstruct(snapshot.Transactions)
	if !balance.Equal(decimal.NewFromInt(106)) {
		t.Errorf("Expected 106 (malformed amount excluded), got %s", balance.String())
	}
}
