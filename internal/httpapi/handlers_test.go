package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"neurosync-rewards-go/internal/api"
	"neurosync-rewards-go/internal/cas"
	"neurosync-rewards-go/internal/index"
	"neurosync-rewards-go/internal/ledger"
	"neurosync-rewards-go/internal/models"
	"neurosync-rewards-go/internal/reconcile"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	catalog := []models.CatalogItem{
		{Id: "journal", Name: "Gratitude Journal", Cost: decimal.NewFromInt(100)},
	}

	historyIndex := index.NewMemoryIndex()
	svc, err := ledger.NewService(ledger.Config{
		Objects:       cas.NewMemoryStore(),
		Index:         historyIndex,
		Catalog:       catalog,
		WelcomeAmount: decimal.NewFromInt(100),
	})
	if err != nil {
		t.Fatalf("Failed to build ledger service: %v", err)
	}

	cache := reconcile.NewCache(svc, svc.Journal(), decimal.NewFromInt(100))
	return NewRouter(api.NewLedgerService(svc, historyIndex, cache, catalog))
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)
	w := doJSON(t, router, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetLedgerBootstrapsNewIdentity(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/ledger/0xAlice", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var view models.LedgerView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("Failed to decode view: %v", err)
	}
	if view.Identity != "0xalice" {
		t.Errorf("Expected normalized identity, got %q", view.Identity)
	}
	if !view.Balance.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected welcome balance 100, got %s", view.Balance.String())
	}
	if len(view.Transactions) != 1 || view.Transactions[0].Type != models.TxInitial {
		t.Errorf("Expected a single INITIAL transaction, got %+v", view.Transactions)
	}
}

func TestRewardEndpoints(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/rewards/checkin", gin.H{"identity": "0xalice"})
	if w.Code != http.StatusOK {
		t.Fatalf("Check-in failed: %d %s", w.Code, w.Body.String())
	}
	var result models.RewardResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("Failed to decode result: %v", err)
	}
	if !result.Transaction.Amount.Equal(decimal.NewFromInt(5)) {
		t.Errorf("Expected check-in amount 5, got %s", result.Transaction.Amount.String())
	}

	// Second check-in the same day is rejected with 429.
	w = doJSON(t, router, http.MethodPost, "/api/rewards/checkin", gin.H{"identity": "0xalice"})
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected 429 on repeat check-in, got %d", w.Code)
	}

	w = doJSON(t, router, http.MethodPost, "/api/rewards/quiz", gin.H{"identity": "0xalice", "correct": 5})
	if w.Code != http.StatusOK {
		t.Fatalf("Quiz failed: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodPost, "/api/rewards/spin", gin.H{"identity": "0xalice"})
	if w.Code != http.StatusOK {
		t.Fatalf("Spin failed: %d %s", w.Code, w.Body.String())
	}
	w = doJSON(t, router, http.MethodPost, "/api/rewards/spin", gin.H{"identity": "0xalice"})
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected 429 on repeat spin, got %d", w.Code)
	}

	// Missing identity is a binding error.
	w = doJSON(t, router, http.MethodPost, "/api/rewards/spin", gin.H{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for missing identity, got %d", w.Code)
	}
}

func TestRedeemEndpointErrorMapping(t *testing.T) {
	router := newTestRouter(t)

	// Fund the identity first: welcome grant of 100.
	if w := doJSON(t, router, http.MethodGet, "/api/ledger/0xalice", nil); w.Code != http.StatusOK {
		t.Fatalf("Bootstrap load failed: %d", w.Code)
	}

	w := doJSON(t, router, http.MethodPost, "/api/redeem", gin.H{"identity": "0xalice", "item_id": "journal"})
	if w.Code != http.StatusOK {
		t.Fatalf("Redeem failed: %d %s", w.Code, w.Body.String())
	}
	var result models.RedeemResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("Failed to decode result: %v", err)
	}
	if !result.NewBalance.Equal(decimal.Zero) {
		t.Errorf("Expected balance 0 after redemption, got %s", result.NewBalance.String())
	}
	if result.Receipt.ContentAddress == "" {
		t.Error("Receipt should carry the snapshot content address")
	}

	// Balance is now 0: the same purchase is rejected with 402.
	w = doJSON(t, router, http.MethodPost, "/api/redeem", gin.H{"identity": "0xalice", "item_id": "journal"})
	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("Expected 402, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodPost, "/api/redeem", gin.H{"identity": "0xalice", "item_id": "unicorn"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404 for unknown item, got %d", w.Code)
	}
}

func TestCatalogEndpoint(t *testing.T) {
	router := newTestRouter(t)
	w := doJSON(t, router, http.MethodGet, "/api/catalog", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var body struct {
		Items []models.CatalogItem `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode catalog: %v", err)
	}
	if len(body.Items) != 1 || body.Items[0].Id != "journal" {
		t.Fatalf("Unexpected catalog: %+v", body.Items)
	}
}
