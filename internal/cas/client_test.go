package cas

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"neurosync-rewards-go/internal/models"
	"neurosync-rewards-go/internal/store"
)

func newTestClient(t *testing.T, baseURL string, maxRetries int) *Client {
	t.Helper()
	client, err := NewClient(models.StoreConfig{
		BaseURL:        baseURL,
		RequestTimeout: 2 * time.Second,
		MaxRetries:     maxRetries,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		RatePerSecond:  1000,
		RateBurst:      100,
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client
}

func TestClientPutGetRoundTrip(t *testing.T) {
	blobs := make(map[string][]byte)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/objects":
			body, _ := io.ReadAll(r.Body)
			address := Address(body)
			blobs[address] = body
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]string{"address": address})
		case r.Method == http.MethodGet:
			address := r.URL.Path[len("/objects/"):]
			blob, ok := blobs[address]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = w.Write(blob)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 2)
	ctx := context.Background()

	payload := []byte(`{"identity":"0xabc","transactions":[]}`)
	address, err := client.Put(ctx, payload)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if address != Address(payload) {
		t.Errorf("Expected content-derived address %s, got %s", Address(payload), address)
	}

	got, err := client.Get(ctx, address)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("Round-trip mismatch: got %s", got)
	}
}

func TestClientGetNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 2)
	_, err := client.Get(context.Background(), "deadbeef")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestClientRetriesTransientFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"address": "abc123"})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 3)
	address, err := client.Put(context.Background(), []byte("{}"))
	if err != nil {
		t.Fatalf("Put should succeed after retries: %v", err)
	}
	if address != "abc123" {
		t.Errorf("Expected address abc123, got %s", address)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func TestClientExhaustedRetriesReturnsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 1)
	_, err := client.Put(context.Background(), []byte("{}"))
	if !errors.Is(err, store.ErrStoreUnavailable) {
		t.Errorf("Expected ErrStoreUnavailable, got %v", err)
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	mem := NewMemoryStore()
	ctx := context.Background()

	blob := []byte(`{"identity":"0xabc"}`)
	address, err := mem.Put(ctx, blob)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := mem.Get(ctx, address)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != string(blob) {
		t.Errorf("Round-trip mismatch: got %s", got)
	}

	// Identical content maps to the identical address.
	again, err := mem.Put(ctx, blob)
	if err != nil {
		t.Fatalf("Second Put failed: %v", err)
	}
	if again != address {
		t.Errorf("Content addressing broken: %s != %s", again, address)
	}

	if _, err := mem.Get(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing blob, got %v", err)
	}
}
