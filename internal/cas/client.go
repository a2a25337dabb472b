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

package cas

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"neurosync-rewards-go/internal/models"
	"neurosync-rewards-go/internal/store"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Compile-time check: *Client must satisfy ObjectStore.
var _ ObjectStore = (*Client)(nil)

// Client talks to the remote content-addressable store over HTTP. The store
// is slow, rate-limited and occasionally unavailable, so every call is
// time-bounded, rate-limited client-side, and retried with exponential
// backoff on transient failures.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	limiter        *rate.Limiter
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

type putResponse struct {
	Address string `json:"address"`
}

// NewClient creates a store client from configuration.
func NewClient(cfg models.StoreConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("store base URL cannot be empty")
	}
	if cfg.RequestTimeout <= 0 {
		return nil, fmt.Errorf("request timeout must be positive, got %v", cfg.RequestTimeout)
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max retries cannot be negative, got %d", cfg.MaxRetries)
	}

	ratePerSecond := cfg.RatePerSecond
	if ratePerSecond <= 0 {
		ratePerSecond = 10
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 5
	}
	initialBackoff := cfg.InitialBackoff
	if initialBackoff <= 0 {
		initialBackoff = 100 * time.Millisecond
	}
	maxBackoff := cfg.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = 5 * time.Second
	}

	zap.L().Info("Initializing content store client",
		zap.String("base_url", cfg.BaseURL),
		zap.Duration("request_timeout", cfg.RequestTimeout),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Float64("rate_per_second", ratePerSecond))

	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:     &http.Client{Timeout: cfg.RequestTimeout},
		limiter:        rate.NewLimiter(rate.Limit(ratePerSecond), burst),
		maxRetries:     cfg.MaxRetries,
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
	}, nil
}

// Put uploads a blob and returns its content address.
func (c *Client) Put(ctx context.Context, blob []byte) (string, error) {
	var address string
	err := c.withRetries(ctx, "put", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/objects", bytes.NewReader(blob))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return &transientError{err}
		}
		defer closeBody(resp.Body)

		if isRetryableStatus(resp.StatusCode) {
			return &transientError{fmt.Errorf("store returned status %d", resp.StatusCode)}
		}
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			return fmt.Errorf("store returned status %d", resp.StatusCode)
		}

		var pr putResponse
		if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
			return fmt.Errorf("failed to decode put response: %w", err)
		}
		if pr.Address == "" {
			return fmt.Errorf("store returned empty address")
		}
		address = pr.Address
		return nil
	})
	if err != nil {
		return "", err
	}
	return address, nil
}

// Get downloads the blob stored at address.
func (c *Client) Get(ctx context.Context, address string) ([]byte, error) {
	if address == "" {
		return nil, fmt.Errorf("address cannot be empty")
	}

	var blob []byte
	err := c.withRetries(ctx, "get", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/objects/"+address, nil)
		if err != nil {
			return err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return &transientError{err}
		}
		defer closeBody(resp.Body)

		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: object %s", store.ErrNotFound, address)
		}
		if isRetryableStatus(resp.StatusCode) {
			return &transientError{fmt.Errorf("store returned status %d", resp.StatusCode)}
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("store returned status %d", resp.StatusCode)
		}

		blob, err = io.ReadAll(resp.Body)
		if err != nil {
			return &transientError{err}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return blob, nil
}

// withRetries runs op with rate limiting and exponential backoff. Transient
// failures that survive every attempt surface as ErrStoreUnavailable so
// callers can select degraded-mode behavior.
func (c *Client) withRetries(ctx context.Context, opName string, op func() error) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", store.ErrStoreUnavailable, err)
		}

		err := op()
		if err == nil {
			return nil
		}

		var transient *transientError
		if !errors.As(err, &transient) {
			return err
		}
		lastErr = transient.cause

		if attempt < c.maxRetries {
			backoff := c.backoffFor(attempt)
			zap.L().Warn("Content store call failed, retrying",
				zap.String("op", opName),
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr))

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", store.ErrStoreUnavailable, ctx.Err())
			}
		}
	}

	zap.L().Error("Content store call exhausted retries",
		zap.String("op", opName),
		zap.Int("attempts", c.maxRetries+1),
		zap.Error(lastErr))
	return fmt.Errorf("%w: %v", store.ErrStoreUnavailable, lastErr)
}

// backoffFor returns the exponential backoff for an attempt with 10% jitter.
func (c *Client) backoffFor(attempt int) time.Duration {
	backoff := c.initialBackoff
	for i := 0; i < attempt; i++ {
		backoff *= 2
		if backoff >= c.maxBackoff {
			backoff = c.maxBackoff
			break
		}
	}
	jitter := time.Duration(rand.Int63n(int64(backoff)/10 + 1))
	return backoff + jitter
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// transientError wraps failures worth retrying (network errors, 429, 5xx).
type transientError struct {
	cause error
}

func (e *transientError) Error() string { return e.cause.Error() }
func (e *transientError) Unwrap() error { return e.cause }

func closeBody(body io.ReadCloser) {
	if err := body.Close(); err != nil {
		zap.L().Warn("Failed to close response body", zap.Error(err))
	}
}
