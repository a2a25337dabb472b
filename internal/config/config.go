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

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"neurosync-rewards-go/internal/models"

	"github.com/shopspring/decimal"
)

func Load() (*models.Config, error) {
	shutdownTimeout, err := getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	requestTimeout, err := getEnvDuration("STORE_REQUEST_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	initialBackoff, err := getEnvDuration("STORE_INITIAL_BACKOFF", 250*time.Millisecond)
	if err != nil {
		return nil, err
	}

	maxBackoff, err := getEnvDuration("STORE_MAX_BACKOFF", 5*time.Second)
	if err != nil {
		return nil, err
	}

	connMaxLifetime, err := getEnvDuration("INDEX_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	connMaxIdleTime, err := getEnvDuration("INDEX_CONN_MAX_IDLE_TIME", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pingTimeout, err := getEnvDuration("INDEX_PING_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	pollingInterval, err := getEnvDuration("RECONCILER_POLLING_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, err
	}

	welcomeAmount, err := getEnvDecimal("LEDGER_WELCOME_AMOUNT", decimal.NewFromInt(100))
	if err != nil {
		return nil, err
	}

	return &models.Config{
		Server: models.ServerConfig{
			Addr:            getEnvString("SERVER_ADDR", ":8080"),
			ShutdownTimeout: shutdownTimeout,
		},
		Store: models.StoreConfig{
			BaseURL:        getEnvString("STORE_BASE_URL", ""),
			RequestTimeout: requestTimeout,
			MaxRetries:     getEnvInt("STORE_MAX_RETRIES", 3),
			InitialBackoff: initialBackoff,
			MaxBackoff:     maxBackoff,
			RatePerSecond:  getEnvFloat("STORE_RATE_PER_SECOND", 10),
			RateBurst:      getEnvInt("STORE_RATE_BURST", 20),
		},
		Index: models.IndexConfig{
			Path:            getEnvString("INDEX_PATH", "rewards.db"),
			MaxOpenConns:    getEnvInt("INDEX_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("INDEX_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
		},
		Ledger: models.LedgerConfig{
			WelcomeAmount:    welcomeAmount,
			MaxAppendRetries: getEnvInt("LEDGER_MAX_APPEND_RETRIES", 5),
			CatalogFile:      getEnvString("CATALOG_FILE", "catalog.yaml"),
		},
		Reconciler: models.ReconcilerConfig{
			PollingInterval: pollingInterval,
			BatchSize:       getEnvInt("RECONCILER_BATCH_SIZE", 50),
			MaxAttempts:     getEnvInt("RECONCILER_MAX_ATTEMPTS", 10),
		},
	}, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) (decimal.Decimal, error) {
	if value := os.Getenv(key); value != "" {
		amount, err := decimal.NewFromString(value)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid decimal for %s: %q (%w)", key, value, err)
		}
		return amount, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
