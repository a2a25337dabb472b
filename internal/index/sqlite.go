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

package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"neurosync-rewards-go/internal/models"
	"neurosync-rewards-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Compile-time checks: *SQLiteIndex must satisfy both contracts.
var (
	_ HistoryIndex         = (*SQLiteIndex)(nil)
	_ store.PendingJournal = (*SQLiteIndex)(nil)
)

// SQLiteIndex is the durable History Index backend. The pointer row carries a
// version and the swap is a conditional UPDATE, so concurrent appends cannot
// silently overwrite each other. It also hosts the pending-write journal used
// for degraded-mode retries.
type SQLiteIndex struct {
	db *sql.DB
}

func NewSQLiteIndex(ctx context.Context, cfg models.IndexConfig) (*SQLiteIndex, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("index database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Opening SQLite history index", zap.String("file", cfg.Path))
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000")
	if err != nil {
		return nil, fmt.Errorf("unable to open index database: %w", err)
	}

	// Set connection timeouts and limits
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test connection with timeout
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, cerr
		}
		return nil, fmt.Errorf("unable to ping index database: %w", err)
	}

	idx := &SQLiteIndex{db: db}
	if err := idx.initSchema(); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, cerr
		}
		return nil, fmt.Errorf("unable to initialize index schema: %w", err)
	}

	zap.L().Info("History index initialized successfully")
	return idx, nil
}

func (s *SQLiteIndex) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close index database connection", zap.Error(err))
	}
}

func (s *SQLiteIndex) initSchema() error {
	schema := `
	-- History Index: identity -> latest snapshot address (the only mutable pointer)
	CREATE TABLE IF NOT EXISTS history_index (
		identity TEXT PRIMARY KEY,
		address TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- Pending-write journal: transactions handed to callers before their
	-- snapshot write was confirmed
	CREATE TABLE IF NOT EXISTS pending_writes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		identity TEXT NOT NULL,
		payload TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		enqueued_at TIMESTAMP NOT NULL
	);

	-- Create index for identity lookups on the journal
	CREATE INDEX IF NOT EXISTS idx_pending_writes_identity ON pending_writes(identity);
	-- Create index for enqueue order
	CREATE INDEX IF NOT EXISTS idx_pending_writes_enqueued_at ON pending_writes(enqueued_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteIndex) Get(ctx context.Context, identity string) (string, bool, error) {
	var address string
	err := s.db.QueryRowContext(ctx, queryGetAddress, models.NormalizeIdentity(identity)).Scan(&address)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get index entry: %w", err)
	}
	return address, true, nil
}

func (s *SQLiteIndex) CompareAndSwap(ctx context.Context, identity, oldAddress, newAddress string) error {
	key := models.NormalizeIdentity(identity)

	var result sql.Result
	var err error
	if oldAddress == "" {
		result, err = s.db.ExecContext(ctx, queryInsertAddress, key, newAddress)
	} else {
		result, err = s.db.ExecContext(ctx, queryUpdateAddress, newAddress, key, oldAddress)
	}
	if err != nil {
		return fmt.Errorf("failed to swap index pointer: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		zap.L().Warn("History index pointer swap lost race",
			zap.String("identity", key),
			zap.String("expected_address", oldAddress))
		return fmt.Errorf("index swap failed - %w", store.ErrStalePointer)
	}
	return nil
}

// --- Pending-write journal ---

func (s *SQLiteIndex) Enqueue(ctx context.Context, tx models.Transaction) error {
	payload, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("failed to marshal pending transaction: %w", err)
	}

	_, err = s.db.ExecContext(ctx, queryInsertPending, tx.Identity, string(payload), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to enqueue pending write: %w", err)
	}

	zap.L().Info("Journaled unpersisted transaction for retry",
		zap.String("identity", tx.Identity),
		zap.String("transaction_id", tx.Id),
		zap.String("type", string(tx.Type)))
	return nil
}

func (s *SQLiteIndex) List(ctx context.Context, limit int) ([]models.PendingWrite, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, queryListPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending writes: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var pending []models.PendingWrite
	for rows.Next() {
		var entry models.PendingWrite
		var payload string
		if err := rows.Scan(&entry.Id, &payload, &entry.Attempts, &entry.EnqueuedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pending write: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &entry.Transaction); err != nil {
			return nil, fmt.Errorf("failed to decode pending transaction payload: %w", err)
		}
		pending = append(pending, entry)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during pending write row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating pending write rows: %w", err)
	}

	return pending, nil
}

func (s *SQLiteIndex) ListByIdentity(ctx context.Context, identity string) ([]models.PendingWrite, error) {
	rows, err := s.db.QueryContext(ctx, queryListPendingByIdentity, models.NormalizeIdentity(identity))
	if err != nil {
		return nil, fmt.Errorf("failed to list pending writes for identity: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var pending []models.PendingWrite
	for rows.Next() {
		var entry models.PendingWrite
		var payload string
		if err := rows.Scan(&entry.Id, &payload, &entry.Attempts, &entry.EnqueuedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pending write: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &entry.Transaction); err != nil {
			return nil, fmt.Errorf("failed to decode pending transaction payload: %w", err)
		}
		pending = append(pending, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending write rows: %w", err)
	}

	return pending, nil
}

func (s *SQLiteIndex) MarkAttempt(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, queryMarkPendingAttempt, id); err != nil {
		return fmt.Errorf("failed to mark pending write attempt: %w", err)
	}
	return nil
}

func (s *SQLiteIndex) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, queryDeletePending, id); err != nil {
		return fmt.Errorf("failed to delete pending write: %w", err)
	}
	return nil
}
