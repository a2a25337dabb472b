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

const (
	// History Index queries
	queryGetAddress = `
		SELECT address
		FROM history_index
		WHERE identity = ?`

	queryInsertAddress = `
		INSERT OR IGNORE INTO history_index (identity, address, version)
		VALUES (?, ?, 1)`

	queryUpdateAddress = `
		UPDATE history_index
		SET address = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE identity = ? AND address = ?`

	// Pending-write journal queries
	queryInsertPending = `
		INSERT INTO pending_writes (identity, payload, attempts, enqueued_at)
		VALUES (?, ?, 0, ?)`

	queryListPending = `
		SELECT id, payload, attempts, enqueued_at
		FROM pending_writes
		ORDER BY enqueued_at
		LIMIT ?`

	queryListPendingByIdentity = `
		SELECT id, payload, attempts, enqueued_at
		FROM pending_writes
		WHERE identity = ?
		ORDER BY enqueued_at`

	queryMarkPendingAttempt = `
		UPDATE pending_writes
		SET attempts = attempts + 1
		WHERE id = ?`

	queryDeletePending = `
		DELETE FROM pending_writes WHERE id = ?`
)
