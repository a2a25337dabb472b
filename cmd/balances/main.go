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

package main

import (
	"context"
	"flag"
	"fmt"

	"neurosync-rewards-go/internal/common"
	"neurosync-rewards-go/internal/config"
	"neurosync-rewards-go/internal/models"

	"go.uber.org/zap"
)

func formatAddress(address string) string {
	if address == "" {
		return "none"
	}
	if len(address) > 12 {
		return address[:12] + "..."
	}
	return address
}

func printTransaction(tx models.Transaction, isLast bool) {
	symbol := common.BoxPrefix(isLast)
	detail := common.BoxDetailPrefix(isLast)

	status := ""
	if tx.Pending {
		status = " [PENDING]"
	}

	fmt.Printf("%s %-8s %10s  %s%s\n",
		symbol,
		tx.Type,
		common.FormatTokens(tx.Amount),
		tx.Timestamp.Format("2006-01-02 15:04:05"),
		status)
	fmt.Printf("%s   %s (snapshot: %s)\n", detail, tx.Description, formatAddress(tx.ContentAddress))

	if tx.Receipt != nil {
		fmt.Printf("%s   receipt: %s @ %s, balance after %s\n",
			detail,
			tx.Receipt.ItemName,
			tx.Receipt.PriceAtPurchase.String(),
			tx.Receipt.BalanceAfter.String())
	}
}

func main() {
	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	identityFlag := flag.String("identity", "", "Identity to report on (required)")
	limitFlag := flag.Int("limit", 20, "Maximum transactions to print")
	flag.Parse()

	if *identityFlag == "" {
		logger.Fatal("Missing required -identity flag")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	ctx := context.Background()
	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	identity := models.NormalizeIdentity(*identityFlag)
	snapshot, err := services.Ledger.History(ctx, identity)
	if err != nil {
		logger.Fatal("Failed to fetch history", zap.String("identity", identity), zap.Error(err))
	}

	balance, err := services.Ledger.Balance(ctx, identity)
	if err != nil {
		logger.Fatal("Failed to reconstruct balance", zap.String("identity", identity), zap.Error(err))
	}

	common.PrintHeader("REWARD LEDGER REPORT", common.DefaultWidth)
	fmt.Printf("\n┌─ Identity: %s\n", identity)
	fmt.Printf("│  Balance: %s tokens (from %d transactions)\n", balance.String(), len(snapshot.Transactions))
	if !snapshot.LastUpdated.IsZero() {
		fmt.Printf("│  Last updated: %s\n", snapshot.LastUpdated.Format("2006-01-02 15:04:05"))
	}

	shown := snapshot.Transactions
	if *limitFlag > 0 && len(shown) > *limitFlag {
		shown = shown[:*limitFlag]
	}
	for i, tx := range shown {
		printTransaction(tx, i == len(shown)-1)
	}

	summary := fmt.Sprintf("SUMMARY: balance %s tokens, %d of %d transactions shown",
		balance.String(), len(shown), len(snapshot.Transactions))
	common.PrintFooter(summary, common.DefaultWidth)

	logger.Info("Balance query completed",
		zap.String("identity", identity),
		zap.String("balance", balance.String()),
		zap.Int("transactions", len(snapshot.Transactions)))
}
