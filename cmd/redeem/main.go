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
	"errors"
	"flag"
	"fmt"

	"neurosync-rewards-go/internal/common"
	"neurosync-rewards-go/internal/config"
	"neurosync-rewards-go/internal/store"

	"go.uber.org/zap"
)

func main() {
	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	identityFlag := flag.String("identity", "", "Identity redeeming the item (required)")
	itemFlag := flag.String("item", "", "Catalog item id to redeem (required)")
	listFlag := flag.Bool("list", false, "List catalog items and exit")
	flag.Parse()

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

	if *listFlag {
		common.PrintHeader("REDEMPTION CATALOG", common.DefaultWidth)
		items := services.Ledger.Catalog()
		for i, item := range items {
			fmt.Printf("%s %-12s %8s tokens  %s\n",
				common.BoxPrefix(i == len(items)-1), item.Id, item.Cost.String(), item.Name)
		}
		return
	}

	if *identityFlag == "" || *itemFlag == "" {
		logger.Fatal("Missing required flags: -identity and -item")
	}

	result, err := services.API.Redeem(ctx, *identityFlag, *itemFlag)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrInsufficientBalance):
			logger.Fatal("Redemption rejected: insufficient balance", zap.Error(err))
		case errors.Is(err, store.ErrUnknownItem):
			logger.Fatal("Redemption rejected: unknown catalog item", zap.String("item", *itemFlag))
		default:
			logger.Fatal("Redemption failed", zap.Error(err))
		}
	}

	common.PrintHeader("REDEMPTION RECEIPT", common.DefaultWidth)
	fmt.Printf("\n┌─ Receipt: %s\n", result.Receipt.Id)
	fmt.Printf("│  Identity: %s\n", result.Receipt.Identity)
	fmt.Printf("│  Item: %s (%s)\n", result.Receipt.ItemName, result.Receipt.ItemId)
	fmt.Printf("│  Price: %s tokens\n", result.Receipt.PriceAtPurchase.String())
	fmt.Printf("│  Balance after: %s tokens\n", result.Receipt.BalanceAfter.String())
	fmt.Printf("└  Snapshot: %s\n", result.Receipt.ContentAddress)
	common.PrintFooter("Redemption completed", common.DefaultWidth)

	logger.Info("Redemption completed",
		zap.String("identity", result.Receipt.Identity),
		zap.String("item_id", result.Receipt.ItemId),
		zap.String("new_balance", result.NewBalance.String()))
}
