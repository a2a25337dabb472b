package api

import (
	"context"
	"errors"
	"fmt"

	"neurosync-rewards-go/internal/models"
	"neurosync-rewards-go/internal/store"

	"go.uber.org/zap"
)

// Redeem purchases a catalog item. Unlike rewards this never degrades: a
// redemption either lands durably with a receipt or fails with no side
// effects.
func (s *LedgerService) Redeem(ctx context.Context, identity, itemId string) (*models.RedeemResult, error) {
	key := models.NormalizeIdentity(identity)
	if key == "" || itemId == "" {
		return nil, fmt.Errorf("identity and item_id are required")
	}

	result, err := s.ledger.Redeem(ctx, store.RedeemParams{
		Identity: key,
		ItemId:   itemId,
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrInsufficientBalance):
			zap.L().Info("Redemption rejected, insufficient balance",
				zap.String("identity", key),
				zap.String("item_id", itemId))
		case errors.Is(err, store.ErrUnknownItem):
			zap.L().Info("Redemption rejected, unknown item",
				zap.String("identity", key),
				zap.String("item_id", itemId))
		default:
			zap.L().Error("Redemption failed",
				zap.String("identity", key),
				zap.String("item_id", itemId),
				zap.Error(err))
		}
		return nil, err
	}

	s.cache.ApplyRedemption(result)
	return result, nil
}
