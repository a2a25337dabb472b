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

package httpapi

import (
	"errors"
	"net/http"

	"neurosync-rewards-go/internal/api"
	"neurosync-rewards-go/internal/store"

	"github.com/gin-gonic/gin"
)

// LedgerController handles HTTP requests for the reward ledger.
type LedgerController struct {
	service *api.LedgerService
}

// Health handles GET /healthz
func (c *LedgerController) Health(ctx *gin.Context) {
	if err := c.service.HealthCheck(ctx.Request.Context()); err != nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetLedger handles GET /api/ledger/:identity
func (c *LedgerController) GetLedger(ctx *gin.Context) {
	view, err := c.service.GetLedger(ctx.Request.Context(), ctx.Param("identity"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, view)
}

// Bootstrap handles POST /api/ledger/:identity/bootstrap
func (c *LedgerController) Bootstrap(ctx *gin.Context) {
	view, err := c.service.Bootstrap(ctx.Request.Context(), ctx.Param("identity"))
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, view)
}

// GetCatalog handles GET /api/catalog
func (c *LedgerController) GetCatalog(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"items": c.service.Catalog()})
}

// CheckIn handles POST /api/rewards/checkin
func (c *LedgerController) CheckIn(ctx *gin.Context) {
	type Request struct {
		Identity string `json:"identity" binding:"required"`
		Crisis   bool   `json:"crisis"`
	}
	var req Request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := c.service.CheckIn(ctx.Request.Context(), req.Identity, req.Crisis)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// CompleteQuiz handles POST /api/rewards/quiz
func (c *LedgerController) CompleteQuiz(ctx *gin.Context) {
	type Request struct {
		Identity string `json:"identity" binding:"required"`
		Correct  int    `json:"correct"`
	}
	var req Request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := c.service.CompleteQuiz(ctx.Request.Context(), req.Identity, req.Correct)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// Spin handles POST /api/rewards/spin
func (c *LedgerController) Spin(ctx *gin.Context) {
	type Request struct {
		Identity string `json:"identity" binding:"required"`
	}
	var req Request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := c.service.Spin(ctx.Request.Context(), req.Identity)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// Redeem handles POST /api/redeem
func (c *LedgerController) Redeem(ctx *gin.Context) {
	type Request struct {
		Identity string `json:"identity" binding:"required"`
		ItemId   string `json:"item_id" binding:"required"`
	}
	var req Request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := c.service.Redeem(ctx.Request.Context(), req.Identity, req.ItemId)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// writeError maps ledger errors onto status codes. Business rejections and
// transient store failures are distinct: clients retry a 503, never a 402.
func writeError(ctx *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrInsufficientBalance):
		status = http.StatusPaymentRequired
	case errors.Is(err, store.ErrUnknownItem):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrActivityLimit):
		status = http.StatusTooManyRequests
	case errors.Is(err, store.ErrInvalidAmount):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrConcurrencyConflict):
		status = http.StatusConflict
	case errors.Is(err, store.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	}
	ctx.JSON(status, gin.H{"error": err.Error()})
}
