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
	"neurosync-rewards-go/internal/api"

	"github.com/gin-gonic/gin"
)

// NewRouter wires the reward ledger endpoints. The caller owns the http.Server
// around it.
func NewRouter(service *api.LedgerService) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	controller := &LedgerController{service: service}

	router.GET("/healthz", controller.Health)

	apiGroup := router.Group("/api")
	{
		apiGroup.GET("/ledger/:identity", controller.GetLedger)
		apiGroup.POST("/ledger/:identity/bootstrap", controller.Bootstrap)
		apiGroup.GET("/catalog", controller.GetCatalog)
		apiGroup.POST("/rewards/checkin", controller.CheckIn)
		apiGroup.POST("/rewards/quiz", controller.CompleteQuiz)
		apiGroup.POST("/rewards/spin", controller.Spin)
		apiGroup.POST("/redeem", controller.Redeem)
	}

	return router
}
