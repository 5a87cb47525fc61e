package main

import (
	"database/sql"
	"time"

	"credits-platform/internal/httpapi"
	"credits-platform/internal/rbac"
	"credits-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, webhook httpapi.WebhookHandler, authMW gin.HandlerFunc, db *sql.DB) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), db, 2*time.Second); err != nil {
			c.JSON(503, gin.H{"status": "degraded"})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Gateway event notifications (signature-verified in the handler).
	r.POST("/webhooks/payment", webhook.Handle)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		credits := v1.Group("/credits")
		{
			credits.GET("/balance", h.GetBalance)
			credits.GET("/history", h.GetHistory)
			credits.POST("/consume", h.ConsumeCredits)
		}

		v1.GET("/charge-options", h.ListChargeOptions)

		charges := v1.Group("/charges")
		{
			charges.POST("", h.CreateCharge)
			charges.GET("/:charge_id", h.GetCharge)
			charges.POST("/confirm", h.ConfirmCharge)
		}

		admin := v1.Group("/admin")
		admin.Use(rbac.RequireAdmin())
		{
			admin.POST("/credits/add", h.AdminAddCredits)
			admin.POST("/credits/subtract", h.AdminSubtractCredits)
			admin.GET("/users/:user_id/credits", h.AdminGetUserCredits)
			admin.POST("/users/:user_id/verify", h.AdminVerifyIntegrity)
			admin.DELETE("/users/:user_id", h.AdminPurgeUser)
			admin.POST("/migrate", h.AdminRunMigration)
		}
	}
}
