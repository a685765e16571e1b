package handler

import (
	"net/http"

	"advisorledger/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// SetupRouter wires the middleware chain and every ledger route.
func SetupRouter(h *Handler, jwtSecret string, log zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(RecoveryMiddleware(log))
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1", AuthMiddleware(jwtSecret))
	{
		plans := api.Group("/plans")
		{
			plans.GET("/current", h.GetCurrentPlan)
			plans.GET("/:id", h.GetPlan)
			plans.GET("/:id/reports", h.ListReports)
			plans.GET("/:id/transactions", h.ListTransactions)
			plans.GET("/:id/stats", h.GetPlanStats)
		}

		api.GET("/reports/:id", h.GetReport)

		transactions := api.Group("/transactions")
		{
			transactions.POST("", h.RequestTransaction)
			transactions.GET("/:id", h.GetTransaction)
			transactions.PUT("/:id/cancel", h.CancelTransaction)
		}

		api.GET("/stats/monthly", h.GetMonthlyStats)
		api.GET("/movement-reports/:id", h.GetMovementReport)

		notifications := api.Group("/notifications")
		{
			notifications.GET("", h.ListNotifications)
			notifications.PUT("/read", h.MarkNotificationsRead)
		}

		admin := api.Group("/admin", RequireRole(model.RoleAdmin))
		{
			admin.POST("/clients", h.CreateClient)
			admin.PUT("/clients/:id/active", h.SetClientActive)

			admin.POST("/plans", h.CreatePlan)
			admin.GET("/plans/:id/reconcile", h.ReconcilePlan)

			admin.POST("/reports", h.CreateReport)
			admin.DELETE("/reports/:id", h.DeleteReport)

			admin.PUT("/transactions/:id/resolve", h.ResolveTransaction)
			admin.DELETE("/transactions/:id", h.DeleteTransaction)

			admin.GET("/stats/overview", h.GetOverview)

			admin.POST("/movements", h.ImportMovements)
			admin.GET("/movements/unattached", h.ListUnattachedMovements)
			admin.POST("/movement-reports", h.CreateMovementReport)
			admin.DELETE("/movement-reports/:id", h.DeleteMovementReport)
		}
	}

	return r
}
