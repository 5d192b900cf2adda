package routes

import (
	"time"

	"bookly/handlers"
	"bookly/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes wires CORS and every route group onto the engine.
func RegisterRoutes(r *gin.Engine, sh *handlers.SettlementHandler, ah *handlers.AdminHandler) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	RegisterSettlementRoutes(r, sh)
	RegisterAdminRoutes(r, ah)
	RegisterHealthRoute(r)
}

// RegisterSettlementRoutes registers the party-facing confirmation and
// earnings endpoints.
func RegisterSettlementRoutes(r *gin.Engine, sh *handlers.SettlementHandler) {
	api := r.Group("/api/settlement")
	{
		api.POST("/confirmations/:id/client", sh.ConfirmAsClientHandler)
		api.POST("/confirmations/:id/professional", sh.ConfirmAsProfessionalHandler)
		api.GET("/confirmations/:id", sh.GetConfirmationHandler)
		api.GET("/professionals/:professionalId/confirmations", sh.ListConfirmationsHandler)
		api.GET("/professionals/:professionalId/earnings", sh.ListEarningsHandler)
	}
}

// RegisterAdminRoutes registers the token-guarded admin surface.
func RegisterAdminRoutes(r *gin.Engine, ah *handlers.AdminHandler) {
	api := r.Group("/api/admin")
	api.Use(middleware.AdminAuthMiddleware())
	{
		api.POST("/confirmations/:id/resolve", ah.ResolveDisputeHandler)
		api.POST("/fee-charges/:id/waive", ah.WaiveFeeHandler)
		api.POST("/payouts/:id/reprocess", ah.ReprocessPayoutHandler)
		api.POST("/settlement/run", ah.RunSettlementHandler)
		api.PUT("/settlement/fee-percent", ah.SetFeePercentHandler)
		api.GET("/cycles", ah.ListCyclesHandler)
		api.GET("/cycles/:id", ah.GetCycleHandler)
	}
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", handlers.HealthHandler)
}
