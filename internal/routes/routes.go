package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/partnerhub/engine/internal/handlers"
	"github.com/partnerhub/engine/internal/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// Options carries what the router needs beyond the handler
type Options struct {
	JWTSecret   string
	RateLimiter *middleware.RateLimiter
	DB          *gorm.DB
}

// RegisterOpsRoutes registers health and metrics endpoints
func RegisterOpsRoutes(router *gin.Engine, db *gorm.DB) {
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		if db != nil {
			sqlDB, err := db.DB()
			if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// RegisterPartnerRoutes registers the routes partners call with their own token
func RegisterPartnerRoutes(router *gin.Engine, h *handlers.Handler, opts Options) {
	api := router.Group("/api")
	if opts.RateLimiter != nil {
		api.Use(opts.RateLimiter.IPRateLimiterMiddleware())
	}
	api.Use(middleware.AuthMiddleware(opts.JWTSecret))

	api.GET("/partners/by-code/:code", h.GetByCode)
	api.GET("/leaderboard", h.Leaderboard)

	me := api.Group("/me")
	{
		me.PUT("/profile", h.UpdateProfile)
		me.GET("/dashboard", h.Dashboard)
		me.GET("/earnings", h.Earnings)
		me.GET("/team", h.Team)
		me.POST("/activate", h.Activate)
		me.GET("/excellence", h.Excellence)
		me.GET("/tours", h.Tours)
		me.GET("/earning-referrals", h.EarningReferrals)
	}

	walletGroup := api.Group("/wallet")
	{
		walletGroup.POST("/transfers", h.Transfer)
		walletGroup.POST("/withdrawals", h.Withdraw)
		walletGroup.GET("/history", h.WalletHistory)
	}
}

// RegisterAdminRoutes registers operator routes. Registration sits here
// since only the signup service, holding an admin token, creates partners.
func RegisterAdminRoutes(router *gin.Engine, h *handlers.Handler, opts Options) {
	router.POST("/api/partners",
		middleware.AuthMiddleware(opts.JWTSecret), middleware.AdminMiddleware(), h.Register)

	admin := router.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware(opts.JWTSecret), middleware.AdminMiddleware())
	{
		admin.POST("/deposits", h.Deposit)
		admin.POST("/partners/:id/activate", h.ActivatePartner)
		admin.GET("/withdrawals", h.ListWithdrawals)
		admin.POST("/withdrawals/:id/approve", h.ApproveWithdrawal)
		admin.POST("/withdrawals/:id/reject", h.RejectWithdrawal)
		admin.POST("/tours", h.CreateTour)
	}
}

// Setup registers every route on router
func Setup(router *gin.Engine, h *handlers.Handler, opts Options) {
	RegisterOpsRoutes(router, opts.DB)
	RegisterPartnerRoutes(router, h, opts)
	RegisterAdminRoutes(router, h, opts)
}
