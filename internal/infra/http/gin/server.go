package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"staybook/internal/infra/config"
	"staybook/internal/infra/obs"
)

type BookingHTTP interface {
	Create(c *gin.Context)
	Accept(c *gin.Context)
	Decline(c *gin.Context)
	Cancel(c *gin.Context)
	Complete(c *gin.Context)
	NoShow(c *gin.Context)
	ListMine(c *gin.Context)
	Get(c *gin.Context)
	RefundPreview(c *gin.Context)
	Quote(c *gin.Context)
}

type PayoutHTTP interface {
	Begin(c *gin.Context)
	Settle(c *gin.Context)
	Fail(c *gin.Context)
	Retry(c *gin.Context)
	Get(c *gin.Context)
	ListDue(c *gin.Context)
}

type Handlers struct {
	Booking BookingHTTP
	Payout  PayoutHTTP
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key", headerGuestID, headerHostID, headerAdminID},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if h.Booking != nil {
		api.GET("/quotes", h.Booking.Quote)
		api.POST("/bookings", h.Booking.Create)
		api.GET("/bookings/:id", h.Booking.Get)
		api.GET("/bookings/:id/refund-preview", h.Booking.RefundPreview)
		api.POST("/bookings/:id/accept", h.Booking.Accept)
		api.POST("/bookings/:id/decline", h.Booking.Decline)
		api.POST("/bookings/:id/cancel", h.Booking.Cancel)
		api.POST("/bookings/:id/complete", h.Booking.Complete)
		api.POST("/bookings/:id/no-show", h.Booking.NoShow)
		api.GET("/me/bookings", h.Booking.ListMine)
	}
	if h.Payout != nil {
		payoutGroup := api.Group("/payouts")
		payoutGroup.GET("/due", h.Payout.ListDue)
		payoutGroup.GET("/:booking_id", h.Payout.Get)
		payoutGroup.POST("/:booking_id/begin", h.Payout.Begin)
		payoutGroup.POST("/:booking_id/settle", h.Payout.Settle)
		payoutGroup.POST("/:booking_id/fail", h.Payout.Fail)
		payoutGroup.POST("/:booking_id/retry", h.Payout.Retry)
	}

	return &http.Server{Addr: cfg.HTTPAddr, Handler: router}
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
