package api

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"droplink/internal/server/auth"
	"droplink/internal/server/config"
)

// SetupRouter creates and configures the echo router with all routes and middleware.
func SetupRouter(handler *Handler, verifier *auth.Verifier, cfg *config.Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Global middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Authorization"},
	}))
	e.Use(RequestLogger())

	// Rate limiter on the upload endpoint only
	uploadLimiter := NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	requireAuth := RequireAuth(verifier)

	// Health & stats
	e.GET("/health", handler.HandleHealth)
	e.GET("/api/stats", handler.HandleStats)

	// Public download surface: anyone holding the link may try
	e.GET("/d/:id", handler.HandleDownload)
	e.POST("/d/:id", handler.HandleDownload)
	e.GET("/api/info/:id", handler.HandleInfo)

	// Owner-facing surface
	e.POST("/api/links", handler.HandleUpload, requireAuth, uploadLimiter.Middleware())
	e.GET("/api/links", handler.HandleList, requireAuth)
	e.DELETE("/api/links/:id", handler.HandleDelete, requireAuth)

	return e
}
