package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// NewServer creates a new HTTP server with all routes configured
func NewServer(handler *Handler, refreshToken string) *gin.Engine {
	// Set Gin mode (can be controlled via GIN_MODE environment variable)
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// Middleware
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	r.Use(gin.Recovery())

	// CORS middleware for API endpoints
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Routes
	setupRoutes(r, handler, refreshToken)

	return r
}

// setupRoutes configures all the application routes
func setupRoutes(r *gin.Engine, handler *Handler, refreshToken string) {
	// Read endpoints
	r.GET("/feed", handler.GetFeed)
	r.GET("/sitemap", handler.GetSitemap)

	// Health endpoint
	r.GET("/health", handler.GetHealth)

	// Cache-warming endpoint (conditionally enabled with authentication)
	if refreshToken != "" {
		internal := r.Group("/internal")
		internal.Use(refreshTokenMiddleware(refreshToken))
		{
			internal.POST("/refresh", handler.PostRefresh)
		}
		slog.Info("Refresh endpoint enabled with authentication")
	} else {
		slog.Info("Refresh endpoint disabled (REFRESH_TOKEN not set)")
	}

	// Root endpoint with basic information
	r.GET("/", func(c *gin.Context) {
		endpoints := map[string]string{
			"feed":    "/feed?sources=<url,url>&cursor=<token>",
			"sitemap": "/sitemap?url=<source>&page=<n>",
			"health":  "/health",
		}

		if refreshToken != "" {
			endpoints["refresh"] = "/internal/refresh (POST, requires X-Refresh-Token header)"
		}

		c.JSON(200, gin.H{
			"service":     "Letterfeed",
			"description": "Newsletter sitemap and feed aggregation cache",
			"endpoints":   endpoints,
		})
	})

	// Favicon handler (return 204 to avoid 404s)
	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(204)
	})
}

// refreshTokenMiddleware guards the cache-warming endpoint
func refreshTokenMiddleware(refreshToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := c.GetHeader("X-Refresh-Token")

		if provided == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Refresh token required",
				"message": "Provide the token in the X-Refresh-Token header",
			})
			c.Abort()
			return
		}

		if provided != refreshToken {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid refresh token",
				"message": "The provided refresh token is not valid",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
