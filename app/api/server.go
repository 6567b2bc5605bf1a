package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// NewServer creates the HTTP server with all routes configured. Requests are
// authenticated with the gateway's shared key; the acting user comes from the
// X-User-ID header the gateway injects after its own session check.
func NewServer(handler *Handler, apiAccessKey string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

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

	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, X-API-Key, X-User-ID, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	setupRoutes(r, handler, apiAccessKey)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler, apiAccessKey string) {
	r.GET("/health", handler.GetHealth)
	r.GET("/stats", handler.GetStats)

	api := r.Group("/api")
	api.Use(authMiddleware(apiAccessKey))
	api.Use(userMiddleware())
	{
		api.GET("/sources", handler.ListSources)
		api.POST("/sources", handler.CreateSource)
		api.GET("/sources/:id", handler.GetSource)
		api.PUT("/sources/:id", handler.UpdateSource)
		api.POST("/sources/:id/activate", handler.ActivateSource)
		api.POST("/sources/:id/deactivate", handler.DeactivateSource)
		api.POST("/sources/:id/check", handler.CheckSourceNow)
		api.GET("/sources/:id/checks", handler.ListSourceChecks)

		api.GET("/items", handler.ListItems)
		api.POST("/items/:id/approve", handler.ApproveItem)
		api.POST("/items/:id/ignore", handler.IgnoreItem)

		api.GET("/rules", handler.ListRules)
		api.POST("/rules", handler.CreateRule)
		api.GET("/rules/:id", handler.GetRule)
		api.PUT("/rules/:id", handler.UpdateRule)
		api.POST("/rules/:id/pause", handler.PauseRule)
		api.POST("/rules/:id/resume", handler.ResumeRule)

		api.GET("/accounts", handler.ListAccounts)
		api.POST("/accounts/telegram", handler.CreateTelegramChannel)
		api.POST("/accounts/instagram", handler.CreateInstagramAccount)
		api.POST("/accounts/twitter", handler.CreateTwitterAccount)

		api.GET("/posts", handler.ListPosts)
		api.POST("/posts", handler.CreatePost)
		api.GET("/posts/:id", handler.GetPost)
		api.POST("/posts/:id/cancel", handler.CancelPost)

		api.POST("/usage/events", handler.RecordUsageEvent)
		api.GET("/usage/daily", handler.GetDailyUsage)
	}

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(204)
	})
}

func authMiddleware(apiAccessKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-API-Key")

		if providedKey == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				providedKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if providedKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "API key required",
				"message": "Provide API key in X-API-Key header or Authorization: Bearer <key>",
			})
			c.Abort()
			return
		}

		if providedKey != apiAccessKey {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid API key",
				"message": "The provided API key is not valid",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// userMiddleware resolves the acting user from the X-User-ID header. Every
// repository call below is scoped to this id, so cross-tenant reads are
// impossible by construction.
func userMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "User id required",
				"message": "Provide the acting user in the X-User-ID header",
			})
			c.Abort()
			return
		}

		c.Set("user_id", userID)
		c.Next()
	}
}

func currentUserID(c *gin.Context) string {
	return c.GetString("user_id")
}
