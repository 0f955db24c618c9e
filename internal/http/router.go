package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"streamchat/internal/service"
)

// HealthCheck verifica las dependencias externas (Redis).
type HealthCheck func(ctx context.Context) error

// NewRouter configura el router de Gin con middlewares y rutas del chat.
func NewRouter(
	logger *zap.Logger,
	jwtSvc *service.JWTService,
	chatH *ChatHandler,
	health HealthCheck,
) *gin.Engine {
	r := gin.New()

	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	r.GET("/healthz", healthHandler(health))

	api := r.Group("", JWTAuthMiddleware(jwtSvc))

	chat := api.Group("/chat")
	chat.POST("/messages", chatH.PostMessage)
	chat.GET("/turns/:turnID", chatH.GetTurn)
	chat.GET("/turns/:turnID/stream", chatH.StreamTurn)

	chats := api.Group("/chats")
	chats.GET("", chatH.ListChats)
	chats.GET("/:chatID/history", chatH.LoadHistory)
	chats.POST("/:chatID/reset", chatH.ResetChat)
	chats.DELETE("/:chatID", chatH.DeleteChat)

	return r
}

func healthHandler(check HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		if check != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json; el stream SSE lo pisa.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
