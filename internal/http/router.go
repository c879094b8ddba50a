package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"care-relay/internal/domain"
	"care-relay/internal/service"
)

// NewRouter configura el router de Gin con middlewares y rutas del relay.
func NewRouter(
	logger *zap.Logger,
	clientOrigin string,
	auth service.Authenticator,
	wsH *WSHandler,
	sseH *SSEHandler,
	alertsH *AlertsHandler,
	statusH *StatusHandler,
	patientsH *PatientsHandler,
	metricsHandler http.Handler,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y CORS para el dashboard.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), corsMiddleware(clientOrigin))

	r.GET("/healthz", statusH.Health)
	if metricsHandler != nil {
		r.GET("/metrics", gin.WrapH(metricsHandler))
	}

	public := r.Group("/public", jsonContentTypeMiddleware())
	public.GET("/demo-patients", patientsH.DemoPatients)

	// Transportes de larga duración: sin Content-Type forzado.
	r.GET("/ws", AuthMiddleware(auth), wsH.Handle)
	r.GET("/notifications/stream", AuthMiddleware(auth), sseH.Stream)

	api := r.Group("", jsonContentTypeMiddleware(), AuthMiddleware(auth))
	api.POST("/alerts", alertsH.Post)
	api.GET("/sessions", RequireRole(domain.RoleAdmin), statusH.Sessions)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}

// corsMiddleware habilita el origen del dashboard de cuidadores.
func corsMiddleware(origin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if origin != "" {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			h.Set("Access-Control-Allow-Credentials", "true")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
