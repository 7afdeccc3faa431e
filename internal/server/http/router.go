package http

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rapzz3312/waconsole/internal/logging"
	"github.com/rapzz3312/waconsole/internal/push"
	"github.com/rapzz3312/waconsole/internal/server/app"
)

// RouterConfig controls router construction.
type RouterConfig struct {
	Debug      bool
	EnableCORS bool
}

// NewRouter wires the console handlers, the websocket push endpoint and the
// metrics endpoint into a gin engine.
func NewRouter(service *app.ConsoleService, hub *push.Hub, cfg RouterConfig) *gin.Engine {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Logger())
	engine.Use(gin.Recovery())

	if cfg.EnableCORS {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Requested-With"}
		corsConfig.AllowWebSockets = true
		engine.Use(cors.New(corsConfig))
	}

	handler := NewConsoleHandler(service, logging.NewComponentLogger("HTTP"))

	api := engine.Group("/api")
	{
		api.POST("/pair", handler.Pair)
		api.POST("/execute", handler.Execute)
		api.POST("/disconnect", handler.Disconnect)
		api.GET("/sessions", handler.ListSessions)
		api.DELETE("/sessions/:phone", handler.DisconnectByPath)
	}

	engine.GET("/health", handler.Health)
	engine.GET("/ws", hub.HandleWebSocket)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return engine
}
