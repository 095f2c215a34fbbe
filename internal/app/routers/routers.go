package routers

import (
	"sync"

	"github.com/gin-gonic/gin"

	"evidence-agent/internal/app/controllers"
	v1 "evidence-agent/internal/app/controllers/v1"
	"evidence-agent/internal/app/services"
	"evidence-agent/internal/pkg/metrics"
	"evidence-agent/pkg/config"
	"evidence-agent/pkg/util"
)

var apiOnce sync.Once
var g *gin.Engine

// Handlers 各路由组的控制器
type Handlers struct {
	Ask         *v1.AskController
	References  *v1.ReferenceController
	Preferences *v1.PreferenceController
	Status      *v1.StatusController
}

// SetUp 使用 services 单例构建路由，需在 services.Init 之后调用
func SetUp() *gin.Engine {
	apiOnce.Do(func() {
		openaiConf := config.GetOpenaiConf()
		h := Handlers{
			Ask:         v1.NewAskController(services.Orchestrator, config.GetStreamingConf().MaxQuestionLength, util.SystemClock),
			References:  v1.NewReferenceController(services.References),
			Preferences: v1.NewPreferenceController(services.Preferences),
			Status:      v1.NewStatusController(services.ModelProbe, openaiConf.Model, openaiConf.BaseURL, util.SystemClock),
		}
		g = NewEngine(gin.Default(), h, config.GetServerConf().CorsOrigins)
	})

	return g
}

func NewEngine(g *gin.Engine, h Handlers, corsOrigins []string) *gin.Engine {
	// 跨域中间件
	g.Use(corsMiddleware(corsOrigins))

	g.GET("/health", h.Status.Health)
	g.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := g.Group("/api")
	{
		api.POST("/ask", h.Ask.Ask)
		api.GET("/model/status", h.Status.ModelStatus)
		api.GET("/preferences", h.Preferences.Get)
		api.POST("/preferences", h.Preferences.Save)
	}

	referenceGroup := api.Group("/references")
	{
		referenceGroup.GET("/search", h.References.Search)
		referenceGroup.GET("/stats", h.References.Stats)
		referenceGroup.GET("/:id", h.References.Detail)
	}

	g.NoRoute(controllers.NotFound)
	return g
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (allowed[origin] || allowed["*"]) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Origin")
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Add("Vary", "Origin")
		}
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
