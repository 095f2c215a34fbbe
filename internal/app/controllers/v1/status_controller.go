package v1

import (
	"context"

	"github.com/gin-gonic/gin"

	"evidence-agent/internal/pkg/code"
	"evidence-agent/pkg/util"
)

const Version = "2.0.0"

// Availability 上游模型可用性检查
type Availability interface {
	Available(ctx context.Context) bool
}

type StatusController struct {
	probe   Availability
	model   string
	apiBase string
	clock   util.Clock
}

func NewStatusController(probe Availability, model, apiBase string, clock util.Clock) *StatusController {
	if clock == nil {
		clock = util.SystemClock
	}
	return &StatusController{probe: probe, model: model, apiBase: apiBase, clock: clock}
}

// Health GET /health
func (c *StatusController) Health(ctx *gin.Context) {
	ctx.JSON(code.Success, gin.H{
		"status":    "healthy",
		"timestamp": c.clock.Now().Format(util.TimestampLayout),
		"version":   Version,
		"model":     c.model,
		"services": gin.H{
			"llm":       c.probe.Available(ctx.Request.Context()),
			"citation":  true,
			"streaming": true,
		},
	})
}

// ModelStatus GET /api/model/status
func (c *StatusController) ModelStatus(ctx *gin.Context) {
	ctx.JSON(code.Success, gin.H{
		"model_name": c.model,
		"available":  c.probe.Available(ctx.Request.Context()),
		"api_base":   c.apiBase,
		"last_check": c.clock.Now().Format(util.TimestampLayout),
	})
}
