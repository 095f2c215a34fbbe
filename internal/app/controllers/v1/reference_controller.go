package v1

import (
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"evidence-agent/internal/app/controllers"
	"evidence-agent/internal/app/services"
	"evidence-agent/internal/pkg/code"
)

type ReferenceController struct {
	service *services.ReferenceService
}

func NewReferenceController(service *services.ReferenceService) *ReferenceController {
	return &ReferenceController{service: service}
}

// Detail GET /api/references/:id
func (c *ReferenceController) Detail(ctx *gin.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		controllers.Error(ctx, code.ParamErr, "invalid id")
		return
	}

	detail, ok, err := c.service.Detail(ctx.Request.Context(), id)
	if err != nil {
		log.Errorf("get reference %d: %v", id, err)
		controllers.Error(ctx, code.HTTPStatusErr, code.MsgInternal)
		return
	}
	if !ok {
		controllers.Error(ctx, code.NotFound, "Reference not found")
		return
	}
	ctx.JSON(code.Success, detail)
}

// Search GET /api/references/search?q=&limit=
func (c *ReferenceController) Search(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", strconv.Itoa(services.DefaultSearchLimit)))
	results, err := c.service.Search(ctx.Request.Context(), ctx.Query("q"), limit)
	if err != nil {
		log.Errorf("search references: %v", err)
		controllers.Error(ctx, code.HTTPStatusErr, code.MsgInternal)
		return
	}
	ctx.JSON(code.Success, gin.H{"references": results, "count": len(results)})
}

// Stats GET /api/references/stats
func (c *ReferenceController) Stats(ctx *gin.Context) {
	stats, err := c.service.Statistics(ctx.Request.Context())
	if err != nil {
		log.Errorf("reference statistics: %v", err)
		controllers.Error(ctx, code.HTTPStatusErr, "Unable to generate statistics")
		return
	}
	ctx.JSON(code.Success, stats)
}
