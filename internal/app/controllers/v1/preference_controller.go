package v1

import (
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"evidence-agent/internal/app/controllers"
	"evidence-agent/internal/app/models"
	"evidence-agent/internal/app/services"
	"evidence-agent/internal/pkg/code"
)

type PreferenceController struct {
	service *services.PreferenceService
}

func NewPreferenceController(service *services.PreferenceService) *PreferenceController {
	return &PreferenceController{service: service}
}

// Get GET /api/preferences?userId=
func (c *PreferenceController) Get(ctx *gin.Context) {
	pref, err := c.service.Get(ctx.DefaultQuery("userId", services.AnonymousUser))
	if err != nil {
		log.Errorf("get preferences: %v", err)
		controllers.Error(ctx, code.HTTPStatusErr, code.MsgInternal)
		return
	}
	ctx.JSON(code.Success, pref)
}

// Save POST /api/preferences
func (c *PreferenceController) Save(ctx *gin.Context) {
	var req models.PreferenceRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		controllers.Error(ctx, code.ParamErr, code.MsgParamErr)
		return
	}
	if err := c.service.Save(req); err != nil {
		log.Errorf("save preferences: %v", err)
		controllers.Error(ctx, code.HTTPStatusErr, code.MsgInternal)
		return
	}
	ctx.JSON(code.Success, gin.H{"success": true, "message": "Preferences saved"})
}
