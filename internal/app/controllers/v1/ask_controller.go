package v1

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"evidence-agent/internal/app/controllers"
	"evidence-agent/internal/app/models"
	"evidence-agent/internal/app/services"
	"evidence-agent/internal/pkg/code"
	"evidence-agent/pkg/util"
)

// StreamRunner 执行一次问答流
type StreamRunner interface {
	Run(ctx context.Context, question, sessionID string, sink services.EventSink) error
}

type AskController struct {
	runner            StreamRunner
	maxQuestionLength int
	clock             util.Clock
}

func NewAskController(runner StreamRunner, maxQuestionLength int, clock util.Clock) *AskController {
	if clock == nil {
		clock = util.SystemClock
	}
	return &AskController{runner: runner, maxQuestionLength: maxQuestionLength, clock: clock}
}

// Ask POST /api/ask，以 SSE 返回思考进度、引用、正文与完成事件
func (c *AskController) Ask(ctx *gin.Context) {
	var req models.AskRequest
	if err := ctx.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Question) == "" {
		controllers.Error(ctx, code.ParamErr, "Question is required")
		return
	}
	if c.maxQuestionLength > 0 && utf8.RuneCountInString(req.Question) > c.maxQuestionLength {
		controllers.Error(ctx, code.ParamErr, "Question is too long")
		return
	}

	if req.UserID == "" {
		req.UserID = services.AnonymousUser
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	logger := log.WithFields(log.Fields{"session_id": req.SessionID, "user_id": req.UserID})
	logger.Infof("processing question: %s", util.Truncate(req.Question, 100))

	writer := controllers.SSEStart(ctx, c.clock)
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("stream panic: %v", r)
			_ = writer.WriteError(code.MsgInternal)
		}
	}()

	if err := c.runner.Run(ctx.Request.Context(), req.Question, req.SessionID, writer.WriteEvent); err != nil {
		logger.Infof("stream ended: %v", err)
	}
}
