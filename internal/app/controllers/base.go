package controllers

import (
	"github.com/gin-gonic/gin"

	"evidence-agent/pkg/util"
)

// Error 返回 {"error": message}
func Error(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// SSEStart 写入流式响应头，返回逐帧写出的 writer
func SSEStart(c *gin.Context, clock util.Clock) *util.SSEWriter {
	util.SetSSEHeaders(c.Writer.Header())
	c.Status(200)
	c.Writer.Flush()
	return util.NewSSEWriter(c.Writer, clock)
}

func NotFound(c *gin.Context) {
	Error(c, 404, "Endpoint not found")
}
