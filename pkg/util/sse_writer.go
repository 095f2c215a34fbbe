package util

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"evidence-agent/internal/app/models"
)

// ErrEncoding 单个事件序列化失败，该帧以通用错误帧替代
var ErrEncoding = errors.New("sse encoding fault")

const fallbackFrame = "data: {\"error\":\"SSE format error\"}\n\n"

// TimestampLayout 事件与接口返回统一使用的时间格式
const TimestampLayout = "2006-01-02T15:04:05.000000"

func timestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// EventPayload 将事件按类型扁平化为客户端约定的 JSON 字段
func EventPayload(ev models.StreamEvent) map[string]interface{} {
	var event map[string]interface{}

	switch ev.Kind {
	case models.EventThinkingProgress:
		event = map[string]interface{}{
			"type":       string(ev.Kind),
			"step":       ev.Step,
			"status":     ev.Status,
			"isComplete": false,
		}
	case models.EventThinkingComplete, models.EventContentStart:
		event = map[string]interface{}{
			"type":       string(ev.Kind),
			"isComplete": false,
		}
	case models.EventReferencesLoaded:
		refs := nonNilRefs(ev.References)
		event = map[string]interface{}{
			"type":       string(ev.Kind),
			"references": refs,
			"count":      len(refs),
			"isComplete": false,
		}
	case models.EventContent:
		event = map[string]interface{}{
			"content":    ev.Content,
			"isComplete": false,
		}
	case models.EventCitedContent:
		event = map[string]interface{}{
			"type":       string(ev.Kind),
			"content":    ev.Content,
			"citations":  ev.Citations,
			"isComplete": false,
		}
	case models.EventCompletion:
		followUps := ev.FollowUpQuestions
		if followUps == nil {
			followUps = []string{}
		}
		event = map[string]interface{}{
			"isComplete":        true,
			"references":        nonNilRefs(ev.References),
			"followUpQuestions": followUps,
			"totalContent":      ev.TotalContent,
		}
		if ev.SessionID != "" {
			event["sessionId"] = ev.SessionID
		}
		if ev.Segments != nil {
			event["segments"] = ev.Segments
		}
	case models.EventError:
		event = map[string]interface{}{
			"error":      ev.Error,
			"isComplete": true,
		}
	case models.EventHeartbeat:
		event = map[string]interface{}{
			"type": string(ev.Kind),
		}
	default:
		event = map[string]interface{}{
			"type":       string(ev.Kind),
			"isComplete": false,
		}
	}

	event["timestamp"] = timestamp(ev.Timestamp)
	return event
}

func nonNilRefs(refs []models.EvidenceRecord) []models.EvidenceRecord {
	if refs == nil {
		return []models.EvidenceRecord{}
	}
	return refs
}

// EncodeEvent 生成一帧 "data: <json>\n\n"。序列化失败时返回通用错误帧和 ErrEncoding。
func EncodeEvent(ev models.StreamEvent) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(EventPayload(ev)); err != nil {
		return []byte(fallbackFrame), fmt.Errorf("%w: %s: %v", ErrEncoding, ev.Kind, err)
	}
	// Encoder 追加的换行去掉，payload 内不含换行
	payload := bytes.TrimRight(buf.Bytes(), "\n")

	frame := make([]byte, 0, len(payload)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, payload...)
	frame = append(frame, "\n\n"...)
	return frame, nil
}

// SSEWriter 逐帧写出并立即 flush，不做缓冲与重排
type SSEWriter struct {
	w     io.Writer
	clock Clock
}

func NewSSEWriter(w io.Writer, clock Clock) *SSEWriter {
	if clock == nil {
		clock = SystemClock
	}
	return &SSEWriter{w: w, clock: clock}
}

// WriteEvent 写出一个事件。编码失败时写出替代帧，返回值只反映连接写入错误。
func (s *SSEWriter) WriteEvent(ev models.StreamEvent) error {
	frame, encodeErr := EncodeEvent(ev)
	if encodeErr != nil {
		log.WithError(encodeErr).Warn("sse frame replaced")
	}
	if _, err := s.w.Write(frame); err != nil {
		return err
	}
	s.flush()
	return nil
}

func (s *SSEWriter) WriteError(message string) error {
	return s.WriteEvent(models.StreamEvent{Kind: models.EventError, Error: message, Timestamp: s.clock.Now()})
}

func (s *SSEWriter) flush() {
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
}

// SetSSEHeaders 设置响应头支持流式输出
func SetSSEHeaders(h http.Header) {
	h.Set("Content-Type", "text/event-stream; charset=utf-8")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}
