package models

import "time"

// EventKind 流式事件类型
type EventKind string

const (
	EventThinkingProgress EventKind = "thinking_progress"
	EventThinkingComplete EventKind = "thinking_complete"
	EventReferencesLoaded EventKind = "references_loaded"
	EventContentStart     EventKind = "content_start"
	EventContent          EventKind = "content"
	EventCitedContent     EventKind = "cited_content"
	EventCompletion       EventKind = "completion"
	EventError            EventKind = "error"
	EventHeartbeat        EventKind = "heartbeat"
)

// StreamEvent 所有下行事件的统一结构，由 util.EncodeEvent 按 Kind 扁平化输出
type StreamEvent struct {
	Kind      EventKind
	Timestamp time.Time

	// thinking_progress
	Step   string
	Status string

	// references_loaded / completion
	References []EvidenceRecord

	// content / cited_content
	Content   string
	Citations []int

	// completion
	FollowUpQuestions []string
	TotalContent      string
	SessionID         string
	Segments          []Segment

	// error
	Error string
}

// IsTerminal 是否为终止事件
func (e StreamEvent) IsTerminal() bool {
	return e.Kind == EventCompletion || e.Kind == EventError
}

// IsContent 是否为正文事件（需要节流）
func (e StreamEvent) IsContent() bool {
	return e.Kind == EventContent || e.Kind == EventCitedContent
}

// AskRequest 问答请求
type AskRequest struct {
	Question  string `json:"question" binding:"required"`
	UserID    string `json:"userId,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}
