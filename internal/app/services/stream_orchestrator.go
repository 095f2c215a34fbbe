package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"evidence-agent/internal/app/models"
	"evidence-agent/internal/pkg/metrics"
	"evidence-agent/pkg/util"
)

const (
	DefaultChunkTimeout      = 60 * time.Second
	DefaultHeartbeatInterval = 15 * time.Second
)

// Upstream 上游对话补全流。两个通道在流结束时都会被关闭，错误最多发送一次。
type Upstream interface {
	ChatStream(ctx context.Context, question string) (<-chan models.Chunk, <-chan error)
}

// EventSink 写出一个事件，返回错误表示客户端已不可写
type EventSink func(models.StreamEvent) error

// ReferencesHook 会话加载引用后调用（如写入共享引用缓存）
type ReferencesHook func(ctx context.Context, refs []models.EvidenceRecord)

var (
	errClientGone     = errors.New("client gone")
	errUpstreamClosed = errors.New("upstream closed")
)

// StreamOrchestrator 将上游分块分类并转换为有序的下行事件。
// 每个请求一次 Run，会话状态只在该次 Run 内部使用。
type StreamOrchestrator struct {
	upstream          Upstream
	followUps         FollowUpGenerator
	pacer             util.Pacer
	clock             util.Clock
	chunkTimeout      time.Duration
	heartbeatInterval time.Duration
	onReferences      ReferencesHook
}

type OrchestratorOption func(*StreamOrchestrator)

func WithPacer(p util.Pacer) OrchestratorOption {
	return func(o *StreamOrchestrator) { o.pacer = p }
}

func WithClock(c util.Clock) OrchestratorOption {
	return func(o *StreamOrchestrator) { o.clock = c }
}

// WithChunkTimeout 等待下一个分块的最长时间，<=0 关闭
func WithChunkTimeout(d time.Duration) OrchestratorOption {
	return func(o *StreamOrchestrator) { o.chunkTimeout = d }
}

// WithHeartbeat 上游静默期间的心跳间隔，<=0 关闭
func WithHeartbeat(d time.Duration) OrchestratorOption {
	return func(o *StreamOrchestrator) { o.heartbeatInterval = d }
}

func WithFollowUps(g FollowUpGenerator) OrchestratorOption {
	return func(o *StreamOrchestrator) { o.followUps = g }
}

func WithReferencesHook(h ReferencesHook) OrchestratorOption {
	return func(o *StreamOrchestrator) { o.onReferences = h }
}

func NewStreamOrchestrator(upstream Upstream, opts ...OrchestratorOption) *StreamOrchestrator {
	o := &StreamOrchestrator{
		upstream:          upstream,
		followUps:         KeywordFollowUps{},
		pacer:             util.NoPacer{},
		clock:             util.SystemClock,
		chunkTimeout:      DefaultChunkTimeout,
		heartbeatInterval: DefaultHeartbeatInterval,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type sessionState struct {
	id       string
	question string
	logger   *log.Entry

	answer           strings.Builder
	references       []models.EvidenceRecord
	evidenceIDs      EvidenceIDs
	groundingLoaded  bool
	thinkingComplete bool
	contentStarted   bool
	finishReason     string
}

// Run 处理一次问答流：每个分块最多触发一个分支，单块失败只跳过该块；
// 上游连接失败或超时发送 error 事件终止。成功时最后一个事件为 completion。
// 客户端断开后不再写出任何事件，返回的错误包含 context 的错误。
func (o *StreamOrchestrator) Run(ctx context.Context, question, sessionID string, sink EventSink) (err error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := &sessionState{
		id:       sessionID,
		question: question,
		logger:   log.WithField("session_id", sessionID),
	}
	started := o.clock.Now()
	defer func() {
		outcome := "completed"
		switch {
		case errors.Is(err, errClientGone):
			outcome = "client_gone"
		case err != nil:
			outcome = "errored"
		}
		metrics.Streams.WithLabelValues(outcome).Inc()
		metrics.StreamDuration.Observe(o.clock.Now().Sub(started).Seconds())
	}()

	chunks, errs := o.upstream.ChatStream(ctx, question)
	for {
		chunk, err := o.next(ctx, s, chunks, errs, sink)
		if err != nil {
			if errors.Is(err, errUpstreamClosed) {
				return o.finishOnClose(ctx, s, sink)
			}
			return err
		}

		done, err := o.handleChunk(ctx, s, chunk, sink)
		switch {
		case err == nil:
		case errors.Is(err, errClientGone):
			return err
		default:
			metrics.ChunkFaults.Inc()
			s.logger.WithError(err).Warnf("skip %s chunk", chunk.Kind)
		}
		if done {
			return nil
		}
	}
}

// next 等待下一个分块；期间按间隔发送心跳
func (o *StreamOrchestrator) next(ctx context.Context, s *sessionState, chunks <-chan models.Chunk, errs <-chan error, sink EventSink) (models.Chunk, error) {
	var timeout <-chan time.Time
	if o.chunkTimeout > 0 {
		timeout = o.clock.After(o.chunkTimeout)
	}
	for {
		var heartbeat <-chan time.Time
		if o.heartbeatInterval > 0 {
			heartbeat = o.clock.After(o.heartbeatInterval)
		}

		select {
		case <-ctx.Done():
			return models.Chunk{}, fmt.Errorf("%w: %v", errClientGone, ctx.Err())

		case chunk, ok := <-chunks:
			if ok {
				return chunk, nil
			}
			// 分块通道关闭后，错误通道上要么有一个错误，要么随即关闭
			if errs != nil {
				if err, ok := <-errs; ok && err != nil {
					return models.Chunk{}, o.fail(ctx, s, sink, fmt.Errorf("%w: %v", ErrUpstreamStream, err))
				}
			}
			return models.Chunk{}, errUpstreamClosed

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				return models.Chunk{}, o.fail(ctx, s, sink, fmt.Errorf("%w: %v", ErrUpstreamStream, err))
			}

		case <-heartbeat:
			if err := o.emit(ctx, sink, models.StreamEvent{Kind: models.EventHeartbeat}); err != nil {
				return models.Chunk{}, err
			}

		case <-timeout:
			return models.Chunk{}, o.fail(ctx, s, sink,
				fmt.Errorf("%w: no chunk within %s", ErrUpstreamStream, o.chunkTimeout))
		}
	}
}

// handleChunk 按分块类型处理；panic 转为 ErrChunkClassification
func (o *StreamOrchestrator) handleChunk(ctx context.Context, s *sessionState, chunk models.Chunk, sink EventSink) (done bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Debugf("faulty chunk: %s", util.GetJson(chunk))
			done = false
			err = fmt.Errorf("%w: %v", ErrChunkClassification, r)
		}
	}()

	switch chunk.Kind {
	case models.ChunkThinking:
		return false, o.onThinking(ctx, s, chunk.Thinking, sink)
	case models.ChunkGrounding:
		return false, o.onGrounding(ctx, s, chunk.Grounding, sink)
	case models.ChunkTextDelta:
		return false, o.onText(ctx, s, chunk.Text, sink)
	case models.ChunkFinish:
		return o.onFinish(ctx, s, chunk.FinishReason, sink)
	default:
		s.logger.Debug("skip unrecognized chunk")
		return false, nil
	}
}

func (o *StreamOrchestrator) onThinking(ctx context.Context, s *sessionState, update *models.ThinkingUpdate, sink EventSink) error {
	if update == nil {
		return fmt.Errorf("%w: thinking chunk without payload", ErrChunkClassification)
	}
	switch update.Status {
	case models.ThinkingInProgress:
		step, ok := update.LatestStep()
		if !ok {
			return nil
		}
		return o.emit(ctx, sink, models.StreamEvent{
			Kind:   models.EventThinkingProgress,
			Step:   step.Label,
			Status: step.Status,
		})
	case models.ThinkingCompleted:
		if s.thinkingComplete {
			return nil
		}
		s.thinkingComplete = true
		return o.emit(ctx, sink, models.StreamEvent{Kind: models.EventThinkingComplete})
	}
	return nil
}

func (o *StreamOrchestrator) onGrounding(ctx context.Context, s *sessionState, block *models.GroundingBlock, sink EventSink) error {
	if block == nil {
		return fmt.Errorf("%w: grounding chunk without payload", ErrChunkClassification)
	}
	if s.groundingLoaded {
		s.logger.Debugf("ignore repeated grounding block with %d entries", len(block.Evidence))
		return nil
	}
	s.groundingLoaded = true
	s.references = NormalizeEvidence(block.Evidence)
	s.evidenceIDs = NewEvidenceIDs(s.references)
	s.logger.Infof("loaded %d references", len(s.references))

	if err := o.emit(ctx, sink, models.StreamEvent{
		Kind:       models.EventReferencesLoaded,
		References: s.references,
	}); err != nil {
		return err
	}
	if o.onReferences != nil {
		o.onReferences(ctx, s.references)
	}
	return nil
}

func (o *StreamOrchestrator) onText(ctx context.Context, s *sessionState, text string, sink EventSink) error {
	if text == "" {
		return nil
	}
	s.answer.WriteString(text)

	if !s.contentStarted {
		s.contentStarted = true
		if err := o.emit(ctx, sink, models.StreamEvent{Kind: models.EventContentStart}); err != nil {
			return err
		}
	}

	content, citations := ExtractCitations(text, s.evidenceIDs)
	ev := models.StreamEvent{Kind: models.EventContent, Content: content}
	if len(citations) > 0 {
		ev.Kind = models.EventCitedContent
		ev.Citations = citations
	}
	if err := o.emit(ctx, sink, ev); err != nil {
		return err
	}
	if err := o.pacer.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", errClientGone, err)
	}
	return nil
}

func (o *StreamOrchestrator) onFinish(ctx context.Context, s *sessionState, reason string, sink EventSink) (bool, error) {
	s.finishReason = reason
	if reason != models.FinishReasonStop {
		s.logger.Debugf("finish reason %q, waiting for upstream to close", reason)
		return false, nil
	}
	return true, o.complete(ctx, s, sink)
}

// finishOnClose 上游关闭：收到过结束信号则正常完成，否则视为上游异常
func (o *StreamOrchestrator) finishOnClose(ctx context.Context, s *sessionState, sink EventSink) error {
	if s.finishReason == "" {
		return o.fail(ctx, s, sink, fmt.Errorf("%w: stream ended before completion", ErrUpstreamStream))
	}
	s.logger.Warnf("upstream closed after finish reason %q", s.finishReason)
	return o.complete(ctx, s, sink)
}

func (o *StreamOrchestrator) complete(ctx context.Context, s *sessionState, sink EventSink) error {
	answer := s.answer.String()
	followUps := o.generateFollowUps(ctx, s, answer)
	refs := s.references
	if refs == nil {
		refs = []models.EvidenceRecord{}
	}
	err := o.emit(ctx, sink, models.StreamEvent{
		Kind:              models.EventCompletion,
		References:        refs,
		FollowUpQuestions: followUps,
		TotalContent:      answer,
		SessionID:         s.id,
		Segments:          SegmentText(answer, s.evidenceIDs),
	})
	if err != nil {
		return err
	}
	s.logger.Infof("stream completed, %d chars, %d references", len(answer), len(refs))
	return nil
}

// generateFollowUps 生成器异常时退回默认问题
func (o *StreamOrchestrator) generateFollowUps(ctx context.Context, s *sessionState, answer string) (questions []string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorf("generate follow-up questions panic: %v", r)
			questions = append([]string(nil), util.DefaultFollowUps...)
		}
	}()
	return o.followUps.Generate(ctx, s.question, answer)
}

// fail 发送终止 error 事件并返回原始错误
func (o *StreamOrchestrator) fail(ctx context.Context, s *sessionState, sink EventSink, cause error) error {
	s.logger.WithError(cause).Error("stream terminated")
	if err := o.emit(ctx, sink, models.StreamEvent{
		Kind:  models.EventError,
		Error: fmt.Sprintf("Stream processing error: %v", cause),
	}); err != nil {
		return err
	}
	return cause
}

func (o *StreamOrchestrator) emit(ctx context.Context, sink EventSink, ev models.StreamEvent) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", errClientGone, err)
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = o.clock.Now()
	}
	if err := sink(ev); err != nil {
		return fmt.Errorf("%w: %v", errClientGone, err)
	}
	metrics.StreamEvents.WithLabelValues(string(ev.Kind)).Inc()
	return nil
}
