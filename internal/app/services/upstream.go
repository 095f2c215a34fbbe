package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"evidence-agent/internal/app/models"
	"evidence-agent/pkg/config"
	"evidence-agent/pkg/util"
)

// UpstreamClient OpenAI 兼容的上游（Baichuan M2 Plus）
type UpstreamClient struct {
	client openai.Client
	conf   config.Openai
}

func NewUpstreamClient(conf config.Openai, opts ...option.RequestOption) *UpstreamClient {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(conf.ApiKey),
		option.WithBaseURL(conf.BaseURL),
	}
	reqOpts = append(reqOpts, opts...)
	return &UpstreamClient{
		client: openai.NewClient(reqOpts...),
		conf:   conf,
	}
}

func (p *UpstreamClient) BaseURL() string {
	return p.conf.BaseURL
}

func (p *UpstreamClient) Model() string {
	return p.conf.Model
}

func (p *UpstreamClient) params(msg []openai.ChatCompletionMessageParamUnion, temperature float64, maxTokens int64) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages:    msg,
		Model:       p.conf.Model,
		Temperature: openai.Float(temperature),
	}
	if p.conf.TopP > 0 {
		params.TopP = openai.Float(p.conf.TopP)
	}
	if maxTokens > 0 {
		params.MaxTokens = openai.Int(maxTokens)
	}
	return params
}

// ChatStream 发起流式问答，逐块解码后写入通道
func (p *UpstreamClient) ChatStream(ctx context.Context, question string) (<-chan models.Chunk, <-chan error) {
	chunkChan := make(chan models.Chunk)
	errorChan := make(chan error, 1) // 缓冲通道，避免goroutine泄漏

	go func() {
		defer close(chunkChan)
		defer close(errorChan)

		msg := []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(p.conf.SystemPrompt),
			openai.UserMessage(question),
		}
		log.Infof("sending question upstream: %s", truncateForLog(question))

		stream := p.client.Chat.Completions.NewStreaming(ctx, p.params(msg, p.conf.Temperature, p.conf.MaxTokens))
		defer stream.Close()

		for stream.Next() {
			for _, chunk := range DecodeChunks(stream.Current().RawJSON()) {
				select {
				case chunkChan <- chunk:
				case <-ctx.Done():
					return
				}
			}
		}

		if err := stream.Err(); err != nil && ctx.Err() == nil {
			errorChan <- err
		}
	}()

	return chunkChan, errorChan
}

// Complete 非流式补全，用于生成后续问题
func (p *UpstreamClient) Complete(ctx context.Context, prompt string) (string, error) {
	msg := []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)}
	chatCompletion, err := p.client.Chat.Completions.New(ctx, p.params(msg, 0.3, 200))
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(chatCompletion.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return chatCompletion.Choices[0].Message.Content, nil
}

// DecodeChunks 将一个原始上游分块解码为带标签的 Chunk。
// 优先级：thinking > grounding > 文本增量 > 结束信号。同一原始分块同时带文本和
// finish_reason 时拆成两个 Chunk（先文本后结束），保证每个 Chunk 只有一种类型。
func DecodeChunks(raw string) []models.Chunk {
	if !gjson.Valid(raw) {
		log.Debugf("drop malformed upstream chunk: %s", truncateForLog(raw))
		return nil
	}
	choice := gjson.Get(raw, "choices.0")
	if !choice.Exists() {
		return nil
	}

	if thinking := choice.Get("thinking"); truthy(thinking) {
		return []models.Chunk{models.ThinkingChunk(decodeThinking(thinking))}
	}

	if grounding := choice.Get("grounding"); truthy(grounding) {
		evidence := grounding.Get("evidence")
		if !evidence.IsArray() {
			return nil
		}
		return []models.Chunk{models.GroundingChunk(decodeEvidence(evidence)...)}
	}

	var chunks []models.Chunk
	if text := choice.Get("delta.content").String(); text != "" {
		chunks = append(chunks, models.TextChunk(text))
	}
	if reason := choice.Get("finish_reason").String(); reason != "" {
		chunks = append(chunks, models.FinishChunk(reason))
	}
	return chunks
}

func decodeThinking(r gjson.Result) models.ThinkingUpdate {
	update := models.ThinkingUpdate{Status: r.Get("status").String()}
	for _, step := range r.Get("steps").Array() {
		update.Steps = append(update.Steps, models.ThinkingStep{
			Label:  step.Get("label").String(),
			Status: step.Get("status").String(),
		})
	}
	return update
}

func decodeEvidence(r gjson.Result) []models.RawEvidence {
	items := r.Array()
	evidence := make([]models.RawEvidence, 0, len(items))
	for _, e := range items {
		evidence = append(evidence, models.RawEvidence{
			RefNum:          int(e.Get("ref_num").Int()),
			Title:           e.Get("title").String(),
			TitleZh:         e.Get("title_zh").String(),
			URL:             e.Get("url").String(),
			Author:          e.Get("author").String(),
			PublicationInfo: e.Get("publication_info").String(),
			EvidenceClass:   e.Get("evidence_class").String(),
			Abstract:        e.Get("abstract").String(),
		})
	}
	return evidence
}

// truthy 存在且非空
func truthy(r gjson.Result) bool {
	if !r.Exists() {
		return false
	}
	switch {
	case r.Type == gjson.Null:
		return false
	case r.IsObject():
		return len(r.Map()) > 0
	case r.IsArray():
		return len(r.Array()) > 0
	case r.Type == gjson.String:
		return r.Str != ""
	case r.Type == gjson.False:
		return false
	}
	return true
}

func truncateForLog(s string) string {
	return util.Truncate(strings.TrimSpace(s), 100)
}
