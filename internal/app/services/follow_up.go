package services

import (
	"context"
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"

	"evidence-agent/pkg/util"
)

const (
	maxFollowUps        = 3
	followUpAnswerRunes = 500
)

var listPrefix = regexp.MustCompile(`^(?:\d+[.、)）]|[-*•])\s*`)

// FollowUpGenerator 根据问题与完整回答生成后续问题
type FollowUpGenerator interface {
	Generate(ctx context.Context, question, answer string) []string
}

// KeywordFollowUps 基于关键词表的后续问题
type KeywordFollowUps struct{}

func (KeywordFollowUps) Generate(_ context.Context, question, _ string) []string {
	for _, entry := range util.FollowUpTable {
		for _, kw := range entry.Keywords {
			if strings.Contains(question, kw) {
				return append([]string(nil), entry.Questions...)
			}
		}
	}
	return append([]string(nil), util.DefaultFollowUps...)
}

// Completer 非流式补全
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// LLMFollowUps 调用模型生成后续问题，失败时退回关键词表
type LLMFollowUps struct {
	completer Completer
	template  string
	fallback  FollowUpGenerator
}

func NewLLMFollowUps(completer Completer, template string) *LLMFollowUps {
	return &LLMFollowUps{
		completer: completer,
		template:  template,
		fallback:  KeywordFollowUps{},
	}
}

func (g *LLMFollowUps) prompt(question, answer string) string {
	return util.FillTemplate(g.template, map[string]string{
		"question": question,
		"answer":   util.Truncate(answer, followUpAnswerRunes),
	})
}

func (g *LLMFollowUps) Generate(ctx context.Context, question, answer string) []string {
	content, err := g.completer.Complete(ctx, g.prompt(question, answer))
	if err != nil {
		log.Warnf("generate follow-up questions failed, fallback to keywords: %v", err)
		return g.fallback.Generate(ctx, question, answer)
	}

	questions := ParseFollowUps(content)
	if len(questions) == 0 {
		return g.fallback.Generate(ctx, question, answer)
	}
	for _, q := range util.GenericFollowUps {
		if len(questions) >= maxFollowUps {
			break
		}
		questions = append(questions, q)
	}
	return questions
}

// ParseFollowUps 按行解析模型输出，去掉编号与项目符号，最多保留 3 条
func ParseFollowUps(content string) []string {
	var questions []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(listPrefix.ReplaceAllString(strings.TrimSpace(line), ""))
		if line == "" {
			continue
		}
		questions = append(questions, line)
		if len(questions) == maxFollowUps {
			break
		}
	}
	return questions
}
