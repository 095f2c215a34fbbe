package services

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"evidence-agent/pkg/util"
)

func TestKeywordFollowUps(t *testing.T) {
	t.Parallel()

	g := KeywordFollowUps{}
	cases := []struct {
		question string
		want     []string
	}{
		{"种植体植入后需要注意什么", util.FollowUpTable[0].Questions},
		{"术后是否需要服用抗生素", util.FollowUpTable[1].Questions},
		{"高血压如何管理", util.FollowUpTable[2].Questions},
		{"感冒怎么办", util.DefaultFollowUps},
	}
	for _, tc := range cases {
		got := g.Generate(context.Background(), tc.question, "")
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("Generate(%q)=%v, want %v", tc.question, got, tc.want)
		}
	}

	got := g.Generate(context.Background(), "感冒怎么办", "")
	got[0] = "changed"
	if util.DefaultFollowUps[0] == "changed" {
		t.Fatalf("Generate returned shared slice")
	}
}

type fakeCompleter struct {
	reply  string
	err    error
	prompt string
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.reply, f.err
}

func TestLLMFollowUps_ParsesAndPads(t *testing.T) {
	t.Parallel()

	c := &fakeCompleter{reply: "1. 问题一是什么？\n\n- 问题二怎么办？\n"}
	g := NewLLMFollowUps(c, "Q={{question}} A={{answer}}")

	got := g.Generate(context.Background(), "问题", "回答")
	want := []string{"问题一是什么？", "问题二怎么办？", util.GenericFollowUps[0]}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Generate()=%v, want %v", got, want)
	}
	if c.prompt != "Q=问题 A=回答" {
		t.Fatalf("prompt=%q", c.prompt)
	}
}

func TestLLMFollowUps_TruncatesAnswer(t *testing.T) {
	t.Parallel()

	c := &fakeCompleter{reply: "a\nb\nc\nd"}
	g := NewLLMFollowUps(c, "{{answer}}")

	got := g.Generate(context.Background(), "q", strings.Repeat("答", 600))
	if len(got) != 3 {
		t.Fatalf("Generate()=%v, want 3 questions", got)
	}
	if c.prompt != strings.Repeat("答", 500) {
		t.Fatalf("prompt has %d runes, want 500", len([]rune(c.prompt)))
	}
}

func TestLLMFollowUps_FallsBackOnError(t *testing.T) {
	t.Parallel()

	g := NewLLMFollowUps(&fakeCompleter{err: errors.New("timeout")}, "{{question}}")
	got := g.Generate(context.Background(), "抗生素的使用", "")
	if !reflect.DeepEqual(got, util.FollowUpTable[1].Questions) {
		t.Fatalf("Generate()=%v, want keyword fallback", got)
	}

	g = NewLLMFollowUps(&fakeCompleter{reply: "\n  \n"}, "{{question}}")
	if got := g.Generate(context.Background(), "感冒", ""); !reflect.DeepEqual(got, util.DefaultFollowUps) {
		t.Fatalf("Generate()=%v, want default fallback on empty reply", got)
	}
}

func TestParseFollowUps(t *testing.T) {
	t.Parallel()

	got := ParseFollowUps("1、第一个？\n2) 第二个？\n* 第三个？\n4. 第四个？")
	want := []string{"第一个？", "第二个？", "第三个？"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ParseFollowUps()=%v, want %v", got, want)
	}
	if got := ParseFollowUps("2型糖尿病如何控制？"); len(got) != 1 || got[0] != "2型糖尿病如何控制？" {
		t.Fatalf("ParseFollowUps kept=%v, want leading digits preserved", got)
	}
}
