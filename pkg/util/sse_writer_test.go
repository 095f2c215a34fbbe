package util

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"evidence-agent/internal/app/models"
)

var testTime = time.Date(2026, 1, 2, 3, 4, 5, 123456000, time.UTC)

func decodeFrame(t *testing.T, frame []byte) map[string]interface{} {
	t.Helper()
	s := string(frame)
	if !strings.HasPrefix(s, "data: ") || !strings.HasSuffix(s, "\n\n") {
		t.Fatalf("frame=%q, want data: ...\\n\\n", s)
	}
	payload := strings.TrimSuffix(strings.TrimPrefix(s, "data: "), "\n\n")
	if strings.Contains(payload, "\n") {
		t.Fatalf("payload contains newline: %q", payload)
	}
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		t.Fatalf("payload not json: %v", err)
	}
	return out
}

func TestEncodeEvent_Kinds(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		ev   models.StreamEvent
		want map[string]interface{}
	}{
		{
			name: "thinking progress",
			ev:   models.StreamEvent{Kind: models.EventThinkingProgress, Step: "检索文献", Status: "running"},
			want: map[string]interface{}{"type": "thinking_progress", "step": "检索文献", "status": "running", "isComplete": false},
		},
		{
			name: "plain content has no type",
			ev:   models.StreamEvent{Kind: models.EventContent, Content: "line1\nline2 <b>"},
			want: map[string]interface{}{"content": "line1\nline2 <b>", "isComplete": false},
		},
		{
			name: "cited content",
			ev:   models.StreamEvent{Kind: models.EventCitedContent, Content: "x ^[1]^", Citations: []int{1}},
			want: map[string]interface{}{"type": "cited_content", "content": "x ^[1]^", "citations": []interface{}{float64(1)}, "isComplete": false},
		},
		{
			name: "error",
			ev:   models.StreamEvent{Kind: models.EventError, Error: "Stream processing error: boom"},
			want: map[string]interface{}{"error": "Stream processing error: boom", "isComplete": true},
		},
		{
			name: "heartbeat",
			ev:   models.StreamEvent{Kind: models.EventHeartbeat},
			want: map[string]interface{}{"type": "heartbeat"},
		},
	}
	for _, tc := range cases {
		tc.ev.Timestamp = testTime
		frame, err := EncodeEvent(tc.ev)
		if err != nil {
			t.Fatalf("%s: EncodeEvent err=%v", tc.name, err)
		}
		got := decodeFrame(t, frame)
		if got["timestamp"] != "2026-01-02T03:04:05.123456" {
			t.Fatalf("%s: timestamp=%v", tc.name, got["timestamp"])
		}
		delete(got, "timestamp")
		if len(got) != len(tc.want) {
			t.Fatalf("%s: payload=%v, want %v", tc.name, got, tc.want)
		}
		for k, v := range tc.want {
			gb, _ := json.Marshal(got[k])
			wb, _ := json.Marshal(v)
			if !bytes.Equal(gb, wb) {
				t.Fatalf("%s: %s=%s, want %s", tc.name, k, gb, wb)
			}
		}
	}
}

func TestEncodeEvent_CompletionAlwaysHasArrays(t *testing.T) {
	t.Parallel()

	frame, err := EncodeEvent(models.StreamEvent{Kind: models.EventCompletion, Timestamp: testTime, SessionID: "s1"})
	if err != nil {
		t.Fatalf("EncodeEvent err=%v", err)
	}
	got := decodeFrame(t, frame)
	if got["isComplete"] != true || got["sessionId"] != "s1" || got["totalContent"] != "" {
		t.Fatalf("completion=%v", got)
	}
	if refs, ok := got["references"].([]interface{}); !ok || len(refs) != 0 {
		t.Fatalf("references=%v, want []", got["references"])
	}
	if fu, ok := got["followUpQuestions"].([]interface{}); !ok || len(fu) != 0 {
		t.Fatalf("followUpQuestions=%v, want []", got["followUpQuestions"])
	}
}

func TestEncodeEvent_EncodingFault(t *testing.T) {
	t.Parallel()

	ev := models.StreamEvent{
		Kind:       models.EventReferencesLoaded,
		Timestamp:  testTime,
		References: []models.EvidenceRecord{{ID: 1, RelevanceScore: math.NaN()}},
	}
	frame, err := EncodeEvent(ev)
	if !errors.Is(err, ErrEncoding) {
		t.Fatalf("err=%v, want ErrEncoding", err)
	}
	if string(frame) != fallbackFrame {
		t.Fatalf("frame=%q, want fallback", frame)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestSSEWriter_WriteEvent(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewSSEWriter(&buf, nil)
	if err := w.WriteEvent(models.StreamEvent{Kind: models.EventContentStart, Timestamp: testTime}); err != nil {
		t.Fatalf("WriteEvent err=%v", err)
	}
	bad := models.StreamEvent{Kind: models.EventReferencesLoaded, References: []models.EvidenceRecord{{RelevanceScore: math.Inf(1)}}}
	if err := w.WriteEvent(bad); err != nil {
		t.Fatalf("encoding fault surfaced as write error: %v", err)
	}
	if err := w.WriteError("oops"); err != nil {
		t.Fatalf("WriteError err=%v", err)
	}

	frames := strings.SplitAfter(buf.String(), "\n\n")
	if len(frames) != 4 || frames[3] != "" {
		t.Fatalf("frames=%q, want 3 frames", frames)
	}
	if frames[1] != fallbackFrame {
		t.Fatalf("second frame=%q, want fallback", frames[1])
	}
	if got := decodeFrame(t, []byte(frames[2])); got["error"] != "oops" {
		t.Fatalf("error frame=%v", got)
	}

	if err := NewSSEWriter(failingWriter{}, nil).WriteEvent(models.StreamEvent{Kind: models.EventHeartbeat}); err == nil {
		t.Fatalf("write error not returned")
	}
}
