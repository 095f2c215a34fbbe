package services

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"evidence-agent/internal/app/models"
)

// 三种引用标记，按优先级排列：^[1,2]^、^1^、[1]
var citationMarker = regexp.MustCompile(`\^\[(\d+(?:\s*,\s*\d+)*)\]\^|\^(\d+)\^|\[(\d+(?:\s*,\s*\d+)*)\]`)

// EvidenceIDs 当前会话可引用的证据编号集合
type EvidenceIDs map[int]struct{}

func NewEvidenceIDs(records []models.EvidenceRecord) EvidenceIDs {
	ids := make(EvidenceIDs, len(records))
	for _, r := range records {
		ids[r.ID] = struct{}{}
	}
	return ids
}

func (s EvidenceIDs) Has(id int) bool {
	_, ok := s[id]
	return ok
}

type markerSpan struct {
	start, end int
	ids        []int
}

func findMarkers(text string) []markerSpan {
	matches := citationMarker.FindAllStringSubmatchIndex(text, -1)
	spans := make([]markerSpan, 0, len(matches))
	for _, m := range matches {
		var body string
		for g := 1; g <= 3; g++ {
			if m[2*g] >= 0 {
				body = text[m[2*g]:m[2*g+1]]
				break
			}
		}
		spans = append(spans, markerSpan{start: m[0], end: m[1], ids: parseMarkerBody(body)})
	}
	return spans
}

func parseMarkerBody(body string) []int {
	parts := strings.Split(body, ",")
	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			// 超出 int 范围的编号不可能对应任何证据
			continue
		}
		ids = append(ids, n)
	}
	return ids
}

// validIDs 去重、升序并过滤掉不在证据集合中的编号
func validIDs(raw []int, known EvidenceIDs) []int {
	out := make([]int, 0, len(raw))
	seen := make(map[int]struct{}, len(raw))
	for _, id := range raw {
		if _, dup := seen[id]; dup || !known.Has(id) {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// ExtractCitations 提取文本片段中的引用编号。流式路径不剥离标记，原文原样返回。
func ExtractCitations(text string, known EvidenceIDs) (string, []int) {
	var raw []int
	for _, span := range findMarkers(text) {
		raw = append(raw, span.ids...)
	}
	return text, validIDs(raw, known)
}

// StripCitationMarkers 移除所有引用标记
func StripCitationMarkers(text string) string {
	return citationMarker.ReplaceAllString(text, "")
}

// SegmentText 将完整回答切分为普通段与引用段。引用段从标记处延伸到句末，
// 落在同一引用段内的后续标记合并到该段。拼接各段文本等于去掉标记后的原文。
func SegmentText(text string, known EvidenceIDs) []models.Segment {
	segments := make([]models.Segment, 0)
	appendSegment := func(s string, ids []int) {
		if s == "" {
			return
		}
		typ := models.SegmentContent
		if len(ids) > 0 {
			typ = models.SegmentCitedContent
		} else {
			ids = []int{}
		}
		segments = append(segments, models.Segment{Text: s, Citations: ids, Type: typ})
	}

	spans := findMarkers(text)
	cursor := 0
	for i := 0; i < len(spans); {
		span := spans[i]
		appendSegment(text[cursor:span.start], nil)

		end := sentenceEnd(text, span.end)
		raw := append([]int(nil), span.ids...)
		i++
		for i < len(spans) && spans[i].start < end {
			raw = append(raw, spans[i].ids...)
			if spans[i].end > end {
				end = sentenceEnd(text, spans[i].end)
			}
			i++
		}
		appendSegment(StripCitationMarkers(text[span.start:end]), validIDs(raw, known))
		cursor = end
	}
	appendSegment(text[cursor:], nil)
	return segments
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '。', '！', '？', '.', '!', '?':
		return true
	}
	return false
}

// sentenceEnd 从 from 起找第一个句末标点（含），否则下一个换行（不含），否则文本末尾
func sentenceEnd(text string, from int) int {
	for i := from; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if isSentenceEnd(r) {
			return i + size
		}
		i += size
	}
	if idx := strings.IndexByte(text[from:], '\n'); idx >= 0 {
		return from + idx
	}
	return len(text)
}
