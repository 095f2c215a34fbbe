package models

// ChunkKind 上游分块类型
type ChunkKind int

const (
	ChunkUnknown ChunkKind = iota
	ChunkThinking
	ChunkGrounding
	ChunkTextDelta
	ChunkFinish
)

func (k ChunkKind) String() string {
	switch k {
	case ChunkThinking:
		return "thinking"
	case ChunkGrounding:
		return "grounding"
	case ChunkTextDelta:
		return "text_delta"
	case ChunkFinish:
		return "finish"
	default:
		return "unknown"
	}
}

const (
	ThinkingInProgress = "in_progress"
	ThinkingCompleted  = "completed"

	FinishReasonStop = "stop"
)

// Chunk is one decoded unit of the upstream stream. Only the field that
// matches Kind is set.
type Chunk struct {
	Kind         ChunkKind
	Thinking     *ThinkingUpdate
	Grounding    *GroundingBlock
	Text         string
	FinishReason string
}

type ThinkingStep struct {
	Label  string `json:"label"`
	Status string `json:"status"`
}

type ThinkingUpdate struct {
	Status string         `json:"status"`
	Steps  []ThinkingStep `json:"steps"`
}

// LatestStep 返回最新的思考步骤
func (t *ThinkingUpdate) LatestStep() (ThinkingStep, bool) {
	if t == nil || len(t.Steps) == 0 {
		return ThinkingStep{}, false
	}
	return t.Steps[len(t.Steps)-1], true
}

type GroundingBlock struct {
	Evidence []RawEvidence `json:"evidence"`
}

func TextChunk(text string) Chunk {
	return Chunk{Kind: ChunkTextDelta, Text: text}
}

func FinishChunk(reason string) Chunk {
	return Chunk{Kind: ChunkFinish, FinishReason: reason}
}

func ThinkingChunk(update ThinkingUpdate) Chunk {
	return Chunk{Kind: ChunkThinking, Thinking: &update}
}

func GroundingChunk(evidence ...RawEvidence) Chunk {
	return Chunk{Kind: ChunkGrounding, Grounding: &GroundingBlock{Evidence: evidence}}
}
