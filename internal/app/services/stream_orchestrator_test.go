package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"evidence-agent/internal/app/models"
	"evidence-agent/pkg/util"
)

type fakeUpstream struct {
	chunks []models.Chunk
	err    error
	// wait 非 nil 时，等其关闭后才开始发送
	wait <-chan struct{}
}

func (f *fakeUpstream) ChatStream(ctx context.Context, _ string) (<-chan models.Chunk, <-chan error) {
	chunks := make(chan models.Chunk)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)
		if f.wait != nil {
			select {
			case <-f.wait:
			case <-ctx.Done():
				return
			}
		}
		for _, c := range f.chunks {
			select {
			case chunks <- c:
			case <-ctx.Done():
				return
			}
		}
		if f.err != nil {
			errs <- f.err
		}
	}()
	return chunks, errs
}

// blockingUpstream 从不发送分块，直到 ctx 结束
type blockingUpstream struct{}

func (blockingUpstream) ChatStream(ctx context.Context, _ string) (<-chan models.Chunk, <-chan error) {
	chunks := make(chan models.Chunk)
	errs := make(chan error, 1)
	go func() {
		<-ctx.Done()
		close(errs)
		close(chunks)
	}()
	return chunks, errs
}

// manualClock 对 fire 中的时长立即触发一次，其余永不触发
type manualClock struct {
	mu   sync.Mutex
	now  time.Time
	fire map[time.Duration]int
}

func (c *manualClock) Now() time.Time { return c.now }

func (c *manualClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan time.Time, 1)
	if c.fire[d] > 0 {
		c.fire[d]--
		ch <- c.now
	}
	return ch
}

type countingPacer struct{ calls int }

func (p *countingPacer) Wait(ctx context.Context) error {
	p.calls++
	return ctx.Err()
}

type recorder struct {
	events []models.StreamEvent
}

func (r *recorder) sink(ev models.StreamEvent) error {
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) kinds() []models.EventKind {
	out := make([]models.EventKind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

func (r *recorder) last() models.StreamEvent {
	return r.events[len(r.events)-1]
}

func sameKinds(got, want []models.EventKind) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func quietOrchestrator(up Upstream, opts ...OrchestratorOption) *StreamOrchestrator {
	base := []OrchestratorOption{WithChunkTimeout(0), WithHeartbeat(0)}
	return NewStreamOrchestrator(up, append(base, opts...)...)
}

func sampleEvidence() []models.RawEvidence {
	return []models.RawEvidence{
		{RefNum: 2, Title: "Second", URL: "https://pubmed.ncbi.nlm.nih.gov/222/", PublicationInfo: "Lancet 2023 Mar 4.", EvidenceClass: "RCT"},
		{RefNum: 1, Title: "First", URL: "https://pubmed.ncbi.nlm.nih.gov/111/", PublicationInfo: "Nature 2024 Jan 15. doi:10.1/x", EvidenceClass: "Meta-Analysis"},
	}
}

func assertSingleTerminal(t *testing.T, r *recorder) {
	t.Helper()
	terminal := 0
	for i, ev := range r.events {
		if ev.IsTerminal() {
			terminal++
			if i != len(r.events)-1 {
				t.Fatalf("terminal event %s at index %d, want last (len=%d)", ev.Kind, i, len(r.events))
			}
		}
	}
	if terminal != 1 {
		t.Fatalf("terminal events=%d, want 1", terminal)
	}
}

func TestRun_FullSessionOrdering(t *testing.T) {
	t.Parallel()

	up := &fakeUpstream{chunks: []models.Chunk{
		models.ThinkingChunk(models.ThinkingUpdate{Status: models.ThinkingInProgress}),
		models.ThinkingChunk(models.ThinkingUpdate{Status: models.ThinkingInProgress, Steps: []models.ThinkingStep{
			{Label: "分析问题", Status: "done"},
			{Label: "检索文献", Status: "running"},
		}}),
		models.ThinkingChunk(models.ThinkingUpdate{Status: models.ThinkingCompleted}),
		models.ThinkingChunk(models.ThinkingUpdate{Status: models.ThinkingCompleted}),
		models.GroundingChunk(sampleEvidence()...),
		models.GroundingChunk(models.RawEvidence{RefNum: 9, Title: "Ignored"}),
		models.TextChunk("Antibiotics help ^[1]^ and reduce risk ^[2,3]^."),
		models.TextChunk(" Plain tail"),
		models.FinishChunk(models.FinishReasonStop),
	}}

	var hooked [][]models.EvidenceRecord
	pacer := &countingPacer{}
	o := quietOrchestrator(up,
		WithPacer(pacer),
		WithReferencesHook(func(_ context.Context, refs []models.EvidenceRecord) { hooked = append(hooked, refs) }),
	)

	r := &recorder{}
	if err := o.Run(context.Background(), "问题", "session-1", r.sink); err != nil {
		t.Fatalf("Run() err=%v, want nil", err)
	}

	want := []models.EventKind{
		models.EventThinkingProgress,
		models.EventThinkingComplete,
		models.EventReferencesLoaded,
		models.EventContentStart,
		models.EventCitedContent,
		models.EventContent,
		models.EventCompletion,
	}
	if got := r.kinds(); !sameKinds(got, want) {
		t.Fatalf("kinds=%v, want %v", got, want)
	}
	assertSingleTerminal(t, r)

	if step := r.events[0]; step.Step != "检索文献" || step.Status != "running" {
		t.Fatalf("progress step=%q status=%q, want latest step", step.Step, step.Status)
	}

	refs := r.events[2].References
	if len(refs) != 2 || refs[0].ID != 1 || refs[1].ID != 2 {
		t.Fatalf("references=%+v, want ids [1 2]", refs)
	}

	cited := r.events[4]
	if cited.Content != "Antibiotics help ^[1]^ and reduce risk ^[2,3]^." {
		t.Fatalf("cited content=%q, want original text", cited.Content)
	}
	if len(cited.Citations) != 2 || cited.Citations[0] != 1 || cited.Citations[1] != 2 {
		t.Fatalf("citations=%v, want [1 2]", cited.Citations)
	}

	done := r.last()
	if done.TotalContent != "Antibiotics help ^[1]^ and reduce risk ^[2,3]^. Plain tail" {
		t.Fatalf("totalContent=%q", done.TotalContent)
	}
	if done.SessionID != "session-1" {
		t.Fatalf("sessionId=%q, want session-1", done.SessionID)
	}
	if len(done.References) != 2 {
		t.Fatalf("completion references=%d, want 2", len(done.References))
	}
	if len(done.FollowUpQuestions) != 3 {
		t.Fatalf("followUps=%v, want 3", done.FollowUpQuestions)
	}
	if len(done.Segments) == 0 {
		t.Fatalf("segments empty, want segmented answer")
	}

	if pacer.calls != 2 {
		t.Fatalf("pacer calls=%d, want 2", pacer.calls)
	}
	if len(hooked) != 1 || len(hooked[0]) != 2 {
		t.Fatalf("references hook calls=%v, want one call with 2 refs", hooked)
	}
	for _, ev := range r.events {
		if ev.Timestamp.IsZero() {
			t.Fatalf("%s event has zero timestamp", ev.Kind)
		}
	}
}

func TestRun_CitationsBeforeReferencesAreDropped(t *testing.T) {
	t.Parallel()

	up := &fakeUpstream{chunks: []models.Chunk{
		models.TextChunk("Early claim [1]."),
		models.GroundingChunk(sampleEvidence()...),
		models.TextChunk("Later claim [1]."),
		models.FinishChunk(models.FinishReasonStop),
	}}
	r := &recorder{}
	if err := quietOrchestrator(up).Run(context.Background(), "q", "s", r.sink); err != nil {
		t.Fatalf("Run() err=%v", err)
	}

	want := []models.EventKind{
		models.EventContentStart,
		models.EventContent,
		models.EventReferencesLoaded,
		models.EventCitedContent,
		models.EventCompletion,
	}
	if got := r.kinds(); !sameKinds(got, want) {
		t.Fatalf("kinds=%v, want %v", got, want)
	}
}

func TestRun_ChunkFaultsAreSkipped(t *testing.T) {
	t.Parallel()

	up := &fakeUpstream{chunks: []models.Chunk{
		{Kind: models.ChunkThinking},
		{Kind: models.ChunkGrounding},
		{Kind: models.ChunkUnknown},
		models.TextChunk(""),
		models.TextChunk("ok"),
		models.FinishChunk(models.FinishReasonStop),
	}}
	r := &recorder{}
	if err := quietOrchestrator(up).Run(context.Background(), "q", "s", r.sink); err != nil {
		t.Fatalf("Run() err=%v", err)
	}

	want := []models.EventKind{models.EventContentStart, models.EventContent, models.EventCompletion}
	if got := r.kinds(); !sameKinds(got, want) {
		t.Fatalf("kinds=%v, want %v", got, want)
	}
	if refs := r.last().References; refs == nil || len(refs) != 0 {
		t.Fatalf("completion references=%v, want empty non-nil", refs)
	}
}

func TestRun_UpstreamErrorTerminatesWithError(t *testing.T) {
	t.Parallel()

	up := &fakeUpstream{
		chunks: []models.Chunk{models.TextChunk("partial")},
		err:    errors.New("connection reset"),
	}
	r := &recorder{}
	err := quietOrchestrator(up).Run(context.Background(), "q", "s", r.sink)
	if !errors.Is(err, ErrUpstreamStream) {
		t.Fatalf("Run() err=%v, want ErrUpstreamStream", err)
	}

	assertSingleTerminal(t, r)
	last := r.last()
	if last.Kind != models.EventError {
		t.Fatalf("last kind=%s, want error", last.Kind)
	}
	if !strings.HasPrefix(last.Error, "Stream processing error:") || !strings.Contains(last.Error, "connection reset") {
		t.Fatalf("error message=%q", last.Error)
	}
}

func TestRun_UpstreamCloseWithoutFinish(t *testing.T) {
	t.Parallel()

	up := &fakeUpstream{chunks: []models.Chunk{models.TextChunk("cut off")}}
	r := &recorder{}
	err := quietOrchestrator(up).Run(context.Background(), "q", "s", r.sink)
	if !errors.Is(err, ErrUpstreamStream) {
		t.Fatalf("Run() err=%v, want ErrUpstreamStream", err)
	}
	assertSingleTerminal(t, r)
	if r.last().Kind != models.EventError {
		t.Fatalf("last kind=%s, want error", r.last().Kind)
	}
}

func TestRun_NonStopFinishCompletesOnClose(t *testing.T) {
	t.Parallel()

	up := &fakeUpstream{chunks: []models.Chunk{
		models.TextChunk("long answer"),
		models.FinishChunk("length"),
	}}
	r := &recorder{}
	if err := quietOrchestrator(up).Run(context.Background(), "q", "s", r.sink); err != nil {
		t.Fatalf("Run() err=%v", err)
	}
	assertSingleTerminal(t, r)
	if last := r.last(); last.Kind != models.EventCompletion || last.TotalContent != "long answer" {
		t.Fatalf("last=%+v, want completion with full answer", last)
	}
}

func TestRun_ChunkTimeout(t *testing.T) {
	t.Parallel()

	clock := &manualClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), fire: map[time.Duration]int{time.Minute: 1}}
	o := NewStreamOrchestrator(blockingUpstream{},
		WithClock(clock),
		WithChunkTimeout(time.Minute),
		WithHeartbeat(0),
	)
	r := &recorder{}
	err := o.Run(context.Background(), "q", "s", r.sink)
	if !errors.Is(err, ErrUpstreamStream) {
		t.Fatalf("Run() err=%v, want ErrUpstreamStream", err)
	}
	if len(r.events) != 1 || r.events[0].Kind != models.EventError {
		t.Fatalf("events=%v, want single error", r.kinds())
	}
	if !r.events[0].Timestamp.Equal(clock.now) {
		t.Fatalf("timestamp=%v, want clock time", r.events[0].Timestamp)
	}
}

func TestRun_HeartbeatWhileUpstreamSilent(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	up := &fakeUpstream{
		wait: release,
		chunks: []models.Chunk{
			models.TextChunk("hi"),
			models.FinishChunk(models.FinishReasonStop),
		},
	}
	clock := &manualClock{now: time.Now(), fire: map[time.Duration]int{15 * time.Second: 1}}
	o := NewStreamOrchestrator(up,
		WithClock(clock),
		WithChunkTimeout(0),
		WithHeartbeat(15*time.Second),
	)

	r := &recorder{}
	sink := func(ev models.StreamEvent) error {
		if ev.Kind == models.EventHeartbeat {
			close(release)
		}
		return r.sink(ev)
	}
	if err := o.Run(context.Background(), "q", "s", sink); err != nil {
		t.Fatalf("Run() err=%v", err)
	}

	want := []models.EventKind{
		models.EventHeartbeat,
		models.EventContentStart,
		models.EventContent,
		models.EventCompletion,
	}
	if got := r.kinds(); !sameKinds(got, want) {
		t.Fatalf("kinds=%v, want %v", got, want)
	}
}

func TestRun_ClientGoneStopsEmitting(t *testing.T) {
	t.Parallel()

	up := &fakeUpstream{chunks: []models.Chunk{
		models.TextChunk("one"),
		models.TextChunk("two"),
		models.FinishChunk(models.FinishReasonStop),
	}}
	calls := 0
	sink := func(ev models.StreamEvent) error {
		calls++
		if ev.IsContent() {
			return errors.New("broken pipe")
		}
		return nil
	}
	err := quietOrchestrator(up).Run(context.Background(), "q", "s", sink)
	if !errors.Is(err, errClientGone) {
		t.Fatalf("Run() err=%v, want errClientGone", err)
	}
	if calls != 2 {
		t.Fatalf("sink calls=%d, want 2 (content_start, content)", calls)
	}
}

func TestRun_CancelledContextEmitsNothing(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := &recorder{}
	err := quietOrchestrator(blockingUpstream{}).Run(ctx, "q", "s", r.sink)
	if !errors.Is(err, errClientGone) {
		t.Fatalf("Run() err=%v, want errClientGone", err)
	}
	if len(r.events) != 0 {
		t.Fatalf("events=%v, want none", r.kinds())
	}
}

type staticFollowUps []string

func (s staticFollowUps) Generate(context.Context, string, string) []string { return s }

func TestRun_UsesFollowUpGenerator(t *testing.T) {
	t.Parallel()

	up := &fakeUpstream{chunks: []models.Chunk{models.TextChunk("a"), models.FinishChunk(models.FinishReasonStop)}}
	r := &recorder{}
	o := quietOrchestrator(up, WithFollowUps(staticFollowUps{"x?"}), WithPacer(util.NoPacer{}))
	if err := o.Run(context.Background(), "q", "s", r.sink); err != nil {
		t.Fatalf("Run() err=%v", err)
	}
	if got := r.last().FollowUpQuestions; len(got) != 1 || got[0] != "x?" {
		t.Fatalf("followUps=%v, want [x?]", got)
	}
}

type panickingFollowUps struct{}

func (panickingFollowUps) Generate(context.Context, string, string) []string { panic("follow-up boom") }

func TestRun_FollowUpPanicFallsBackToDefaults(t *testing.T) {
	t.Parallel()

	cases := map[string][]models.Chunk{
		"stop":               {models.TextChunk("a"), models.FinishChunk(models.FinishReasonStop)},
		"close after length": {models.TextChunk("a"), models.FinishChunk("length")},
	}
	for name, chunks := range cases {
		r := &recorder{}
		o := quietOrchestrator(&fakeUpstream{chunks: chunks}, WithFollowUps(panickingFollowUps{}), WithPacer(util.NoPacer{}))
		if err := o.Run(context.Background(), "q", "s", r.sink); err != nil {
			t.Fatalf("%s: Run() err=%v", name, err)
		}
		assertSingleTerminal(t, r)
		last := r.last()
		if last.Kind != models.EventCompletion || last.TotalContent != "a" {
			t.Fatalf("%s: last=%+v, want completion", name, last)
		}
		if len(last.FollowUpQuestions) != len(util.DefaultFollowUps) || last.FollowUpQuestions[0] != util.DefaultFollowUps[0] {
			t.Fatalf("%s: followUps=%v, want defaults", name, last.FollowUpQuestions)
		}
	}
}

func TestRun_SinkPanicSkipsChunk(t *testing.T) {
	t.Parallel()

	up := &fakeUpstream{chunks: []models.Chunk{
		models.ThinkingChunk(models.ThinkingUpdate{Status: models.ThinkingCompleted}),
		models.TextChunk("ok"),
		models.FinishChunk(models.FinishReasonStop),
	}}
	r := &recorder{}
	sink := func(ev models.StreamEvent) error {
		if ev.Kind == models.EventThinkingComplete {
			panic("sink boom")
		}
		return r.sink(ev)
	}
	if err := quietOrchestrator(up, WithPacer(util.NoPacer{})).Run(context.Background(), "q", "s", sink); err != nil {
		t.Fatalf("Run() err=%v", err)
	}

	want := []models.EventKind{models.EventContentStart, models.EventContent, models.EventCompletion}
	if got := r.kinds(); !sameKinds(got, want) {
		t.Fatalf("kinds=%v, want %v", got, want)
	}
}
