package turn_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sorealabs/mybro-agent/internal/app/background"
	"github.com/sorealabs/mybro-agent/internal/app/turn"
	"github.com/sorealabs/mybro-agent/internal/domain"
)

const testUser = domain.UserID("test.sorea@example.com")

// ─────────────────────────────────────────────
// Port fakes
// ─────────────────────────────────────────────

type stubProfiles struct {
	err   error
	calls atomic.Int32
}

func (s *stubProfiles) GetProfile(_ context.Context, userID domain.UserID) (*domain.Profile, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Profile{ID: userID, DisplayName: "Alex"}, nil
}

func (s *stubProfiles) UpsertProfile(context.Context, *domain.Profile) error { return nil }

type appendCall struct {
	userText      string
	assistantText string
	cls           domain.Classification
}

type stubHistory struct {
	mu          sync.Mutex
	pairs       []domain.ChatPair
	appended    []appendCall
	failGets    int // first N GetRecent calls fail
	appendDelay time.Duration
}

func (s *stubHistory) GetRecent(_ context.Context, _ domain.UserID, limit int) ([]domain.ChatPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGets > 0 {
		s.failGets--
		return nil, errors.New("history store unavailable")
	}
	pairs := s.pairs
	if limit > 0 && len(pairs) > limit {
		pairs = pairs[len(pairs)-limit:]
	}
	out := make([]domain.ChatPair, len(pairs))
	copy(out, pairs)
	return out, nil
}

func (s *stubHistory) AppendPair(_ context.Context, _ domain.UserID, userText, assistantText string, c domain.Classification) error {
	if s.appendDelay > 0 {
		time.Sleep(s.appendDelay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appended = append(s.appended, appendCall{userText, assistantText, c})
	return nil
}

func (s *stubHistory) appendedCalls() []appendCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]appendCall, len(s.appended))
	copy(out, s.appended)
	return out
}

type stubEvents struct {
	mu     sync.Mutex
	events []domain.Event
}

func (s *stubEvents) AddEvent(_ context.Context, _ domain.UserID, event domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

type stubEmotions struct {
	cls domain.Classification
	err error
}

func (s *stubEmotions) Classify(context.Context, string) (domain.Classification, error) {
	return s.cls, s.err
}

type stubTopics struct {
	inDomain bool
	err      error

	mu      sync.Mutex
	windows [][]string
}

func (s *stubTopics) Filter(_ context.Context, messages []string) (domain.TopicVerdict, error) {
	s.mu.Lock()
	s.windows = append(s.windows, messages)
	s.mu.Unlock()
	if s.err != nil {
		return domain.TopicVerdict{}, s.err
	}
	return domain.TopicVerdict{InDomain: s.inDomain}, nil
}

type stubCrisis struct {
	reply string
	calls atomic.Int32
}

func (s *stubCrisis) Handle(context.Context, domain.UserID, string) (string, error) {
	s.calls.Add(1)
	return s.reply, nil
}

type stubExtractor struct {
	event *domain.Event
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (s *stubExtractor) Extract(context.Context, domain.UserID, string) (*domain.Event, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.event, s.err
}

type stubLLM struct {
	reply string
	err   error
	calls atomic.Int32

	mu       sync.Mutex
	lastMsgs []domain.ChatMessage
}

func (s *stubLLM) Complete(_ context.Context, messages []domain.ChatMessage) (string, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.lastMsgs = messages
	s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

// recordingLauncher records what was scheduled and runs each task inline
// so tests can assert on the effects deterministically.
type recordingLauncher struct {
	mu    sync.Mutex
	names []string
}

func (l *recordingLauncher) Launch(name string, task domain.Task) {
	l.mu.Lock()
	l.names = append(l.names, name)
	l.mu.Unlock()
	_ = task(context.Background())
}

func (l *recordingLauncher) launched() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.names))
	copy(out, l.names)
	return out
}

// ─────────────────────────────────────────────
// Harness
// ─────────────────────────────────────────────

type deps struct {
	profiles  *stubProfiles
	history   *stubHistory
	events    *stubEvents
	emotions  *stubEmotions
	topics    *stubTopics
	crisis    *stubCrisis
	extractor *stubExtractor
	llm       *stubLLM
	launcher  *recordingLauncher
}

func newDeps() *deps {
	return &deps{
		profiles:  &stubProfiles{},
		history:   &stubHistory{},
		events:    &stubEvents{},
		emotions:  &stubEmotions{cls: domain.Classification{Emotion: "neutral", Urgency: 1}},
		topics:    &stubTopics{inDomain: true},
		crisis:    &stubCrisis{reply: "I'm here with you. Please call 988 right now."},
		extractor: &stubExtractor{},
		llm:       &stubLLM{reply: "That sounds like a lot to carry. How long have you felt this way?"},
		launcher:  &recordingLauncher{},
	}
}

func newOrchestrator(t *testing.T, d *deps, launcher domain.TaskLauncher) *turn.Orchestrator {
	t.Helper()
	if launcher == nil {
		launcher = d.launcher
	}
	o, err := turn.New(turn.Config{
		Profiles:   d.profiles,
		History:    d.history,
		Events:     d.events,
		Emotions:   d.emotions,
		Topics:     d.topics,
		Crisis:     d.crisis,
		Extractor:  d.extractor,
		LLM:        d.llm,
		Background: launcher,
	})
	require.NoError(t, err)
	return o
}

// ─────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────

func TestNormalFlowReturnsLLMReplyUnmodified(t *testing.T) {
	d := newDeps()
	o := newOrchestrator(t, d, nil)

	reply, err := o.ProcessTurn(context.Background(), testUser, "I feel a bit anxious today")
	require.NoError(t, err)
	require.Equal(t, d.llm.reply, reply)

	require.Equal(t, int32(1), d.llm.calls.Load())
	require.Equal(t, int32(0), d.crisis.calls.Load())
	require.Contains(t, d.launcher.launched(), "append_chat_pair")

	d.llm.mu.Lock()
	prompt := d.llm.lastMsgs
	d.llm.mu.Unlock()
	require.NotEmpty(t, prompt)
	require.Equal(t, domain.RoleSystem, prompt[0].Role)
	require.Equal(t, "I feel a bit anxious today", prompt[len(prompt)-1].Content)

	calls := d.history.appendedCalls()
	require.Len(t, calls, 1)
	require.Equal(t, "I feel a bit anxious today", calls[0].userText)
	require.Equal(t, d.llm.reply, calls[0].assistantText)
	require.Equal(t, "neutral", calls[0].cls.Emotion)
}

func TestOffTopicMessageGetsRedirect(t *testing.T) {
	d := newDeps()
	d.topics.inDomain = false
	o := newOrchestrator(t, d, nil)

	reply, err := o.ProcessTurn(context.Background(), testUser, "what is the capital of France?")
	require.NoError(t, err)
	require.Equal(t, domain.RedirectReply, reply)

	// Redirect skips everything downstream but still persists the exchange.
	require.Equal(t, int32(0), d.llm.calls.Load())
	require.Equal(t, int32(0), d.crisis.calls.Load())
	require.Equal(t, int32(0), d.extractor.calls.Load())
	require.Contains(t, d.launcher.launched(), "append_chat_pair")

	calls := d.history.appendedCalls()
	require.Len(t, calls, 1)
	require.Equal(t, domain.RedirectReply, calls[0].assistantText)
}

func TestOffTopicRedirectIgnoresUrgency(t *testing.T) {
	d := newDeps()
	d.topics.inDomain = false
	d.emotions.cls = domain.Classification{Emotion: "anger", Urgency: 4}
	o := newOrchestrator(t, d, nil)

	reply, err := o.ProcessTurn(context.Background(), testUser, "rank these football teams")
	require.NoError(t, err)
	require.Equal(t, domain.RedirectReply, reply)
}

func TestMarkerBypassesTopicFilter(t *testing.T) {
	d := newDeps()
	d.topics.inDomain = false
	d.emotions.cls = domain.Classification{Emotion: "neutral", Urgency: 1}
	o := newOrchestrator(t, d, nil)

	reply, err := o.ProcessTurn(context.Background(), testUser, "[TEST] automated health check message")
	require.NoError(t, err)
	require.Equal(t, d.llm.reply, reply)
	require.Equal(t, int32(1), d.llm.calls.Load())
}

func TestCrisisUrgencyPreemptsGeneration(t *testing.T) {
	d := newDeps()
	d.emotions.cls = domain.Classification{Emotion: "crisis", Urgency: 5}
	o := newOrchestrator(t, d, nil)

	reply, err := o.ProcessTurn(context.Background(), testUser, "I can't do this anymore")
	require.NoError(t, err)
	require.Equal(t, d.crisis.reply, reply)

	require.Equal(t, int32(1), d.crisis.calls.Load())
	require.Equal(t, int32(0), d.llm.calls.Load())
	require.Contains(t, d.launcher.launched(), "append_chat_pair")
}

func TestExtractedEventIsRegistered(t *testing.T) {
	d := newDeps()
	d.extractor.event = &domain.Event{ID: "ev-1", Kind: "exam", Summary: "math final on Friday"}
	o := newOrchestrator(t, d, nil)

	reply, err := o.ProcessTurn(context.Background(), testUser, "my math final is on Friday and I'm stressed")
	require.NoError(t, err)
	require.Equal(t, d.llm.reply, reply)

	require.Contains(t, d.launcher.launched(), "add_event")
	require.Len(t, d.events.events, 1)
	require.Equal(t, "exam", d.events.events[0].Kind)
}

func TestEmptyHistoryUsesLiveMessageAsWindow(t *testing.T) {
	d := newDeps()
	o := newOrchestrator(t, d, nil)

	_, err := o.ProcessTurn(context.Background(), testUser, "I've been feeling down")
	require.NoError(t, err)

	require.Len(t, d.topics.windows, 1)
	require.Equal(t, []string{"I've been feeling down"}, d.topics.windows[0])
}

func TestGatherFailureFallsBackSequentially(t *testing.T) {
	d := newDeps()
	d.history.failGets = 1 // concurrent gather fails, sequential retry succeeds
	o := newOrchestrator(t, d, nil)

	reply, err := o.ProcessTurn(context.Background(), testUser, "I feel overwhelmed")
	require.NoError(t, err)
	require.Equal(t, d.llm.reply, reply)

	// The sequential path writes synchronously: nothing was scheduled.
	require.Empty(t, d.launcher.launched())
	require.Len(t, d.history.appendedCalls(), 1)
}

func TestExtractionFailureFallsBackSequentially(t *testing.T) {
	d := newDeps()
	d.extractor.err = errors.New("extraction model down")
	o := newOrchestrator(t, d, nil)

	reply, err := o.ProcessTurn(context.Background(), testUser, "I feel stuck lately")
	require.NoError(t, err)
	require.Equal(t, d.llm.reply, reply)

	// Sequential fallback performs no extraction, so exactly one attempt.
	require.Equal(t, int32(1), d.extractor.calls.Load())
	require.Empty(t, d.launcher.launched())
}

func TestBothPathsFailingIsTerminal(t *testing.T) {
	d := newDeps()
	d.profiles.err = errors.New("store unreachable")
	o := newOrchestrator(t, d, nil)

	_, err := o.ProcessTurn(context.Background(), testUser, "hello")
	require.Error(t, err)

	// Concurrent attempt plus sequential retry.
	require.Equal(t, int32(2), d.profiles.calls.Load())
}

func TestSequentialPathAloneStillRedirectsAndRoutes(t *testing.T) {
	d := newDeps()
	d.topics.inDomain = false
	o := newOrchestrator(t, d, nil)

	reply, err := o.ProcessTurnSequential(context.Background(), testUser, "tell me a joke")
	require.NoError(t, err)
	require.Equal(t, domain.RedirectReply, reply)
	require.Len(t, d.history.appendedCalls(), 1)

	d2 := newDeps()
	d2.emotions.cls = domain.Classification{Emotion: "crisis", Urgency: 5}
	o2 := newOrchestrator(t, d2, nil)

	reply, err = o2.ProcessTurnSequential(context.Background(), testUser, "I want it all to end")
	require.NoError(t, err)
	require.Equal(t, d2.crisis.reply, reply)
	require.Equal(t, int32(0), d2.llm.calls.Load())
}

func TestReplyLatencyIndependentOfWriteLatency(t *testing.T) {
	d := newDeps()
	d.history.appendDelay = 300 * time.Millisecond

	launcher := background.NewLauncher(8)
	o := newOrchestrator(t, d, launcher)

	start := time.Now()
	reply, err := o.ProcessTurn(context.Background(), testUser, "feeling okay today")
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.Equal(t, d.llm.reply, reply)
	require.Less(t, elapsed, 150*time.Millisecond, "reply must not wait for the persistence write")

	launcher.Close() // drain the slow write before the test ends
	require.Len(t, d.history.appendedCalls(), 1)
}

func TestAbandonedExtractionDoesNotLeak(t *testing.T) {
	defer goleak.VerifyNone(t)

	d := newDeps()
	d.emotions.cls = domain.Classification{Emotion: "crisis", Urgency: 5}
	d.extractor.delay = 50 * time.Millisecond
	d.extractor.event = &domain.Event{Kind: "loss", Summary: "discarded"}
	o := newOrchestrator(t, d, nil)

	reply, err := o.ProcessTurn(context.Background(), testUser, "I'm in danger")
	require.NoError(t, err)
	require.Equal(t, d.crisis.reply, reply)

	// The orphaned extraction goroutine finishes into its buffered
	// channel on its own; its result is never registered.
	time.Sleep(150 * time.Millisecond)
	require.Empty(t, d.events.events)
}

func TestNewRejectsMissingCollaborators(t *testing.T) {
	_, err := turn.New(turn.Config{})
	require.Error(t, err)
}
