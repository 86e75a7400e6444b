package turn

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/sorealabs/mybro-agent/internal/domain"
	"github.com/sorealabs/mybro-agent/internal/observability"
)

// Config wires every collaborator the orchestrator depends on. All
// fields except HistoryLimit are required.
type Config struct {
	Profiles   domain.ProfileStore
	History    domain.HistoryStore
	Events     domain.EventStore
	Emotions   domain.EmotionClassifier
	Topics     domain.TopicFilter
	Crisis     domain.CrisisResponder
	Extractor  domain.EventExtractor
	LLM        domain.LLMClient
	Background domain.TaskLauncher

	// HistoryLimit bounds the LLM context window. Defaults to
	// domain.DefaultHistoryLimit when <= 0.
	HistoryLimit int
}

// Orchestrator runs one conversation turn: gather context, gate on
// topic, route on urgency, synthesize a reply, and persist in the
// background. The concurrent path is an optimization; on any failure the
// turn re-runs on the fully sequential path so the user still gets a
// reply.
type Orchestrator struct {
	profiles   domain.ProfileStore
	history    domain.HistoryStore
	events     domain.EventStore
	emotions   domain.EmotionClassifier
	topics     domain.TopicFilter
	crisis     domain.CrisisResponder
	extractor  domain.EventExtractor
	llm        domain.LLMClient
	background domain.TaskLauncher

	historyLimit int
}

func New(cfg Config) (*Orchestrator, error) {
	switch {
	case cfg.Profiles == nil:
		return nil, fmt.Errorf("turn: profile store is required")
	case cfg.History == nil:
		return nil, fmt.Errorf("turn: history store is required")
	case cfg.Events == nil:
		return nil, fmt.Errorf("turn: event store is required")
	case cfg.Emotions == nil:
		return nil, fmt.Errorf("turn: emotion classifier is required")
	case cfg.Topics == nil:
		return nil, fmt.Errorf("turn: topic filter is required")
	case cfg.Crisis == nil:
		return nil, fmt.Errorf("turn: crisis responder is required")
	case cfg.Extractor == nil:
		return nil, fmt.Errorf("turn: event extractor is required")
	case cfg.LLM == nil:
		return nil, fmt.Errorf("turn: llm client is required")
	case cfg.Background == nil:
		return nil, fmt.Errorf("turn: task launcher is required")
	}

	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = domain.DefaultHistoryLimit
	}

	return &Orchestrator{
		profiles:     cfg.Profiles,
		history:      cfg.History,
		events:       cfg.Events,
		emotions:     cfg.Emotions,
		topics:       cfg.Topics,
		crisis:       cfg.Crisis,
		extractor:    cfg.Extractor,
		llm:          cfg.LLM,
		background:   cfg.Background,
		historyLimit: limit,
	}, nil
}

// ProcessTurn handles one user message and returns the reply text. It
// tries the concurrent pipeline first and falls back to the sequential
// one on any failure; only a failure of both surfaces to the caller.
func (o *Orchestrator) ProcessTurn(ctx context.Context, userID domain.UserID, message string) (string, error) {
	log := observability.LoggerFromContext(ctx).With("user_id", userID)

	reply, err := o.processConcurrent(ctx, userID, message)
	if err == nil {
		return reply, nil
	}

	log.Warn("concurrent turn failed, retrying sequentially", "error", err)

	reply, err = o.ProcessTurnSequential(ctx, userID, message)
	if err != nil {
		log.Error("sequential turn failed", "error", err)
		return "", fmt.Errorf("turn failed on both paths: %w", err)
	}
	return reply, nil
}

type extractionResult struct {
	event *domain.Event
	err   error
}

func (o *Orchestrator) processConcurrent(ctx context.Context, userID domain.UserID, message string) (string, error) {
	log := observability.LoggerFromContext(ctx).With("user_id", userID)

	// Gather the turn context: three independent reads, joined, no
	// partial results.
	var (
		profile *domain.Profile
		cls     domain.Classification
		history []domain.ChatPair
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := o.profiles.GetProfile(gctx, userID)
		if err != nil {
			return fmt.Errorf("profile lookup: %w", err)
		}
		profile = p
		return nil
	})
	g.Go(func() error {
		c, err := o.emotions.Classify(gctx, message)
		if err != nil {
			return fmt.Errorf("emotion classification: %w", err)
		}
		cls = c
		return nil
	})
	g.Go(func() error {
		h, err := o.history.GetRecent(gctx, userID, o.historyLimit)
		if err != nil {
			return fmt.Errorf("history fetch: %w", err)
		}
		history = h
		return nil
	})
	if err := g.Wait(); err != nil {
		return "", err
	}

	verdict, err := o.topics.Filter(ctx, relevanceWindow(history, message))
	if err != nil {
		return "", fmt.Errorf("topic filter: %w", err)
	}
	if !verdict.InDomain && !bypassesFilter(message) {
		log.Info("message rejected by topic filter", "emotion", cls.Emotion, "urgency", cls.Urgency)
		o.schedulePairWrite(userID, message, domain.RedirectReply, cls)
		return domain.RedirectReply, nil
	}

	// Event extraction starts now so it overlaps the urgency decision.
	// The channel is buffered: the crisis path abandons the result
	// without blocking the goroutine.
	extractionCh := make(chan extractionResult, 1)
	go func() {
		event, extractErr := o.extractor.Extract(ctx, userID, message)
		extractionCh <- extractionResult{event: event, err: extractErr}
	}()

	if cls.Urgency >= domain.CrisisUrgency {
		log.Warn("crisis urgency detected", "urgency", cls.Urgency)
		crisisReply, err := o.crisis.Handle(ctx, userID, message)
		if err != nil {
			return "", fmt.Errorf("crisis responder: %w", err)
		}
		o.schedulePairWrite(userID, message, crisisReply, cls)
		return crisisReply, nil
	}

	res := <-extractionCh
	if res.err != nil {
		return "", fmt.Errorf("event extraction: %w", res.err)
	}
	if res.event != nil {
		event := *res.event
		o.background.Launch("add_event", func(ctx context.Context) error {
			return o.events.AddEvent(ctx, userID, event)
		})
	}

	reply, err := o.llm.Complete(ctx, buildPromptMessages(profile, cls, history, message))
	if err != nil {
		return "", fmt.Errorf("llm completion: %w", err)
	}

	o.schedulePairWrite(userID, message, reply, cls)
	return reply, nil
}

// ProcessTurnSequential is the availability guarantee: the same turn
// logic with no concurrency and every persistence write awaited. It
// performs no event extraction. An error here is terminal for the turn.
func (o *Orchestrator) ProcessTurnSequential(ctx context.Context, userID domain.UserID, message string) (string, error) {
	log := observability.LoggerFromContext(ctx).With("user_id", userID)

	profile, err := o.profiles.GetProfile(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("profile lookup: %w", err)
	}

	history, err := o.history.GetRecent(ctx, userID, o.historyLimit)
	if err != nil {
		return "", fmt.Errorf("history fetch: %w", err)
	}

	cls, err := o.emotions.Classify(ctx, message)
	if err != nil {
		return "", fmt.Errorf("emotion classification: %w", err)
	}

	verdict, err := o.topics.Filter(ctx, relevanceWindow(history, message))
	if err != nil {
		return "", fmt.Errorf("topic filter: %w", err)
	}
	if !verdict.InDomain && !bypassesFilter(message) {
		o.appendPairNow(ctx, userID, message, domain.RedirectReply, cls)
		return domain.RedirectReply, nil
	}

	if cls.Urgency >= domain.CrisisUrgency {
		log.Warn("crisis urgency detected", "urgency", cls.Urgency)
		crisisReply, err := o.crisis.Handle(ctx, userID, message)
		if err != nil {
			return "", fmt.Errorf("crisis responder: %w", err)
		}
		o.appendPairNow(ctx, userID, message, crisisReply, cls)
		return crisisReply, nil
	}

	reply, err := o.llm.Complete(ctx, buildPromptMessages(profile, cls, history, message))
	if err != nil {
		return "", fmt.Errorf("llm completion: %w", err)
	}

	o.appendPairNow(ctx, userID, message, reply, cls)
	return reply, nil
}

// schedulePairWrite persists the exchange without delaying the reply.
func (o *Orchestrator) schedulePairWrite(userID domain.UserID, userText, assistantText string, cls domain.Classification) {
	o.background.Launch("append_chat_pair", func(ctx context.Context) error {
		return o.history.AppendPair(ctx, userID, userText, assistantText, cls)
	})
}

// appendPairNow is the sequential-path write: awaited, but a failure is
// still a write failure and never costs the user their reply.
func (o *Orchestrator) appendPairNow(ctx context.Context, userID domain.UserID, userText, assistantText string, cls domain.Classification) {
	if err := o.history.AppendPair(ctx, userID, userText, assistantText, cls); err != nil {
		observability.LoggerFromContext(ctx).Error("chat pair write failed",
			"user_id", userID,
			"error", err)
	}
}
