package domain

import "context"

// LLMClient defines how the core application interacts with the LLM service.
// Complete sends the full ordered prompt and returns the reply text.
type LLMClient interface {
	Complete(ctx context.Context, messages []ChatMessage) (string, error)
}

// ProfileStore reads and registers user profiles.
type ProfileStore interface {
	// GetProfile returns ErrProfileNotFound (possibly wrapped) for unknown users.
	GetProfile(ctx context.Context, userID UserID) (*Profile, error)
	UpsertProfile(ctx context.Context, profile *Profile) error
}

// HistoryStore persists chat pairs per user.
type HistoryStore interface {
	// GetRecent returns up to limit pairs, oldest first.
	GetRecent(ctx context.Context, userID UserID, limit int) ([]ChatPair, error)
	AppendPair(ctx context.Context, userID UserID, userText, assistantText string, c Classification) error
}

// EventStore registers extracted life events.
type EventStore interface {
	AddEvent(ctx context.Context, userID UserID, event Event) error
}

// EmotionClassifier reads the emotional state and urgency of one message.
type EmotionClassifier interface {
	Classify(ctx context.Context, text string) (Classification, error)
}

// TopicFilter judges whether the recent user messages are within the
// chatbot's supported subject matter.
type TopicFilter interface {
	Filter(ctx context.Context, messages []string) (TopicVerdict, error)
}

// CrisisResponder produces the protective reply for urgency >= CrisisUrgency.
type CrisisResponder interface {
	Handle(ctx context.Context, userID UserID, text string) (string, error)
}

// EventExtractor pulls an optional structured event out of a message.
// A nil event with nil error means nothing was found.
type EventExtractor interface {
	Extract(ctx context.Context, userID UserID, text string) (*Event, error)
}

// Task is one unit of fire-and-forget work.
type Task func(ctx context.Context) error

// TaskLauncher schedules work without blocking the caller. Completion is
// never observed by the scheduling turn: failures are logged where the
// task runs, not returned. Tasks from one turn are unordered relative to
// each other.
type TaskLauncher interface {
	Launch(name string, task Task)
}
