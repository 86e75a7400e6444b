package domain

import (
	"errors"
	"time"
)

// ErrProfileNotFound is returned by profile stores when a user does not exist.
var ErrProfileNotFound = errors.New("profile not found")

// Profile is the read-only user snapshot a turn works with.
type Profile struct {
	ID          UserID
	DisplayName string
}

// Classification is the per-turn emotion reading of one user message.
// Urgency is always within [MinUrgency, MaxUrgency].
type Classification struct {
	Emotion string
	Urgency int
}

// TopicVerdict is the topic filter's judgment over the relevance window.
type TopicVerdict struct {
	InDomain bool
}

// ChatPair is one user-message / assistant-reply exchange, together with
// the emotion reading that accompanied it. History stores keep pairs in
// chronological order (oldest first).
type ChatPair struct {
	ID            string
	UserText      string
	AssistantText string
	Emotion       string
	Urgency       int
	CreatedAt     Timestamp
}

// Event is a structured life event extracted from a user message
// (an appointment, an exam, a loss...). Extraction may yield nothing.
type Event struct {
	ID        string
	Kind      string
	Summary   string
	OccursAt  string // free-form date/time as the user phrased it
	CreatedAt time.Time
}

// ChatMessage is one entry of the prompt sent to the LLM.
type ChatMessage struct {
	Role    Role
	Content string
}
