package domain

import "time"

type UserID string

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Urgency bounds for the 0-5 severity score produced by the emotion
// classifier. CrisisUrgency and above preempts normal generation.
const (
	MinUrgency    = 0
	MaxUrgency    = 5
	CrisisUrgency = 5
)

// RedirectReply is returned verbatim when the topic filter rejects a message.
const RedirectReply = "Sorry but i can not answer to that question!!!."

// TestBypassMarker lets automated health checks through the topic filter.
// It is matched against the raw incoming message, never against the
// relevance window.
const TestBypassMarker = "[TEST]"

const (
	// DefaultHistoryLimit is how many chat pairs are loaded as LLM context.
	DefaultHistoryLimit = 20

	// RelevanceWindowSize is how many recent user messages the topic
	// filter sees.
	RelevanceWindowSize = 3
)

type Timestamp = time.Time
