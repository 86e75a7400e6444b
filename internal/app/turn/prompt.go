package turn

import (
	"fmt"
	"strings"

	"github.com/sorealabs/mybro-agent/internal/domain"
)

const systemPreamble = `You are MyBro - a caring, supportive friend who adapts your response style based on what the person needs.
Your personality adjusts to match the situation.

TIME AWARENESS - VERY IMPORTANT:
- Always acknowledge when time has passed.
- Use last conversation time naturally.

ADAPTIVE RESPONSE LEVELS:
- Casual / positive: relaxed supportive tone.
- Mild concern: caring and attentive.
- Moderate distress: deeper emotional support.
- Crisis: protective, emotional, urgent.

CONTEXTUAL QUESTIONS:
Ask about sleep, food, relationships, family ONLY after rapport.

DEEP QUESTION TIMING:
Never ask personal questions in 1-2 messages.
Ask deeper questions only when emotional context is present.

Remember:
You can be caring without being aggressive.
Save protective energy for real crisis.`

// relevanceWindow builds the short window of recent user messages the
// topic filter evaluates: the user side of the last pairs, or the live
// message alone when the user has no history yet.
func relevanceWindow(history []domain.ChatPair, message string) []string {
	if len(history) == 0 {
		return []string{message}
	}

	start := len(history) - domain.RelevanceWindowSize
	if start < 0 {
		start = 0
	}

	window := make([]string, 0, len(history)-start)
	for _, pair := range history[start:] {
		window = append(window, pair.UserText)
	}
	return window
}

// buildPromptMessages assembles the full ordered prompt for one turn:
// system preamble with the current-turn metadata, the retrieved history
// as alternating user/assistant messages (oldest first), and the new
// user message last. Shared by the concurrent and sequential paths.
func buildPromptMessages(
	profile *domain.Profile,
	c domain.Classification,
	history []domain.ChatPair,
	userText string,
) []domain.ChatMessage {
	var system strings.Builder
	system.WriteString(systemPreamble)
	system.WriteString("\n\nCURRENT USER STATE:\n")
	fmt.Fprintf(&system, "- Emotion: %s\n", c.Emotion)
	fmt.Fprintf(&system, "- Urgency: %d/%d\n", c.Urgency, domain.MaxUrgency)
	fmt.Fprintf(&system, "- Name: %s\n", profile.DisplayName)

	messages := make([]domain.ChatMessage, 0, 2*len(history)+2)
	messages = append(messages, domain.ChatMessage{
		Role:    domain.RoleSystem,
		Content: system.String(),
	})

	for _, pair := range history {
		messages = append(messages,
			domain.ChatMessage{Role: domain.RoleUser, Content: pair.UserText},
			domain.ChatMessage{Role: domain.RoleAssistant, Content: pair.AssistantText},
		)
	}

	messages = append(messages, domain.ChatMessage{
		Role:    domain.RoleUser,
		Content: userText,
	})

	return messages
}

// bypassesFilter reports whether the raw incoming message carries the
// test marker. The check is on the raw message on purpose: the marker
// must work even when the relevance window holds older messages.
func bypassesFilter(message string) bool {
	return strings.Contains(message, domain.TestBypassMarker)
}
