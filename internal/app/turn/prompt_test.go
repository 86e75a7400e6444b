package turn

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sorealabs/mybro-agent/internal/domain"
)

func pairs(userTexts ...string) []domain.ChatPair {
	out := make([]domain.ChatPair, len(userTexts))
	for i, text := range userTexts {
		out[i] = domain.ChatPair{UserText: text, AssistantText: "reply to " + text}
	}
	return out
}

func TestRelevanceWindowUsesLastThreeUserMessages(t *testing.T) {
	history := pairs("one", "two", "three", "four", "five")

	window := relevanceWindow(history, "live message")
	require.Equal(t, []string{"three", "four", "five"}, window)
}

func TestRelevanceWindowShortHistory(t *testing.T) {
	window := relevanceWindow(pairs("only"), "live message")
	require.Equal(t, []string{"only"}, window)
}

func TestRelevanceWindowEmptyHistoryFallsBackToLiveMessage(t *testing.T) {
	window := relevanceWindow(nil, "first ever message")
	require.Equal(t, []string{"first ever message"}, window)
}

func TestBuildPromptMessagesShape(t *testing.T) {
	profile := &domain.Profile{ID: "u@example.com", DisplayName: "Sam"}
	cls := domain.Classification{Emotion: "sadness", Urgency: 2}
	history := pairs("first", "second")

	messages := buildPromptMessages(profile, cls, history, "how do I cope?")

	// system + 2 pairs + new message
	require.Len(t, messages, 6)

	require.Equal(t, domain.RoleSystem, messages[0].Role)
	require.True(t, strings.Contains(messages[0].Content, "Emotion: sadness"))
	require.True(t, strings.Contains(messages[0].Content, "Urgency: 2/5"))
	require.True(t, strings.Contains(messages[0].Content, "Name: Sam"))

	require.Equal(t, domain.RoleUser, messages[1].Role)
	require.Equal(t, "first", messages[1].Content)
	require.Equal(t, domain.RoleAssistant, messages[2].Role)
	require.Equal(t, "reply to first", messages[2].Content)

	last := messages[len(messages)-1]
	require.Equal(t, domain.RoleUser, last.Role)
	require.Equal(t, "how do I cope?", last.Content)
}

func TestBypassesFilterChecksRawMessage(t *testing.T) {
	require.True(t, bypassesFilter("[TEST] ping"))
	require.True(t, bypassesFilter("prefix [TEST] suffix"))
	require.False(t, bypassesFilter("test without marker"))
}
