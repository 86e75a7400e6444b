package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/sorealabs/mybro-agent/internal/domain"
)

const emotionPrompt = `Read the user message below and report the dominant emotion and how
urgent the situation is on a 0-5 scale, where 0 is calm small talk and 5
is an acute crisis (self-harm, suicide, danger to others).

Message:
%s`

const topicPrompt = `You gate a mental-well-being companion. Decide whether the recent user
messages below are about mental health, emotions, relationships, stress,
or personal well-being. Anything else (homework, code, trivia, news...)
is out of scope.

Recent messages:
%s`

// GenAIClassifier implements both domain.EmotionClassifier and
// domain.TopicFilter with structured JSON output from a Gemini model.
type GenAIClassifier struct {
	client    *genai.Client
	modelName string
}

func NewGenAIClassifier(client *genai.Client, modelName string) *GenAIClassifier {
	return &GenAIClassifier{client: client, modelName: modelName}
}

type emotionPayload struct {
	Emotion string `json:"emotion"`
	Urgency int    `json:"urgency"`
}

type topicPayload struct {
	IsMentalHealthRelated bool `json:"is_mental_health_related"`
}

// Classify implements domain.EmotionClassifier.
func (c *GenAIClassifier) Classify(ctx context.Context, text string) (domain.Classification, error) {
	raw, err := c.generateJSON(ctx, fmt.Sprintf(emotionPrompt, text), emotionSchema())
	if err != nil {
		return domain.Classification{}, fmt.Errorf("emotion classify: %w", err)
	}

	var payload emotionPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return domain.Classification{}, fmt.Errorf("emotion classify: decoding %q: %w", raw, err)
	}

	return domain.Classification{
		Emotion: payload.Emotion,
		Urgency: clampUrgency(payload.Urgency),
	}, nil
}

// Filter implements domain.TopicFilter.
func (c *GenAIClassifier) Filter(ctx context.Context, messages []string) (domain.TopicVerdict, error) {
	raw, err := c.generateJSON(ctx, fmt.Sprintf(topicPrompt, strings.Join(messages, "\n")), topicSchema())
	if err != nil {
		return domain.TopicVerdict{}, fmt.Errorf("topic filter: %w", err)
	}

	var payload topicPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return domain.TopicVerdict{}, fmt.Errorf("topic filter: decoding %q: %w", raw, err)
	}

	return domain.TopicVerdict{InDomain: payload.IsMentalHealthRelated}, nil
}

func (c *GenAIClassifier) generateJSON(ctx context.Context, prompt string, schema *genai.Schema) (string, error) {
	temp := float32(0.0)

	cfg := &genai.GenerateContentConfig{
		Temperature:      &temp,
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	res, err := c.client.Models.GenerateContent(ctx, c.modelName, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("genai generate content: %w", err)
	}

	text := res.Text()
	if text == "" {
		return "", fmt.Errorf("genai returned empty text")
	}
	return text, nil
}

func emotionSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"emotion": {Type: genai.TypeString, Description: "Dominant emotion, one lowercase word"},
			"urgency": {Type: genai.TypeInteger, Description: "Severity 0-5, 5 = acute crisis"},
		},
		Required: []string{"emotion", "urgency"},
	}
}

func topicSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"is_mental_health_related": {Type: genai.TypeBoolean},
		},
		Required: []string{"is_mental_health_related"},
	}
}

func clampUrgency(n int) int {
	if n < domain.MinUrgency {
		return domain.MinUrgency
	}
	if n > domain.MaxUrgency {
		return domain.MaxUrgency
	}
	return n
}
