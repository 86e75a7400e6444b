package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/sorealabs/mybro-agent/internal/domain"
)

const extractionPrompt = `Check whether the user message below mentions a concrete upcoming or
recent life event worth remembering for future conversations: an exam,
a job interview, a medical appointment, a breakup, a loss, a move.
If there is none, set found to false and leave the other fields empty.

Message:
%s`

// GenAIExtractor implements domain.EventExtractor with structured JSON
// output from a Gemini model.
type GenAIExtractor struct {
	client    *genai.Client
	modelName string
}

func NewGenAIExtractor(client *genai.Client, modelName string) *GenAIExtractor {
	return &GenAIExtractor{client: client, modelName: modelName}
}

type eventPayload struct {
	Found    bool   `json:"found"`
	Kind     string `json:"kind"`
	Summary  string `json:"summary"`
	OccursAt string `json:"occurs_at"`
}

// Extract implements domain.EventExtractor. A nil event means the
// message carried nothing worth remembering.
func (e *GenAIExtractor) Extract(ctx context.Context, userID domain.UserID, text string) (*domain.Event, error) {
	temp := float32(0.0)

	cfg := &genai.GenerateContentConfig{
		Temperature:      &temp,
		ResponseMIMEType: "application/json",
		ResponseSchema:   eventSchema(),
	}

	contents := []*genai.Content{
		genai.NewContentFromText(fmt.Sprintf(extractionPrompt, text), genai.RoleUser),
	}

	res, err := e.client.Models.GenerateContent(ctx, e.modelName, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("event extraction: %w", err)
	}

	raw := res.Text()
	if raw == "" {
		return nil, fmt.Errorf("event extraction: empty response")
	}

	var payload eventPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("event extraction: decoding %q: %w", raw, err)
	}

	if !payload.Found || payload.Summary == "" {
		return nil, nil
	}

	return &domain.Event{
		ID:        uuid.New().String(),
		Kind:      payload.Kind,
		Summary:   payload.Summary,
		OccursAt:  payload.OccursAt,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func eventSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"found":     {Type: genai.TypeBoolean},
			"kind":      {Type: genai.TypeString, Description: "Short category: exam, appointment, loss..."},
			"summary":   {Type: genai.TypeString, Description: "One-sentence description of the event"},
			"occurs_at": {Type: genai.TypeString, Description: "When it happens, as the user phrased it"},
		},
		Required: []string{"found", "kind", "summary", "occurs_at"},
	}
}

// NoopExtractor is used in local mode: it never finds an event.
type NoopExtractor struct{}

func NewNoopExtractor() *NoopExtractor {
	return &NoopExtractor{}
}

func (NoopExtractor) Extract(context.Context, domain.UserID, string) (*domain.Event, error) {
	return nil, nil
}
