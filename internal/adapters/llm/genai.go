package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/sorealabs/mybro-agent/internal/domain"
)

// GenAIClient implements domain.LLMClient on top of the Gemini models,
// reachable either through the Gemini API (api key) or Vertex AI
// (project + location).
type GenAIClient struct {
	client    *genai.Client
	modelName string
}

// Options selects the backend. APIKey wins when both are set.
type Options struct {
	APIKey    string
	ProjectID string
	Location  string
	ModelName string
}

func NewGenAIClient(ctx context.Context, opts Options) (*GenAIClient, error) {
	cc := &genai.ClientConfig{}
	switch {
	case opts.APIKey != "":
		cc.APIKey = opts.APIKey
		cc.Backend = genai.BackendGeminiAPI
	case opts.ProjectID != "":
		cc.Project = opts.ProjectID
		cc.Location = opts.Location
		cc.Backend = genai.BackendVertexAI
	default:
		return nil, fmt.Errorf("genai client needs an api key or a GCP project")
	}

	modelName := opts.ModelName
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &GenAIClient{
		client:    client,
		modelName: modelName,
	}, nil
}

// Client exposes the underlying genai client so the classifier and
// extractor adapters can share one connection.
func (g *GenAIClient) Client() *genai.Client {
	return g.client
}

// Complete implements domain.LLMClient.
func (g *GenAIClient) Complete(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	var system string
	var contents []*genai.Content

	for _, m := range messages {
		switch m.Role {
		case domain.RoleSystem:
			system = m.Content
		case domain.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	temp := float32(0.7)
	topP := float32(0.9)
	outputTokens := int32(8192)

	cfg := &genai.GenerateContentConfig{
		Temperature:     &temp,
		TopP:            &topP,
		MaxOutputTokens: outputTokens,
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	res, err := g.client.Models.GenerateContent(ctx, g.modelName, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("genai generate content: %w", err)
	}

	text := res.Text()
	if text == "" {
		return "", fmt.Errorf("genai returned empty text")
	}

	return text, nil
}
