package llm

import (
	"context"
	"fmt"

	"github.com/sorealabs/mybro-agent/internal/domain"
)

// MockLLM echoes the last user message back. Used in local mode and tests.
type MockLLM struct{}

func NewMockLLM() *MockLLM {
	return &MockLLM{}
}

func (m *MockLLM) Complete(_ context.Context, messages []domain.ChatMessage) (string, error) {
	last := ""
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == domain.RoleUser {
			last = messages[i].Content
			break
		}
	}
	return fmt.Sprintf("I hear you. You said %q. Tell me a bit more about how that makes you feel.", last), nil
}
