package crisis

import (
	"context"
	"fmt"
	"strings"

	"github.com/sorealabs/mybro-agent/internal/domain"
	"github.com/sorealabs/mybro-agent/internal/observability"
)

// Resource is one crisis line the scripted reply points to.
type Resource struct {
	Name    string
	Contact string
	Hours   string
}

var defaultResources = []Resource{
	{Name: "988 Suicide & Crisis Lifeline", Contact: "call or text 988", Hours: "24/7"},
	{Name: "Crisis Text Line", Contact: "text HOME to 741741", Hours: "24/7"},
	{Name: "International Association for Suicide Prevention", Contact: "https://www.iasp.info/resources/Crisis_Centres/", Hours: "directory"},
}

// ScriptedResponder implements domain.CrisisResponder with a fixed
// protective script plus a resource list. It never calls the LLM: the
// crisis reply must not depend on model availability.
type ScriptedResponder struct {
	resources []Resource
}

func NewScriptedResponder(resources ...Resource) *ScriptedResponder {
	if len(resources) == 0 {
		resources = defaultResources
	}
	return &ScriptedResponder{resources: resources}
}

// Handle implements domain.CrisisResponder.
func (r *ScriptedResponder) Handle(ctx context.Context, userID domain.UserID, text string) (string, error) {
	observability.LoggerFromContext(ctx).Warn("crisis reply issued", "user_id", userID)

	var sb strings.Builder
	sb.WriteString("I'm really glad you told me. What you're feeling right now matters, and you don't have to face it alone.\n\n")
	sb.WriteString("Please reach out to someone who can help right now:\n")
	for _, res := range r.resources {
		fmt.Fprintf(&sb, "- %s: %s (%s)\n", res.Name, res.Contact, res.Hours)
	}
	sb.WriteString("\nIf you are in immediate danger, call your local emergency number. ")
	sb.WriteString("I'm staying right here with you - can you tell me where you are and if someone is with you?")

	return sb.String(), nil
}
