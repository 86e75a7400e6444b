package classify

import (
	"context"
	"strings"

	"github.com/sorealabs/mybro-agent/internal/domain"
)

// LexiconEmotion is a keyword-based emotion classifier for local mode
// and tests. It errs protective: any crisis phrase maps straight to the
// maximum urgency.
type LexiconEmotion struct{}

func NewLexiconEmotion() *LexiconEmotion {
	return &LexiconEmotion{}
}

var crisisPhrases = []string{
	"kill myself",
	"suicide",
	"end my life",
	"hurt myself",
	"self harm",
	"self-harm",
	"want to die",
	"no reason to live",
}

var emotionKeywords = []struct {
	emotion string
	urgency int
	words   []string
}{
	{"despair", 4, []string{"hopeless", "worthless", "can't go on", "give up"}},
	{"anxiety", 3, []string{"panic", "anxious", "anxiety", "overwhelmed", "scared"}},
	{"sadness", 2, []string{"sad", "depressed", "lonely", "crying", "miss"}},
	{"anger", 2, []string{"angry", "furious", "hate", "rage"}},
	{"joy", 0, []string{"happy", "great", "excited", "glad", "proud"}},
}

func (l *LexiconEmotion) Classify(_ context.Context, text string) (domain.Classification, error) {
	lower := strings.ToLower(text)

	for _, phrase := range crisisPhrases {
		if strings.Contains(lower, phrase) {
			return domain.Classification{Emotion: "crisis", Urgency: domain.CrisisUrgency}, nil
		}
	}

	for _, group := range emotionKeywords {
		for _, word := range group.words {
			if strings.Contains(lower, word) {
				return domain.Classification{Emotion: group.emotion, Urgency: group.urgency}, nil
			}
		}
	}

	return domain.Classification{Emotion: "neutral", Urgency: 1}, nil
}

// LexiconTopic is a keyword-based topic filter for local mode and tests.
// A window is in-domain when any message touches a well-being keyword.
type LexiconTopic struct{}

func NewLexiconTopic() *LexiconTopic {
	return &LexiconTopic{}
}

var topicKeywords = []string{
	"feel", "feeling", "emotion", "stress", "stressed", "anxious", "anxiety",
	"sad", "depressed", "depression", "lonely", "sleep", "tired", "therapy",
	"relationship", "family", "friend", "worried", "worry", "afraid", "panic",
	"angry", "overwhelmed", "grief", "happy", "mood", "mental",
	"suicide", "self-harm", "hurt", "crisis", "help",
}

func (l *LexiconTopic) Filter(_ context.Context, messages []string) (domain.TopicVerdict, error) {
	for _, msg := range messages {
		lower := strings.ToLower(msg)
		for _, word := range topicKeywords {
			if strings.Contains(lower, word) {
				return domain.TopicVerdict{InDomain: true}, nil
			}
		}
	}
	return domain.TopicVerdict{InDomain: false}, nil
}
