package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sorealabs/mybro-agent/internal/domain"
)

// Store is an in-memory implementation of the profile, history and event
// stores. It is NOT persistent and is only suitable for development,
// local mode and tests.
type Store struct {
	mu       sync.RWMutex
	profiles map[domain.UserID]domain.Profile
	pairs    map[domain.UserID][]domain.ChatPair
	events   map[domain.UserID][]domain.Event
}

func NewStore() *Store {
	return &Store{
		profiles: make(map[domain.UserID]domain.Profile),
		pairs:    make(map[domain.UserID][]domain.ChatPair),
		events:   make(map[domain.UserID][]domain.Event),
	}
}

// GetProfile implements domain.ProfileStore.
func (s *Store) GetProfile(_ context.Context, userID domain.UserID) (*domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrProfileNotFound, userID)
	}
	out := p
	return &out, nil
}

// UpsertProfile implements domain.ProfileStore.
func (s *Store) UpsertProfile(_ context.Context, profile *domain.Profile) error {
	if profile == nil || profile.ID == "" {
		return fmt.Errorf("profile with id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.profiles[profile.ID] = *profile
	return nil
}

// GetRecent implements domain.HistoryStore. Pairs come back oldest first.
func (s *Store) GetRecent(_ context.Context, userID domain.UserID, limit int) ([]domain.ChatPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pairs := s.pairs[userID]
	if limit > 0 && len(pairs) > limit {
		pairs = pairs[len(pairs)-limit:]
	}

	out := make([]domain.ChatPair, len(pairs))
	copy(out, pairs)
	return out, nil
}

// AppendPair implements domain.HistoryStore.
func (s *Store) AppendPair(_ context.Context, userID domain.UserID, userText, assistantText string, c domain.Classification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pairs[userID] = append(s.pairs[userID], domain.ChatPair{
		ID:            uuid.New().String(),
		UserText:      userText,
		AssistantText: assistantText,
		Emotion:       c.Emotion,
		Urgency:       c.Urgency,
		CreatedAt:     time.Now().UTC(),
	})
	return nil
}

// AddEvent implements domain.EventStore.
func (s *Store) AddEvent(_ context.Context, userID domain.UserID, event domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	s.events[userID] = append(s.events[userID], event)
	return nil
}

// Events returns all stored events for a user. Test helper.
func (s *Store) Events(userID domain.UserID) []domain.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Event, len(s.events[userID]))
	copy(out, s.events[userID])
	return out
}
