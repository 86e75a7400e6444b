package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/sorealabs/mybro-agent/internal/domain"
)

// Store implements the profile, history and event stores on Firestore.
// Layout: users/{email} documents with "messages" and "events"
// subcollections.
type Store struct {
	client *firestore.Client
}

// NewStore creates a Firestore store for the given project.
func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Store{client: client}, nil
}

func (s *Store) userDoc(userID domain.UserID) *firestore.DocumentRef {
	return s.client.Collection("users").Doc(string(userID))
}

func (s *Store) messagesCol(userID domain.UserID) *firestore.CollectionRef {
	return s.userDoc(userID).Collection("messages")
}

func (s *Store) eventsCol(userID domain.UserID) *firestore.CollectionRef {
	return s.userDoc(userID).Collection("events")
}

type profileDoc struct {
	DisplayName string `firestore:"display_name"`
}

type pairDoc struct {
	UserText      string    `firestore:"user_text"`
	AssistantText string    `firestore:"assistant_text"`
	Emotion       string    `firestore:"emotion"`
	Urgency       int       `firestore:"urgency"`
	CreatedAt     time.Time `firestore:"created_at"`
}

type eventDoc struct {
	Kind      string    `firestore:"kind"`
	Summary   string    `firestore:"summary"`
	OccursAt  string    `firestore:"occurs_at"`
	CreatedAt time.Time `firestore:"created_at"`
}

// GetProfile implements domain.ProfileStore.
func (s *Store) GetProfile(ctx context.Context, userID domain.UserID) (*domain.Profile, error) {
	snap, err := s.userDoc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("%w: %s", domain.ErrProfileNotFound, userID)
		}
		return nil, fmt.Errorf("firestore GetProfile: %w", err)
	}

	var doc profileDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("firestore GetProfile decode: %w", err)
	}

	return &domain.Profile{
		ID:          userID,
		DisplayName: doc.DisplayName,
	}, nil
}

// UpsertProfile implements domain.ProfileStore.
func (s *Store) UpsertProfile(ctx context.Context, profile *domain.Profile) error {
	if profile == nil || profile.ID == "" {
		return fmt.Errorf("profile with id is required")
	}

	_, err := s.userDoc(profile.ID).Set(ctx, profileDoc{
		DisplayName: profile.DisplayName,
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("firestore UpsertProfile: %w", err)
	}
	return nil
}

// GetRecent implements domain.HistoryStore. Firestore is queried newest
// first so the limit keeps the latest pairs; the result is reversed back
// to chronological order.
func (s *Store) GetRecent(ctx context.Context, userID domain.UserID, limit int) ([]domain.ChatPair, error) {
	if limit <= 0 {
		limit = domain.DefaultHistoryLimit
	}

	q := s.messagesCol(userID).OrderBy("created_at", firestore.Desc).Limit(limit)

	iter := q.Documents(ctx)
	defer iter.Stop()

	var pairs []domain.ChatPair
	for {
		snap, err := iter.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("firestore GetRecent: %w", err)
		}

		var doc pairDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode pairDoc: %w", err)
		}

		pairs = append(pairs, domain.ChatPair{
			ID:            snap.Ref.ID,
			UserText:      doc.UserText,
			AssistantText: doc.AssistantText,
			Emotion:       doc.Emotion,
			Urgency:       doc.Urgency,
			CreatedAt:     doc.CreatedAt,
		})
	}

	for i, j := 0, len(pairs)-1; i < j; i, j = i+1, j-1 {
		pairs[i], pairs[j] = pairs[j], pairs[i]
	}
	return pairs, nil
}

// AppendPair implements domain.HistoryStore.
func (s *Store) AppendPair(ctx context.Context, userID domain.UserID, userText, assistantText string, c domain.Classification) error {
	doc := pairDoc{
		UserText:      userText,
		AssistantText: assistantText,
		Emotion:       c.Emotion,
		Urgency:       c.Urgency,
		CreatedAt:     time.Now().UTC(),
	}

	_, err := s.messagesCol(userID).Doc(uuid.New().String()).Set(ctx, doc)
	if err != nil {
		return fmt.Errorf("firestore AppendPair: %w", err)
	}
	return nil
}

// AddEvent implements domain.EventStore.
func (s *Store) AddEvent(ctx context.Context, userID domain.UserID, event domain.Event) error {
	id := event.ID
	if id == "" {
		id = uuid.New().String()
	}
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.eventsCol(userID).Doc(id).Set(ctx, eventDoc{
		Kind:      event.Kind,
		Summary:   event.Summary,
		OccursAt:  event.OccursAt,
		CreatedAt: createdAt,
	})
	if err != nil {
		return fmt.Errorf("firestore AddEvent: %w", err)
	}
	return nil
}
