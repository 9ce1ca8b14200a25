package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PabloGalante/tutorchat/internal/domain"
)

const DefaultCollection = "chat_histories"

type Store struct {
	client     *firestore.Client
	collection string
	now        func() time.Time
}

// NewStore creates a Firestore store.
// Uses the project passed (TUTORCHAT_FIRESTORE_PROJECT).
func NewStore(ctx context.Context, projectID, collection string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return NewStoreWithClient(client, collection), nil
}

func NewStoreWithClient(client *firestore.Client, collection string) *Store {
	if collection == "" {
		collection = DefaultCollection
	}
	return &Store{client: client, collection: collection, now: time.Now}
}

func (s *Store) Close() error {
	return s.client.Close()
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (s *Store) historyDoc(key string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(key)
}

// ─────────────────────────────────────────
// Firestore Types
// ─────────────────────────────────────────

type historyDoc struct {
	Value     []byte    `firestore:"value"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

// ─────────────────────────────────────────
// KVStore implementation
// ─────────────────────────────────────────

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	snap, err := s.historyDoc(key).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("firestore Get: %w", err)
	}

	var doc historyDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("firestore decode history: %w", err)
	}
	return doc.Value, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	doc := historyDoc{
		Value:     value,
		UpdatedAt: s.now().UTC(),
	}
	if _, err := s.historyDoc(key).Set(ctx, doc); err != nil {
		return fmt.Errorf("firestore Set: %w", err)
	}
	return nil
}

// Clear deletes the document. Deleting a missing document is not an error.
func (s *Store) Clear(ctx context.Context, key string) error {
	if _, err := s.historyDoc(key).Delete(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return fmt.Errorf("firestore Clear: %w", err)
	}
	return nil
}

var _ domain.KVStore = (*Store)(nil)
