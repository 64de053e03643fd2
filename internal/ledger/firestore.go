package ledger

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultFirestoreCollection holds one document per day.
const DefaultFirestoreCollection = "daily_spend"

// FirestoreStore keeps totals in Firestore using the Increment transform.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreStore creates a client for projectID and wraps it.
func NewFirestoreStore(ctx context.Context, projectID, collection string) (*FirestoreStore, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	if collection == "" {
		collection = DefaultFirestoreCollection
	}
	return &FirestoreStore{client: client, collection: collection}, nil
}

// Add increments the total for day.
func (s *FirestoreStore) Add(ctx context.Context, day string, amount float64) error {
	_, err := s.client.Collection(s.collection).Doc(day).Set(ctx, map[string]interface{}{
		"total":      firestore.Increment(amount),
		"updated_at": firestore.ServerTimestamp,
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("firestore increment %s/%s: %w", s.collection, day, err)
	}
	return nil
}

// Total returns the total for day.
func (s *FirestoreStore) Total(ctx context.Context, day string) (float64, error) {
	snap, err := s.client.Collection(s.collection).Doc(day).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("firestore get %s/%s: %w", s.collection, day, err)
	}
	v, err := snap.DataAt("total")
	if err != nil {
		return 0, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("firestore total for %s has type %T", day, v)
	}
}

// Close releases the client.
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

var _ Store = (*FirestoreStore)(nil)
