package kvstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"cloud.google.com/go/firestore"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreConfig holds configuration for the Firestore backed store.
type FirestoreConfig struct {
	ProjectID      string `mapstructure:"project_id"`
	CollectionName string `mapstructure:"collection_name"`
}

// firestoreValue is the document shape; one document per key.
type firestoreValue struct {
	Value string `firestore:"value"`
}

// FirestoreStore is a Store that keeps one Firestore document per key.
// It suits low volume deployments where a dedicated Redis instance is overkill.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
	logger     zerolog.Logger
}

// NewFirestoreStore creates a new FirestoreStore around an existing client.
func NewFirestoreStore(cfg *FirestoreConfig, client *firestore.Client, logger zerolog.Logger) (*FirestoreStore, error) {
	if client == nil {
		return nil, errors.New("firestore client cannot be nil")
	}
	if cfg.CollectionName == "" {
		return nil, errors.New("firestore collection name is required")
	}

	logger.Info().Str("project_id", cfg.ProjectID).Str("collection", cfg.CollectionName).Msg("FirestoreStore initialized.")

	return &FirestoreStore{
		client:     client,
		collection: cfg.CollectionName,
		logger:     logger.With().Str("component", "FirestoreStore").Logger(),
	}, nil
}

// Document IDs may not contain '/', so keys are path-escaped.
func docID(key string) string {
	return url.PathEscape(key)
}

func keyFromDocID(id string) string {
	key, err := url.PathUnescape(id)
	if err != nil {
		return id
	}
	return key
}

func (s *FirestoreStore) doc(key string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(docID(key))
}

// Get retrieves a document; codes.NotFound is a normal miss.
func (s *FirestoreStore) Get(ctx context.Context, key string) (string, bool, error) {
	snap, err := s.doc(key).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", false, nil
		}
		return "", false, fmt.Errorf("firestore get for %s: %w", key, err)
	}
	var v firestoreValue
	if err := snap.DataTo(&v); err != nil {
		return "", false, fmt.Errorf("firestore DataTo for %s: %w", key, err)
	}
	return v.Value, true, nil
}

// Set creates or overwrites the document for key.
func (s *FirestoreStore) Set(ctx context.Context, key, value string) error {
	if _, err := s.doc(key).Set(ctx, firestoreValue{Value: value}); err != nil {
		return fmt.Errorf("firestore set for %s: %w", key, err)
	}
	return nil
}

// Remove deletes the document for key.
func (s *FirestoreStore) Remove(ctx context.Context, key string) error {
	if _, err := s.doc(key).Delete(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return fmt.Errorf("firestore delete for %s: %w", key, err)
	}
	return nil
}

// Keys lists every document in the collection.
func (s *FirestoreStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	refs := s.client.Collection(s.collection).DocumentRefs(ctx)
	for {
		ref, err := refs.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore list for %s: %w", s.collection, err)
		}
		keys = append(keys, keyFromDocID(ref.ID))
	}
	return keys, nil
}

// RemoveMany deletes the documents through a BulkWriter and waits for every
// write to settle.
func (s *FirestoreStore) RemoveMany(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	bw := s.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(keys))
	for _, k := range keys {
		job, err := bw.Delete(s.doc(k))
		if err != nil {
			bw.End()
			return fmt.Errorf("firestore bulk delete enqueue for %s: %w", k, err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	var errs []error
	for i, job := range jobs {
		if _, err := job.Results(); err != nil && status.Code(err) != codes.NotFound {
			errs = append(errs, fmt.Errorf("firestore bulk delete for %s: %w", keys[i], err))
		}
	}
	return errors.Join(errs...)
}

// Close is a no-op as the Firestore client's lifecycle is managed externally.
func (s *FirestoreStore) Close() error {
	s.logger.Info().Msg("FirestoreStore does not close the injected Firestore client.")
	return nil
}
