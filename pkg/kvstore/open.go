package kvstore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/rs/zerolog"
)

// Provider names accepted by Open.
const (
	ProviderMemory    = "memory"
	ProviderLRU       = "lru"
	ProviderSQLite    = "sqlite"
	ProviderRedis     = "redis"
	ProviderFirestore = "firestore"
)

// Config selects and configures one Store implementation.
type Config struct {
	Provider  string          `mapstructure:"provider"`
	LRUSize   int             `mapstructure:"lru_size"`
	SQLite    SQLiteConfig    `mapstructure:"sqlite"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Firestore FirestoreConfig `mapstructure:"firestore"`
}

// Open builds the Store named by cfg.Provider. For Firestore a client is
// created and closed together with the returned Store.
func Open(ctx context.Context, cfg *Config, logger zerolog.Logger) (Store, error) {
	switch cfg.Provider {
	case ProviderMemory, "":
		return NewInMemoryStore(), nil
	case ProviderLRU:
		return NewLRUStore(cfg.LRUSize)
	case ProviderSQLite:
		return NewSQLiteStore(ctx, &cfg.SQLite, logger)
	case ProviderRedis:
		return NewRedisStore(ctx, &cfg.Redis, logger)
	case ProviderFirestore:
		client, err := firestore.NewClient(ctx, cfg.Firestore.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("failed to create firestore client: %w", err)
		}
		store, err := NewFirestoreStore(&cfg.Firestore, client, logger)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		return &ownedFirestoreStore{FirestoreStore: store, client: client}, nil
	default:
		return nil, fmt.Errorf("unknown store provider %q", cfg.Provider)
	}
}

// ownedFirestoreStore closes the client Open created for it.
type ownedFirestoreStore struct {
	*FirestoreStore
	client *firestore.Client
}

func (s *ownedFirestoreStore) Close() error {
	return s.client.Close()
}
