//go:build integration

package kvstore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/illmade-knight/go-chatsync/pkg/kvstore"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// TestFirestoreStore_Integration runs the store contract against a Firestore
// emulator. Start one with `gcloud emulators firestore start` and export
// FIRESTORE_EMULATOR_HOST before running with -tags integration.
func TestFirestoreStore_Integration(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	t.Cleanup(cancel)

	const projectID = "test-project"
	client, err := firestore.NewClient(ctx, projectID)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	cfg := &kvstore.FirestoreConfig{
		ProjectID:      projectID,
		CollectionName: "kv-" + time.Now().Format("150405.000000"),
	}
	store, err := kvstore.NewFirestoreStore(cfg, client, zerolog.Nop())
	require.NoError(t, err)

	runStoreContract(t, store)
}
