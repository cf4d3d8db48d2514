package backend_test

import (
	"testing"

	"github.com/illmade-knight/go-chatsync/pkg/backend"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewFirestoreSource_RequiresClient(t *testing.T) {
	_, err := backend.NewFirestoreSource(&backend.FirestoreConfig{UserID: "u1"}, nil, zerolog.Nop())
	require.Error(t, err)
}
