package connectivity_test

import (
	"sync/atomic"
	"testing"

	"github.com/illmade-knight/go-chatsync/pkg/connectivity"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestMonitor(t *testing.T) {
	t.Run("Reports the initial state", func(t *testing.T) {
		assert.True(t, connectivity.NewMonitor(true, zerolog.Nop()).IsConnected())
		assert.False(t, connectivity.NewMonitor(false, zerolog.Nop()).IsConnected())
	})

	t.Run("Notifies only on restoration", func(t *testing.T) {
		// Arrange
		m := connectivity.NewMonitor(true, zerolog.Nop())
		var fired atomic.Int32
		unsubscribe := m.OnRestored(func() { fired.Add(1) })
		defer unsubscribe()

		// Act: connected -> connected, connected -> offline, offline -> offline.
		m.SetConnected(true)
		m.SetConnected(false)
		m.SetConnected(false)

		// Assert
		assert.Zero(t, fired.Load())
		assert.False(t, m.IsConnected())

		// Act: offline -> connected fires once; a repeat does not.
		m.SetConnected(true)
		m.SetConnected(true)
		assert.Equal(t, int32(1), fired.Load())
	})

	t.Run("Unsubscribe stops notifications and is idempotent", func(t *testing.T) {
		m := connectivity.NewMonitor(false, zerolog.Nop())
		var fired atomic.Int32
		unsubscribe := m.OnRestored(func() { fired.Add(1) })
		assert.Equal(t, 1, m.Listeners())

		unsubscribe()
		unsubscribe()
		m.SetConnected(true)

		assert.Zero(t, fired.Load())
		assert.Zero(t, m.Listeners())
	})

	t.Run("Listeners may unsubscribe from inside the callback", func(t *testing.T) {
		m := connectivity.NewMonitor(false, zerolog.Nop())
		var unsubscribe func()
		unsubscribe = m.OnRestored(func() { unsubscribe() })

		assert.NotPanics(t, func() { m.SetConnected(true) })
		assert.Zero(t, m.Listeners())
	})
}
