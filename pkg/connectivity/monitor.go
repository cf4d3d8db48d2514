// Package connectivity reports whether the client can currently reach the
// network and notifies subscribers when a lost connection comes back.
package connectivity

import (
	"sync"

	"github.com/rs/zerolog"
)

// Provider is the connectivity-status contract consumed by the executor.
type Provider interface {
	// IsConnected is a point-in-time check.
	IsConnected() bool
	// OnRestored registers fn to run each time connectivity transitions from
	// absent to present. The returned function removes the subscription and is
	// safe to call more than once.
	OnRestored(fn func()) (unsubscribe func())
}

// Monitor is a Provider whose state is pushed in by a platform integration
// (an OS reachability callback, an MQTT session, a probe loop).
type Monitor struct {
	logger zerolog.Logger

	mu        sync.Mutex
	connected bool
	nextID    uint64
	listeners map[uint64]func()
}

// NewMonitor creates a Monitor with the given initial state.
func NewMonitor(connected bool, logger zerolog.Logger) *Monitor {
	return &Monitor{
		logger:    logger.With().Str("component", "ConnectivityMonitor").Logger(),
		connected: connected,
		listeners: make(map[uint64]func()),
	}
}

// IsConnected returns the last reported state.
func (m *Monitor) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// OnRestored subscribes fn to absent-to-present transitions.
func (m *Monitor) OnRestored(fn func()) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		})
	}
}

// SetConnected records a new state. Listeners run, outside the lock, only on
// a transition from disconnected to connected.
func (m *Monitor) SetConnected(connected bool) {
	m.mu.Lock()
	restored := connected && !m.connected
	changed := connected != m.connected
	m.connected = connected
	var toNotify []func()
	if restored {
		toNotify = make([]func(), 0, len(m.listeners))
		for _, fn := range m.listeners {
			toNotify = append(toNotify, fn)
		}
	}
	m.mu.Unlock()

	if changed {
		m.logger.Info().Bool("connected", connected).Msg("Connectivity changed.")
	}
	for _, fn := range toNotify {
		fn()
	}
}

// Listeners reports how many subscriptions are active.
func (m *Monitor) Listeners() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners)
}
