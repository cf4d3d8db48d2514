package connectivity

import (
	"context"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MQTTConfig holds the Paho client settings for the realtime session that
// doubles as the connectivity signal.
type MQTTConfig struct {
	// BrokerURL is the full URL of the broker, e.g. "tls://mqtt.example.com:8883".
	BrokerURL string `mapstructure:"broker_url"`
	// ClientIDPrefix gets a unique suffix appended, as brokers require unique IDs.
	ClientIDPrefix   string        `mapstructure:"client_id_prefix"`
	Username         string        `mapstructure:"username"`
	Password         string        `mapstructure:"password"`
	KeepAlive        time.Duration `mapstructure:"keep_alive"`
	ConnectTimeout   time.Duration `mapstructure:"connect_timeout"`
	ReconnectWaitMax time.Duration `mapstructure:"reconnect_wait_max"`
}

// DefaultMQTTConfig returns sensible defaults for everything but the broker.
func DefaultMQTTConfig() *MQTTConfig {
	return &MQTTConfig{
		ClientIDPrefix:   "chatsync-",
		KeepAlive:        30 * time.Second,
		ConnectTimeout:   10 * time.Second,
		ReconnectWaitMax: 60 * time.Second,
	}
}

// MQTTMonitor derives connectivity from the state of an auto-reconnecting
// MQTT session: connected while the session is up, disconnected after the
// connection is lost until Paho re-establishes it.
type MQTTMonitor struct {
	*Monitor

	cfg        *MQTTConfig
	pahoClient mqtt.Client
	logger     zerolog.Logger
	stopOnce   sync.Once
}

// NewMQTTMonitor creates a monitor that starts out disconnected.
// It does not connect until Start is called.
func NewMQTTMonitor(cfg *MQTTConfig, logger zerolog.Logger) (*MQTTMonitor, error) {
	if cfg.BrokerURL == "" {
		return nil, fmt.Errorf("MQTT broker URL is required")
	}
	return &MQTTMonitor{
		Monitor: NewMonitor(false, logger),
		cfg:     cfg,
		logger:  logger.With().Str("component", "MQTTMonitor").Logger(),
	}, nil
}

// Start connects to the broker. A failed first connection is not an error:
// Paho keeps retrying in the background and the monitor reports disconnected.
func (m *MQTTMonitor) Start(ctx context.Context) error {
	m.pahoClient = mqtt.NewClient(m.createMqttOptions())

	m.logger.Info().Str("broker", m.cfg.BrokerURL).Msg("Attempting to connect to MQTT broker...")
	token := m.pahoClient.Connect()
	if token.WaitTimeout(m.cfg.ConnectTimeout) && token.Error() != nil {
		m.logger.Warn().Err(token.Error()).Msg("Initial MQTT connection failed, Paho will keep retrying.")
	}

	go func() {
		<-ctx.Done()
		m.Stop()
	}()
	return nil
}

// Stop disconnects the client. It is safe to call more than once.
func (m *MQTTMonitor) Stop() {
	m.stopOnce.Do(func() {
		if m.pahoClient != nil && m.pahoClient.IsConnected() {
			m.pahoClient.Disconnect(250)
			m.logger.Info().Msg("Paho MQTT client disconnected.")
		}
		m.SetConnected(false)
	})
}

func (m *MQTTMonitor) handleConnect(_ mqtt.Client) {
	m.logger.Info().Str("broker", m.cfg.BrokerURL).Msg("MQTT session established.")
	m.SetConnected(true)
}

func (m *MQTTMonitor) handleConnectionLost(_ mqtt.Client, err error) {
	m.logger.Warn().Err(err).Msg("MQTT connection lost.")
	m.SetConnected(false)
}

// createMqttOptions assembles the Paho client options from the config.
func (m *MQTTMonitor) createMqttOptions() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(m.cfg.BrokerURL)
	opts.SetClientID(m.cfg.ClientIDPrefix + uuid.NewString()[:8])
	opts.SetUsername(m.cfg.Username)
	opts.SetPassword(m.cfg.Password)
	opts.SetKeepAlive(m.cfg.KeepAlive)
	opts.SetConnectTimeout(m.cfg.ConnectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetMaxReconnectInterval(m.cfg.ReconnectWaitMax)
	opts.SetOnConnectHandler(m.handleConnect)
	opts.SetConnectionLostHandler(m.handleConnectionLost)
	opts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		m.logger.Debug().Msg("Paho reconnecting...")
	})
	return opts
}
