// Package config loads the settings shared by every chatsync binary from an
// optional YAML file with CHATSYNC_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/illmade-knight/go-chatsync/pkg/backend"
	"github.com/illmade-knight/go-chatsync/pkg/connectivity"
	"github.com/illmade-knight/go-chatsync/pkg/datasync"
	"github.com/illmade-knight/go-chatsync/pkg/entitycache"
	"github.com/illmade-knight/go-chatsync/pkg/executor"
	"github.com/illmade-knight/go-chatsync/pkg/invalidation"
	"github.com/illmade-knight/go-chatsync/pkg/kvstore"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// CHATSYNC_CACHE_TTL=12h.
const EnvPrefix = "CHATSYNC"

// Config is the full application configuration.
type Config struct {
	LogLevel        string                  `mapstructure:"log_level"`
	JanitorInterval time.Duration           `mapstructure:"janitor_interval"`
	Cache           entitycache.Config      `mapstructure:"cache"`
	Executor        executor.Config         `mapstructure:"executor"`
	Sync            datasync.Config         `mapstructure:"sync"`
	Store           kvstore.Config          `mapstructure:"store"`
	MQTT            connectivity.MQTTConfig `mapstructure:"mqtt"`
	Invalidation    invalidation.Config     `mapstructure:"invalidation"`
	Backend         backend.FirestoreConfig `mapstructure:"backend"`
}

func setDefaults(v *viper.Viper) {
	cache := entitycache.DefaultConfig()
	exec := executor.DefaultConfig()
	mqtt := connectivity.DefaultMQTTConfig()
	inv := invalidation.DefaultConfig("")

	v.SetDefault("log_level", "info")
	v.SetDefault("janitor_interval", time.Hour)

	v.SetDefault("cache.namespace", cache.Namespace)
	v.SetDefault("cache.ttl", cache.TTL)
	v.SetDefault("cache.max_messages_per_conversation", cache.MaxMessagesPerConversation)

	v.SetDefault("executor.retries", exec.Retries)
	v.SetDefault("executor.timeout", exec.Timeout)
	v.SetDefault("executor.base_delay", exec.BaseDelay)
	v.SetDefault("executor.connectivity_wait", exec.ConnectivityWait)

	v.SetDefault("sync.refresh_concurrency", datasync.DefaultConfig().RefreshConcurrency)

	v.SetDefault("store.provider", kvstore.ProviderSQLite)
	v.SetDefault("store.lru_size", 1000)
	v.SetDefault("store.sqlite.path", "chatsync.db")
	v.SetDefault("store.sqlite.busy_timeout_millis", 5000)
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.scan_pattern", "*")
	v.SetDefault("store.redis.scan_count", 100)
	v.SetDefault("store.firestore.project_id", "")
	v.SetDefault("store.firestore.collection_name", "chatsync-cache")

	v.SetDefault("mqtt.broker_url", "")
	v.SetDefault("mqtt.client_id_prefix", mqtt.ClientIDPrefix)
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.keep_alive", mqtt.KeepAlive)
	v.SetDefault("mqtt.connect_timeout", mqtt.ConnectTimeout)
	v.SetDefault("mqtt.reconnect_wait_max", mqtt.ReconnectWaitMax)

	v.SetDefault("invalidation.project_id", "")
	v.SetDefault("invalidation.subscription_id", "")
	v.SetDefault("invalidation.max_outstanding_messages", inv.MaxOutstandingMessages)
	v.SetDefault("invalidation.num_goroutines", inv.NumGoroutines)

	v.SetDefault("backend.project_id", "")
	v.SetDefault("backend.user_id", "")
	v.SetDefault("backend.inbox_limit", 50)
	v.SetDefault("backend.page_size", cache.MaxMessagesPerConversation)
}

// Load reads configPath if given, otherwise looks for chatsync.yaml in the
// working directory. A missing default file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("chatsync")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings every binary depends on.
func (c *Config) Validate() error {
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	if err := c.Executor.Validate(); err != nil {
		return fmt.Errorf("invalid executor config: %w", err)
	}
	if c.Cache.Namespace == "" {
		return errors.New("cache.namespace cannot be empty")
	}
	if c.Cache.TTL <= 0 {
		return errors.New("cache.ttl must be positive")
	}
	if c.Cache.MaxMessagesPerConversation <= 0 {
		return errors.New("cache.max_messages_per_conversation must be positive")
	}
	if c.JanitorInterval <= 0 {
		return errors.New("janitor_interval must be positive")
	}
	return nil
}
