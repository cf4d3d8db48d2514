package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/illmade-knight/go-chatsync/pkg/config"
	"github.com/illmade-knight/go-chatsync/pkg/entitycache"
	"github.com/illmade-knight/go-chatsync/pkg/kvstore"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// configPath is the YAML file to load; empty searches ./chatsync.yaml.
	configPath string

	// outputFormat is text or json.
	outputFormat string

	cfg    *config.Config
	logger zerolog.Logger
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "cachectl",
	Short: "Inspect and maintain the chatsync entity cache",
	Long: `cachectl operates on the entity cache configured in chatsync.yaml.

It lists and inspects cached entries, sweeps expired ones, clears the
namespace, refreshes from the backend and runs the background maintenance
loop.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		logger = newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
		return nil
	},
}

// Execute runs the CLI.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&configPath, "config", "",
		"Path to the config file (default: ./chatsync.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&outputFormat, "format", "text",
		"Output format: text, json",
	)

	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(watchCmd)
}

func newLogger(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().Timestamp().Str("service", "cachectl").
		Logger()
}

// openCache opens the configured store and wraps it in an EntityCache. The
// caller closes the returned store.
func openCache(ctx context.Context) (*entitycache.EntityCache, kvstore.Store, error) {
	store, err := kvstore.Open(ctx, &cfg.Store, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store: %w", err)
	}
	cache, err := entitycache.New(&cfg.Cache, store, logger)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return cache, store, nil
}

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
