package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"github.com/illmade-knight/go-chatsync/pkg/backend"
	"github.com/illmade-knight/go-chatsync/pkg/connectivity"
	"github.com/illmade-knight/go-chatsync/pkg/datasync"
	"github.com/illmade-knight/go-chatsync/pkg/entitycache"
	"github.com/illmade-knight/go-chatsync/pkg/executor"
	"github.com/illmade-knight/go-chatsync/pkg/invalidation"
	"github.com/illmade-knight/go-chatsync/pkg/statusserver"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Refresh the cache from the backend",
	Long: `Fetches the inbox, the given conversations and the given profiles from
the backend through the retrying executor and writes them into the cache.
The refresh is skipped when the inbox was synced within --min-interval.`,
	RunE: runSync,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the invalidation listener and the periodic sweep until interrupted",
	RunE:  runWatch,
}

var (
	syncConversations []string
	syncUsers         []string
	syncMinInterval   time.Duration
	syncForce         bool

	watchStatusAddr string
)

func init() {
	syncCmd.Flags().StringSliceVar(&syncConversations, "conversation", nil, "Conversation IDs whose messages to refresh")
	syncCmd.Flags().StringSliceVar(&syncUsers, "user", nil, "User IDs whose profiles to refresh")
	syncCmd.Flags().DurationVar(&syncMinInterval, "min-interval", 5*time.Minute, "Skip the refresh if the inbox synced more recently")
	syncCmd.Flags().BoolVar(&syncForce, "force", false, "Refresh regardless of --min-interval")

	watchCmd.Flags().StringVar(&watchStatusAddr, "status-addr", "", "Serve /healthz and /status on this address, e.g. :8080")
}

// startConnectivity returns an MQTT-driven provider when a broker is
// configured and nil otherwise, which the executor treats as always online.
func startConnectivity(ctx context.Context) (connectivity.Provider, func(), error) {
	if cfg.MQTT.BrokerURL == "" {
		return nil, func() {}, nil
	}
	monitor, err := connectivity.NewMQTTMonitor(&cfg.MQTT, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := monitor.Start(ctx); err != nil {
		return nil, nil, err
	}
	return monitor, monitor.Stop, nil
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cache, store, err := openCache(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	client, err := firestore.NewClient(ctx, cfg.Backend.ProjectID)
	if err != nil {
		return fmt.Errorf("failed to create firestore client: %w", err)
	}
	defer client.Close()
	source, err := backend.NewFirestoreSource(&cfg.Backend, client, logger)
	if err != nil {
		return err
	}

	conn, stopConn, err := startConnectivity(ctx)
	if err != nil {
		return err
	}
	defer stopConn()

	exec, err := executor.New(&cfg.Executor, conn, logger)
	if err != nil {
		return err
	}
	repo, err := datasync.New(&cfg.Sync, cache, exec, source, logger)
	if err != nil {
		return err
	}

	if !syncForce && !repo.ShouldRefresh(ctx, entitycache.KindConversations, syncMinInterval) {
		last := cache.LastSyncedAt(ctx, entitycache.KindConversations).UnwrapOr(time.Time{})
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "inbox synced at %s, skipping refresh\n", last.Format(time.RFC3339))
		return err
	}

	if err := repo.RefreshAll(ctx, syncConversations, syncUsers); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), executor.Describe(err))
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "refreshed inbox, %d conversation(s), %d profile(s)\n",
		len(syncConversations), len(syncUsers))
	return err
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cache, store, err := openCache(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	janitor, err := entitycache.NewJanitor(cache, cfg.JanitorInterval, logger)
	if err != nil {
		return err
	}
	janitor.Start(ctx)
	defer janitor.Stop()

	var listener *invalidation.Listener
	if cfg.Invalidation.SubscriptionID != "" {
		client, err := pubsub.NewClient(ctx, cfg.Invalidation.ProjectID)
		if err != nil {
			return fmt.Errorf("failed to create pubsub client: %w", err)
		}
		defer client.Close()

		listener, err = invalidation.NewListener(ctx, &cfg.Invalidation, client, cache, logger)
		if err != nil {
			return err
		}
		if err := listener.Start(ctx); err != nil {
			return err
		}
	} else {
		logger.Warn().Msg("No invalidation subscription configured, only sweeping.")
	}

	conn, stopConn, err := startConnectivity(ctx)
	if err != nil {
		return err
	}
	defer stopConn()

	var status *statusserver.Server
	if watchStatusAddr != "" {
		status = statusserver.New(watchStatusAddr, cfg.Cache.Namespace, cache, conn, logger)
		if err := status.Start(); err != nil {
			return err
		}
	}

	logger.Info().Msg("Watching cache, interrupt to stop.")
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	var errs []error
	if status != nil {
		errs = append(errs, status.Shutdown(shutdownCtx))
	}
	if listener != nil {
		errs = append(errs, listener.Stop(shutdownCtx))
	}
	janitor.Stop()
	select {
	case <-janitor.Done():
	case <-shutdownCtx.Done():
		errs = append(errs, errors.New("timed out waiting for janitor to stop"))
	}
	logger.Info().Msg("Watch stopped.")
	return errors.Join(errs...)
}
