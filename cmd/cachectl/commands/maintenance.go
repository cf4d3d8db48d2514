package commands

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/illmade-knight/go-chatsync/pkg/entitycache"
	"github.com/spf13/cobra"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List every key in the cache namespace",
	RunE:  runKeys,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <key>",
	Short: "Show a cached entry with its age",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove expired entries from the namespace",
	RunE:  runSweep,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every key in the namespace, sync markers included",
	RunE:  runClear,
}

// clearConfirmed must be set for clear to do anything.
var clearConfirmed bool

func init() {
	clearCmd.Flags().BoolVar(&clearConfirmed, "yes", false, "Confirm removal of the whole namespace")
}

func runKeys(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cache, store, err := openCache(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	keys := cache.NamespaceKeys(ctx)
	sort.Strings(keys)

	if outputFormat == "json" {
		return outputJSON(cmd.OutOrStdout(), keys)
	}
	for _, k := range keys {
		fmt.Fprintln(cmd.OutOrStdout(), k)
	}
	return nil
}

// inspection is the json form of inspect.
type inspection struct {
	Key      string          `json:"key"`
	StoredAt *time.Time      `json:"storedAt,omitempty"`
	Age      string          `json:"age,omitempty"`
	Expired  bool            `json:"expired"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Raw      string          `json:"raw,omitempty"`
}

func runInspect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cache, store, err := openCache(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	key := args[0]
	raw, ok, err := store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	if !ok {
		return fmt.Errorf("key %s not found", key)
	}

	result := inspection{Key: key}
	var entry entitycache.Entry[json.RawMessage]
	if err := json.Unmarshal([]byte(raw), &entry); err != nil || entry.StoredAt.IsZero() {
		// Sync markers and foreign values are not entry envelopes.
		result.Raw = raw
	} else {
		now := cache.Clock().Now()
		result.StoredAt = &entry.StoredAt
		result.Age = now.Sub(entry.StoredAt).Round(time.Second).String()
		result.Expired = entry.Expired(now, cfg.Cache.TTL)
		result.Payload = entry.Payload
	}

	if outputFormat == "json" {
		return outputJSON(cmd.OutOrStdout(), result)
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "key:      %s\n", result.Key)
	if result.StoredAt == nil {
		fmt.Fprintf(w, "value:    %s\n", result.Raw)
		return nil
	}
	fmt.Fprintf(w, "stored:   %s (%s ago)\n", result.StoredAt.Format(time.RFC3339), result.Age)
	fmt.Fprintf(w, "expired:  %t\n", result.Expired)
	fmt.Fprintf(w, "payload:  %s\n", result.Payload)
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cache, store, err := openCache(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	removed := cache.SweepExpired(ctx)
	return printCount(cmd, "removed", removed)
}

func runClear(cmd *cobra.Command, args []string) error {
	if !clearConfirmed {
		return fmt.Errorf("refusing to clear namespace %q without --yes", cfg.Cache.Namespace)
	}
	ctx := cmd.Context()
	cache, store, err := openCache(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	removed := cache.ClearAll(ctx)
	return printCount(cmd, "removed", removed)
}

func printCount(cmd *cobra.Command, label string, n int) error {
	if outputFormat == "json" {
		return outputJSON(cmd.OutOrStdout(), map[string]int{label: n})
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %d key(s)\n", label, n)
	return err
}
