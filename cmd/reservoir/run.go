package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/reservoir/pkg/api"
	"github.com/cuemby/reservoir/pkg/events"
	"github.com/cuemby/reservoir/pkg/log"
	"github.com/cuemby/reservoir/pkg/metrics"
	"github.com/cuemby/reservoir/pkg/scheduler"
	"github.com/cuemby/reservoir/pkg/state"
	"github.com/cuemby/reservoir/pkg/store"
	"github.com/cuemby/reservoir/pkg/types"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// gaugeInterval is how often the registry-derived gauges are refreshed.
const gaugeInterval = 15 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduler",
	Long: `Run the Reservoir scheduler.

The scheduler binds the bridge API, replays persisted state to pick up
where a previous process left off, and then works through the acquisition
phases: journal quorum, name-node pair, name-node initialization, data
nodes.`,
	RunE: runScheduler,
}

func init() {
	runCmd.Flags().String("api-addr", "localhost:8080", "Bridge API listen address")
}

func runScheduler(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log.Init(log.Config{Level: log.Level(cfg.LogLevel)})
	logger := log.WithComponent("main")

	apiAddr, _ := cmd.Flags().GetString("api-addr")

	b, err := store.Open(cfg.DataDir, cfg.FrameworkName)
	if err != nil {
		return fmt.Errorf("failed to open backing store: %w", err)
	}
	defer b.Close()

	registry := state.NewRegistry(
		b.Namespace(state.NamespaceTasks),
		b.Namespace(state.NamespaceVolumes),
		b.Namespace(state.NamespaceScheduler),
	)

	// Durable scheduler identity: reuse the persisted id across restarts,
	// mint one on first boot.
	frameworkID, err := registry.FrameworkID()
	if err != nil {
		return fmt.Errorf("failed to read framework id: %w", err)
	}
	if frameworkID == "" {
		frameworkID = uuid.New().String()
		if err := registry.SetFrameworkID(frameworkID); err != nil {
			return fmt.Errorf("failed to persist framework id: %w", err)
		}
		logger.Info().Str("framework_id", frameworkID).Msg("registered new framework id")
	} else {
		logger.Info().Str("framework_id", frameworkID).Msg("resuming with persisted framework id")
	}

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	go logEvents(broker)

	stopGauges := make(chan struct{})
	defer close(stopGauges)
	go refreshGauges(registry, stopGauges)

	bridge := api.NewServer(registry)
	provider := scheduler.NewProvider(registry, cfg, state.PhaseJournalNodes)
	sched := scheduler.NewScheduler(registry, provider, cfg, bridge, broker)
	sched.Start()
	defer sched.Stop()

	errCh := make(chan error, 1)
	go func() {
		if err := bridge.Start(apiAddr); err != nil {
			errCh <- fmt.Errorf("bridge API error: %w", err)
		}
	}()
	defer bridge.Stop()

	logger.Info().Str("framework", cfg.FrameworkName).Str("quorum", cfg.QuorumAddr).
		Msg("scheduler running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		return nil
	case err := <-errCh:
		return err
	}
}

// refreshGauges keeps the registry-derived gauges current. Lookup errors
// leave the previous value in place; the next tick retries.
func refreshGauges(registry *state.Registry, stopCh <-chan struct{}) {
	ticker := time.NewTicker(gaugeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, role := range []types.Role{types.RoleJournal, types.RoleName, types.RoleData} {
				if n, err := registry.Count(role); err == nil {
					metrics.LiveTasks.WithLabelValues(string(role)).Set(float64(n))
				}
			}
			if orphans, err := registry.OrphanedVolumes(""); err == nil {
				metrics.OrphanedVolumes.Set(float64(len(orphans)))
			}
		case <-stopCh:
			return
		}
	}
}

// logEvents drains the broker into the log so every decision is visible
// without a subscriber attached.
func logEvents(broker *events.Broker) {
	sub := broker.Subscribe()
	logger := log.WithComponent("events")
	for event := range sub {
		logger.Info().
			Str("type", string(event.Type)).
			Fields(map[string]interface{}{"metadata": event.Metadata}).
			Msg("event")
	}
}
