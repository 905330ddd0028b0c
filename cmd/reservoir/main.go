package main

import (
	"fmt"
	"os"

	"github.com/cuemby/reservoir/pkg/config"
	"github.com/cuemby/reservoir/pkg/log"
	"github.com/cuemby/reservoir/pkg/state"
	"github.com/cuemby/reservoir/pkg/store"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "reservoir",
	Short: "Reservoir - distributed storage fleet orchestrator",
	Long: `Reservoir deploys and maintains a distributed storage cluster on top
of a cluster resource manager: journal nodes, a name-node pair, and data
nodes, each bound to persistent volumes that survive task restarts.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Reservoir version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("config", "", "Path to YAML configuration file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(volumeCmd)
	rootCmd.AddCommand(frameworkIDCmd)
}

// loadConfig reads the configuration referenced by the --config flag.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openRegistry opens the backing store and builds the state registry for
// inspection commands. The caller must close the returned store.
func openRegistry(cmd *cobra.Command) (*state.Registry, *store.BoltStore, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	log.Init(log.Config{Level: log.Level(cfg.LogLevel)})

	b, err := store.Open(cfg.DataDir, cfg.FrameworkName)
	if err != nil {
		return nil, nil, err
	}

	reg := state.NewRegistry(
		b.Namespace(state.NamespaceTasks),
		b.Namespace(state.NamespaceVolumes),
		b.Namespace(state.NamespaceScheduler),
	)
	return reg, b, nil
}
