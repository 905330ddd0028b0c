package config

import (
	"fmt"
	"os"

	"github.com/cuemby/reservoir/pkg/types"
	"gopkg.in/yaml.v3"
)

// TotalNameNodes is the fixed size of the name-node pair. The
// initialization handshake and the phase machine both assume exactly two
// slots.
const TotalNameNodes = 2

// NodeConfig holds per-role sizing and target counts.
type NodeConfig struct {
	Count  int     `yaml:"count"`
	CPUs   float64 `yaml:"cpus"`
	MemMB  float64 `yaml:"mem_mb"`
	DiskMB float64 `yaml:"disk_mb"`
}

// Config is the full framework configuration, read once at startup.
type Config struct {
	FrameworkName string `yaml:"framework_name"`
	Role          string `yaml:"role"`
	Principal     string `yaml:"principal"`
	QuorumAddr    string `yaml:"quorum_addr"`
	DataDir       string `yaml:"data_dir"`
	LogLevel      string `yaml:"log_level"`

	// Executor overheads added on top of per-role sizing when computing
	// offer thresholds.
	ExecutorCPUs  float64 `yaml:"executor_cpus"`
	ExecutorMemMB float64 `yaml:"executor_mem_mb"`

	// JVMOverhead is the multiplier applied to a role's heap size to get
	// its memory threshold.
	JVMOverhead float64 `yaml:"jvm_overhead"`

	Journal NodeConfig `yaml:"journal"`
	Name    NodeConfig `yaml:"name"`
	Data    NodeConfig `yaml:"data"`
}

// Default returns a configuration with workable development defaults.
func Default() *Config {
	return &Config{
		FrameworkName: "reservoir",
		Role:          "reservoir",
		Principal:     "reservoir-principal",
		QuorumAddr:    "localhost:2181",
		DataDir:       "/var/lib/reservoir",
		LogLevel:      "info",
		ExecutorCPUs:  0.5,
		ExecutorMemMB: 256,
		JVMOverhead:   1.35,
		Journal:       NodeConfig{Count: 3, CPUs: 1, MemMB: 1024, DiskMB: 10240},
		Name:          NodeConfig{Count: TotalNameNodes, CPUs: 1, MemMB: 2048, DiskMB: 10240},
		Data:          NodeConfig{Count: 3, CPUs: 1, MemMB: 2048, DiskMB: 20480},
	}
}

// Load reads a YAML configuration file over the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for startup-fatal errors.
func (c *Config) Validate() error {
	if c.FrameworkName == "" {
		return fmt.Errorf("framework_name must not be empty")
	}
	if c.Role == "" || c.Role == types.UnreservedRole {
		return fmt.Errorf("role must name a reservable framework role, got %q", c.Role)
	}
	if c.Principal == "" {
		return fmt.Errorf("principal must not be empty")
	}
	if c.QuorumAddr == "" {
		return fmt.Errorf("quorum_addr must not be empty")
	}
	if c.Name.Count != TotalNameNodes {
		return fmt.Errorf("name.count must be exactly %d, got %d", TotalNameNodes, c.Name.Count)
	}
	if c.Journal.Count < 1 {
		return fmt.Errorf("journal.count must be at least 1, got %d", c.Journal.Count)
	}
	if c.Data.Count < 1 {
		return fmt.Errorf("data.count must be at least 1, got %d", c.Data.Count)
	}
	if c.JVMOverhead < 1 {
		return fmt.Errorf("jvm_overhead must be >= 1, got %v", c.JVMOverhead)
	}
	for _, nc := range []struct {
		role types.Role
		cfg  NodeConfig
	}{
		{types.RoleJournal, c.Journal},
		{types.RoleName, c.Name},
		{types.RoleData, c.Data},
	} {
		if nc.cfg.CPUs <= 0 || nc.cfg.MemMB <= 0 || nc.cfg.DiskMB <= 0 {
			return fmt.Errorf("%s sizing must be positive (cpus=%v mem_mb=%v disk_mb=%v)",
				nc.role, nc.cfg.CPUs, nc.cfg.MemMB, nc.cfg.DiskMB)
		}
	}
	return nil
}

// Node returns the sizing block for a role.
func (c *Config) Node(role types.Role) NodeConfig {
	switch role {
	case types.RoleJournal:
		return c.Journal
	case types.RoleName:
		return c.Name
	default:
		return c.Data
	}
}

// TargetCount returns the configured target count for a role.
func (c *Config) TargetCount(role types.Role) int {
	return c.Node(role).Count
}

// NeededCPUs returns the cpu threshold an offer must meet for a role,
// including executor overhead.
func (c *Config) NeededCPUs(role types.Role) float64 {
	return c.Node(role).CPUs + c.ExecutorCPUs
}

// NeededMemMB returns the memory threshold an offer must meet for a role.
// The role's heap is scaled by the JVM overhead, then executor memory is
// added.
func (c *Config) NeededMemMB(role types.Role) float64 {
	return c.Node(role).MemMB*c.JVMOverhead + c.ExecutorMemMB
}

// NeededDiskMB returns the disk threshold an offer must meet for a role.
func (c *Config) NeededDiskMB(role types.Role) float64 {
	return c.Node(role).DiskMB
}
