package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cuemby/reservoir/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
framework_name: reservoir-prod
role: storage
quorum_addr: zk-1:2181
journal:
  count: 5
  cpus: 2
  mem_mb: 2048
  disk_mb: 20480
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "reservoir-prod", cfg.FrameworkName)
	assert.Equal(t, "storage", cfg.Role)
	assert.Equal(t, 5, cfg.Journal.Count)
	assert.Equal(t, 2.0, cfg.Journal.CPUs)

	// Sections absent from the file keep their defaults.
	assert.Equal(t, Default().Data, cfg.Data)
	assert.Equal(t, Default().Principal, cfg.Principal)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("journal: [not a map"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *Config)
	}{
		{"empty framework name", func(cfg *Config) { cfg.FrameworkName = "" }},
		{"empty role", func(cfg *Config) { cfg.Role = "" }},
		{"unreserved role", func(cfg *Config) { cfg.Role = types.UnreservedRole }},
		{"empty principal", func(cfg *Config) { cfg.Principal = "" }},
		{"empty quorum address", func(cfg *Config) { cfg.QuorumAddr = "" }},
		{"single name node", func(cfg *Config) { cfg.Name.Count = 1 }},
		{"three name nodes", func(cfg *Config) { cfg.Name.Count = 3 }},
		{"zero journals", func(cfg *Config) { cfg.Journal.Count = 0 }},
		{"zero data nodes", func(cfg *Config) { cfg.Data.Count = 0 }},
		{"jvm overhead below one", func(cfg *Config) { cfg.JVMOverhead = 0.9 }},
		{"zero cpu sizing", func(cfg *Config) { cfg.Data.CPUs = 0 }},
		{"negative memory sizing", func(cfg *Config) { cfg.Journal.MemMB = -1 }},
		{"zero disk sizing", func(cfg *Config) { cfg.Name.DiskMB = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestNeededThresholds(t *testing.T) {
	cfg := Default()
	cfg.ExecutorCPUs = 0.5
	cfg.ExecutorMemMB = 256
	cfg.JVMOverhead = 1.25
	cfg.Journal = NodeConfig{Count: 3, CPUs: 1, MemMB: 1024, DiskMB: 10240}

	assert.Equal(t, 1.5, cfg.NeededCPUs(types.RoleJournal))
	assert.Equal(t, 1024*1.25+256, cfg.NeededMemMB(types.RoleJournal))
	assert.Equal(t, 10240.0, cfg.NeededDiskMB(types.RoleJournal))
}

func TestNodeSelectsRoleBlock(t *testing.T) {
	cfg := Default()

	assert.Equal(t, cfg.Journal, cfg.Node(types.RoleJournal))
	assert.Equal(t, cfg.Name, cfg.Node(types.RoleName))
	assert.Equal(t, cfg.Data, cfg.Node(types.RoleData))

	assert.Equal(t, cfg.Journal.Count, cfg.TargetCount(types.RoleJournal))
}
