package scheduler

import (
	"errors"
	"testing"

	"github.com/cuemby/reservoir/pkg/state"
	"github.com/cuemby/reservoir/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextConstraintPerPhase(t *testing.T) {
	cfg := testConfig()

	tests := []struct {
		name          string
		counts        map[types.Role]int
		nameInit      bool
		expectedRole  types.Role
		expectNil     bool
		expectedPhase state.AcquisitionPhase
	}{
		{
			name:          "empty cluster places journals",
			counts:        map[types.Role]int{},
			expectedRole:  types.RoleJournal,
			expectedPhase: state.PhaseJournalNodes,
		},
		{
			name:          "journal quorum below target",
			counts:        map[types.Role]int{types.RoleJournal: cfg.Journal.Count - 1},
			expectedRole:  types.RoleJournal,
			expectedPhase: state.PhaseJournalNodes,
		},
		{
			name:          "journal quorum met places name nodes",
			counts:        map[types.Role]int{types.RoleJournal: cfg.Journal.Count},
			expectedRole:  types.RoleName,
			expectedPhase: state.PhaseNameNodes,
		},
		{
			name: "name pair placed but uninitialized declines",
			counts: map[types.Role]int{
				types.RoleJournal: cfg.Journal.Count,
				types.RoleName:    cfg.Name.Count,
			},
			expectNil:     true,
			expectedPhase: state.PhaseNameNodeInit,
		},
		{
			name: "initialized name nodes unlock data nodes",
			counts: map[types.Role]int{
				types.RoleJournal: cfg.Journal.Count,
				types.RoleName:    cfg.Name.Count,
			},
			nameInit:      true,
			expectedRole:  types.RoleData,
			expectedPhase: state.PhaseDataNodes,
		},
		{
			name: "all targets met reaches steady state",
			counts: map[types.Role]int{
				types.RoleJournal: cfg.Journal.Count,
				types.RoleName:    cfg.Name.Count,
				types.RoleData:    cfg.Data.Count,
			},
			nameInit:      true,
			expectNil:     true,
			expectedPhase: state.PhaseSteadyState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := newFakeRegistry()
			reg.counts = tt.counts
			reg.nameInit = tt.nameInit

			provider := NewProvider(reg, cfg, state.PhaseJournalNodes)
			c, err := provider.NextConstraint()
			require.NoError(t, err)

			if tt.expectNil {
				assert.Nil(t, c)
			} else {
				require.NotNil(t, c)
				assert.Equal(t, tt.expectedRole, c.Role)
			}
			assert.Equal(t, tt.expectedPhase, provider.Phase())
		})
	}
}

func TestPhaseAdvanceIsMonotonic(t *testing.T) {
	cfg := testConfig()
	reg := newFakeRegistry()
	reg.counts = map[types.Role]int{
		types.RoleJournal: cfg.Journal.Count,
		types.RoleName:    cfg.Name.Count,
	}
	reg.nameInit = true

	provider := NewProvider(reg, cfg, state.PhaseJournalNodes)
	c, err := provider.NextConstraint()
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, state.PhaseDataNodes, provider.Phase())

	// A journal node dying later does not move the phase backwards.
	reg.counts[types.RoleJournal] = cfg.Journal.Count - 1
	c, err = provider.NextConstraint()
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, types.RoleData, c.Role)
	assert.Equal(t, state.PhaseDataNodes, provider.Phase())
}

func TestNextConstraintReusesOrphanedVolume(t *testing.T) {
	cfg := testConfig()
	reg := newFakeRegistry()
	reg.orphans = []*types.VolumeRecord{
		{PersistenceID: "datanode-vol-9", Hostname: "host-9"},
		{PersistenceID: "journalnode-vol-1", Hostname: "host-1"},
	}

	provider := NewProvider(reg, cfg, state.PhaseJournalNodes)
	c, err := provider.NextConstraint()
	require.NoError(t, err)
	require.NotNil(t, c)

	// Only the volume reserved under this role's prefix is reused.
	require.NotNil(t, c.ExpectedVolume)
	assert.Equal(t, "journalnode-vol-1", c.ExpectedVolume.PersistenceID)
}

func TestNextConstraintPropagatesCountError(t *testing.T) {
	reg := newFakeRegistry()
	reg.countErr = errors.New("store unavailable")

	provider := NewProvider(reg, testConfig(), state.PhaseJournalNodes)
	_, err := provider.NextConstraint()
	assert.Error(t, err)
	assert.Equal(t, state.PhaseJournalNodes, provider.Phase())
}

func TestSteadyStateStaysNil(t *testing.T) {
	provider := NewProvider(newFakeRegistry(), testConfig(), state.PhaseSteadyState)

	for i := 0; i < 3; i++ {
		c, err := provider.NextConstraint()
		require.NoError(t, err)
		assert.Nil(t, c)
	}
}
