package scheduler

import (
	"github.com/cuemby/reservoir/pkg/config"
	"github.com/cuemby/reservoir/pkg/log"
	"github.com/cuemby/reservoir/pkg/metrics"
	"github.com/cuemby/reservoir/pkg/state"
	"github.com/cuemby/reservoir/pkg/types"
	"github.com/rs/zerolog"
)

// Registry is the view of persisted state the constraint engine needs.
// Implemented by *state.Registry.
type Registry interface {
	Count(role types.Role) (int, error)
	NameNodesInitialized() bool
	HostOccupied(hostname string, role types.Role) bool
	OrphanedVolumes(prefix string) ([]*types.VolumeRecord, error)
	RecordTask(task *types.TaskRecord) error
	RecordVolume(vol *types.VolumeRecord) error
	Apply(status *types.TaskStatus) error
}

// Provider walks the acquisition phases and yields the next placement
// constraint from the current phase and live registry counts.
type Provider struct {
	state  Registry
	cfg    *config.Config
	phase  state.AcquisitionPhase
	logger zerolog.Logger
}

// NewProvider creates a provider starting at the given phase. A fresh
// cluster starts at PhaseJournalNodes; on restart the provider re-derives
// progress from the registry by walking forward through satisfied phases.
func NewProvider(st Registry, cfg *config.Config, phase state.AcquisitionPhase) *Provider {
	metrics.CurrentPhase.Set(float64(phase))
	return &Provider{
		state:  st,
		cfg:    cfg,
		phase:  phase,
		logger: log.WithComponent("provider"),
	}
}

// Phase returns the current acquisition phase.
func (p *Provider) Phase() state.AcquisitionPhase {
	return p.phase
}

// NextConstraint returns the constraint for the current unmet phase. A nil
// constraint means the offer should be declined: either every phase is
// satisfied (steady state) or the cluster is waiting on name-node
// initialization. Phase advancement is monotonic.
func (p *Provider) NextConstraint() (*Constraint, error) {
	for {
		if p.phase == state.PhaseSteadyState {
			return nil, nil
		}

		if role, ok := p.phase.PlacementRole(); ok {
			count, err := p.state.Count(role)
			if err != nil {
				return nil, err
			}
			if count < p.cfg.TargetCount(role) {
				return newConstraint(p.cfg, p.phase, role, p.pendingVolume(role)), nil
			}
		} else if !p.state.NameNodesInitialized() {
			// Both name slots must carry the init label before data-node
			// placement begins.
			return nil, nil
		}

		p.advance()
	}
}

func (p *Provider) advance() {
	next := p.phase.Next()
	p.logger.Info().
		Str("from", p.phase.String()).
		Str("to", next.String()).
		Msg("acquisition phase advanced")
	p.phase = next
	metrics.CurrentPhase.Set(float64(next))
}

// pendingVolume returns a volume already reserved for this role with no
// owning task, to be reused on the role's next placement. A lookup
// failure degrades to "no volume": the constraint then drives a fresh
// reservation instead of blocking placement.
func (p *Provider) pendingVolume(role types.Role) *types.VolumeRecord {
	orphans, err := p.state.OrphanedVolumes(string(role) + "-")
	if err != nil {
		p.logger.Warn().Err(err).Str("role", string(role)).
			Msg("failed to look up reusable volumes")
		return nil
	}
	if len(orphans) == 0 {
		return nil
	}
	return orphans[0]
}
