package scheduler

import (
	"fmt"
	"time"

	"github.com/cuemby/reservoir/pkg/config"
	"github.com/cuemby/reservoir/pkg/events"
	"github.com/cuemby/reservoir/pkg/log"
	"github.com/cuemby/reservoir/pkg/metrics"
	"github.com/cuemby/reservoir/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Decision is the outcome of evaluating one offer against the current
// constraint.
type Decision string

const (
	DecisionDecline      Decision = "decline"
	DecisionReserve      Decision = "reserve"
	DecisionCreateVolume Decision = "create-volume"
	DecisionLaunch       Decision = "launch"
)

// Driver is the adapter to the cluster resource manager. Implementations
// own the wire transport; the scheduler only decides. Offers and status
// updates are delivered over channels, actions are synchronous calls.
type Driver interface {
	// Offers delivers resource offers from the cluster manager.
	Offers() <-chan *types.Offer

	// Updates delivers task status events.
	Updates() <-chan *types.TaskStatus

	// Decline returns an offer unused.
	Decline(offer *types.Offer) error

	// Reserve asks the cluster manager to reserve the given resources
	// from the offer under this framework's role and principal.
	Reserve(offer *types.Offer, resources []types.Resource) error

	// CreateVolume asks the cluster manager to create a persistent volume
	// on the offer's already-reserved disk.
	CreateVolume(offer *types.Offer, disk types.Resource) error

	// Launch starts a task on the offer.
	Launch(offer *types.Offer, task *types.TaskRecord) error
}

// Scheduler runs the offer-matching loop: it pulls offers from the
// driver, applies the current constraint in increasing strictness, and
// feeds status events back into the registry.
type Scheduler struct {
	state    Registry
	provider *Provider
	cfg      *config.Config
	driver   Driver
	broker   *events.Broker
	logger   zerolog.Logger
	stopCh   chan struct{}
}

// NewScheduler creates a scheduler. All collaborators are constructed by
// the caller and passed in explicitly.
func NewScheduler(st Registry, provider *Provider, cfg *config.Config, driver Driver, broker *events.Broker) *Scheduler {
	return &Scheduler{
		state:    st,
		provider: provider,
		cfg:      cfg,
		driver:   driver,
		broker:   broker,
		logger:   log.WithComponent("scheduler"),
		stopCh:   make(chan struct{}),
	}
}

// Start begins the offer-matching loop.
func (s *Scheduler) Start() {
	go s.run()
}

// Stop stops the loop.
func (s *Scheduler) Stop() {
	close(s.stopCh)
}

func (s *Scheduler) run() {
	for {
		select {
		case offer := <-s.driver.Offers():
			if _, err := s.HandleOffer(offer); err != nil {
				s.logger.Error().Err(err).Str("offer_id", offer.ID).Msg("failed to handle offer")
			}
		case status := <-s.driver.Updates():
			if err := s.Update(status); err != nil {
				s.logger.Error().Err(err).Str("task_id", status.TaskID).Msg("failed to apply status event")
			}
		case <-s.stopCh:
			return
		}
	}
}

// HandleOffer evaluates one offer against the current constraint and acts
// on it. The predicates run in increasing strictness: resource
// sufficiency drives a reservation request, reservation ownership drives
// volume creation, and volume identity drives a launch.
func (s *Scheduler) HandleOffer(offer *types.Offer) (Decision, error) {
	phaseBefore := s.provider.Phase()
	constraint, err := s.provider.NextConstraint()
	if err != nil {
		s.decline(offer, "constraint lookup failed")
		return DecisionDecline, err
	}
	if phase := s.provider.Phase(); phase != phaseBefore {
		s.publish(events.EventPhaseAdvanced, map[string]string{
			"from": phaseBefore.String(),
			"to":   phase.String(),
		})
	}
	if constraint == nil {
		s.decline(offer, "no placement pending")
		return DecisionDecline, nil
	}

	// Same-role anti-affinity: one task of a role per host.
	if s.state.HostOccupied(offer.Hostname, constraint.Role) {
		s.decline(offer, "host already occupied")
		return DecisionDecline, nil
	}

	switch {
	case constraint.IsSatisfiedForVolumes(offer):
		return DecisionLaunch, s.launch(offer, constraint)
	case constraint.IsSatisfiedForReservations(offer):
		return DecisionCreateVolume, s.createVolume(offer, constraint)
	case constraint.CanBeSatisfied(offer):
		return DecisionReserve, s.reserve(offer, constraint)
	default:
		s.decline(offer, "insufficient resources")
		return DecisionDecline, nil
	}
}

// Update applies a status event from the cluster manager.
func (s *Scheduler) Update(status *types.TaskStatus) error {
	metrics.StatusEventsApplied.WithLabelValues(string(status.State)).Inc()

	if err := s.state.Apply(status); err != nil {
		return err
	}

	if status.State.Terminal() {
		s.publish(events.EventTaskTerminal, map[string]string{
			"task_id": status.TaskID,
			"state":   string(status.State),
		})
	}
	return nil
}

func (s *Scheduler) decline(offer *types.Offer, reason string) {
	metrics.OffersEvaluated.WithLabelValues(string(DecisionDecline)).Inc()
	s.logger.Debug().Str("offer_id", offer.ID).Str("hostname", offer.Hostname).
		Str("reason", reason).Msg("declining offer")
	if err := s.driver.Decline(offer); err != nil {
		s.logger.Warn().Err(err).Str("offer_id", offer.ID).Msg("failed to decline offer")
	}
	s.publish(events.EventOfferDeclined, map[string]string{
		"offer_id": offer.ID,
		"hostname": offer.Hostname,
		"reason":   reason,
	})
}

// reserve asks for the constraint's thresholds to be reserved under the
// framework role so the resources persist across offer cycles.
func (s *Scheduler) reserve(offer *types.Offer, c *Constraint) error {
	metrics.OffersEvaluated.WithLabelValues(string(DecisionReserve)).Inc()
	metrics.ReservationsRequested.WithLabelValues(string(c.Role)).Inc()

	resources := []types.Resource{
		{Name: types.ResourceCPUs, Scalar: c.CPUs, Role: c.ReservationRole, Principal: c.Principal},
		{Name: types.ResourceMem, Scalar: c.MemMB, Role: c.ReservationRole, Principal: c.Principal},
		{Name: types.ResourceDisk, Scalar: c.DiskMB, Role: c.ReservationRole, Principal: c.Principal},
	}

	s.logger.Info().Str("offer_id", offer.ID).Str("hostname", offer.Hostname).
		Str("role", string(c.Role)).Msg("requesting reservation")
	if err := s.driver.Reserve(offer, resources); err != nil {
		return fmt.Errorf("failed to reserve resources on %s: %w", offer.Hostname, err)
	}

	s.publish(events.EventReservationNeeded, map[string]string{
		"offer_id": offer.ID,
		"hostname": offer.Hostname,
		"role":     string(c.Role),
	})
	return nil
}

// createVolume asks for a persistent volume on the offer's reserved disk
// and records it so the identity survives restarts. The record's owning
// task id stays empty until launch; until then the volume reads as
// orphaned, which is exactly what lets the provider rediscover and reuse
// it.
func (s *Scheduler) createVolume(offer *types.Offer, c *Constraint) error {
	metrics.OffersEvaluated.WithLabelValues(string(DecisionCreateVolume)).Inc()
	metrics.VolumesRequested.WithLabelValues(string(c.Role)).Inc()

	persistenceID := fmt.Sprintf("%s-%s", c.Role, uuid.New().String())
	if c.ExpectedVolume != nil {
		persistenceID = c.ExpectedVolume.PersistenceID
	}

	disk := types.Resource{
		Name:      types.ResourceDisk,
		Scalar:    c.DiskMB,
		Role:      c.ReservationRole,
		Principal: c.Principal,
		Disk: &types.DiskInfo{
			Persistence: &types.Persistence{ID: persistenceID, Principal: c.Principal},
			MountPath:   "volume",
		},
	}

	vol := &types.VolumeRecord{
		PersistenceID: persistenceID,
		Disk:          disk.Disk,
		Hostname:      offer.Hostname,
	}
	if err := s.state.RecordVolume(vol); err != nil {
		return err
	}

	s.logger.Info().Str("offer_id", offer.ID).Str("hostname", offer.Hostname).
		Str("persistence_id", persistenceID).Msg("requesting volume creation")
	if err := s.driver.CreateVolume(offer, disk); err != nil {
		return fmt.Errorf("failed to create volume %s on %s: %w", persistenceID, offer.Hostname, err)
	}

	s.publish(events.EventVolumeRequested, map[string]string{
		"offer_id":       offer.ID,
		"hostname":       offer.Hostname,
		"persistence_id": persistenceID,
		"role":           string(c.Role),
	})
	return nil
}

// launch records the task, binds the expected volume to it, and starts it
// on the offer. The record is persisted before the launch call so a crash
// in between leaves a record the next status event can reconcile.
func (s *Scheduler) launch(offer *types.Offer, c *Constraint) error {
	metrics.OffersEvaluated.WithLabelValues(string(DecisionLaunch)).Inc()
	metrics.TasksLaunched.WithLabelValues(string(c.Role)).Inc()

	task := s.buildTask(offer, c)
	if err := s.state.RecordTask(task); err != nil {
		return err
	}

	vol := *c.ExpectedVolume
	vol.TaskID = task.ID
	vol.Hostname = offer.Hostname
	if err := s.state.RecordVolume(&vol); err != nil {
		return err
	}

	s.logger.Info().Str("offer_id", offer.ID).Str("hostname", offer.Hostname).
		Str("task_id", task.ID).Str("role", string(c.Role)).Msg("launching task")
	if err := s.driver.Launch(offer, task); err != nil {
		return fmt.Errorf("failed to launch %s on %s: %w", task.ID, offer.Hostname, err)
	}

	s.publish(events.EventTaskLaunched, map[string]string{
		"task_id":  task.ID,
		"hostname": offer.Hostname,
		"role":     string(c.Role),
	})
	return nil
}

func (s *Scheduler) buildTask(offer *types.Offer, c *Constraint) *types.TaskRecord {
	id := fmt.Sprintf("%s-%s", c.Role, uuid.New().String())

	resources := []types.Resource{
		{Name: types.ResourceCPUs, Scalar: c.CPUs, Role: c.ReservationRole, Principal: c.Principal},
		{Name: types.ResourceMem, Scalar: c.MemMB, Role: c.ReservationRole, Principal: c.Principal},
	}
	for _, disk := range offer.PersistentDisks() {
		if c.matchesExpectedVolume(disk) {
			resources = append(resources, disk)
		}
	}

	return &types.TaskRecord{
		ID:        id,
		Name:      string(c.Role),
		Role:      c.Role,
		Hostname:  offer.Hostname,
		AgentID:   offer.AgentID,
		Resources: resources,
		Executor: &types.ExecutorInfo{
			ID:      "executor-" + id,
			Name:    "reservoir-executor",
			Command: fmt.Sprintf("./reservoir-executor --role=%s --quorum=%s", c.Role, s.cfg.QuorumAddr),
		},
		CreatedAt: time.Now(),
	}
}

func (s *Scheduler) publish(t events.EventType, metadata map[string]string) {
	if s.broker == nil {
		return
	}
	s.broker.Publish(&events.Event{Type: t, Metadata: metadata})
}
