package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cuemby/reservoir/pkg/config"
	"github.com/cuemby/reservoir/pkg/log"
	"github.com/cuemby/reservoir/pkg/store"
	"github.com/cuemby/reservoir/pkg/types"
	"github.com/rs/zerolog"
)

// Namespace names under the framework root.
const (
	NamespaceTasks     = "tasks"
	NamespaceVolumes   = "volumes"
	NamespaceScheduler = "scheduler"
)

// frameworkIDKey is the single persisted slot for the scheduler's durable
// identity with the cluster manager.
const frameworkIDKey = "framework-id"

// storeRetries bounds retry loops on compare-and-swap conflicts for
// last-write-wins records.
const storeRetries = 3

// Registry reads and writes the persisted state of the framework: the
// task registry, the volume registry, and the scheduler identity slot.
// It is the only owner of all three namespaces.
type Registry struct {
	tasks     store.Store
	volumes   store.Store
	scheduler store.Store
	logger    zerolog.Logger
}

// NewRegistry builds a registry over the three backing namespaces and
// bootstraps the task namespace so that listing an empty registry returns
// an empty set rather than failing.
func NewRegistry(tasks, volumes, scheduler store.Store) *Registry {
	r := &Registry{
		tasks:     tasks,
		volumes:   volumes,
		scheduler: scheduler,
		logger:    log.WithComponent("state"),
	}
	r.initializeTasks()
	return r
}

// initializeTasks writes then immediately deletes a sentinel entry. This
// forces the task namespace into existence so absence-vs-error holds from
// process start.
func (r *Registry) initializeTasks() {
	if _, err := r.tasks.ListKeys(); err == nil {
		return
	}

	v, err := r.tasks.Fetch("init")
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to initialize task registry")
		return
	}
	stored, err := r.tasks.Store(v.Mutate([]byte{0}))
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to initialize task registry")
		return
	}
	if err := r.tasks.Expunge(stored); err != nil {
		r.logger.Error().Err(err).Msg("failed to remove task registry sentinel")
	}
}

// SetFrameworkID persists the scheduler's identity.
func (r *Registry) SetFrameworkID(id string) error {
	v, err := r.scheduler.Fetch(frameworkIDKey)
	if err != nil {
		return fmt.Errorf("failed to fetch framework id slot: %w", err)
	}
	if _, err := r.scheduler.Store(v.Mutate([]byte(id))); err != nil {
		return fmt.Errorf("failed to store framework id: %w", err)
	}
	return nil
}

// FrameworkID returns the persisted scheduler identity. An empty slot
// yields an empty id, not an error.
func (r *Registry) FrameworkID() (string, error) {
	v, err := r.scheduler.Fetch(frameworkIDKey)
	if err != nil {
		return "", fmt.Errorf("failed to fetch framework id: %w", err)
	}
	if v.Absent() {
		return "", nil
	}
	return string(v.Value), nil
}

// RemoveFrameworkID clears the persisted scheduler identity.
func (r *Registry) RemoveFrameworkID() error {
	v, err := r.scheduler.Fetch(frameworkIDKey)
	if err != nil {
		return fmt.Errorf("failed to fetch framework id: %w", err)
	}
	return r.scheduler.Expunge(v)
}

// RecordTask persists a task record, merging the previously stored status
// (if any) into the incoming one so that labels are never erased by a
// label-less refresh. A read or decode failure on the previous record
// degrades to "no previous status" rather than aborting the write.
func (r *Registry) RecordTask(task *types.TaskRecord) error {
	v, err := r.tasks.Fetch(task.ID)
	if err != nil {
		r.logger.Warn().Err(err).Str("task_id", task.ID).
			Msg("failed to fetch previous task record, recording without merge")
		v = store.Variable{Key: task.ID}
	}

	var prev *types.TaskStatus
	if !v.Absent() {
		var curr types.TaskRecord
		if err := json.Unmarshal(v.Value, &curr); err != nil {
			r.logger.Warn().Err(err).Str("task_id", task.ID).
				Msg("failed to decode previous task record")
		} else {
			prev = curr.Status
		}
	}

	task.Status = merge(prev, task.Status)

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to encode task record: %w", err)
	}
	if _, err := r.tasks.Store(v.Mutate(data)); err != nil {
		return fmt.Errorf("failed to store task record %s: %w", task.ID, err)
	}
	return nil
}

// RecordVolume persists a volume record keyed by persistence id,
// last-write-wins.
func (r *Registry) RecordVolume(vol *types.VolumeRecord) error {
	data, err := json.Marshal(vol)
	if err != nil {
		return fmt.Errorf("failed to encode volume record: %w", err)
	}

	for attempt := 0; attempt < storeRetries; attempt++ {
		v, err := r.volumes.Fetch(vol.PersistenceID)
		if err != nil {
			return fmt.Errorf("failed to fetch volume record %s: %w", vol.PersistenceID, err)
		}
		_, err = r.volumes.Store(v.Mutate(data))
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return fmt.Errorf("failed to store volume record %s: %w", vol.PersistenceID, err)
		}
	}
	return fmt.Errorf("failed to store volume record %s: %w", vol.PersistenceID, store.ErrConflict)
}

// Apply is the lifecycle entry point for status events from the cluster
// manager. A terminal state deletes the task record outright, freeing its
// host and role slot. Any other state is merged into the stored record.
// Events for unknown ids are logged no-ops, and repeated terminal events
// are idempotent.
func (r *Registry) Apply(status *types.TaskStatus) error {
	v, err := r.tasks.Fetch(status.TaskID)
	if err != nil {
		return fmt.Errorf("failed to fetch task record %s: %w", status.TaskID, err)
	}

	if status.State.Terminal() {
		r.logger.Info().Str("task_id", status.TaskID).Str("state", string(status.State)).
			Msg("removing task record on terminal status")
		return r.tasks.Expunge(v)
	}

	if v.Absent() {
		r.logger.Warn().Str("task_id", status.TaskID).Str("state", string(status.State)).
			Msg("status event for unknown task, ignoring")
		return nil
	}

	var task types.TaskRecord
	if err := json.Unmarshal(v.Value, &task); err != nil {
		r.logger.Warn().Err(err).Str("task_id", status.TaskID).
			Msg("failed to decode task record for status event, ignoring")
		return nil
	}

	task.Status = merge(task.Status, status)

	data, err := json.Marshal(&task)
	if err != nil {
		return fmt.Errorf("failed to encode task record: %w", err)
	}
	if _, err := r.tasks.Store(v.Mutate(data)); err != nil {
		return fmt.Errorf("failed to store task record %s: %w", status.TaskID, err)
	}
	return nil
}

// merge resolves a stored status against an incoming one. Labels encode
// durable cluster facts (e.g. name-node initialization), and a routine
// status refresh typically omits them; a label-less update must not erase
// labels already on record.
func merge(curr, next *types.TaskStatus) *types.TaskStatus {
	if curr == nil || next == nil || next.HasLabels() {
		return next
	}
	if curr.HasLabels() {
		merged := *next
		merged.Labels = curr.Labels
		return &merged
	}
	return next
}

// TaskIDs returns every task id in the registry.
func (r *Registry) TaskIDs() ([]string, error) {
	return r.tasks.ListKeys()
}

// PersistenceIDs returns every persistence id in the volume registry.
func (r *Registry) PersistenceIDs() ([]string, error) {
	return r.volumes.ListKeys()
}

// Tasks returns every decodable task record. A corrupt record is logged
// and skipped; it never aborts the scan.
func (r *Registry) Tasks() ([]*types.TaskRecord, error) {
	ids, err := r.TaskIDs()
	if err != nil {
		return nil, err
	}

	tasks := make([]*types.TaskRecord, 0, len(ids))
	for _, id := range ids {
		v, err := r.tasks.Fetch(id)
		if err != nil {
			r.logger.Warn().Err(err).Str("task_id", id).Msg("failed to fetch task record, skipping")
			continue
		}
		var task types.TaskRecord
		if err := json.Unmarshal(v.Value, &task); err != nil {
			r.logger.Warn().Err(err).Str("task_id", id).Msg("failed to decode task record, skipping")
			continue
		}
		tasks = append(tasks, &task)
	}
	return tasks, nil
}

// Volumes returns every decodable volume record, skipping corrupt entries.
func (r *Registry) Volumes() ([]*types.VolumeRecord, error) {
	ids, err := r.PersistenceIDs()
	if err != nil {
		return nil, err
	}

	volumes := make([]*types.VolumeRecord, 0, len(ids))
	for _, id := range ids {
		v, err := r.volumes.Fetch(id)
		if err != nil {
			r.logger.Warn().Err(err).Str("persistence_id", id).Msg("failed to fetch volume record, skipping")
			continue
		}
		var vol types.VolumeRecord
		if err := json.Unmarshal(v.Value, &vol); err != nil {
			r.logger.Warn().Err(err).Str("persistence_id", id).Msg("failed to decode volume record, skipping")
			continue
		}
		volumes = append(volumes, &vol)
	}
	return volumes, nil
}

// TasksByRole returns the tasks whose role name contains the filter.
func (r *Registry) TasksByRole(filter string) ([]*types.TaskRecord, error) {
	tasks, err := r.Tasks()
	if err != nil {
		return nil, err
	}

	var matched []*types.TaskRecord
	for _, task := range tasks {
		if task.MatchesRole(filter) {
			matched = append(matched, task)
		}
	}
	return matched, nil
}

// Count returns the number of live tasks of a role. Terminal tasks are
// deleted on arrival, so presence in the registry is liveness.
func (r *Registry) Count(role types.Role) (int, error) {
	tasks, err := r.TasksByRole(string(role))
	if err != nil {
		return 0, err
	}
	return len(tasks), nil
}

// HostOccupied reports whether a live task of the given role is already
// bound to the host. It degrades to false on a backing-store failure;
// fail-open keeps placement moving and leans on the cluster manager's
// task-uniqueness guarantees as the backstop.
func (r *Registry) HostOccupied(hostname string, role types.Role) bool {
	tasks, err := r.Tasks()
	if err != nil {
		r.logger.Error().Err(err).Str("hostname", hostname).Str("role", string(role)).
			Msg("failed to determine host occupancy")
		return false
	}

	for _, task := range tasks {
		if task.Hostname == hostname && task.Role == role {
			return true
		}
	}
	return false
}

// NameNodesInitialized reports whether both name-node slots carry the
// initialization label. Like HostOccupied, it degrades to false on a
// store failure.
func (r *Registry) NameNodesInitialized() bool {
	tasks, err := r.TasksByRole(string(types.RoleName))
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to determine name node initialization")
		return false
	}

	initCount := 0
	for _, task := range tasks {
		if val, ok := task.Status.LabelValue(types.LabelNameNodeStatus); ok && val == types.NameNodeInitialized {
			initCount++
		}
	}

	r.logger.Info().Msgf("%d/%d name nodes initialized", initCount, config.TotalNameNodes)
	return initCount == config.TotalNameNodes
}

// OrphanedVolumes returns the volumes whose owning task id is absent from
// the live task-id set, optionally filtered by a persistence-id prefix.
// The comparison is a point-in-time snapshot and may transiently report a
// volume whose task is mid-creation; callers use it for advisory cleanup
// only.
func (r *Registry) OrphanedVolumes(prefix string) ([]*types.VolumeRecord, error) {
	ids, err := r.TaskIDs()
	if err != nil {
		return nil, err
	}
	live := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		live[id] = struct{}{}
	}

	volumes, err := r.Volumes()
	if err != nil {
		return nil, err
	}

	var orphaned []*types.VolumeRecord
	for _, vol := range volumes {
		if _, ok := live[vol.TaskID]; ok {
			continue
		}
		if !strings.HasPrefix(vol.PersistenceID, prefix) {
			continue
		}
		orphaned = append(orphaned, vol)
	}
	return orphaned, nil
}
