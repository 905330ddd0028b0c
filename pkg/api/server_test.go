package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/cuemby/reservoir/pkg/log"
	"github.com/cuemby/reservoir/pkg/state"
	"github.com/cuemby/reservoir/pkg/store"
	"github.com/cuemby/reservoir/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: log.ErrorLevel, JSONOutput: true})
	os.Exit(m.Run())
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	bolt, err := store.Open(t.TempDir(), "reservoir-test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = bolt.Close() })

	registry := state.NewRegistry(
		bolt.Namespace(state.NamespaceTasks),
		bolt.Namespace(state.NamespaceVolumes),
		bolt.Namespace(state.NamespaceScheduler),
	)
	return NewServer(registry)
}

func postJSON(t *testing.T, handler http.HandlerFunc, v interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestOfferRoundtrip(t *testing.T) {
	srv := newTestServer(t)

	// Stand in for the scheduler loop: consume the offer and launch.
	go func() {
		offer := <-srv.Offers()
		_ = srv.Launch(offer, &types.TaskRecord{ID: "journalnode-1", Role: types.RoleJournal})
	}()

	rec := postJSON(t, srv.handleOffer, &types.Offer{ID: "offer-1", Hostname: "host-1"})
	require.Equal(t, http.StatusOK, rec.Code)

	var action Action
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&action))
	assert.Equal(t, "launch", action.Action)
	require.NotNil(t, action.Task)
	assert.Equal(t, "journalnode-1", action.Task.ID)
}

func TestOfferDecisionCarriesResources(t *testing.T) {
	srv := newTestServer(t)

	reserved := []types.Resource{{Name: types.ResourceCPUs, Scalar: 1.5, Role: "reservoir"}}
	go func() {
		offer := <-srv.Offers()
		_ = srv.Reserve(offer, reserved)
	}()

	rec := postJSON(t, srv.handleOffer, &types.Offer{ID: "offer-1"})
	require.Equal(t, http.StatusOK, rec.Code)

	var action Action
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&action))
	assert.Equal(t, "reserve", action.Action)
	assert.Equal(t, reserved, action.Resources)
}

func TestOfferTimesOutWithoutScheduler(t *testing.T) {
	srv := newTestServer(t)
	srv.timeout = 50 * time.Millisecond

	// Nobody consumes Offers(); the handler must still return a decline
	// within the decision timeout instead of blocking on the handoff.
	done := make(chan Action, 1)
	go func() {
		rec := postJSON(t, srv.handleOffer, &types.Offer{ID: "offer-1"})
		var action Action
		if err := json.NewDecoder(rec.Body).Decode(&action); err == nil {
			done <- action
		}
	}()

	select {
	case action := <-done:
		assert.Equal(t, "decline", action.Action)
	case <-time.After(2 * time.Second):
		t.Fatal("offer POST did not return after the decision timeout")
	}

	srv.mu.Lock()
	_, pending := srv.pending["offer-1"]
	srv.mu.Unlock()
	assert.False(t, pending, "a timed-out offer must not leave a pending entry")
}

func TestOfferDecisionTimesOut(t *testing.T) {
	srv := newTestServer(t)
	srv.timeout = 50 * time.Millisecond

	// The offer is consumed but never decided.
	go func() { <-srv.Offers() }()

	rec := postJSON(t, srv.handleOffer, &types.Offer{ID: "offer-1"})
	require.Equal(t, http.StatusOK, rec.Code)

	var action Action
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&action))
	assert.Equal(t, "decline", action.Action)

	// A late decision fails resolve rather than writing to a dead channel.
	assert.Error(t, srv.Decline(&types.Offer{ID: "offer-1"}))
}

func TestResolveUnknownOffer(t *testing.T) {
	srv := newTestServer(t)
	assert.Error(t, srv.Decline(&types.Offer{ID: "never-posted"}))
}

func TestMalformedOfferRejected(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	srv.handleOffer(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusFeedsUpdates(t *testing.T) {
	srv := newTestServer(t)

	rec := postJSON(t, srv.handleStatus, &types.TaskStatus{
		TaskID: "journalnode-1",
		State:  types.TaskStateRunning,
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case status := <-srv.Updates():
		assert.Equal(t, "journalnode-1", status.TaskID)
		assert.Equal(t, types.TaskStateRunning, status.State)
	case <-time.After(2 * time.Second):
		t.Fatal("status never reached the updates channel")
	}
}

func TestTasksEndpoint(t *testing.T) {
	srv := newTestServer(t)
	require.NoError(t, srv.registry.RecordTask(&types.TaskRecord{
		ID:       "datanode-1",
		Role:     types.RoleData,
		Hostname: "host-1",
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/tasks", nil)
	rec := httptest.NewRecorder()
	srv.handleTasks(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var tasks []*types.TaskRecord
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, "datanode-1", tasks[0].ID)
}

func TestVolumesEndpointFiltersOrphans(t *testing.T) {
	srv := newTestServer(t)
	require.NoError(t, srv.registry.RecordVolume(&types.VolumeRecord{
		PersistenceID: "journalnode-vol-1",
		Hostname:      "host-1",
	}))
	require.NoError(t, srv.registry.RecordVolume(&types.VolumeRecord{
		PersistenceID: "datanode-vol-1",
		Hostname:      "host-2",
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/volumes?orphaned=true&prefix=journalnode-", nil)
	rec := httptest.NewRecorder()
	srv.handleVolumes(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var volumes []*types.VolumeRecord
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&volumes))
	require.Len(t, volumes, 1)
	assert.Equal(t, "journalnode-vol-1", volumes[0].PersistenceID)
}

func TestInspectionEndpointsAreGetOnly(t *testing.T) {
	srv := newTestServer(t)

	for _, handler := range []http.HandlerFunc{srv.handleTasks, srv.handleVolumes} {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		rec := httptest.NewRecorder()
		handler(rec, req)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.handleHealth(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
