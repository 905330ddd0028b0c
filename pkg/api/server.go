package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cuemby/reservoir/pkg/log"
	"github.com/cuemby/reservoir/pkg/metrics"
	"github.com/cuemby/reservoir/pkg/state"
	"github.com/cuemby/reservoir/pkg/types"
	"github.com/rs/zerolog"
)

// decisionTimeout bounds how long an offer POST waits for the scheduler
// to act before the bridge is told to decline on its own.
const decisionTimeout = 5 * time.Second

// Action is the response returned for a posted offer, telling the bridge
// process what to relay to the cluster manager.
type Action struct {
	Action    string            `json:"action"` // decline | reserve | create-volume | launch
	Resources []types.Resource  `json:"resources,omitempty"`
	Disk      *types.Resource   `json:"disk,omitempty"`
	Task      *types.TaskRecord `json:"task,omitempty"`
}

// Server bridges an external cluster-manager adapter process to the
// scheduler over HTTP+JSON. It implements scheduler.Driver: offers posted
// to /v1/offers flow to the scheduler, and the decision flows back as the
// response body.
type Server struct {
	registry *state.Registry
	offers   chan *types.Offer
	updates  chan *types.TaskStatus
	logger   zerolog.Logger
	timeout  time.Duration

	mu      sync.Mutex
	pending map[string]chan Action

	httpSrv *http.Server
}

// NewServer creates the bridge server. The registry is used for the
// read-only inspection endpoints.
func NewServer(registry *state.Registry) *Server {
	return &Server{
		registry: registry,
		offers:   make(chan *types.Offer),
		updates:  make(chan *types.TaskStatus, 100),
		pending:  make(map[string]chan Action),
		logger:   log.WithComponent("api"),
		timeout:  decisionTimeout,
	}
}

// Offers implements scheduler.Driver.
func (s *Server) Offers() <-chan *types.Offer {
	return s.offers
}

// Updates implements scheduler.Driver.
func (s *Server) Updates() <-chan *types.TaskStatus {
	return s.updates
}

// Decline implements scheduler.Driver.
func (s *Server) Decline(offer *types.Offer) error {
	return s.resolve(offer.ID, Action{Action: "decline"})
}

// Reserve implements scheduler.Driver.
func (s *Server) Reserve(offer *types.Offer, resources []types.Resource) error {
	return s.resolve(offer.ID, Action{Action: "reserve", Resources: resources})
}

// CreateVolume implements scheduler.Driver.
func (s *Server) CreateVolume(offer *types.Offer, disk types.Resource) error {
	return s.resolve(offer.ID, Action{Action: "create-volume", Disk: &disk})
}

// Launch implements scheduler.Driver.
func (s *Server) Launch(offer *types.Offer, task *types.TaskRecord) error {
	return s.resolve(offer.ID, Action{Action: "launch", Task: task})
}

func (s *Server) resolve(offerID string, action Action) error {
	s.mu.Lock()
	ch, ok := s.pending[offerID]
	delete(s.pending, offerID)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("no pending offer %s", offerID)
	}
	ch <- action
	return nil
}

// Start serves the bridge endpoints and /metrics until Stop is called.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/offers", s.handleOffer)
	mux.HandleFunc("/v1/status", s.handleStatus)
	mux.HandleFunc("/v1/tasks", s.handleTasks)
	mux.HandleFunc("/v1/volumes", s.handleVolumes)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", metrics.Handler())

	s.httpSrv = &http.Server{Addr: addr, Handler: mux}
	s.logger.Info().Str("addr", addr).Msg("bridge API listening")

	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop shuts the server down.
func (s *Server) Stop() {
	if s.httpSrv != nil {
		_ = s.httpSrv.Close()
	}
}

func (s *Server) handleOffer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var offer types.Offer
	if err := json.NewDecoder(r.Body).Decode(&offer); err != nil {
		http.Error(w, fmt.Sprintf("invalid offer: %v", err), http.StatusBadRequest)
		return
	}

	ch := make(chan Action, 1)
	s.mu.Lock()
	s.pending[offer.ID] = ch
	s.mu.Unlock()

	// One timer bounds both the handoff and the decision wait: a scheduler
	// loop that is not consuming offers must not hold the adapter's offer
	// thread past the timeout either.
	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case s.offers <- &offer:
	case <-timer.C:
		s.abandon(offer.ID)
		s.logger.Warn().Str("offer_id", offer.ID).Msg("offer handoff timed out")
		writeJSON(w, Action{Action: "decline"})
		return
	}

	select {
	case action := <-ch:
		writeJSON(w, action)
	case <-timer.C:
		s.abandon(offer.ID)
		s.logger.Warn().Str("offer_id", offer.ID).Msg("offer decision timed out")
		writeJSON(w, Action{Action: "decline"})
	}
}

// abandon drops the pending entry for a timed-out offer. A late decision
// for it then fails resolve instead of writing to a dead channel.
func (s *Server) abandon(offerID string) {
	s.mu.Lock()
	delete(s.pending, offerID)
	s.mu.Unlock()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var status types.TaskStatus
	if err := json.NewDecoder(r.Body).Decode(&status); err != nil {
		http.Error(w, fmt.Sprintf("invalid status: %v", err), http.StatusBadRequest)
		return
	}

	s.updates <- &status
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tasks, err := s.registry.Tasks()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, tasks)
}

func (s *Server) handleVolumes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Query().Get("orphaned") == "true" {
		volumes, err := s.registry.OrphanedVolumes(r.URL.Query().Get("prefix"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, volumes)
		return
	}

	volumes, err := s.registry.Volumes()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, volumes)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("failed to encode response", err)
	}
}
