package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Offer metrics
	OffersEvaluated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservoir_offers_evaluated_total",
			Help: "Total number of offers evaluated by decision",
		},
		[]string{"decision"},
	)

	// Placement metrics
	TasksLaunched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservoir_tasks_launched_total",
			Help: "Total number of tasks launched by role",
		},
		[]string{"role"},
	)

	ReservationsRequested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservoir_reservations_requested_total",
			Help: "Total number of resource reservations requested by role",
		},
		[]string{"role"},
	)

	VolumesRequested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservoir_volumes_requested_total",
			Help: "Total number of persistent volume creations requested by role",
		},
		[]string{"role"},
	)

	// State metrics
	CurrentPhase = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "reservoir_acquisition_phase",
			Help: "Current acquisition phase (0=journal, 1=name, 2=name-init, 3=data, 4=steady)",
		},
	)

	LiveTasks = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reservoir_live_tasks",
			Help: "Number of live task records by role",
		},
		[]string{"role"},
	)

	OrphanedVolumes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "reservoir_orphaned_volumes",
			Help: "Number of volume records whose owning task no longer exists",
		},
	)

	StatusEventsApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservoir_status_events_total",
			Help: "Total number of status events applied by state",
		},
		[]string{"state"},
	)
)

func init() {
	prometheus.MustRegister(OffersEvaluated)
	prometheus.MustRegister(TasksLaunched)
	prometheus.MustRegister(ReservationsRequested)
	prometheus.MustRegister(VolumesRequested)
	prometheus.MustRegister(CurrentPhase)
	prometheus.MustRegister(LiveTasks)
	prometheus.MustRegister(OrphanedVolumes)
	prometheus.MustRegister(StatusEventsApplied)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
