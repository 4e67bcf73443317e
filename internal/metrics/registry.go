package metrics

import (
	"net/http"

	"github.com/HannahMarsh/shuffle-defense-simulation/internal/data"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry exposes per-run tick metrics to Prometheus. It implements
// interfaces.MetricsSink and is safe for concurrent runs.
type Registry struct {
	registry *prometheus.Registry

	Buckets            *prometheus.GaugeVec
	AverageOccupancy   *prometheus.GaugeVec
	Users              *prometheus.GaugeVec
	RemainingAttackers *prometheus.GaugeVec
	TotalRisk          *prometheus.GaugeVec
	Tick               *prometheus.GaugeVec
	AttackedBuckets    *prometheus.CounterVec
	Evictions          *prometheus.CounterVec
}

func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
	}
	r.initSimulationMetrics()
	return r
}

func (r *Registry) initSimulationMetrics() {
	labels := []string{"run"}

	r.Buckets = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shuffle_buckets",
			Help: "Number of live buckets",
		},
		labels,
	)

	r.AverageOccupancy = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shuffle_bucket_average_occupancy",
			Help: "Average number of users per live bucket",
		},
		labels,
	)

	r.Users = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shuffle_users",
			Help: "Users still assigned to a bucket",
		},
		labels,
	)

	r.RemainingAttackers = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shuffle_remaining_attackers",
			Help: "Attackers that have not been evicted yet",
		},
		labels,
	)

	r.TotalRisk = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shuffle_total_risk",
			Help: "Sum of the risk scores of all tracked users",
		},
		labels,
	)

	r.Tick = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shuffle_tick",
			Help: "Last completed tick",
		},
		labels,
	)

	r.AttackedBuckets = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "shuffle_attacked_buckets_total",
			Help: "Buckets detected as attacked",
		},
		labels,
	)

	r.Evictions = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "shuffle_evictions_total",
			Help: "Users evicted from the system",
		},
		labels,
	)
}

// Observe records one tick.
func (r *Registry) Observe(m data.TickMetrics) error {
	r.Buckets.WithLabelValues(m.RunId).Set(float64(m.Buckets))
	r.AverageOccupancy.WithLabelValues(m.RunId).Set(m.AverageOccupancy)
	r.Users.WithLabelValues(m.RunId).Set(float64(m.Users))
	r.RemainingAttackers.WithLabelValues(m.RunId).Set(float64(m.RemainingAttackers))
	r.TotalRisk.WithLabelValues(m.RunId).Set(m.TotalRisk)
	r.Tick.WithLabelValues(m.RunId).Set(float64(m.Tick))
	r.AttackedBuckets.WithLabelValues(m.RunId).Add(float64(m.AttackedBuckets))
	r.Evictions.WithLabelValues(m.RunId).Add(float64(m.EvictedThisTick))
	return nil
}

// Gatherer returns the underlying Prometheus gatherer.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
