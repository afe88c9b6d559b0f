package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActivePipes         = promauto.NewGauge(prometheus.GaugeOpts{Name: "knockport_active_pipes", Help: "Currently open pipes"})
	KnockHitsTotal      = promauto.NewCounter(prometheus.CounterOpts{Name: "knockport_knock_hits_total", Help: "Connections routed to the hidden port"})
	NormalRoutesTotal   = promauto.NewCounter(prometheus.CounterOpts{Name: "knockport_normal_routes_total", Help: "Connections routed to the normal port"})
	SniffTimeoutsTotal  = promauto.NewCounter(prometheus.CounterOpts{Name: "knockport_sniff_timeouts_total", Help: "Connections whose routing was decided by sniff timeout"})
	PipesTotal          = promauto.NewCounter(prometheus.CounterOpts{Name: "knockport_pipes_established_total", Help: "Pipes established"})
	RejectedTotal       = promauto.NewCounter(prometheus.CounterOpts{Name: "knockport_rejected_total", Help: "Accepted connections dropped by the rate gate"})
	ErrorsTotal         = promauto.NewCounterVec(prometheus.CounterOpts{Name: "knockport_errors_total", Help: "Errors by type"}, []string{"type"})
	PipeDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{Name: "knockport_pipe_duration_seconds", Help: "Pipe lifetime seconds", Buckets: prometheus.ExponentialBuckets(0.01, 2, 16)})
)
