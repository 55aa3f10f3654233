package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TicksIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tickflow_ticks_ingested_total", Help: "Normalized ticks accepted into the ingestion buffer"},
		[]string{"symbol"},
	)
	TicksDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tickflow_ticks_dropped_total", Help: "Ticks evicted from a full ingestion buffer"},
		[]string{"symbol"},
	)
	MalformedMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tickflow_malformed_messages_total", Help: "Feed messages dropped because they failed to decode"},
		[]string{"symbol"},
	)
	FlushFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "tickflow_flush_failures_total", Help: "Store flush attempts that failed and were retried"},
	)
	BufferOccupancy = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "tickflow_buffer_occupancy", Help: "Current ingestion buffer size per symbol"},
		[]string{"symbol"},
	)
	AlertsTriggered = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tickflow_alerts_triggered_total", Help: "Alert rule trigger events emitted"},
		[]string{"metric"},
	)
)

func init() {
	prometheus.MustRegister(
		TicksIngested,
		TicksDropped,
		MalformedMessages,
		FlushFailures,
		BufferOccupancy,
		AlertsTriggered,
	)
}

// Serve exposes the /metrics endpoint on its own listener.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
