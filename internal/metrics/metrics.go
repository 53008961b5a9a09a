package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	serviceStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "termlink",
			Subsystem: "service",
			Name:      "starts_total",
			Help:      "Number of successful service launches.",
		}, []string{"name"},
	)
	serviceRestarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "termlink",
			Subsystem: "service",
			Name:      "restarts_total",
			Help:      "Number of watchdog relaunches.",
		}, []string{"name"},
	)
	serviceStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "termlink",
			Subsystem: "service",
			Name:      "stops_total",
			Help:      "Number of terminations during teardown.",
		}, []string{"name"},
	)
	serviceAlive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "termlink",
			Subsystem: "service",
			Name:      "alive",
			Help:      "1 when the service's liveness probe succeeds, else 0.",
		}, []string{"name"},
	)
)

// Register registers all collectors with r. Every collector is attempted
// even when an earlier one fails, so a duplicate never leaves the rest
// unregistered; the joined errors are returned.
func Register(r prometheus.Registerer) error {
	var errs []error
	for _, c := range []prometheus.Collector{serviceStarts, serviceRestarts, serviceStops, serviceAlive} {
		if err := r.Register(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func IncStart(name string)   { serviceStarts.WithLabelValues(name).Inc() }
func IncRestart(name string) { serviceRestarts.WithLabelValues(name).Inc() }
func IncStop(name string)    { serviceStops.WithLabelValues(name).Inc() }

func SetAlive(name string, alive bool) {
	v := 0.0
	if alive {
		v = 1.0
	}
	serviceAlive.WithLabelValues(name).Set(v)
}

// Handler returns the /metrics HTTP handler for the default registry.
func Handler() http.Handler { return promhttp.Handler() }

// Serve exposes /metrics on addr using the default registry. It blocks in
// the caller goroutine and returns any listen error.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv.ListenAndServe()
}
