package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	launches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "herdsman",
			Subsystem: "lifecycle",
			Name:      "launches_total",
			Help:      "Number of profile launch attempts by outcome.",
		}, []string{"outcome"},
	)
	terminations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "herdsman",
			Subsystem: "lifecycle",
			Name:      "terminations_total",
			Help:      "Number of termination attempts by mode and outcome.",
		}, []string{"mode", "outcome"},
	)
	restarts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "herdsman",
			Subsystem: "lifecycle",
			Name:      "restarts_total",
			Help:      "Number of restart operations.",
		},
	)
	scanCycles = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "herdsman",
			Subsystem: "scanner",
			Name:      "cycles_total",
			Help:      "Number of completed scan cycles.",
		},
	)
	snapshotDrops = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "herdsman",
			Subsystem: "scanner",
			Name:      "snapshots_dropped_total",
			Help:      "Snapshots dropped because the handoff channel was full.",
		},
	)
	runningProfiles = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "herdsman",
			Subsystem: "state",
			Name:      "running_profiles",
			Help:      "Profiles with a confirmed pid in the latest applied snapshot.",
		},
	)
	stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "herdsman",
			Subsystem: "state",
			Name:      "transitions_total",
			Help:      "Profile state transitions observed by the snapshot consumer.",
		}, []string{"from", "to"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{launches, terminations, restarts, scanCycles, snapshotDrops, runningProfiles, stateTransitions}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// already registered is fine (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler serving Prometheus metrics for the
// DefaultGatherer. The caller wires the route and server.
func Handler() http.Handler { return promhttp.Handler() }

// Lightweight helpers used by internal packages. They no-op until Register.

func IncLaunch(outcome string) {
	if regOK.Load() {
		launches.WithLabelValues(outcome).Inc()
	}
}

func IncTermination(mode, outcome string) {
	if regOK.Load() {
		terminations.WithLabelValues(mode, outcome).Inc()
	}
}

func IncRestart() {
	if regOK.Load() {
		restarts.Inc()
	}
}

func IncScanCycle() {
	if regOK.Load() {
		scanCycles.Inc()
	}
}

func IncSnapshotDrop() {
	if regOK.Load() {
		snapshotDrops.Inc()
	}
}

func SetRunningProfiles(n int) {
	if regOK.Load() {
		runningProfiles.Set(float64(n))
	}
}

func RecordStateTransition(from, to string) {
	if regOK.Load() {
		stateTransitions.WithLabelValues(from, to).Inc()
	}
}
