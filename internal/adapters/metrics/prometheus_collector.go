// Package metrics adapts the teacher's per-domain Prometheus collector
// structs (each with a constructor building its own metric vectors, a
// Register() that no-ops when the registry isn't initialized, and
// Record*/Update* methods called from the code path they measure) to the
// simulation's own domains: tick steps, market trades, and lockstep network
// traffic, plus the teacher's unmodified generic command-execution
// collector.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	namespace = "simcore"
	subsystem = "engine"
)

// Registry is the global Prometheus registry. Nil until InitRegistry is
// called, in which case every collector's Register() is a no-op — metrics
// are opt-in, matching the teacher's IsEnabled() gate.
var Registry *prometheus.Registry

func InitRegistry() { Registry = prometheus.NewRegistry() }

func GetRegistry() *prometheus.Registry { return Registry }

func IsEnabled() bool { return Registry != nil }
