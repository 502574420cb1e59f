// Package metrics owns the prometheus registry shared by the ledger counters and the
// HTTP middleware.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
)

const Namespace = "resetkit"

var Module = fx.Options(
	fx.Provide(NewRegistry),
	fx.Provide(func(r *prometheus.Registry) prometheus.Registerer { return r }),
	fx.Provide(func(r *prometheus.Registry) prometheus.Gatherer { return r }),
)

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}
