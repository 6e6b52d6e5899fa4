// Package metrics exports task invocation metrics in Prometheus format.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/bpradana/tasking"
)

// Collector counts task invocations and observes their durations.
type Collector struct {
	registry *prometheus.Registry

	runsTotal   *prometheus.CounterVec
	runDuration *prometheus.HistogramVec

	logger *zap.Logger
}

// New creates a collector backed by a fresh registry.
func New(namespace string, logger *zap.Logger) *Collector {
	return NewWithRegistry(prometheus.NewRegistry(), namespace, logger)
}

// NewWithRegistry creates a collector registering into reg.
func NewWithRegistry(reg *prometheus.Registry, namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)
	return &Collector{
		registry: reg,
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "task_runs_total",
				Help:      "Total number of task invocations",
			},
			[]string{"task", "role", "status"},
		),
		runDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "task_duration_seconds",
				Help:      "Task invocation duration in seconds, filters included",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"task"},
		),
		logger: logger.With(zap.String("component", "metrics")),
	}
}

// Registry returns the registry the collector writes into.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Hooks returns engine hooks feeding the collector.
func (c *Collector) Hooks() tasking.Hooks {
	return tasking.Hooks{
		OnFinish: c.recordFinish,
	}
}

func (c *Collector) recordFinish(_ context.Context, event tasking.TaskEvent) {
	meta, m := event.Metadata, event.Metrics
	c.runsTotal.WithLabelValues(meta.Task, string(meta.Role), string(m.Status)).Inc()
	c.runDuration.WithLabelValues(meta.Task).Observe(m.Duration.Seconds())
}

// WriteFile writes every registered metric to path in the text exposition format.
func (c *Collector) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return err
	}
	c.logger.Debug("metrics written", zap.String("path", path))
	return nil
}
