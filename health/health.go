// Copyright (c) 2026 Armature Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package health provides composable metrics for reporting the
// readiness and liveness of application components.
package health

import (
	"context"
	"sync/atomic"
)

// Metric represents anything that can report its health status.
type Metric interface {
	Healthy(context.Context) bool
}

// MetricFunc adapts an ordinary function into a [Metric].
type MetricFunc func(context.Context) bool

// Healthy implements the [Metric] interface.
func (f MetricFunc) Healthy(ctx context.Context) bool {
	return f(ctx)
}

// Binary is a [Metric] holding an explicit healthy or unhealthy state.
//
// The zero value reports unhealthy. This fits lifecycle wiring where a
// component only becomes healthy once its start hook has completed.
type Binary struct {
	healthy atomic.Bool
}

// MarkHealthy transitions the state to healthy.
func (m *Binary) MarkHealthy() {
	m.healthy.Store(true)
}

// MarkUnhealthy transitions the state to unhealthy.
func (m *Binary) MarkUnhealthy() {
	m.healthy.Store(false)
}

// Healthy implements the [Metric] interface.
func (m *Binary) Healthy(ctx context.Context) bool {
	return m.healthy.Load()
}

// Listener is the probe surface exposed by servers whose lifecycle is
// managed by an application.
type Listener interface {
	Listening() bool
}

// Listening adapts l into a [Metric] which reports healthy for as long
// as l is accepting requests.
func Listening(l Listener) Metric {
	return MetricFunc(func(_ context.Context) bool {
		return l.Listening()
	})
}

// AndMetric represents multiple Metrics all and'd together.
type AndMetric struct {
	metrics []Metric
}

// And returns a [Metric] which only reports healthy if every one of
// the underlying metrics reports healthy.
func And(metrics ...Metric) AndMetric {
	return AndMetric{
		metrics: metrics,
	}
}

// Healthy implements the [Metric] interface.
func (m AndMetric) Healthy(ctx context.Context) bool {
	for _, metric := range m.metrics {
		if !metric.Healthy(ctx) {
			return false
		}
	}
	return true
}

// OrMetric represents multiple Metrics all or'd together.
type OrMetric struct {
	metrics []Metric
}

// Or returns a [Metric] which reports healthy if at least one of the
// underlying metrics reports healthy.
func Or(metrics ...Metric) OrMetric {
	return OrMetric{
		metrics: metrics,
	}
}

// Healthy implements the [Metric] interface.
func (m OrMetric) Healthy(ctx context.Context) bool {
	for _, metric := range m.metrics {
		if metric.Healthy(ctx) {
			return true
		}
	}
	return false
}

// NotMetric represents the negated value of the underlying Metric.
type NotMetric struct {
	metric Metric
}

// Not returns a [Metric] which reports the negated state of the
// underlying metric.
func Not(metric Metric) NotMetric {
	return NotMetric{
		metric: metric,
	}
}

// Healthy implements the [Metric] interface.
func (m NotMetric) Healthy(ctx context.Context) bool {
	return !m.metric.Healthy(ctx)
}
