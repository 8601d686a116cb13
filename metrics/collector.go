/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package metrics exports repository activity as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tomoncle/entrepo/repository"
)

const namespace = "entrepo"

// Collector is a repository.Observer that counts pipeline actions and
// suffix-extension calls per entity.
type Collector struct {
	ActionsTotal    *prometheus.CounterVec
	ActionDuration  *prometheus.HistogramVec
	ExtensionsTotal *prometheus.CounterVec
}

var _ repository.Observer = (*Collector)(nil)

// New creates a collector registered with the default registry.
func New() *Collector {
	return newCollector(promauto.With(prometheus.DefaultRegisterer))
}

// NewWithRegistry creates a collector registered with reg.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	return newCollector(promauto.With(reg))
}

func newCollector(factory promauto.Factory) *Collector {
	return &Collector{
		ActionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_total",
				Help:      "Total number of create, update and delete actions",
			},
			[]string{"entity", "action", "result"},
		),
		ActionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "action_duration_seconds",
				Help:      "Action duration in seconds, including the read back after create",
				Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"entity", "action"},
		),
		ExtensionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "extension_calls_total",
				Help:      "Total number of suffix extension calls",
			},
			[]string{"entity", "suffix", "result"},
		),
	}
}

func (c *Collector) ObserveAction(entity string, action repository.Action, elapsed time.Duration, err error) {
	c.ActionsTotal.WithLabelValues(entity, string(action), result(err)).Inc()
	c.ActionDuration.WithLabelValues(entity, string(action)).Observe(elapsed.Seconds())
}

func (c *Collector) ObserveExtension(entity string, suffix string, err error) {
	c.ExtensionsTotal.WithLabelValues(entity, suffix, result(err)).Inc()
}

// result labels empty results apart from other failures.
func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case repository.IsNoRecordsFound(err):
		return "empty"
	case repository.IsActionFailed(err):
		return "failed"
	default:
		return "error"
	}
}
