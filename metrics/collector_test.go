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

package metrics_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomoncle/entrepo/entity"
	"github.com/tomoncle/entrepo/metrics"
	"github.com/tomoncle/entrepo/repository"
	"github.com/tomoncle/entrepo/repository/memory"
)

type Order struct {
	ID    int64
	Total float64
}

func TestCollectorLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewWithRegistry(reg)

	c.ObserveAction("Order", repository.ActionCreate, 10*time.Millisecond, nil)
	c.ObserveAction("Order", repository.ActionUpdate, time.Millisecond, repository.EmptyResult("Order"))
	c.ObserveAction("Order", repository.ActionDelete, time.Millisecond, &repository.ActionFailed{Action: repository.ActionDelete})
	c.ObserveExtension("Order", "OrFail", nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.ActionsTotal.WithLabelValues("Order", "create", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ActionsTotal.WithLabelValues("Order", "update", "empty")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ActionsTotal.WithLabelValues("Order", "delete", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ExtensionsTotal.WithLabelValues("Order", "OrFail", "ok")))
	assert.Equal(t, 3, testutil.CollectAndCount(c.ActionDuration))
}

func TestCollectorObservesRepository(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	c := metrics.NewWithRegistry(reg)
	orders, err := repository.New[Order](memory.New(),
		repository.WithMarshaller(entity.NewMarshaller(entity.NewRegistry())),
		repository.WithObserver(c),
	)
	require.NoError(t, err)

	_, err = orders.Create(ctx, map[string]interface{}{"total": 9.5})
	require.NoError(t, err)
	_, err = orders.FindOrFail(ctx, 1)
	require.NoError(t, err)
	_, err = orders.FindOrFail(ctx, 2)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.ActionsTotal.WithLabelValues("Order", "create", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ExtensionsTotal.WithLabelValues("Order", "OrFail", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ExtensionsTotal.WithLabelValues("Order", "OrFail", "empty")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.ElementsMatch(t, []string{
		"entrepo_actions_total",
		"entrepo_action_duration_seconds",
		"entrepo_extension_calls_total",
	}, names)
}
