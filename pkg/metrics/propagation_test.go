/*
 * Copyright 2025 Carver Automation Corporation.
 *
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

package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

var errWrite = errors.New("write failed")

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]int64)

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, m.Name)

			for _, dp := range sum.DataPoints {
				out[m.Name] += dp.Value
			}
		}
	}

	return out
}

func TestPropagationCounters(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	p, err := NewPropagation(provider)
	require.NoError(t, err)

	ctx := context.Background()

	p.Notification(ctx, "srvA")
	p.Notification(ctx, "srvB")
	p.LocalWrite(ctx, "srvA", nil)
	p.RemoteWrite(ctx, "srvA", nil)
	p.RemoteWrite(ctx, "srvA", errWrite)
	p.LocalWrite(ctx, "srvB", errWrite)

	got := collect(t, reader)
	assert.Equal(t, int64(2), got["aggregator.notifications"])
	assert.Equal(t, int64(1), got["aggregator.local_writes"])
	assert.Equal(t, int64(1), got["aggregator.remote_writes"])
	assert.Equal(t, int64(2), got["aggregator.propagation_errors"])
}

func TestNilPropagationIsSafe(t *testing.T) {
	var p *Propagation

	assert.NotPanics(t, func() {
		p.Notification(context.Background(), "srvA")
		p.LocalWrite(context.Background(), "srvA", nil)
		p.RemoteWrite(context.Background(), "srvA", errWrite)
	})
}

func TestInitDisabled(t *testing.T) {
	_, err := Init(context.Background(), nil)
	require.ErrorIs(t, err, ErrMetricsDisabled)

	_, err = Init(context.Background(), &Config{Enabled: true})
	require.ErrorIs(t, err, ErrMetricsDisabled)
}
