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

package aggregator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/carverauto/opcua-aggregator/pkg/metrics"
	"github.com/carverauto/opcua-aggregator/pkg/models"
	"github.com/carverauto/opcua-aggregator/pkg/nodeid"
)

func goodValue(v interface{}) models.DataValue {
	return models.DataValue{Value: v, Status: models.StatusGood, HasValue: true}
}

func discovered(t *testing.T, echo bool, opts ...Option) *fixture {
	t.Helper()

	f := newFixture(t, echo, opts...)
	report := f.agg.Discover(context.Background())
	require.Equal(t, 2, report.Mirrors)

	return f
}

func TestRemoteChangeWritesLocal(t *testing.T) {
	f := discovered(t, true)
	ctx := context.Background()

	// the echo forwards the applied value back exactly once
	f.session.EXPECT().Write(gomock.Any(), remoteTemperature, 30.5).Return(nil).Times(1)

	f.handlers[remoteTemperature](ctx, goodValue(30.5))

	assert.Equal(t, 1, f.space.writeCount())

	v, err := f.space.ReadValue(temperature)
	require.NoError(t, err)
	assert.InDelta(t, 30.5, v, 0)
}

func TestRemoteChangeDropped(t *testing.T) {
	tests := []struct {
		name  string
		value models.DataValue
	}{
		{"bad status", models.DataValue{Value: 30.5, Status: models.StatusBadTimeout, HasValue: true}},
		{"uncertain status", models.DataValue{Value: 30.5, Status: models.StatusUncertain, HasValue: true}},
		{"no value", models.DataValue{Status: models.StatusGood}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := discovered(t, true)

			f.handlers[remoteTemperature](context.Background(), tt.value)

			assert.Zero(t, f.space.writeCount())
		})
	}
}

func TestRemoteChangeEchoDisabled(t *testing.T) {
	f := discovered(t, false)
	ctx := context.Background()

	// no Write expectation: an echo would fail the test
	f.handlers[remoteTemperature](ctx, goodValue(30.5))

	assert.Equal(t, 1, f.space.writeCount())

	// writes from other sources are still forwarded
	f.session.EXPECT().Write(gomock.Any(), remoteTemperature, 18.0).Return(nil).Times(1)
	require.NoError(t, f.space.WriteValue(ctx, temperature, 18.0))
}

func TestLocalWriteForwardsOnce(t *testing.T) {
	for _, echo := range []bool{true, false} {
		f := discovered(t, echo)

		f.session.EXPECT().Write(gomock.Any(), remoteTemperature, 12.0).Return(nil).Times(1)

		require.NoError(t, f.space.WriteValue(context.Background(), temperature, 12.0))
	}
}

func TestSharedLocalVariable(t *testing.T) {
	backup := nodeid.NewString(1, "TemperatureBackup")

	for _, echo := range []bool{true, false} {
		f := discovered(t, echo)
		ctx := context.Background()

		require.NoError(t, f.agg.bind(ctx, f.agg.Registry().Find("plc1"), temperature, backup))
		require.Len(t, f.agg.Mirrors().ForLocal(temperature), 2)

		// a remote change reaches the other mirror, and its own remote only with echo
		f.session.EXPECT().Write(gomock.Any(), backup, 25.0).Return(nil).Times(1)

		if echo {
			f.session.EXPECT().Write(gomock.Any(), remoteTemperature, 25.0).Return(nil).Times(1)
		}

		f.handlers[remoteTemperature](ctx, goodValue(25.0))

		// a local write reaches both
		f.session.EXPECT().Write(gomock.Any(), remoteTemperature, 26.0).Return(nil).Times(1)
		f.session.EXPECT().Write(gomock.Any(), backup, 26.0).Return(nil).Times(1)

		require.NoError(t, f.space.WriteValue(ctx, temperature, 26.0))
	}
}

func TestLocalWriteFailureNotForwarded(t *testing.T) {
	f := discovered(t, true)

	// a string cannot be stored in a Double variable
	f.handlers[remoteTemperature](context.Background(), goodValue("hot"))

	v, err := f.space.ReadValue(temperature)
	require.NoError(t, err)
	assert.InDelta(t, 21.5, v, 0)
}

func TestRemoteWriteFailureKeepsLocalValue(t *testing.T) {
	f := discovered(t, true)
	ctx := context.Background()

	f.session.EXPECT().Write(gomock.Any(), remoteTemperature, 40.0).Return(models.StatusBadNotWritable)

	require.NoError(t, f.space.WriteValue(ctx, temperature, 40.0))

	v, err := f.space.ReadValue(temperature)
	require.NoError(t, err)
	assert.InDelta(t, 40.0, v, 0)
}

func TestRemoteChangePublished(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := NewMockChangeSink(ctrl)
	clock := NewMockClock(ctrl)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	clock.EXPECT().Now().Return(now).AnyTimes()

	f := discovered(t, false, WithChangeSink(sink), WithClock(clock))

	sink.EXPECT().PublishChange(gomock.Any(), &models.ValueChange{
		ServerID:     "plc1",
		LocalNodeID:  "ns=3;i=8201",
		RemoteNodeID: "ns=1;s=Temperature",
		Value:        25.0,
		Time:         now,
	}).Return(nil)

	f.handlers[remoteTemperature](context.Background(), goodValue(25.0))
}

func TestPropagationMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := metrics.NewPropagation(provider)
	require.NoError(t, err)

	f := discovered(t, true, WithMetrics(m))
	ctx := context.Background()

	f.session.EXPECT().Write(gomock.Any(), remoteTemperature, gomock.Any()).Return(nil).Times(2)

	f.handlers[remoteTemperature](ctx, goodValue(1.0))
	f.handlers[remoteTemperature](ctx, goodValue(2.0))
	f.handlers[remoteTemperature](ctx, models.DataValue{Status: models.StatusBadTimeout})

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	got := make(map[string]int64)

	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if sum, ok := md.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					got[md.Name] += dp.Value
				}
			}
		}
	}

	assert.Equal(t, int64(3), got["aggregator.notifications"])
	assert.Equal(t, int64(2), got["aggregator.local_writes"])
	assert.Equal(t, int64(2), got["aggregator.remote_writes"])
}
