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
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/carverauto/opcua-aggregator/pkg/aggregator"

// Propagation counts events on both mirroring paths, attributed by server id.
type Propagation struct {
	notifications metric.Int64Counter
	localWrites   metric.Int64Counter
	remoteWrites  metric.Int64Counter
	failures      metric.Int64Counter
}

// NewPropagation creates the counters on mp, or on the global provider when mp is nil.
func NewPropagation(mp metric.MeterProvider) (*Propagation, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	meter := mp.Meter(meterName)

	var (
		p   Propagation
		err error
	)

	if p.notifications, err = meter.Int64Counter("aggregator.notifications",
		metric.WithDescription("Data change notifications received from remote servers")); err != nil {
		return nil, fmt.Errorf("notifications counter: %w", err)
	}

	if p.localWrites, err = meter.Int64Counter("aggregator.local_writes",
		metric.WithDescription("Remote values written into local variables")); err != nil {
		return nil, fmt.Errorf("local writes counter: %w", err)
	}

	if p.remoteWrites, err = meter.Int64Counter("aggregator.remote_writes",
		metric.WithDescription("Local values forwarded to remote servers")); err != nil {
		return nil, fmt.Errorf("remote writes counter: %w", err)
	}

	if p.failures, err = meter.Int64Counter("aggregator.propagation_errors",
		metric.WithDescription("Failed writes on either propagation path")); err != nil {
		return nil, fmt.Errorf("errors counter: %w", err)
	}

	return &p, nil
}

func serverAttr(serverID string) metric.AddOption {
	return metric.WithAttributes(attribute.String("server_id", serverID))
}

// Notification records one inbound data change.
func (p *Propagation) Notification(ctx context.Context, serverID string) {
	if p == nil {
		return
	}

	p.notifications.Add(ctx, 1, serverAttr(serverID))
}

// LocalWrite records the outcome of a remote to local write.
func (p *Propagation) LocalWrite(ctx context.Context, serverID string, err error) {
	if p == nil {
		return
	}

	if err != nil {
		p.failures.Add(ctx, 1, metric.WithAttributes(
			attribute.String("server_id", serverID), attribute.String("direction", "local")))

		return
	}

	p.localWrites.Add(ctx, 1, serverAttr(serverID))
}

// RemoteWrite records the outcome of a local to remote write.
func (p *Propagation) RemoteWrite(ctx context.Context, serverID string, err error) {
	if p == nil {
		return
	}

	if err != nil {
		p.failures.Add(ctx, 1, metric.WithAttributes(
			attribute.String("server_id", serverID), attribute.String("direction", "remote")))

		return
	}

	p.remoteWrites.Add(ctx, 1, serverAttr(serverID))
}
