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

// Package aggregator mirrors variables of remote OPC UA servers into a local
// address space. The model names the remote servers and the variables to
// mirror; values then flow both ways between local and remote variables.
package aggregator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/carverauto/opcua-aggregator/pkg/addrspace"
	"github.com/carverauto/opcua-aggregator/pkg/logger"
	"github.com/carverauto/opcua-aggregator/pkg/metrics"
	"github.com/carverauto/opcua-aggregator/pkg/nodeid"
)

// Aggregator owns the registry, the mirror table and the publish driver.
type Aggregator struct {
	space     AddressSpace
	registry  *Registry
	mirrors   *MirrorTable
	publisher *Publisher
	sink      ChangeSink
	metrics   *metrics.Propagation
	clock     Clock
	logger    logger.Logger

	echo           bool
	descriptorPath []addrspace.PathElement
	variableType   nodeid.NodeID

	mu      sync.Mutex
	started bool
	closed  atomic.Bool
}

// Option configures optional collaborators.
type Option func(*Aggregator)

// WithChangeSink publishes every applied remote value to sink.
func WithChangeSink(sink ChangeSink) Option {
	return func(a *Aggregator) {
		a.sink = sink
	}
}

// WithMetrics records propagation counters.
func WithMetrics(m *metrics.Propagation) Option {
	return func(a *Aggregator) {
		a.metrics = m
	}
}

// WithClock replaces the real clock, for tests.
func WithClock(clock Clock) Option {
	return func(a *Aggregator) {
		a.clock = clock
	}
}

// New creates an aggregator over space. config must have been validated.
func New(config *Config, space AddressSpace, dialer Dialer, log logger.Logger, opts ...Option) (*Aggregator, error) {
	path, err := config.descriptorPath()
	if err != nil {
		return nil, err
	}

	variableType, err := nodeid.Parse(config.VariableType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidVariableType, err)
	}

	a := &Aggregator{
		space:          space,
		registry:       NewRegistry(dialer, log),
		mirrors:        NewMirrorTable(),
		clock:          realClock{},
		logger:         log,
		echo:           config.Echo(),
		descriptorPath: path,
		variableType:   variableType,
	}

	for _, opt := range opts {
		opt(a)
	}

	a.publisher = NewPublisher(a.registry, time.Duration(config.PublishInterval), a.clock, log)

	return a, nil
}

// Start implements the lifecycle.Service interface. It runs discovery and
// starts the publish driver; it does not block.
func (a *Aggregator) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return errAlreadyStarted
	}

	a.started = true

	a.Discover(ctx)
	a.publisher.Start(ctx)

	return nil
}

// Stop implements the lifecycle.Service interface. The publish driver is
// joined first, then notifications are ignored, then sessions are closed.
func (a *Aggregator) Stop(ctx context.Context) error {
	a.publisher.Stop()
	a.closed.Store(true)

	if err := a.registry.ShutdownAll(ctx); err != nil {
		return fmt.Errorf("failed to close remote sessions: %w", err)
	}

	a.logger.Info().Msg("Aggregator stopped")

	return nil
}

func (a *Aggregator) Registry() *Registry {
	return a.registry
}

func (a *Aggregator) Mirrors() *MirrorTable {
	return a.mirrors
}

// ServerStatus describes one registry entry.
type ServerStatus struct {
	ID           string `json:"id"`
	DiscoveryURL string `json:"discovery_url"`
	Connected    bool   `json:"connected"`
	Subscribed   bool   `json:"subscribed"`
}

// MirrorStatus describes one mirror.
type MirrorStatus struct {
	LocalNodeID   string `json:"local_node_id"`
	RemoteNodeID  string `json:"remote_node_id"`
	ServerID      string `json:"server_id"`
	Monitored     bool   `json:"monitored"`
	MonitoredItem uint32 `json:"monitored_item,omitempty"`
}

// Status is a point-in-time snapshot of the aggregator.
type Status struct {
	Running bool           `json:"running"`
	Servers []ServerStatus `json:"servers"`
	Mirrors []MirrorStatus `json:"mirrors"`
}

// Status reports the registry and mirror table contents.
func (a *Aggregator) Status() *Status {
	a.mu.Lock()
	running := a.started && !a.closed.Load()
	a.mu.Unlock()

	st := &Status{Running: running}

	for _, s := range a.registry.Servers() {
		st.Servers = append(st.Servers, ServerStatus{
			ID:           s.ID,
			DiscoveryURL: s.DiscoveryURL,
			Connected:    s.Connected(),
			Subscribed:   s.Subscribed(),
		})
	}

	for _, m := range a.mirrors.All() {
		item, ok := m.MonitoredItem()

		st.Mirrors = append(st.Mirrors, MirrorStatus{
			LocalNodeID:   m.Local.String(),
			RemoteNodeID:  m.Remote.String(),
			ServerID:      m.Server.ID,
			Monitored:     ok,
			MonitoredItem: item,
		})
	}

	return st
}
