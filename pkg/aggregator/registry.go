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
	"errors"
	"fmt"
	"sync"

	"github.com/carverauto/opcua-aggregator/pkg/logger"
	"github.com/carverauto/opcua-aggregator/pkg/models"
	"github.com/carverauto/opcua-aggregator/pkg/nodeid"
)

// RemoteServer is one registry entry. Session and subscription are optional:
// a server whose connect failed stays registered and rejects writes, and a
// server without a subscription accepts writes but never delivers changes.
type RemoteServer struct {
	ID           string
	DiscoveryURL string

	mu           sync.RWMutex
	session      Session
	subscription Subscription

	// drainMu keeps drains of this server sequential across ticks.
	drainMu sync.Mutex
}

// Connected reports whether the server holds a session.
func (s *RemoteServer) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.session != nil
}

// Subscribed reports whether the server holds a subscription.
func (s *RemoteServer) Subscribed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.subscription != nil
}

// Write sets the value attribute of a remote variable. Close waits for
// in-flight writes.
func (s *RemoteServer) Write(ctx context.Context, id nodeid.NodeID, value interface{}) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.session == nil {
		return fmt.Errorf("%w: %s: %w", ErrRemoteWriteFailed, s.ID, models.StatusBadNotConnected)
	}

	if err := s.session.Write(ctx, id, value); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrRemoteWriteFailed, s.ID, err)
	}

	return nil
}

// Monitor creates a monitored item for a remote variable on the server's subscription.
func (s *RemoteServer) Monitor(ctx context.Context, id nodeid.NodeID, handler DataChangeHandler) (uint32, error) {
	s.mu.RLock()
	sub := s.subscription
	s.mu.RUnlock()

	if sub == nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrSubscriptionUnavailable, s.ID, models.StatusBadNoSubscription)
	}

	return sub.Monitor(ctx, id, handler)
}

// Drain dispatches the pending data change notifications on the calling
// goroutine. Only one drain of a server runs at a time, so notifications are
// applied in delivery order even when ticks overlap. Servers without a
// subscription have nothing to drain.
func (s *RemoteServer) Drain(ctx context.Context) error {
	s.drainMu.Lock()
	defer s.drainMu.Unlock()

	s.mu.RLock()
	sub := s.subscription
	s.mu.RUnlock()

	if sub == nil {
		return nil
	}

	return sub.Drain(ctx)
}

func (s *RemoteServer) close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.session
	s.session = nil
	s.subscription = nil

	if session == nil {
		return nil
	}

	return session.Close(ctx)
}

// Registry holds the remote servers in registration order.
type Registry struct {
	dialer Dialer
	logger logger.Logger

	mu      sync.RWMutex
	servers []*RemoteServer
	closed  bool
}

// NewRegistry creates an empty registry dialing through dialer.
func NewRegistry(dialer Dialer, log logger.Logger) *Registry {
	return &Registry{
		dialer: dialer,
		logger: log,
	}
}

// Register connects to discoveryURL and creates a subscription. The server is
// registered even when either step fails; the returned error then wraps
// ErrEndpointUnreachable or ErrSubscriptionUnavailable. Ids are not
// de-duplicated.
func (r *Registry) Register(ctx context.Context, id, discoveryURL string) (*RemoteServer, error) {
	server := &RemoteServer{ID: id, DiscoveryURL: discoveryURL}

	var errs []error

	session, err := r.dialer.Dial(ctx, discoveryURL)
	if err != nil {
		r.logger.Warn().Err(err).
			Str("server_id", id).
			Str("discovery_url", discoveryURL).
			Msg("Could not connect to remote server")

		errs = append(errs, fmt.Errorf("%w: %s: %w", ErrEndpointUnreachable, discoveryURL, err))
	} else {
		server.session = session
	}

	if server.session == nil {
		errs = append(errs, fmt.Errorf("%w: %s: %w", ErrSubscriptionUnavailable, id, models.StatusBadNotConnected))
	} else if sub, err := server.session.Subscribe(ctx); err != nil {
		r.logger.Warn().Err(err).
			Str("server_id", id).
			Str("discovery_url", discoveryURL).
			Msg("Could not create subscription")

		errs = append(errs, fmt.Errorf("%w: %s: %w", ErrSubscriptionUnavailable, id, err))
	} else {
		server.subscription = sub
	}

	r.mu.Lock()
	r.servers = append(r.servers, server)
	r.mu.Unlock()

	r.logger.Info().
		Str("server_id", id).
		Str("discovery_url", discoveryURL).
		Bool("connected", server.Connected()).
		Bool("subscribed", server.Subscribed()).
		Msg("Registered remote server")

	return server, errors.Join(errs...)
}

// Find returns the first server registered under id, or nil.
func (r *Registry) Find(id string) *RemoteServer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.servers {
		if s.ID == id {
			return s
		}
	}

	return nil
}

// Servers returns a snapshot of the registered servers in registration order.
func (r *Registry) Servers() []*RemoteServer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*RemoteServer, len(r.servers))
	copy(out, r.servers)

	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.servers)
}

// ShutdownAll closes every session in registration order. Later calls do nothing.
func (r *Registry) ShutdownAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	r.closed = true

	var errs []error

	for _, s := range r.servers {
		if err := s.close(ctx); err != nil {
			r.logger.Error().Err(err).Str("server_id", s.ID).Msg("Error closing session")

			errs = append(errs, fmt.Errorf("%s: %w", s.ID, err))
		}
	}

	return errors.Join(errs...)
}
