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

// Package uaclient implements the aggregator's client side on top of gopcua.
package uaclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"

	"github.com/carverauto/opcua-aggregator/pkg/aggregator"
	"github.com/carverauto/opcua-aggregator/pkg/logger"
	"github.com/carverauto/opcua-aggregator/pkg/models"
	"github.com/carverauto/opcua-aggregator/pkg/nodeid"
)

// notifyBuffer bounds the notifications queued between two drains. The
// transport blocks when it is full.
const notifyBuffer = 1024

var errNoResult = errors.New("empty service result")

// Dialer opens gopcua client sessions.
type Dialer struct {
	config *aggregator.ClientConfig
	logger logger.Logger
}

// NewDialer creates a Dialer with the given timeouts.
func NewDialer(config *aggregator.ClientConfig, log logger.Logger) *Dialer {
	return &Dialer{config: config, logger: log}
}

// Dial implements aggregator.Dialer.
func (d *Dialer) Dial(ctx context.Context, endpoint string) (aggregator.Session, error) {
	dialTimeout := time.Duration(d.config.DialTimeout)

	c, err := opcua.NewClient(endpoint,
		opcua.SecurityMode(ua.MessageSecurityModeNone),
		opcua.DialTimeout(dialTimeout),
		opcua.RequestTimeout(time.Duration(d.config.RequestTimeout)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for %s: %w", endpoint, err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	if err := c.Connect(dialCtx); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", endpoint, statusError(err))
	}

	d.logger.Debug().Str("discovery_url", endpoint).Msg("Connected to remote server")

	return &session{
		client:   c,
		writer:   c,
		endpoint: endpoint,
		interval: time.Duration(d.config.SubscriptionInterval),
		logger:   d.logger,
	}, nil
}

type valueWriter interface {
	Write(ctx context.Context, req *ua.WriteRequest) (*ua.WriteResponse, error)
}

type session struct {
	client   *opcua.Client
	writer   valueWriter
	endpoint string
	interval time.Duration
	logger   logger.Logger
}

// Subscribe implements aggregator.Session.
func (s *session) Subscribe(ctx context.Context) (aggregator.Subscription, error) {
	notify := make(chan *opcua.PublishNotificationData, notifyBuffer)

	sub, err := s.client.Subscribe(ctx, &opcua.SubscriptionParameters{Interval: s.interval}, notify)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscription on %s: %w", s.endpoint, statusError(err))
	}

	s.logger.Debug().
		Str("discovery_url", s.endpoint).
		Uint32("subscription_id", sub.SubscriptionID).
		Msg("Created subscription")

	return newSubscription(sub, notify, s.logger), nil
}

// Write implements aggregator.Session.
func (s *session) Write(ctx context.Context, id nodeid.NodeID, value interface{}) error {
	uaID, err := toUA(id)
	if err != nil {
		return err
	}

	variant, err := ua.NewVariant(value)
	if err != nil {
		return fmt.Errorf("%w: %w", models.StatusBadTypeMismatch, err)
	}

	resp, err := s.writer.Write(ctx, &ua.WriteRequest{
		NodesToWrite: []*ua.WriteValue{{
			NodeID:      uaID,
			AttributeID: ua.AttributeIDValue,
			Value: &ua.DataValue{
				EncodingMask: ua.DataValueValue,
				Value:        variant,
			},
		}},
	})
	if err != nil {
		return statusError(err)
	}

	if len(resp.Results) == 0 {
		return errNoResult
	}

	if code := resp.Results[0]; code != ua.StatusOK {
		return models.StatusCode(code)
	}

	return nil
}

// Close implements aggregator.Session.
func (s *session) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

type monitorer interface {
	Monitor(ctx context.Context, ts ua.TimestampsToReturn, items ...*ua.MonitoredItemCreateRequest) (*ua.CreateMonitoredItemsResponse, error)
}

// subscription dispatches queued notifications to handlers keyed by client handle.
type subscription struct {
	sub    monitorer
	notify <-chan *opcua.PublishNotificationData
	logger logger.Logger

	nextHandle atomic.Uint32

	mu       sync.RWMutex
	handlers map[uint32]aggregator.DataChangeHandler
}

func newSubscription(sub monitorer, notify <-chan *opcua.PublishNotificationData, log logger.Logger) *subscription {
	return &subscription{
		sub:      sub,
		notify:   notify,
		logger:   log,
		handlers: make(map[uint32]aggregator.DataChangeHandler),
	}
}

// Monitor implements aggregator.Subscription.
func (s *subscription) Monitor(ctx context.Context, id nodeid.NodeID, handler aggregator.DataChangeHandler) (uint32, error) {
	uaID, err := toUA(id)
	if err != nil {
		return 0, err
	}

	handle := s.nextHandle.Add(1)

	// registered first: the transport may queue a notification before Monitor returns
	s.mu.Lock()
	s.handlers[handle] = handler
	s.mu.Unlock()

	resp, err := s.sub.Monitor(ctx, ua.TimestampsToReturnBoth,
		opcua.NewMonitoredItemCreateRequestWithDefaults(uaID, ua.AttributeIDValue, handle))

	switch {
	case err != nil:
		err = statusError(err)
	case len(resp.Results) == 0:
		err = errNoResult
	case resp.Results[0].StatusCode != ua.StatusOK:
		err = models.StatusCode(resp.Results[0].StatusCode)
	}

	if err != nil {
		s.mu.Lock()
		delete(s.handlers, handle)
		s.mu.Unlock()

		return 0, err
	}

	return resp.Results[0].MonitoredItemID, nil
}

// Drain implements aggregator.Subscription. It hands every queued notification
// to its handler and returns when the queue is empty.
func (s *subscription) Drain(ctx context.Context) error {
	var errs []error

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n := <-s.notify:
			if err := s.dispatch(ctx, n); err != nil {
				errs = append(errs, err)
			}
		default:
			return errors.Join(errs...)
		}
	}
}

func (s *subscription) dispatch(ctx context.Context, n *opcua.PublishNotificationData) error {
	if n == nil {
		return nil
	}

	if n.Error != nil {
		return statusError(n.Error)
	}

	changes, ok := n.Value.(*ua.DataChangeNotification)
	if !ok {
		s.logger.Trace().Str("type", fmt.Sprintf("%T", n.Value)).Msg("Ignoring notification")

		return nil
	}

	for _, item := range changes.MonitoredItems {
		s.mu.RLock()
		handler := s.handlers[item.ClientHandle]
		s.mu.RUnlock()

		if handler == nil {
			continue
		}

		handler(ctx, toDataValue(item.Value))
	}

	return nil
}
