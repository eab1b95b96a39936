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
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/carverauto/opcua-aggregator/pkg/logger"
)

// Publisher drains every registered server's subscription on a fixed interval.
type Publisher struct {
	registry *Registry
	interval time.Duration
	clock    Clock
	logger   logger.Logger

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewPublisher creates a publisher over registry. A nil clock uses real time.
func NewPublisher(registry *Registry, interval time.Duration, clock Clock, log logger.Logger) *Publisher {
	if clock == nil {
		clock = realClock{}
	}

	return &Publisher{
		registry: registry,
		interval: interval,
		clock:    clock,
		logger:   log,
		done:     make(chan struct{}),
	}
}

// Start begins ticking. Each tick runs on its own goroutine so a slow tick
// does not hold back the next one.
func (p *Publisher) Start(ctx context.Context) {
	ticker := p.clock.Ticker(p.interval)

	p.logger.Info().Dur("interval", p.interval).Msg("Starting publish driver")

	p.wg.Add(1)

	go func() {
		defer p.wg.Done()
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-p.done:
				return
			case <-ticker.Chan():
				p.wg.Add(1)

				go func() {
					defer p.wg.Done()

					if err := p.Tick(ctx); err != nil {
						p.logger.Debug().Err(err).Msg("Publish tick completed with errors")
					}
				}()
			}
		}
	}()
}

// Tick drains every server concurrently and waits for all of them.
func (p *Publisher) Tick(ctx context.Context) error {
	servers := p.registry.Servers()
	if len(servers) == 0 {
		return nil
	}

	var g errgroup.Group

	for _, s := range servers {
		g.Go(func() error {
			if err := s.Drain(ctx); err != nil {
				p.logger.Warn().Err(err).Str("server_id", s.ID).Msg("Error draining subscription")

				return fmt.Errorf("%s: %w", s.ID, err)
			}

			return nil
		})
	}

	return g.Wait()
}

// Stop ends ticking and waits for in-flight ticks.
func (p *Publisher) Stop() {
	p.closeOnce.Do(func() {
		close(p.done)
	})

	p.wg.Wait()
}
