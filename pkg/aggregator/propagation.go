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

	"github.com/carverauto/opcua-aggregator/pkg/models"
	"github.com/carverauto/opcua-aggregator/pkg/nodeid"
)

type originKey struct{}

// withOrigin marks ctx as carrying a write produced by m's data change
// handler, which already holds m.mu.
func withOrigin(ctx context.Context, m *Mirror) context.Context {
	return context.WithValue(ctx, originKey{}, m)
}

func originOf(ctx context.Context) *Mirror {
	m, _ := ctx.Value(originKey{}).(*Mirror)

	return m
}

// dataChangeHandler writes good remote values into m's local variable.
func (a *Aggregator) dataChangeHandler(m *Mirror) DataChangeHandler {
	return func(ctx context.Context, dv models.DataValue) {
		if a.closed.Load() {
			return
		}

		a.metrics.Notification(ctx, m.Server.ID)

		if dv.Status != models.StatusGood || !dv.HasValue {
			return
		}

		m.mu.Lock()
		defer m.mu.Unlock()

		err := a.space.WriteValue(withOrigin(ctx, m), m.Local, dv.Value)
		a.metrics.LocalWrite(ctx, m.Server.ID, err)

		if err != nil {
			err = fmt.Errorf("%w: %w", ErrLocalWriteFailed, err)

			a.logger.Warn().Err(err).
				Str("server_id", m.Server.ID).
				Str("node_id", m.Local.String()).
				Str("remote_node_id", m.Remote.String()).
				Stringer("status", models.StatusOf(err)).
				Msg("Value from data change notification could not be set")

			return
		}

		a.publishChange(ctx, m, dv.Value)
	}
}

func (a *Aggregator) publishChange(ctx context.Context, m *Mirror, value interface{}) {
	if a.sink == nil {
		return
	}

	change := &models.ValueChange{
		ServerID:     m.Server.ID,
		LocalNodeID:  m.Local.String(),
		RemoteNodeID: m.Remote.String(),
		Value:        value,
		Time:         a.clock.Now(),
	}

	if err := a.sink.PublishChange(ctx, change); err != nil {
		a.logger.Warn().Err(err).
			Str("server_id", m.Server.ID).
			Str("node_id", change.LocalNodeID).
			Msg("Failed to publish value change")
	}
}

// interceptLocalWrite forwards a local value to every mirror of the variable.
// Writes produced by a mirror's own data change handler are forwarded back to
// that mirror only when echo is enabled.
func (a *Aggregator) interceptLocalWrite(ctx context.Context, local nodeid.NodeID, value interface{}) {
	if a.closed.Load() {
		return
	}

	mirrors := a.mirrors.ForLocal(local)
	if len(mirrors) == 0 {
		return
	}

	// the data change handler of origin already holds the shared mutex
	origin := originOf(ctx)
	if origin == nil {
		mirrors[0].mu.Lock()
		defer mirrors[0].mu.Unlock()
	}

	for _, m := range mirrors {
		if m == origin && !a.echo {
			continue
		}

		a.forward(ctx, m, value)
	}
}

// forward writes value to m's remote variable. The caller holds m.mu.
func (a *Aggregator) forward(ctx context.Context, m *Mirror, value interface{}) {
	err := m.Server.Write(ctx, m.Remote, value)
	a.metrics.RemoteWrite(ctx, m.Server.ID, err)

	if err != nil {
		a.logger.Warn().Err(err).
			Str("server_id", m.Server.ID).
			Str("node_id", m.Local.String()).
			Str("remote_node_id", m.Remote.String()).
			Stringer("status", models.StatusOf(err)).
			Msg("Remote variable could not be set")

		return
	}

	a.logger.Debug().
		Str("server_id", m.Server.ID).
		Str("remote_node_id", m.Remote.String()).
		Msg("Forwarded local change to remote variable")
}
