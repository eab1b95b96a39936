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
	"sync"

	"github.com/carverauto/opcua-aggregator/pkg/nodeid"
)

// Mirror binds a local variable to a variable on a remote server.
type Mirror struct {
	Local  nodeid.NodeID
	Remote nodeid.NodeID
	Server *RemoteServer

	// mu serializes both propagation directions. Mirrors of the same local
	// variable share one mutex.
	mu *sync.Mutex

	itemMu        sync.Mutex
	monitoredItem uint32
	monitored     bool
}

// MonitoredItem returns the remote monitored item id, if one was created.
func (m *Mirror) MonitoredItem() (uint32, bool) {
	m.itemMu.Lock()
	defer m.itemMu.Unlock()

	return m.monitoredItem, m.monitored
}

func (m *Mirror) setMonitoredItem(id uint32) {
	m.itemMu.Lock()
	m.monitoredItem = id
	m.monitored = true
	m.itemMu.Unlock()
}

// MirrorTable holds every bound mirror in binding order.
type MirrorTable struct {
	mu      sync.RWMutex
	mirrors []*Mirror
}

// NewMirrorTable creates an empty table.
func NewMirrorTable() *MirrorTable {
	return &MirrorTable{}
}

// add appends m, giving it the propagation mutex of any mirror already bound
// to the same local variable.
func (t *MirrorTable) add(m *Mirror) {
	t.mu.Lock()
	defer t.mu.Unlock()

	m.mu = nil

	for _, other := range t.mirrors {
		if other.Local == m.Local {
			m.mu = other.mu

			break
		}
	}

	if m.mu == nil {
		m.mu = &sync.Mutex{}
	}

	t.mirrors = append(t.mirrors, m)
}

// All returns a snapshot of the table.
func (t *MirrorTable) All() []*Mirror {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*Mirror, len(t.mirrors))
	copy(out, t.mirrors)

	return out
}

// ForLocal returns the mirrors bound to a local variable.
func (t *MirrorTable) ForLocal(local nodeid.NodeID) []*Mirror {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []*Mirror

	for _, m := range t.mirrors {
		if m.Local == local {
			out = append(out, m)
		}
	}

	return out
}

func (t *MirrorTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.mirrors)
}
