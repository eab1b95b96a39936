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

//go:generate mockgen -destination=mock_aggregator.go -package=aggregator github.com/carverauto/opcua-aggregator/pkg/aggregator Dialer,Session,Subscription,ChangeSink,Clock,Ticker

package aggregator

import (
	"context"
	"time"

	"github.com/carverauto/opcua-aggregator/pkg/addrspace"
	"github.com/carverauto/opcua-aggregator/pkg/models"
	"github.com/carverauto/opcua-aggregator/pkg/nodeid"
)

// Dialer opens client sessions to remote servers.
type Dialer interface {
	Dial(ctx context.Context, endpoint string) (Session, error)
}

// Session is one client connection to a remote server.
type Session interface {
	Subscribe(ctx context.Context) (Subscription, error)
	Write(ctx context.Context, id nodeid.NodeID, value interface{}) error
	Close(ctx context.Context) error
}

// DataChangeHandler receives the data change notifications of one monitored item.
type DataChangeHandler func(ctx context.Context, value models.DataValue)

// Subscription delivers data changes for monitored items. Notifications are
// queued by the transport and handed to handlers only from Drain, on the
// calling goroutine.
type Subscription interface {
	Monitor(ctx context.Context, id nodeid.NodeID, handler DataChangeHandler) (uint32, error)
	Drain(ctx context.Context) error
}

// AddressSpace is the local node store the engine reads the model from and
// mirrors values into.
type AddressSpace interface {
	ResolvePath(start nodeid.NodeID, path []addrspace.PathElement) ([]nodeid.NodeID, error)
	Browse(id nodeid.NodeID, dir addrspace.BrowseDirection, refType nodeid.NodeID, includeSubtypes bool) ([]addrspace.Reference, error)
	ReadValue(id nodeid.NodeID) (interface{}, error)
	WriteValue(ctx context.Context, id nodeid.NodeID, value interface{}) error
	SetWriteIntercept(id nodeid.NodeID, fn addrspace.WriteIntercept) error
}

// ChangeSink receives every remote value applied to a local variable.
type ChangeSink interface {
	PublishChange(ctx context.Context, change *models.ValueChange) error
}

// Clock abstracts time-related operations.
type Clock interface {
	Now() time.Time
	Ticker(d time.Duration) Ticker
}

// Ticker abstracts the ticker behavior.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}
