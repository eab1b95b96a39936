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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/opcua-aggregator/pkg/logger"
	"github.com/carverauto/opcua-aggregator/pkg/models"
	"github.com/carverauto/opcua-aggregator/pkg/nodeid"
)

func TestTickWithoutServers(t *testing.T) {
	p := NewPublisher(NewRegistry(nil, logger.NewTestLogger()), time.Millisecond, nil, logger.NewTestLogger())

	require.NoError(t, p.Tick(context.Background()))
}

func registerServers(t *testing.T, ctrl *gomock.Controller, r *Registry, ids ...string) []*MockSubscription {
	t.Helper()

	dialer := NewMockDialer(ctrl)
	r.dialer = dialer

	subs := make([]*MockSubscription, 0, len(ids))

	for _, id := range ids {
		session := NewMockSession(ctrl)
		sub := NewMockSubscription(ctrl)

		dialer.EXPECT().Dial(gomock.Any(), "opc.tcp://"+id).Return(session, nil)
		session.EXPECT().Subscribe(gomock.Any()).Return(sub, nil)

		_, err := r.Register(context.Background(), id, "opc.tcp://"+id)
		require.NoError(t, err)

		subs = append(subs, sub)
	}

	return subs
}

func TestTickDrainsEveryServer(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	r := NewRegistry(nil, logger.NewTestLogger())
	subs := registerServers(t, ctrl, r, "a", "b", "c")

	subs[0].EXPECT().Drain(gomock.Any()).Return(nil)
	subs[1].EXPECT().Drain(gomock.Any()).Return(models.StatusBadNoSubscription)
	subs[2].EXPECT().Drain(gomock.Any()).Return(nil)

	p := NewPublisher(r, time.Second, nil, logger.NewTestLogger())

	// one failing server does not stop the others from being drained
	err := p.Tick(context.Background())
	require.ErrorIs(t, err, models.StatusBadNoSubscription)
}

func TestTickSkipsServerWithoutSubscription(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	dialer := NewMockDialer(ctrl)
	dialer.EXPECT().Dial(gomock.Any(), gomock.Any()).Return(nil, errDialRefused)

	r := NewRegistry(dialer, logger.NewTestLogger())
	_, _ = r.Register(context.Background(), "down", "opc.tcp://down")

	p := NewPublisher(r, time.Second, nil, logger.NewTestLogger())
	require.NoError(t, p.Tick(context.Background()))
}

func TestPublisherTicks(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	clock := NewMockClock(ctrl)
	ticker := NewMockTicker(ctrl)
	ticks := make(chan time.Time)

	clock.EXPECT().Ticker(250 * time.Millisecond).Return(ticker)
	ticker.EXPECT().Chan().Return(ticks).AnyTimes()
	ticker.EXPECT().Stop()

	r := NewRegistry(nil, logger.NewTestLogger())
	subs := registerServers(t, ctrl, r, "a")

	drained := make(chan struct{}, 2)
	subs[0].EXPECT().Drain(gomock.Any()).DoAndReturn(func(context.Context) error {
		drained <- struct{}{}

		return nil
	}).Times(2)

	p := NewPublisher(r, 250*time.Millisecond, clock, logger.NewTestLogger())
	p.Start(context.Background())

	for i := 0; i < 2; i++ {
		ticks <- time.Now()

		select {
		case <-drained:
		case <-time.After(time.Second):
			t.Fatalf("tick %d not driven", i)
		}
	}

	p.Stop()
	p.Stop()
}

func TestPublisherStopsOnContextCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	clock := NewMockClock(ctrl)
	ticker := NewMockTicker(ctrl)

	clock.EXPECT().Ticker(gomock.Any()).Return(ticker)
	ticker.EXPECT().Chan().Return(make(chan time.Time)).AnyTimes()

	stopped := make(chan struct{})
	ticker.EXPECT().Stop().Do(func() { close(stopped) })

	ctx, cancel := context.WithCancel(context.Background())

	p := NewPublisher(NewRegistry(nil, logger.NewTestLogger()), time.Second, clock, logger.NewTestLogger())
	p.Start(ctx)
	cancel()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("publisher did not stop")
	}

	assert.NotPanics(t, p.Stop)
}

// queuedSubscription applies queued values in Drain. Its first drain stalls
// after taking a value, as a slow local write would.
type queuedSubscription struct {
	queue chan int
	stall time.Duration

	mu      sync.Mutex
	drains  int
	applied []int
}

func (*queuedSubscription) Monitor(context.Context, nodeid.NodeID, DataChangeHandler) (uint32, error) {
	return 1, nil
}

func (q *queuedSubscription) Drain(context.Context) error {
	q.mu.Lock()
	q.drains++
	first := q.drains == 1
	q.mu.Unlock()

	for {
		select {
		case v := <-q.queue:
			if first {
				time.Sleep(q.stall)

				first = false
			}

			q.mu.Lock()
			q.applied = append(q.applied, v)
			q.mu.Unlock()
		default:
			return nil
		}
	}
}

func (q *queuedSubscription) appliedValues() []int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return append([]int(nil), q.applied...)
}

func TestOverlappingTicksKeepDeliveryOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sub := &queuedSubscription{queue: make(chan int, 4), stall: 300 * time.Millisecond}

	dialer := NewMockDialer(ctrl)
	session := NewMockSession(ctrl)

	dialer.EXPECT().Dial(gomock.Any(), "opc.tcp://plc1").Return(session, nil)
	session.EXPECT().Subscribe(gomock.Any()).Return(sub, nil)

	r := NewRegistry(dialer, logger.NewTestLogger())
	_, err := r.Register(context.Background(), "plc1", "opc.tcp://plc1")
	require.NoError(t, err)

	clock := NewMockClock(ctrl)
	ticker := NewMockTicker(ctrl)
	ticks := make(chan time.Time)

	clock.EXPECT().Ticker(gomock.Any()).Return(ticker)
	ticker.EXPECT().Chan().Return(ticks).AnyTimes()
	ticker.EXPECT().Stop()

	p := NewPublisher(r, 50*time.Millisecond, clock, logger.NewTestLogger())
	p.Start(context.Background())

	sub.queue <- 1
	ticks <- time.Now()

	time.Sleep(50 * time.Millisecond)

	// the first drain is still stalled when the second value and tick arrive
	sub.queue <- 2
	ticks <- time.Now()

	require.Eventually(t, func() bool {
		return len(sub.appliedValues()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	p.Stop()

	assert.Equal(t, []int{1, 2}, sub.appliedValues())
}
