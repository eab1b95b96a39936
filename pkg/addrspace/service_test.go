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


package addrspace

import (
	"context"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/carverauto/opcua-aggregator/pkg/logger"
	"github.com/carverauto/opcua-aggregator/pkg/nodeid"
)

func startServiceClient(t *testing.T, s *Space) *Client {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	require.NoError(t, NewService(s, logger.NewTestLogger()).Register(server))

	go func() {
		_ = server.Serve(lis)
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		server.Stop()
	})

	return NewClient(conn)
}

func TestServiceRead(t *testing.T) {
	client := startServiceClient(t, loadTestModel(t))
	ctx := context.Background()

	value, dataType, err := client.Read(ctx, "ns=3;i=8201")
	require.NoError(t, err)
	assert.Equal(t, "Double", dataType)
	assert.InDelta(t, 21.5, value, 0)

	value, dataType, err = client.Read(ctx, "ns=3;s=Line1.Counters")
	require.NoError(t, err)
	assert.Equal(t, "UInt32", dataType)
	assert.Equal(t, []interface{}{1.0, 2.0, 3.0}, value)
}

func TestServiceWriteRunsIntercept(t *testing.T) {
	s := loadTestModel(t)
	client := startServiceClient(t, s)
	temperature := nodeid.MustParse("ns=3;i=8201")

	var (
		mu   sync.Mutex
		seen []interface{}
	)

	require.NoError(t, s.SetWriteIntercept(temperature, func(_ context.Context, _ nodeid.NodeID, value interface{}) {
		mu.Lock()
		seen = append(seen, value)
		mu.Unlock()
	}))

	require.NoError(t, client.Write(context.Background(), "ns=3;i=8201", 19.25))

	mu.Lock()
	assert.Equal(t, []interface{}{19.25}, seen)
	mu.Unlock()

	v, err := s.ReadValue(temperature)
	require.NoError(t, err)
	assert.InDelta(t, 19.25, v, 0)
}

func TestServiceWriteCoercesToDataType(t *testing.T) {
	s := loadTestModel(t)
	client := startServiceClient(t, s)

	require.NoError(t, client.Write(context.Background(), "ns=3;s=Line1.Counters", []interface{}{4, 5}))

	v, err := s.ReadValue(nodeid.MustParse("ns=3;s=Line1.Counters"))
	require.NoError(t, err)
	assert.Equal(t, []uint32{4, 5}, v)
}

func TestServiceErrors(t *testing.T) {
	client := startServiceClient(t, loadTestModel(t))
	ctx := context.Background()

	read := func(id string) func() error {
		return func() error {
			_, _, err := client.Read(ctx, id)

			return err
		}
	}

	write := func(id string, value interface{}) func() error {
		return func() error {
			return client.Write(ctx, id, value)
		}
	}

	tests := []struct {
		name string
		call func() error
		code codes.Code
	}{
		{
			name: "missing node id",
			call: read(""),
			code: codes.InvalidArgument,
		},
		{
			name: "malformed node id",
			call: read("ns=x"),
			code: codes.InvalidArgument,
		},
		{
			name: "unknown node",
			call: read("ns=3;i=99999"),
			code: codes.NotFound,
		},
		{
			name: "wrong value type",
			call: write("ns=3;i=8201", "hot"),
			code: codes.InvalidArgument,
		},
		{
			name: "not a variable",
			call: write("i=85", 1.0),
			code: codes.InvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.Equal(t, tt.code, status.Code(err))
		})
	}
}
