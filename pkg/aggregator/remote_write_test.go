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
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/carverauto/opcua-aggregator/pkg/addrspace"
	"github.com/carverauto/opcua-aggregator/pkg/logger"
)

func addressSpaceClient(t *testing.T, f *fixture) *addrspace.Client {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	require.NoError(t, addrspace.NewService(f.space.Space, logger.NewTestLogger()).Register(server))

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

	return addrspace.NewClient(conn)
}

func TestClientWriteForwardsOnce(t *testing.T) {
	for _, echo := range []bool{true, false} {
		f := discovered(t, echo)
		client := addressSpaceClient(t, f)
		ctx := context.Background()

		f.session.EXPECT().Write(gomock.Any(), remoteTemperature, 17.5).Return(nil).Times(1)

		require.NoError(t, client.Write(ctx, temperature.String(), 17.5))

		value, _, err := client.Read(ctx, temperature.String())
		require.NoError(t, err)
		assert.InDelta(t, 17.5, value, 0)
	}
}

func TestClientWriteRejectedNotForwarded(t *testing.T) {
	f := discovered(t, true)
	client := addressSpaceClient(t, f)

	// no Write expectation: a forwarded value would fail the test
	require.Error(t, client.Write(context.Background(), temperature.String(), "warm"))
}
