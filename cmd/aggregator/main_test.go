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

package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/opcua-aggregator/pkg/addrspace"
	"github.com/carverauto/opcua-aggregator/pkg/aggregator"
	"github.com/carverauto/opcua-aggregator/pkg/config"
	"github.com/carverauto/opcua-aggregator/pkg/logger"
	"github.com/carverauto/opcua-aggregator/pkg/nodeid"
	"github.com/carverauto/opcua-aggregator/pkg/uaclient"
)

func TestSampleConfig(t *testing.T) {
	var cfg aggregator.Config

	require.NoError(t, config.NewConfig(logger.NewTestLogger()).LoadAndValidate(context.Background(), "config/opcua-aggregator.json", &cfg))

	assert.Equal(t, ":16664", cfg.ListenAddr)
	assert.Equal(t, 500*time.Millisecond, time.Duration(cfg.PublishInterval))
	assert.True(t, cfg.Echo())
	assert.Equal(t, 10*time.Second, time.Duration(cfg.Client.DialTimeout))
	require.NotNil(t, cfg.NATS)
	assert.False(t, cfg.NATS.Enabled)

	space := addrspace.New()
	require.NoError(t, space.LoadFile("config/plant.yaml"))

	value, err := space.ReadValue(nodeid.NewNumeric(3, 8201))
	require.NoError(t, err)
	assert.InDelta(t, 21.5, value, 0)

	_, err = aggregator.New(&cfg, space, uaclient.NewDialer(&cfg.Client, logger.NewTestLogger()), logger.NewTestLogger())
	require.NoError(t, err)
}
