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
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/opcua-aggregator/pkg/addrspace"
	"github.com/carverauto/opcua-aggregator/pkg/models"
	"github.com/carverauto/opcua-aggregator/pkg/nodeid"
)

func TestConfigDefaults(t *testing.T) {
	cfg := &Config{ModelPath: "model.yaml"}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":16664", cfg.ListenAddr)
	assert.Equal(t, "opcua-aggregator", cfg.ServiceName)
	assert.Equal(t, models.Duration(500*time.Millisecond), cfg.PublishInterval)
	assert.True(t, cfg.Echo())
	assert.Equal(t, "ns=2;i=3007", cfg.VariableType)
	assert.Equal(t, DefaultDescriptorPath(), cfg.DescriptorPath)
	assert.Equal(t, models.Duration(10*time.Second), cfg.Client.DialTimeout)
	assert.Equal(t, models.Duration(5*time.Second), cfg.Client.RequestTimeout)
	assert.Equal(t, models.Duration(500*time.Millisecond), cfg.Client.SubscriptionInterval)

	path, err := cfg.descriptorPath()
	require.NoError(t, err)
	require.Len(t, path, 5)
	assert.Equal(t, addrspace.Organizes, path[0].ReferenceType)
	assert.Equal(t, nodeid.QualifiedName{Namespace: 2, Name: "AutomationMLLibraries"}, path[0].TargetName)
	assert.Equal(t, addrspace.HasComponent, path[4].ReferenceType)
	assert.Equal(t, nodeid.QualifiedName{Name: "OPCUA-Server"}, path[4].TargetName)
}

func TestConfigFromJSON(t *testing.T) {
	raw := `{
		"model_path": "/etc/serviceradar/aml.yaml",
		"listen_addr": ":4000",
		"publish_interval": "1s",
		"echo_remote_changes": false,
		"variable_type": "ns=4;s=MirrorType",
		"client": {"dial_timeout": "3s"}
	}`

	var cfg Config
	require.NoError(t, json.Unmarshal([]byte(raw), &cfg))
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":4000", cfg.ListenAddr)
	assert.Equal(t, models.Duration(time.Second), cfg.PublishInterval)
	assert.False(t, cfg.Echo())
	assert.Equal(t, models.Duration(3*time.Second), cfg.Client.DialTimeout)
}

func TestConfigValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"missing model", Config{}, ErrModelPathRequired},
		{"negative interval", Config{ModelPath: "m", PublishInterval: models.Duration(-time.Second)}, ErrInvalidInterval},
		{"bad variable type", Config{ModelPath: "m", VariableType: "q=1"}, ErrInvalidVariableType},
		{
			"bad reference type",
			Config{ModelPath: "m", DescriptorPath: []PathSegment{{ReferenceType: "Likes", TargetName: "x"}}},
			ErrInvalidDescriptorPath,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.ErrorIs(t, err, tt.want)
		})
	}
}
