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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/opcua-aggregator/pkg/addrspace"
	"github.com/carverauto/opcua-aggregator/pkg/logger"
	"github.com/carverauto/opcua-aggregator/pkg/nodeid"
)

func skipsFor(report *DiscoveryReport, id string) []Skip {
	var out []Skip

	for _, s := range report.Skipped {
		if s.NodeID == nodeid.MustParse(id) {
			out = append(out, s)
		}
	}

	return out
}

func TestDiscover(t *testing.T) {
	f := newFixture(t, true)

	report := f.agg.Discover(context.Background())

	// one good descriptor and one without a DiscoveryURL
	assert.Equal(t, 1, report.Servers)
	assert.Equal(t, 1, f.agg.Registry().Len())
	require.NotNil(t, f.agg.Registry().Find("plc1"))
	assert.Nil(t, f.agg.Registry().Find("plc2"))

	plc2 := skipsFor(report, "ns=3;i=8177")
	require.Len(t, plc2, 1)
	require.ErrorIs(t, plc2[0].Reason, ErrPropertyMissing)

	// Temperature and Level bind; Pressure has a malformed id and Flow an unknown server
	assert.Equal(t, 2, report.Mirrors)
	assert.Len(t, report.Skipped, 3)

	pressure := skipsFor(report, "ns=3;i=8205")
	require.Len(t, pressure, 1)
	require.ErrorIs(t, pressure[0].Reason, nodeid.ErrMalformedIdentifier)

	flow := skipsFor(report, "ns=3;i=8208")
	require.Len(t, flow, 1)
	require.ErrorIs(t, flow[0].Reason, ErrServerNotFound)

	mirrors := f.agg.Mirrors().All()
	require.Len(t, mirrors, 2)

	assert.Equal(t, temperature, mirrors[0].Local)
	assert.Equal(t, remoteTemperature, mirrors[0].Remote)
	assert.Equal(t, "plc1", mirrors[0].Server.ID)

	assert.Equal(t, level, mirrors[1].Local)
	assert.Equal(t, nodeid.NewGUID(1, nodeid.GUID{
		Data1: 0x72962B91,
		Data2: 0xFA75,
		Data3: 0x4AE6,
		Data4: [8]byte{0x8D, 0x28, 0xB4, 0x04, 0xDC, 0x7D, 0xAF, 0x63},
	}), mirrors[1].Remote)

	for _, m := range mirrors {
		_, ok := m.MonitoredItem()
		assert.True(t, ok)
		assert.Contains(t, f.handlers, m.Remote)
	}
}

func TestDiscoverWithoutSubscription(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	space := addrspace.New()
	require.NoError(t, space.LoadFile("testdata/model.yaml"))

	dialer := NewMockDialer(ctrl)
	dialer.EXPECT().Dial(gomock.Any(), plc1URL).Return(nil, errDialRefused)

	agg, err := New(testConfig(true), space, dialer, logger.NewTestLogger())
	require.NoError(t, err)

	report := agg.Discover(context.Background())

	// the unreachable server is still registered and its mirrors still bound
	assert.Equal(t, 1, report.Servers)
	assert.Equal(t, 2, report.Mirrors)

	for _, m := range agg.Mirrors().All() {
		_, ok := m.MonitoredItem()
		assert.False(t, ok)
	}
}

const minimalModel = `
nodes:
  - id: ns=2;i=5001
    class: Object
    browse_name: 2:AutomationMLLibraries
    parent: i=88
    parent_ref: Organizes
  - id: ns=2;i=3007
    class: VariableType
    browse_name: 2:AMLVariableType
    parent: i=63
  - id: ns=3;i=1
    class: Variable
    browse_name: Orphan
    parent: i=85
    type_definition: ns=2;i=3007
    data_type: Int32
    value: 5
  - id: ns=3;i=2
    class: Variable
    browse_name: NodeId
    parent: ns=3;i=1
    parent_ref: HasProperty
    type_definition: ns=2;i=3007
    data_type: String
    value: ns=1;i=1
  - id: ns=3;i=3
    class: Variable
    browse_name: Typed
    parent: i=85
    data_type: Int32
  - id: ns=3;i=4
    class: Variable
    browse_name: NodeId
    parent: ns=3;i=3
    type_definition: ns=2;i=3007
    data_type: Int32
    value: 12
`

func TestDiscoverSkipsBadVariables(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	space := addrspace.New()
	require.NoError(t, space.Load(strings.NewReader(minimalModel)))

	agg, err := New(testConfig(true), space, NewMockDialer(ctrl), logger.NewTestLogger())
	require.NoError(t, err)

	report := agg.Discover(context.Background())
	assert.Zero(t, report.Servers, "descriptor path does not resolve")
	assert.Zero(t, report.Mirrors)
	require.Len(t, report.Skipped, 2)

	// NodeId attached over HasProperty has no HasComponent parent
	require.ErrorIs(t, skipsFor(report, "ns=3;i=2")[0].Reason, ErrPropertyMissing)
	require.ErrorIs(t, skipsFor(report, "ns=3;i=4")[0].Reason, ErrPropertyTypeMismatch)
}

func TestDiscoverCustomDescriptorPath(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	space := addrspace.New()
	require.NoError(t, space.LoadFile("testdata/model.yaml"))

	cfg := testConfig(true)
	cfg.DescriptorPath = []PathSegment{
		{ReferenceType: "HierarchicalReferences", TargetName: "2:AutomationMLLibraries", IncludeSubtypes: true},
		{ReferenceType: "HierarchicalReferences", TargetName: "2:RoleClassLibs", IncludeSubtypes: true},
		{ReferenceType: "HierarchicalReferences", TargetName: "DataVariableRoleClassLib", IncludeSubtypes: true},
		{ReferenceType: "HierarchicalReferences", TargetName: "DataSource", IncludeSubtypes: true},
		{ReferenceType: "HierarchicalReferences", TargetName: "OPCUA-Server", IncludeSubtypes: true},
	}
	require.NoError(t, cfg.Validate())

	session := NewMockSession(ctrl)
	dialer := NewMockDialer(ctrl)
	dialer.EXPECT().Dial(gomock.Any(), plc1URL).Return(session, nil)
	session.EXPECT().Subscribe(gomock.Any()).Return(nil, errDialRefused)

	agg, err := New(cfg, space, dialer, logger.NewTestLogger())
	require.NoError(t, err)

	report := agg.Discover(context.Background())
	assert.Equal(t, 1, report.Servers)
}
