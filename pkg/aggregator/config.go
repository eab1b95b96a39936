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
	"fmt"
	"time"

	"github.com/carverauto/opcua-aggregator/pkg/addrspace"
	"github.com/carverauto/opcua-aggregator/pkg/changefeed"
	"github.com/carverauto/opcua-aggregator/pkg/logger"
	"github.com/carverauto/opcua-aggregator/pkg/metrics"
	"github.com/carverauto/opcua-aggregator/pkg/models"
	"github.com/carverauto/opcua-aggregator/pkg/nodeid"
)

const (
	defaultListenAddr           = ":16664"
	defaultServiceName          = "opcua-aggregator"
	defaultPublishInterval      = 500 * time.Millisecond
	defaultVariableType         = "ns=2;i=3007"
	defaultDialTimeout          = 10 * time.Second
	defaultRequestTimeout       = 5 * time.Second
	defaultSubscriptionInterval = 500 * time.Millisecond
)

// PathSegment is one hop of a configured browse path.
type PathSegment struct {
	ReferenceType   string `json:"reference_type"`
	TargetName      string `json:"target_name"`
	IncludeSubtypes bool   `json:"include_subtypes,omitempty"`
	Inverse         bool   `json:"inverse,omitempty"`
}

// ClientConfig tunes the outbound sessions to remote servers.
type ClientConfig struct {
	DialTimeout          models.Duration `json:"dial_timeout"`
	RequestTimeout       models.Duration `json:"request_timeout"`
	SubscriptionInterval models.Duration `json:"subscription_interval"`
}

// Config represents aggregator configuration.
type Config struct {
	ListenAddr        string             `json:"listen_addr"`
	ServiceName       string             `json:"service_name"`
	ModelPath         string             `json:"model_path"`
	PublishInterval   models.Duration    `json:"publish_interval"`
	EchoRemoteChanges *bool              `json:"echo_remote_changes,omitempty"` // forward remote-originated local writes back to the remote
	DescriptorPath    []PathSegment      `json:"descriptor_path,omitempty"`
	VariableType      string             `json:"variable_type"`
	Client            ClientConfig       `json:"client"`
	NATS              *changefeed.Config `json:"nats,omitempty"`
	Metrics           *metrics.Config    `json:"metrics,omitempty"`
	Logging           *logger.Config     `json:"logging,omitempty"`
}

// DefaultDescriptorPath leads from the ObjectTypes folder to the
// AutomationML OPCUA-Server role class.
func DefaultDescriptorPath() []PathSegment {
	return []PathSegment{
		{ReferenceType: "Organizes", TargetName: "2:AutomationMLLibraries"},
		{ReferenceType: "Organizes", TargetName: "2:RoleClassLibs"},
		{ReferenceType: "Organizes", TargetName: "DataVariableRoleClassLib"},
		{ReferenceType: "HasComponent", TargetName: "DataSource"},
		{ReferenceType: "HasComponent", TargetName: "OPCUA-Server"},
	}
}

// Validate implements config.Validator interface.
func (c *Config) Validate() error {
	if c.ModelPath == "" {
		return ErrModelPathRequired
	}

	if c.ListenAddr == "" {
		c.ListenAddr = defaultListenAddr
	}

	if c.ServiceName == "" {
		c.ServiceName = defaultServiceName
	}

	if c.PublishInterval == 0 {
		c.PublishInterval = models.Duration(defaultPublishInterval)
	}

	if c.PublishInterval < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, time.Duration(c.PublishInterval))
	}

	if c.EchoRemoteChanges == nil {
		echo := true
		c.EchoRemoteChanges = &echo
	}

	if len(c.DescriptorPath) == 0 {
		c.DescriptorPath = DefaultDescriptorPath()
	}

	if _, err := c.descriptorPath(); err != nil {
		return err
	}

	if c.VariableType == "" {
		c.VariableType = defaultVariableType
	}

	if _, err := nodeid.Parse(c.VariableType); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidVariableType, err)
	}

	if c.Client.DialTimeout <= 0 {
		c.Client.DialTimeout = models.Duration(defaultDialTimeout)
	}

	if c.Client.RequestTimeout <= 0 {
		c.Client.RequestTimeout = models.Duration(defaultRequestTimeout)
	}

	if c.Client.SubscriptionInterval <= 0 {
		c.Client.SubscriptionInterval = models.Duration(defaultSubscriptionInterval)
	}

	if c.NATS != nil {
		if err := c.NATS.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// Echo reports whether remote-originated changes are written back to the remote.
func (c *Config) Echo() bool {
	return c.EchoRemoteChanges == nil || *c.EchoRemoteChanges
}

func (c *Config) descriptorPath() ([]addrspace.PathElement, error) {
	path := make([]addrspace.PathElement, 0, len(c.DescriptorPath))

	for i, seg := range c.DescriptorPath {
		refType, err := addrspace.ReferenceTypeID(seg.ReferenceType)
		if err != nil {
			return nil, fmt.Errorf("%w: segment %d: %w", ErrInvalidDescriptorPath, i, err)
		}

		name, err := nodeid.ParseQualifiedName(seg.TargetName)
		if err != nil {
			return nil, fmt.Errorf("%w: segment %d: %w", ErrInvalidDescriptorPath, i, err)
		}

		path = append(path, addrspace.PathElement{
			ReferenceType:   refType,
			IncludeSubtypes: seg.IncludeSubtypes,
			Inverse:         seg.Inverse,
			TargetName:      name,
		})
	}

	return path, nil
}
