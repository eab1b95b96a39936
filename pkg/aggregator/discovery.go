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

	"github.com/carverauto/opcua-aggregator/pkg/addrspace"
	"github.com/carverauto/opcua-aggregator/pkg/nodeid"
)

const (
	propServerID     = "ID"
	propDiscoveryURL = "DiscoveryURL"
	propNodeID       = "NodeId"
	propDataSource   = "RefDataSource"
)

// Skip records a model entity that discovery passed over.
type Skip struct {
	NodeID nodeid.NodeID
	Reason error
}

// DiscoveryReport summarizes one discovery run.
type DiscoveryReport struct {
	Servers int
	Mirrors int
	Skipped []Skip
}

func (r *DiscoveryReport) skip(id nodeid.NodeID, err error) {
	r.Skipped = append(r.Skipped, Skip{NodeID: id, Reason: err})
}

// Discover scans the model once: it registers every described remote server
// and then binds every mirrorable variable to its server. Bad entities are
// logged and skipped.
func (a *Aggregator) Discover(ctx context.Context) *DiscoveryReport {
	report := &DiscoveryReport{}

	a.discoverServers(ctx, report)
	a.discoverVariables(ctx, report)

	a.logger.Info().
		Int("servers", report.Servers).
		Int("mirrors", report.Mirrors).
		Int("skipped", len(report.Skipped)).
		Msg("Discovery complete")

	return report
}

func (a *Aggregator) discoverServers(ctx context.Context, report *DiscoveryReport) {
	types, err := a.space.ResolvePath(addrspace.ObjectTypesFolder, a.descriptorPath)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Server descriptor type not found in model")

		return
	}

	for _, typeID := range types {
		refs, err := a.space.Browse(typeID, addrspace.BrowseInverse, addrspace.NonHierarchicalReferences, true)
		if err != nil {
			a.logger.Warn().Err(err).Str("node_id", typeID.String()).Msg("Could not browse server descriptors")

			continue
		}

		for _, ref := range refs {
			a.discoverServer(ctx, ref.NodeID, report)
		}
	}
}

func (a *Aggregator) discoverServer(ctx context.Context, node nodeid.NodeID, report *DiscoveryReport) {
	id, err := a.childText(node, addrspace.HasProperty, propServerID)
	if err != nil {
		a.logger.Info().Err(err).Str("node_id", node.String()).Msg("Skipping server descriptor")
		report.skip(node, err)

		return
	}

	url, err := a.childText(node, addrspace.HasComponent, propDiscoveryURL)
	if err != nil {
		a.logger.Info().Err(err).
			Str("node_id", node.String()).
			Str("server_id", id).
			Msg("Skipping server descriptor")
		report.skip(node, err)

		return
	}

	// registration failures leave a degraded entry and are logged by the registry
	_, _ = a.registry.Register(ctx, id, url)
	report.Servers++
}

func (a *Aggregator) discoverVariables(ctx context.Context, report *DiscoveryReport) {
	refs, err := a.space.Browse(a.variableType, addrspace.BrowseInverse, addrspace.HasTypeDefinition, false)
	if err != nil {
		a.logger.Warn().Err(err).Str("node_id", a.variableType.String()).Msg("Mirrorable variable type not found in model")

		return
	}

	for _, ref := range refs {
		if ref.BrowseName.Name != propNodeID {
			continue
		}

		if err := a.discoverVariable(ctx, ref.NodeID); err != nil {
			a.logger.Info().Err(err).Str("node_id", ref.NodeID.String()).Msg("Skipping mirrored variable")
			report.skip(ref.NodeID, err)

			continue
		}

		report.Mirrors++
	}
}

func (a *Aggregator) discoverVariable(ctx context.Context, prop nodeid.NodeID) error {
	parents, err := a.space.Browse(prop, addrspace.BrowseInverse, addrspace.HasComponent, false)
	if err != nil {
		return err
	}

	if len(parents) == 0 {
		return fmt.Errorf("%w: no parent variable for %s", ErrPropertyMissing, prop)
	}

	local := parents[0].NodeID

	text, err := a.readText(prop)
	if err != nil {
		return err
	}

	remote, err := nodeid.Parse(text)
	if err != nil {
		return fmt.Errorf("could not parse remote node id %q: %w", text, err)
	}

	serverID, err := a.childText(local, addrspace.HasComponent, propDataSource)
	if err != nil {
		return err
	}

	server := a.registry.Find(serverID)
	if server == nil {
		return fmt.Errorf("%w: %q", ErrServerNotFound, serverID)
	}

	a.logger.Info().
		Str("node_id", local.String()).
		Str("remote_node_id", text).
		Str("server_id", serverID).
		Str("discovery_url", server.DiscoveryURL).
		Msg("Found remote variable")

	return a.bind(ctx, server, local, remote)
}

// bind creates a mirror: it installs the local write intercept and the remote
// monitored item. A missing subscription leaves the mirror write-only.
func (a *Aggregator) bind(ctx context.Context, server *RemoteServer, local, remote nodeid.NodeID) error {
	if len(a.mirrors.ForLocal(local)) == 0 {
		if err := a.space.SetWriteIntercept(local, a.interceptLocalWrite); err != nil {
			return fmt.Errorf("could not intercept writes on %s: %w", local, err)
		}
	}

	m := &Mirror{Local: local, Remote: remote, Server: server}
	a.mirrors.add(m)

	item, err := server.Monitor(ctx, remote, a.dataChangeHandler(m))
	if err != nil {
		a.logger.Warn().Err(err).
			Str("server_id", server.ID).
			Str("remote_node_id", remote.String()).
			Msg("Could not create a monitored item for the variable")

		return nil
	}

	m.setMonitoredItem(item)

	a.logger.Info().
		Str("server_id", server.ID).
		Str("remote_node_id", remote.String()).
		Uint32("monitored_item", item).
		Msg("Added monitored item")

	return nil
}

// childText reads the string value of the child of parent reached over refType
// with browse name name.
func (a *Aggregator) childText(parent, refType nodeid.NodeID, name string) (string, error) {
	ids, err := a.space.ResolvePath(parent, []addrspace.PathElement{{
		ReferenceType: refType,
		TargetName:    nodeid.QualifiedName{Name: name},
	}})
	if err != nil {
		return "", fmt.Errorf("%w: %s of %s", ErrPropertyMissing, name, parent)
	}

	return a.readText(ids[0])
}

// readText reads a scalar, non-empty string value.
func (a *Aggregator) readText(id nodeid.NodeID) (string, error) {
	v, err := a.space.ReadValue(id)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrPropertyMissing, id, err)
	}

	if v == nil {
		return "", fmt.Errorf("%w: %s has no value", ErrPropertyMissing, id)
	}

	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s holds %T", ErrPropertyTypeMismatch, id, v)
	}

	if s == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrPropertyMissing, id)
	}

	return s, nil
}
