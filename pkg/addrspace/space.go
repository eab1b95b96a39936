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

// Package addrspace is an in-memory OPC UA address space: typed nodes joined by
// typed references, with browsing, browse path resolution, value access and
// write intercepts.
package addrspace

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/carverauto/opcua-aggregator/pkg/models"
	"github.com/carverauto/opcua-aggregator/pkg/nodeid"
)

var (
	ErrNodeExists      = errors.New("node already exists")
	ErrNoMatch         = errors.New("browse path has no match")
	errNotVariable     = errors.New("node is not a variable")
	errNotRefType      = errors.New("node is not a reference type")
	errUnknownClass    = errors.New("unknown node class")
	errUnknownDataType = errors.New("unknown data type")
	errBadValue        = errors.New("value does not fit data type")
)

// NodeClass is the OPC UA node class of a node.
type NodeClass uint8

const (
	ClassObject NodeClass = iota + 1
	ClassVariable
	ClassMethod
	ClassObjectType
	ClassVariableType
	ClassReferenceType
	ClassDataType
	ClassView
)

// BrowseDirection selects which side of a reference is followed.
type BrowseDirection uint8

const (
	BrowseForward BrowseDirection = iota
	BrowseInverse
	BrowseBoth
)

// Reference is one browse result.
type Reference struct {
	ReferenceType nodeid.NodeID
	IsForward     bool
	NodeID        nodeid.NodeID
	BrowseName    nodeid.QualifiedName
	NodeClass     NodeClass
}

// PathElement is one hop of a relative browse path.
type PathElement struct {
	ReferenceType   nodeid.NodeID
	IncludeSubtypes bool
	Inverse         bool
	TargetName      nodeid.QualifiedName
}

// WriteIntercept observes every successful value write on a variable. It runs
// synchronously on the writer's goroutine, after the value is stored.
type WriteIntercept func(ctx context.Context, node nodeid.NodeID, value interface{})

// NodeSpec describes a node to add.
type NodeSpec struct {
	ID         nodeid.NodeID
	Class      NodeClass
	BrowseName nodeid.QualifiedName
	DataType   string
	Value      interface{}
}

type node struct {
	spec      NodeSpec
	intercept WriteIntercept
}

type edge struct {
	refType nodeid.NodeID
	other   nodeid.NodeID
}

// Space is safe for concurrent use.
type Space struct {
	mu      sync.RWMutex
	nodes   map[nodeid.NodeID]*node
	forward map[nodeid.NodeID][]edge
	inverse map[nodeid.NodeID][]edge
}

// New returns a Space seeded with the namespace 0 reference types, base types
// and folder skeleton.
func New() *Space {
	s := &Space{
		nodes:   make(map[nodeid.NodeID]*node),
		forward: make(map[nodeid.NodeID][]edge),
		inverse: make(map[nodeid.NodeID][]edge),
	}

	for _, sn := range standardNodes() {
		s.nodes[sn.id] = &node{spec: NodeSpec{
			ID:         sn.id,
			Class:      sn.class,
			BrowseName: nodeid.QualifiedName{Name: sn.name},
		}}

		if !sn.parent.IsNull() {
			s.link(sn.parent, sn.ref, sn.id)
		}
	}

	return s
}

func notFound(id nodeid.NodeID) error {
	return fmt.Errorf("%w: %s", models.StatusBadNodeIDUnknown, id)
}

// AddNode inserts a node. References are added separately.
func (s *Space) AddNode(spec NodeSpec) error {
	if spec.Class < ClassObject || spec.Class > ClassView {
		return fmt.Errorf("%w: %d", errUnknownClass, spec.Class)
	}

	if spec.Class == ClassVariable || spec.Class == ClassVariableType {
		if _, ok := dataTypes[spec.DataType]; !ok {
			return fmt.Errorf("%w: %q", errUnknownDataType, spec.DataType)
		}

		if spec.Value != nil && !valueMatches(spec.DataType, spec.Value) {
			return fmt.Errorf("%w: %s value %T for %s", models.StatusBadTypeMismatch, spec.DataType, spec.Value, spec.ID)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.nodes[spec.ID]; exists {
		return fmt.Errorf("%w: %s", ErrNodeExists, spec.ID)
	}

	s.nodes[spec.ID] = &node{spec: spec}

	return nil
}

// AddReference adds a forward reference source -> target of refType.
func (s *Space) AddReference(source, refType, target nodeid.NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range []nodeid.NodeID{source, target} {
		if _, ok := s.nodes[id]; !ok {
			return notFound(id)
		}
	}

	rt, ok := s.nodes[refType]
	if !ok {
		return notFound(refType)
	}

	if rt.spec.Class != ClassReferenceType {
		return fmt.Errorf("%w: %s", errNotRefType, refType)
	}

	s.link(source, refType, target)

	return nil
}

func (s *Space) link(source, refType, target nodeid.NodeID) {
	s.forward[source] = append(s.forward[source], edge{refType: refType, other: target})
	s.inverse[target] = append(s.inverse[target], edge{refType: refType, other: source})
}

// Node returns a copy of the node's description.
func (s *Space) Node(id nodeid.NodeID) (NodeSpec, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[id]
	if !ok {
		return NodeSpec{}, false
	}

	return n.spec, true
}

// isSubtypeLocked reports whether refType equals base or derives from it.
func (s *Space) isSubtypeLocked(refType, base nodeid.NodeID) bool {
	seen := make(map[nodeid.NodeID]struct{})

	for cur := refType; ; {
		if cur == base {
			return true
		}

		if _, loop := seen[cur]; loop {
			return false
		}

		seen[cur] = struct{}{}

		parent, ok := s.supertypeLocked(cur)
		if !ok {
			return false
		}

		cur = parent
	}
}

func (s *Space) supertypeLocked(id nodeid.NodeID) (nodeid.NodeID, bool) {
	for _, e := range s.inverse[id] {
		if e.refType == HasSubtype {
			return e.other, true
		}
	}

	return nodeid.NodeID{}, false
}

// IsSubtype reports whether refType equals base or derives from it through HasSubtype.
func (s *Space) IsSubtype(refType, base nodeid.NodeID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.isSubtypeLocked(refType, base)
}

func (s *Space) refMatches(have, want nodeid.NodeID, includeSubtypes bool) bool {
	if want.IsNull() || have == want {
		return true
	}

	return includeSubtypes && s.isSubtypeLocked(have, want)
}

// Browse lists the references of id in the given direction. A null refType
// matches every reference.
func (s *Space) Browse(id nodeid.NodeID, dir BrowseDirection, refType nodeid.NodeID, includeSubtypes bool) ([]Reference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.nodes[id]; !ok {
		return nil, notFound(id)
	}

	var out []Reference

	collect := func(edges []edge, forward bool) {
		for _, e := range edges {
			if !s.refMatches(e.refType, refType, includeSubtypes) {
				continue
			}

			ref := Reference{ReferenceType: e.refType, IsForward: forward, NodeID: e.other}
			if other, ok := s.nodes[e.other]; ok {
				ref.BrowseName = other.spec.BrowseName
				ref.NodeClass = other.spec.Class
			}

			out = append(out, ref)
		}
	}

	if dir == BrowseForward || dir == BrowseBoth {
		collect(s.forward[id], true)
	}

	if dir == BrowseInverse || dir == BrowseBoth {
		collect(s.inverse[id], false)
	}

	return out, nil
}

// ResolvePath follows path from start and returns every node reached by the
// last element. It returns ErrNoMatch when nothing is reached.
func (s *Space) ResolvePath(start nodeid.NodeID, path []PathElement) ([]nodeid.NodeID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.nodes[start]; !ok {
		return nil, notFound(start)
	}

	current := []nodeid.NodeID{start}

	for i, el := range path {
		var next []nodeid.NodeID

		seen := make(map[nodeid.NodeID]struct{})

		for _, id := range current {
			edges := s.forward[id]
			if el.Inverse {
				edges = s.inverse[id]
			}

			for _, e := range edges {
				if !s.refMatches(e.refType, el.ReferenceType, el.IncludeSubtypes) {
					continue
				}

				target, ok := s.nodes[e.other]
				if !ok || target.spec.BrowseName != el.TargetName {
					continue
				}

				if _, dup := seen[e.other]; dup {
					continue
				}

				seen[e.other] = struct{}{}
				next = append(next, e.other)
			}
		}

		if len(next) == 0 {
			return nil, fmt.Errorf("%w: element %d (%s)", ErrNoMatch, i, el.TargetName)
		}

		current = next
	}

	return current, nil
}

// ReadValue returns the value attribute of a variable.
func (s *Space) ReadValue(id nodeid.NodeID) (interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[id]
	if !ok {
		return nil, notFound(id)
	}

	if n.spec.Class != ClassVariable {
		return nil, fmt.Errorf("%w: %w: %s", models.StatusBadAttributeInvalid, errNotVariable, id)
	}

	return n.spec.Value, nil
}

// DataType returns the declared data type name of a variable.
func (s *Space) DataType(id nodeid.NodeID) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[id]
	if !ok {
		return "", notFound(id)
	}

	return n.spec.DataType, nil
}

// WriteValue stores value on a variable and then runs the variable's write
// intercept, if any, outside the store lock.
func (s *Space) WriteValue(ctx context.Context, id nodeid.NodeID, value interface{}) error {
	s.mu.Lock()

	n, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()

		return notFound(id)
	}

	if n.spec.Class != ClassVariable {
		s.mu.Unlock()

		return fmt.Errorf("%w: %w: %s", models.StatusBadAttributeInvalid, errNotVariable, id)
	}

	if !valueMatches(n.spec.DataType, value) {
		s.mu.Unlock()

		return fmt.Errorf("%w: %s expects %s, got %T", models.StatusBadTypeMismatch, id, n.spec.DataType, value)
	}

	n.spec.Value = value
	intercept := n.intercept

	s.mu.Unlock()

	if intercept != nil {
		intercept(ctx, id, value)
	}

	return nil
}

// SetWriteIntercept installs fn on a variable, replacing any previous intercept.
func (s *Space) SetWriteIntercept(id nodeid.NodeID, fn WriteIntercept) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[id]
	if !ok {
		return notFound(id)
	}

	if n.spec.Class != ClassVariable {
		return fmt.Errorf("%w: %w: %s", models.StatusBadAttributeInvalid, errNotVariable, id)
	}

	n.intercept = fn

	return nil
}

// Len returns the number of nodes.
func (s *Space) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.nodes)
}
