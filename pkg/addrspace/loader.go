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
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/carverauto/opcua-aggregator/pkg/nodeid"
)

var (
	errNoNodeID        = errors.New("node id missing")
	errUnknownRefName  = errors.New("unknown reference type")
	errUnknownClassStr = errors.New("unknown node class name")
)

// Model is the YAML nodeset format: a flat list of nodes, each with its own
// outgoing references. Namespace URIs are informational.
type Model struct {
	Namespaces []string    `yaml:"namespaces"`
	Nodes      []ModelNode `yaml:"nodes"`
}

// ModelNode is one node of a Model.
type ModelNode struct {
	ID             string           `yaml:"id"`
	Class          string           `yaml:"class"`
	BrowseName     string           `yaml:"browse_name"`
	DataType       string           `yaml:"data_type,omitempty"`
	Value          interface{}      `yaml:"value,omitempty"`
	Parent         string           `yaml:"parent,omitempty"`
	ParentRef      string           `yaml:"parent_ref,omitempty"`
	TypeDefinition string           `yaml:"type_definition,omitempty"`
	References     []ModelReference `yaml:"references,omitempty"`
}

// ModelReference is an outgoing (or, with Inverse, incoming) reference.
type ModelReference struct {
	Type    string `yaml:"type"`
	Target  string `yaml:"target"`
	Inverse bool   `yaml:"inverse,omitempty"`
}

//nolint:gochecknoglobals // name lookup
var classNames = map[string]NodeClass{
	"Object":        ClassObject,
	"Variable":      ClassVariable,
	"Method":        ClassMethod,
	"ObjectType":    ClassObjectType,
	"VariableType":  ClassVariableType,
	"ReferenceType": ClassReferenceType,
	"DataType":      ClassDataType,
	"View":          ClassView,
}

// LoadFile reads a YAML model from path into s.
func (s *Space) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open model '%s': %w", path, err)
	}
	defer f.Close()

	if err := s.Load(f); err != nil {
		return fmt.Errorf("failed to load model '%s': %w", path, err)
	}

	return nil
}

// Load decodes a YAML model from r into s. All nodes are added before any
// reference so references may point forward in the file.
func (s *Space) Load(r io.Reader) error {
	var m Model

	if err := yaml.NewDecoder(r).Decode(&m); err != nil {
		return fmt.Errorf("failed to decode model: %w", err)
	}

	return s.Apply(&m)
}

// Apply adds the nodes and references of m to s.
func (s *Space) Apply(m *Model) error {
	ids := make([]nodeid.NodeID, len(m.Nodes))

	for i := range m.Nodes {
		mn := &m.Nodes[i]

		spec, err := mn.spec()
		if err != nil {
			return fmt.Errorf("node %d (%s): %w", i, mn.ID, err)
		}

		if err := s.AddNode(spec); err != nil {
			return err
		}

		ids[i] = spec.ID
	}

	for i := range m.Nodes {
		if err := s.applyReferences(ids[i], &m.Nodes[i]); err != nil {
			return fmt.Errorf("node %s: %w", m.Nodes[i].ID, err)
		}
	}

	return nil
}

func (mn *ModelNode) spec() (NodeSpec, error) {
	if mn.ID == "" {
		return NodeSpec{}, errNoNodeID
	}

	id, err := nodeid.Parse(mn.ID)
	if err != nil {
		return NodeSpec{}, err
	}

	class, ok := classNames[mn.Class]
	if !ok {
		return NodeSpec{}, fmt.Errorf("%w: %q", errUnknownClassStr, mn.Class)
	}

	name, err := nodeid.ParseQualifiedName(mn.BrowseName)
	if err != nil {
		return NodeSpec{}, err
	}

	spec := NodeSpec{ID: id, Class: class, BrowseName: name, DataType: mn.DataType}

	if class == ClassVariable || class == ClassVariableType {
		spec.Value, err = coerce(mn.DataType, mn.Value)
		if err != nil {
			return NodeSpec{}, err
		}
	}

	return spec, nil
}

func (s *Space) applyReferences(id nodeid.NodeID, mn *ModelNode) error {
	if mn.Parent != "" {
		parent, err := nodeid.Parse(mn.Parent)
		if err != nil {
			return fmt.Errorf("parent: %w", err)
		}

		refName := mn.ParentRef
		if refName == "" {
			refName = defaultParentRef(mn.Class)
		}

		refType, err := ReferenceTypeID(refName)
		if err != nil {
			return err
		}

		if err := s.AddReference(parent, refType, id); err != nil {
			return err
		}
	}

	if mn.TypeDefinition != "" {
		typeDef, err := nodeid.Parse(mn.TypeDefinition)
		if err != nil {
			return fmt.Errorf("type definition: %w", err)
		}

		if err := s.AddReference(id, HasTypeDefinition, typeDef); err != nil {
			return err
		}
	}

	for _, ref := range mn.References {
		refType, err := ReferenceTypeID(ref.Type)
		if err != nil {
			return err
		}

		target, err := nodeid.Parse(ref.Target)
		if err != nil {
			return fmt.Errorf("reference target: %w", err)
		}

		source := id
		if ref.Inverse {
			source, target = target, id
		}

		if err := s.AddReference(source, refType, target); err != nil {
			return err
		}
	}

	return nil
}

func defaultParentRef(class string) string {
	switch class {
	case "ObjectType", "VariableType", "ReferenceType", "DataType":
		return "HasSubtype"
	default:
		return "HasComponent"
	}
}

// ReferenceTypeID accepts a standard reference type name such as "HasComponent"
// or a node id.
func ReferenceTypeID(s string) (nodeid.NodeID, error) {
	if id, ok := referenceTypeNames[s]; ok {
		return id, nil
	}

	if strings.Contains(s, "=") {
		return nodeid.Parse(s)
	}

	return nodeid.NodeID{}, fmt.Errorf("%w: %q", errUnknownRefName, s)
}
