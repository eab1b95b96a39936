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

// Package nodeid parses and renders OPC UA node identifiers as they appear in
// the textual attributes of an information model.
package nodeid

import (
	"fmt"
	"strconv"
	"strings"
)

// IDType discriminates the identifier payload of a NodeID.
type IDType uint8

const (
	TypeNumeric IDType = iota
	TypeString
	TypeByteString
	TypeGUID
)

func (t IDType) String() string {
	switch t {
	case TypeNumeric:
		return "numeric"
	case TypeString:
		return "string"
	case TypeByteString:
		return "bytestring"
	case TypeGUID:
		return "guid"
	default:
		return "unknown"
	}
}

// GUID is a 16 byte identifier. Data4 is kept in display order.
type GUID struct {
	Data1 uint32
	Data2 uint16
	Data3 uint16
	Data4 [8]byte
}

func (g GUID) String() string {
	return fmt.Sprintf("%08X-%04X-%04X-%02X%02X-%02X%02X%02X%02X%02X%02X",
		g.Data1, g.Data2, g.Data3,
		g.Data4[0], g.Data4[1],
		g.Data4[2], g.Data4[3], g.Data4[4], g.Data4[5], g.Data4[6], g.Data4[7])
}

// NodeID identifies a node in an OPC UA address space. Only the field selected
// by Type carries the payload; Text holds both string and byte-string payloads.
// NodeID values are comparable and may be used as map keys.
type NodeID struct {
	Namespace uint16
	Type      IDType
	Numeric   uint32
	Text      string
	GUID      GUID
}

// NewNumeric returns a numeric node id.
func NewNumeric(ns uint16, id uint32) NodeID {
	return NodeID{Namespace: ns, Type: TypeNumeric, Numeric: id}
}

// NewString returns a string node id.
func NewString(ns uint16, id string) NodeID {
	return NodeID{Namespace: ns, Type: TypeString, Text: id}
}

// NewByteString returns a byte-string node id. The payload is kept verbatim.
func NewByteString(ns uint16, id string) NodeID {
	return NodeID{Namespace: ns, Type: TypeByteString, Text: id}
}

// NewGUID returns a guid node id.
func NewGUID(ns uint16, id GUID) NodeID {
	return NodeID{Namespace: ns, Type: TypeGUID, GUID: id}
}

// IsNull reports whether n is the null node id (ns=0;i=0).
func (n NodeID) IsNull() bool {
	return n == NodeID{}
}

// String renders n in the form accepted by Parse.
func (n NodeID) String() string {
	var b strings.Builder

	if n.Namespace != 0 {
		b.WriteString("ns=")
		b.WriteString(strconv.FormatUint(uint64(n.Namespace), 10))
		b.WriteByte(';')
	}

	switch n.Type {
	case TypeNumeric:
		b.WriteString("i=")
		b.WriteString(strconv.FormatUint(uint64(n.Numeric), 10))
	case TypeString:
		b.WriteString("s=")
		b.WriteString(n.Text)
	case TypeByteString:
		b.WriteString("b=")
		b.WriteString(n.Text)
	case TypeGUID:
		b.WriteString("g=")
		b.WriteString(n.GUID.String())
	}

	return b.String()
}

// QualifiedName is a namespace qualified browse name.
type QualifiedName struct {
	Namespace uint16
	Name      string
}

// ParseQualifiedName accepts "<ns>:<name>" or a bare name in namespace 0.
func ParseQualifiedName(s string) (QualifiedName, error) {
	idx := strings.IndexByte(s, ':')
	if idx <= 0 {
		return QualifiedName{Name: s}, nil
	}

	ns, err := strconv.ParseUint(s[:idx], 10, 16)
	if err != nil {
		// a colon inside the name itself, e.g. "urn:x"
		return QualifiedName{Name: s}, nil //nolint:nilerr // not a namespace prefix
	}

	return QualifiedName{Namespace: uint16(ns), Name: s[idx+1:]}, nil
}

func (q QualifiedName) String() string {
	if q.Namespace == 0 {
		return q.Name
	}

	return strconv.FormatUint(uint64(q.Namespace), 10) + ":" + q.Name
}
