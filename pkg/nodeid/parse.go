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

package nodeid

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/google/uuid"
)

const guidTextLen = 36

type alternative struct {
	re   *regexp.Regexp
	kind IDType
}

// alternatives are tried in order. Within each identifier kind the forms are
// "ns=<n>;x=", "ns=<n>,x=" and "x=". Trailing text after the identifier
// token is ignored.
//
//nolint:gochecknoglobals // compiled once
var alternatives = buildAlternatives()

func buildAlternatives() []alternative {
	kinds := []struct {
		prefix string
		body   string
		kind   IDType
	}{
		{"i", `(\d+)`, TypeNumeric},
		{"s", `(\S+)`, TypeString},
		{"b", `(\S+)`, TypeByteString},
		{"g", `(\S+)`, TypeGUID},
	}

	out := make([]alternative, 0, len(kinds)*3)

	for _, k := range kinds {
		for _, head := range []string{`^ns=(\d+);`, `^ns=(\d+),`, `^()`} {
			out = append(out, alternative{
				re:   regexp.MustCompile(head + k.prefix + "=" + k.body),
				kind: k.kind,
			})
		}
	}

	return out
}

// Parse converts the textual form of a node id into a NodeID.
//
// It returns ErrMalformedIdentifier when no form matches and
// ErrInvalidGUIDFormat when a guid form matches but its body is not a
// 36 character guid literal.
func Parse(text string) (NodeID, error) {
	for _, alt := range alternatives {
		m := alt.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}

		ns, ok := parseNamespace(m[1])
		if !ok {
			continue
		}

		switch alt.kind {
		case TypeNumeric:
			v, err := strconv.ParseUint(m[2], 10, 32)
			if err != nil {
				continue
			}

			return NewNumeric(ns, uint32(v)), nil
		case TypeString:
			return NewString(ns, m[2]), nil
		case TypeByteString:
			return NewByteString(ns, m[2]), nil
		case TypeGUID:
			g, err := ParseGUID(m[2])
			if err != nil {
				return NodeID{}, err
			}

			return NewGUID(ns, g), nil
		}
	}

	return NodeID{}, fmt.Errorf("%w: %q", ErrMalformedIdentifier, text)
}

// MustParse is like Parse but panics on error. Intended for constants and tests.
func MustParse(text string) NodeID {
	id, err := Parse(text)
	if err != nil {
		panic(err)
	}

	return id
}

func parseNamespace(s string) (uint16, bool) {
	if s == "" {
		return 0, true
	}

	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, false
	}

	return uint16(v), true
}

// ParseGUID decodes a guid literal "xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx".
func ParseGUID(text string) (GUID, error) {
	if len(text) != guidTextLen {
		return GUID{}, fmt.Errorf("%w: got %q", ErrInvalidGUIDFormat, text)
	}

	u, err := uuid.Parse(text)
	if err != nil {
		return GUID{}, fmt.Errorf("%w: %w", ErrInvalidGUIDFormat, err)
	}

	var g GUID

	g.Data1 = uint32(u[0])<<24 | uint32(u[1])<<16 | uint32(u[2])<<8 | uint32(u[3])
	g.Data2 = uint16(u[4])<<8 | uint16(u[5])
	g.Data3 = uint16(u[6])<<8 | uint16(u[7])
	copy(g.Data4[:], u[8:])

	return g, nil
}
