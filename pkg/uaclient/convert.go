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

package uaclient

import (
	"errors"
	"fmt"

	"github.com/gopcua/opcua/ua"

	"github.com/carverauto/opcua-aggregator/pkg/models"
	"github.com/carverauto/opcua-aggregator/pkg/nodeid"
)

var errUnsupportedID = errors.New("unsupported node id type")

// toUA converts a node id into its wire representation.
func toUA(id nodeid.NodeID) (*ua.NodeID, error) {
	switch id.Type {
	case nodeid.TypeNumeric:
		return ua.NewNumericNodeID(id.Namespace, id.Numeric), nil
	case nodeid.TypeString:
		return ua.NewStringNodeID(id.Namespace, id.Text), nil
	case nodeid.TypeByteString:
		return ua.NewByteStringNodeID(id.Namespace, []byte(id.Text)), nil
	case nodeid.TypeGUID:
		return ua.NewGUIDNodeID(id.Namespace, id.GUID.String()), nil
	default:
		return nil, fmt.Errorf("%w: %s", errUnsupportedID, id.Type)
	}
}

// toDataValue converts a notification value. A missing value or variant is
// reported through HasValue.
func toDataValue(dv *ua.DataValue) models.DataValue {
	if dv == nil {
		return models.DataValue{Status: models.StatusBadInternalError}
	}

	out := models.DataValue{Status: models.StatusCode(dv.Status)}

	if dv.Value != nil && dv.EncodingMask&ua.DataValueValue != 0 {
		out.Value = dv.Value.Value()
		out.HasValue = true
	}

	return out
}

// statusError attaches the status code carried by err, if any, as a
// models.StatusCode so callers can report it.
func statusError(err error) error {
	if err == nil {
		return nil
	}

	var code ua.StatusCode
	if errors.As(err, &code) {
		return fmt.Errorf("%w: %w", models.StatusCode(code), err)
	}

	return err
}
