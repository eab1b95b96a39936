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

package models

import "time"

// DataValue is a value as delivered by a data change notification.
type DataValue struct {
	Value    interface{}
	Status   StatusCode
	HasValue bool
}

// ValueChange describes a remote value that was applied to a mirrored local variable.
type ValueChange struct {
	ServerID     string      `json:"server_id"`
	LocalNodeID  string      `json:"local_node_id"`
	RemoteNodeID string      `json:"remote_node_id"`
	Value        interface{} `json:"value"`
	Time         time.Time   `json:"time"`
}
