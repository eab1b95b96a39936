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

import "errors"

var (
	// ErrMalformedIdentifier is returned when no identifier form matches the text.
	ErrMalformedIdentifier = errors.New("malformed node identifier")
	// ErrInvalidGUIDFormat is returned when a g= identifier carries a bad guid body.
	ErrInvalidGUIDFormat = errors.New(`guid must be of the form "00000000-0000-0000-0000-000000000000"`)
)
