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
	"errors"
)

var (
	// ErrEndpointUnreachable means the session to a remote server could not be opened.
	ErrEndpointUnreachable = errors.New("endpoint unreachable")
	// ErrSubscriptionUnavailable means a server has no subscription; it still accepts writes.
	ErrSubscriptionUnavailable = errors.New("subscription unavailable")
	ErrServerNotFound          = errors.New("server not found")
	ErrPropertyMissing         = errors.New("property missing")
	ErrPropertyTypeMismatch    = errors.New("property type mismatch")
	ErrRemoteWriteFailed       = errors.New("remote write failed")
	ErrLocalWriteFailed        = errors.New("local write failed")

	ErrModelPathRequired     = errors.New("model_path is required")
	ErrInvalidInterval       = errors.New("publish_interval must be positive")
	ErrInvalidDescriptorPath = errors.New("invalid descriptor_path")
	ErrInvalidVariableType   = errors.New("invalid variable_type")
	errAlreadyStarted        = errors.New("aggregator already started")
)
