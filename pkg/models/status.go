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

import (
	"errors"
	"fmt"
)

// StatusCode is an OPC UA status code. The two most significant bits carry the
// severity: 00 good, 01 uncertain, 10 bad.
type StatusCode uint32

const (
	StatusGood                StatusCode = 0x00000000
	StatusUncertain           StatusCode = 0x40000000
	StatusBad                 StatusCode = 0x80000000
	StatusBadInternalError    StatusCode = 0x80020000
	StatusBadTimeout          StatusCode = 0x800A0000
	StatusBadNodeIDUnknown    StatusCode = 0x80340000
	StatusBadAttributeInvalid StatusCode = 0x80350000
	StatusBadNotWritable      StatusCode = 0x803B0000
	StatusBadTypeMismatch     StatusCode = 0x80740000
	StatusBadNoSubscription   StatusCode = 0x80790000
	StatusBadNotConnected     StatusCode = 0x808A0000
)

const severityMask = 0xC0000000

//nolint:gochecknoglobals // read-only lookup table
var statusNames = map[StatusCode]string{
	StatusGood:                "Good",
	StatusUncertain:           "Uncertain",
	StatusBad:                 "Bad",
	StatusBadInternalError:    "BadInternalError",
	StatusBadTimeout:          "BadTimeout",
	StatusBadNodeIDUnknown:    "BadNodeIdUnknown",
	StatusBadAttributeInvalid: "BadAttributeIdInvalid",
	StatusBadNotWritable:      "BadNotWritable",
	StatusBadTypeMismatch:     "BadTypeMismatch",
	StatusBadNoSubscription:   "BadNoSubscription",
	StatusBadNotConnected:     "BadNotConnected",
}

// IsGood reports whether the severity bits are 00.
func (s StatusCode) IsGood() bool {
	return s&severityMask == 0
}

// IsBad reports whether the severity bits are 10.
func (s StatusCode) IsBad() bool {
	return s&severityMask == 0x80000000
}

func (s StatusCode) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}

	return fmt.Sprintf("0x%08X", uint32(s))
}

// Error lets a status code travel through the usual error wrapping.
func (s StatusCode) Error() string {
	return fmt.Sprintf("status %s (0x%08X)", s.String(), uint32(s))
}

// StatusOf extracts the status code carried by err. A nil error is Good and an
// error without a status code is BadInternalError.
func StatusOf(err error) StatusCode {
	if err == nil {
		return StatusGood
	}

	var code StatusCode
	if errors.As(err, &code) {
		return code
	}

	return StatusBadInternalError
}
