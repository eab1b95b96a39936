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

package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriterLevels(t *testing.T) {
	var buf bytes.Buffer

	log, err := NewWithWriter(&Config{Level: "warn"}, &buf)
	require.NoError(t, err)

	log.Info().Msg("dropped")
	assert.Zero(t, buf.Len())

	log.Warn().Str("server_id", "srvA").Msg("kept")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "srvA", entry["server_id"])
	assert.Equal(t, "kept", entry["message"])
}

func TestDebugOverridesLevel(t *testing.T) {
	var buf bytes.Buffer

	log, err := NewWithWriter(&Config{Level: "error", Debug: true}, &buf)
	require.NoError(t, err)

	log.Debug().Msg("visible")
	assert.NotZero(t, buf.Len())
}

func TestInvalidLevel(t *testing.T) {
	_, err := NewWithWriter(&Config{Level: "loud"}, &bytes.Buffer{})
	require.Error(t, err)
}

func TestSetDebug(t *testing.T) {
	var buf bytes.Buffer

	log, err := NewWithWriter(&Config{Level: "info"}, &buf)
	require.NoError(t, err)

	log.SetDebug(true)
	log.Debug().Msg("one")
	assert.NotZero(t, buf.Len())

	buf.Reset()
	log.SetDebug(false)
	log.Debug().Msg("two")
	assert.Zero(t, buf.Len())

	log.SetLevel(zerolog.ErrorLevel)
	log.Warn().Msg("three")
	assert.Zero(t, buf.Len())
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer

	log, err := NewWithWriter(&Config{}, &buf)
	require.NoError(t, err)

	Component(log, "registry").Info().Msg("hello")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "registry", entry["component"])
}

func TestDefaultConfigFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_OUTPUT", "stderr")
	t.Setenv("DEBUG", "yes")

	cfg := DefaultConfig()
	assert.Equal(t, "debug", cfg.Level)
	assert.Equal(t, "stderr", cfg.Output)
	assert.True(t, cfg.Debug)
}

func TestTestLoggerDiscards(t *testing.T) {
	log := NewTestLogger()

	assert.Nil(t, log.Error(), "disabled logger hands out nil events")
	log.Error().Msg("nothing happens")
}
