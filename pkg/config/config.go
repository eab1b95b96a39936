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

// Package config loads service configuration from a JSON file or from the
// environment and validates it.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"

	"github.com/carverauto/opcua-aggregator/pkg/logger"
)

var (
	errInvalidConfigSource = errors.New("invalid CONFIG_SOURCE value")
	errLoadConfigFailed    = errors.New("failed to load configuration")
	errInvalidConfigPtr    = errors.New("config must be a non-nil pointer")
)

const (
	configSourceFile = "file"
	configSourceEnv  = "env"

	// DefaultEnvPrefix prefixes every environment override, e.g. AGGREGATOR_MODEL_PATH.
	DefaultEnvPrefix = "AGGREGATOR_"
)

// ConfigLoader fills dst from a configuration source.
type ConfigLoader interface {
	Load(ctx context.Context, path string, dst interface{}) error
}

// Validator is implemented by configuration types that check and default themselves.
type Validator interface {
	Validate() error
}

// Config holds the configuration loading dependencies.
type Config struct {
	defaultLoader ConfigLoader
	envLoader     *EnvConfigLoader
	logger        logger.Logger
}

// NewConfig initializes a new Config instance with a file loader and an
// environment overlay. If log is nil a warn-level stderr logger is used.
func NewConfig(log logger.Logger) *Config {
	if log == nil {
		log = createBasicLogger()
	}

	return &Config{
		defaultLoader: &FileConfigLoader{},
		envLoader:     NewEnvConfigLoader(DefaultEnvPrefix, log),
		logger:        log,
	}
}

func createBasicLogger() logger.Logger {
	log, err := logger.NewWithWriter(&logger.Config{Level: "warn"}, os.Stderr)
	if err != nil {
		return logger.NewTestLogger()
	}

	return log
}

// SetEnvPrefix changes the prefix used for environment overrides.
func (c *Config) SetEnvPrefix(prefix string) {
	c.envLoader = NewEnvConfigLoader(prefix, c.logger)
}

// LoadAndValidate loads configuration into cfg and validates it.
//
// CONFIG_SOURCE selects the source: "file" (default) reads the JSON file at
// path and then applies environment overrides on top, "env" reads the
// environment only.
func (c *Config) LoadAndValidate(ctx context.Context, path string, cfg interface{}) error {
	if v := reflect.ValueOf(cfg); !v.IsValid() || v.Kind() != reflect.Ptr || v.IsNil() {
		return errInvalidConfigPtr
	}

	source := os.Getenv("CONFIG_SOURCE")
	if source == "" {
		source = configSourceFile
	}

	switch source {
	case configSourceFile:
		if err := c.defaultLoader.Load(ctx, path, cfg); err != nil {
			return fmt.Errorf("%w: %w", errLoadConfigFailed, err)
		}

		if err := c.envLoader.Load(ctx, path, cfg); err != nil {
			return fmt.Errorf("%w: %w", errLoadConfigFailed, err)
		}
	case configSourceEnv:
		if err := c.envLoader.Load(ctx, path, cfg); err != nil {
			return fmt.Errorf("%w: %w", errLoadConfigFailed, err)
		}
	default:
		return fmt.Errorf("%w: %s", errInvalidConfigSource, source)
	}

	c.logger.Debug().
		Str("source", source).
		Str("path", path).
		Msg("Loaded configuration")

	return ValidateConfig(cfg)
}

// ValidateConfig validates cfg if it implements Validator.
func ValidateConfig(cfg interface{}) error {
	v, ok := cfg.(Validator)
	if !ok {
		return nil
	}

	return v.Validate()
}
