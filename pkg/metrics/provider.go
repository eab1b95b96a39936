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

// Package metrics wires OpenTelemetry counters for value propagation.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/carverauto/opcua-aggregator/pkg/models"
)

// ErrMetricsDisabled is returned by Init when no exporter is configured.
var ErrMetricsDisabled = errors.New("metrics exporter disabled")

const (
	defaultServiceName    = "opcua-aggregator"
	defaultExportInterval = 15 * time.Second
)

// Config selects the OTLP collector that receives propagation metrics.
type Config struct {
	Enabled     bool            `json:"enabled"`
	Endpoint    string          `json:"endpoint"`
	Insecure    bool            `json:"insecure"`
	Interval    models.Duration `json:"interval"`
	ServiceName string          `json:"service_name"`
}

// Init installs a global MeterProvider exporting over OTLP/gRPC. The returned
// function flushes and stops the pipeline.
func Init(ctx context.Context, config *Config) (func(context.Context) error, error) {
	if config == nil || !config.Enabled || config.Endpoint == "" {
		return nil, ErrMetricsDisabled
	}

	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(config.Endpoint),
	}

	if config.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}

	serviceName := config.ServiceName
	if serviceName == "" {
		serviceName = defaultServiceName
	}

	interval := time.Duration(config.Interval)
	if interval <= 0 {
		interval = defaultExportInterval
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)

	otel.SetMeterProvider(provider)

	return provider.Shutdown, nil
}
