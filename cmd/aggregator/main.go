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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"

	"github.com/carverauto/opcua-aggregator/pkg/addrspace"
	"github.com/carverauto/opcua-aggregator/pkg/aggregator"
	"github.com/carverauto/opcua-aggregator/pkg/changefeed"
	"github.com/carverauto/opcua-aggregator/pkg/config"
	"github.com/carverauto/opcua-aggregator/pkg/lifecycle"
	"github.com/carverauto/opcua-aggregator/pkg/logger"
	"github.com/carverauto/opcua-aggregator/pkg/metrics"
	"github.com/carverauto/opcua-aggregator/pkg/uaclient"
)

var (
	errFailedToLoadConfig = errors.New("failed to load config")
	errFailedToLoadModel  = errors.New("failed to load address space model")
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/serviceradar/opcua-aggregator.json", "Path to aggregator config file")
	flag.Parse()

	ctx := context.Background()

	// Step 1: Load configuration
	var cfg aggregator.Config

	if err := config.NewConfig(nil).LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		return fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
	}

	// Step 2: Create logger from loaded config
	logConfig := cfg.Logging
	if logConfig == nil {
		logConfig = &logger.Config{
			Level:  "info",
			Output: "stdout",
		}
	}

	aggLogger, err := lifecycle.CreateComponentLogger("opcua-aggregator", logConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	// Step 3: Build the local address space from the model
	space := addrspace.New()
	if err := space.LoadFile(cfg.ModelPath); err != nil {
		return fmt.Errorf("%w: %w", errFailedToLoadModel, err)
	}

	opts := []aggregator.Option{}

	// Step 4: Optional metrics and change feed
	shutdownMetrics, err := metrics.Init(ctx, cfg.Metrics)

	switch {
	case errors.Is(err, metrics.ErrMetricsDisabled):
		aggLogger.Debug().Msg("Metrics exporter disabled")
	case err != nil:
		return err
	default:
		defer func() {
			if err := shutdownMetrics(context.Background()); err != nil {
				aggLogger.Warn().Err(err).Msg("Failed to flush metrics")
			}
		}()

		propagation, err := metrics.NewPropagation(nil)
		if err != nil {
			return err
		}

		opts = append(opts, aggregator.WithMetrics(propagation))
	}

	if cfg.NATS != nil && cfg.NATS.Enabled {
		feed, err := changefeed.Connect(ctx, cfg.NATS, aggLogger)
		if err != nil {
			return err
		}

		defer func() {
			if err := feed.Close(); err != nil {
				aggLogger.Warn().Err(err).Msg("Failed to close change feed")
			}
		}()

		opts = append(opts, aggregator.WithChangeSink(feed))
	}

	// Step 5: Create the aggregator with the gopcua dialer
	agg, err := aggregator.New(&cfg, space, uaclient.NewDialer(&cfg.Client, aggLogger), aggLogger, opts...)
	if err != nil {
		return err
	}

	// Step 6: Serve health and the address space over gRPC
	registrars := []lifecycle.GRPCServiceRegistrar{
		addrspace.NewService(space, aggLogger).Register,
	}

	return lifecycle.RunServer(ctx, &lifecycle.ServerOptions{
		ListenAddr:           cfg.ListenAddr,
		ServiceName:          cfg.ServiceName,
		Service:              agg,
		RegisterGRPCServices: registrars,
		EnableHealthCheck:    true,
		Logger:               aggLogger,
	})
}
