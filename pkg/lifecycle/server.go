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

// Package lifecycle runs a service next to its gRPC health endpoint and ties
// both to process signals.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	ggrpc "github.com/carverauto/opcua-aggregator/pkg/grpc"
	"github.com/carverauto/opcua-aggregator/pkg/logger"
)

const defaultShutdownTimeout = 10 * time.Second

var (
	errServiceRequired = errors.New("service is required")
	errServiceStart    = errors.New("service failed to start")
)

// Service is a long-running component managed by RunServer.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// GRPCServiceRegistrar registers additional services on the gRPC server.
type GRPCServiceRegistrar func(*grpc.Server) error

// ServerOptions configures RunServer.
type ServerOptions struct {
	ListenAddr           string
	ServiceName          string
	Service              Service
	RegisterGRPCServices []GRPCServiceRegistrar
	EnableHealthCheck    bool
	ShutdownTimeout      time.Duration
	Logger               logger.Logger
}

// RunServer starts the service and, when a listen address is set, a gRPC
// server with the health service. It blocks until ctx is cancelled, SIGINT
// or SIGTERM arrives, or the gRPC server fails, then stops both.
func RunServer(ctx context.Context, opts *ServerOptions) error {
	if opts == nil || opts.Service == nil {
		return errServiceRequired
	}

	log := opts.Logger
	if log == nil {
		var err error

		if log, err = CreateComponentLogger("lifecycle", nil); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var server *ggrpc.Server

	errCh := make(chan error, 1)

	if opts.ListenAddr != "" {
		server = ggrpc.NewServer(opts.ListenAddr, log)

		for _, register := range opts.RegisterGRPCServices {
			if err := register(server.GetGRPCServer()); err != nil {
				return fmt.Errorf("failed to register gRPC service: %w", err)
			}
		}

		go func() {
			errCh <- server.Start()
		}()
	}

	if err := opts.Service.Start(ctx); err != nil {
		if server != nil {
			server.Stop(context.Background())
		}

		return fmt.Errorf("%w: %w", errServiceStart, err)
	}

	if server != nil && opts.EnableHealthCheck {
		server.SetServing(opts.ServiceName, true)
	}

	log.Info().Str("service", opts.ServiceName).Str("addr", opts.ListenAddr).Msg("Service started")

	var runErr error

	select {
	case <-ctx.Done():
		log.Info().Str("service", opts.ServiceName).Msg("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			runErr = fmt.Errorf("gRPC server failed: %w", err)
			log.Error().Err(err).Msg("gRPC server failed")
		}
	}

	timeout := opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if server != nil {
		server.Stop(shutdownCtx)
	}

	if err := opts.Service.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Str("service", opts.ServiceName).Msg("Service stop failed")

		return errors.Join(runErr, err)
	}

	log.Info().Str("service", opts.ServiceName).Msg("Service stopped")

	return runErr
}
