// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/united-manufacturing-hub/gantry-core/pkg/communicator/api"
	"github.com/united-manufacturing-hub/gantry-core/pkg/communicator/publisher"
	"github.com/united-manufacturing-hub/gantry-core/pkg/config"
	"github.com/united-manufacturing-hub/gantry-core/pkg/constants"
	"github.com/united-manufacturing-hub/gantry-core/pkg/fsm/gantry"
	"github.com/united-manufacturing-hub/gantry-core/pkg/logger"
	"github.com/united-manufacturing-hub/gantry-core/pkg/metrics"
	"github.com/united-manufacturing-hub/gantry-core/pkg/sentry"
	"github.com/united-manufacturing-hub/gantry-core/pkg/service/actuator"
	"github.com/united-manufacturing-hub/gantry-core/pkg/stallchecker"
	"github.com/united-manufacturing-hub/gantry-core/pkg/version"
)

func main() {
	// The config decides the log level, so it is loaded with a bootstrap logger
	bootstrap := logger.New(string(logger.InfoLevel), logger.FormatConsole).Sugar().Named(logger.ComponentConfigLoad)
	cfg, err := config.LoadConfigWithEnvOverrides(config.ConfigPath(), bootstrap)
	if err != nil {
		bootstrap.Errorf("Failed to load config: %s", err)
		os.Exit(1)
	}

	logger.Initialize(cfg.Agent.LogLevel, logger.ParseFormat(cfg.Agent.LogFormat), sentry.WrapCore)
	defer func() { _ = logger.Sync() }()

	sentry.InitSentry(cfg.Agent.SentryDSN, version.GetAppVersion())
	defer sentry.Flush(2 * time.Second)

	log := logger.For(logger.ComponentCore)
	log.Infof("Starting gantry-core %s", version.GetAppVersion())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		sentry.ReportIssuef(sentry.IssueTypeFatal, log, "gantry-core stopped with error: %s", err)
		os.Exit(1)
	}
	log.Info("gantry-core stopped")
}

func run(ctx context.Context, cfg config.FullConfig, log *zap.SugaredLogger) error {
	home, err := cfg.HomePosition()
	if err != nil {
		return err
	}
	source, err := cfg.Source()
	if err != nil {
		return err
	}
	destination, err := cfg.Destination()
	if err != nil {
		return err
	}

	// Motion
	simulator := actuator.NewSimulator(cfg.Simulator, logger.For(logger.ComponentSimulator))
	act := actuator.NewActuator(simulator, home, cfg.Actuator.Config, logger.For(logger.ComponentActuator))

	// Sequence
	controller := gantry.NewGantryInstance(act, gantry.Config{
		ID:            "gantry",
		LiftingHeight: cfg.Sequence.LiftingHeight,
		Source:        source,
		Destination:   destination,
	}, logger.For(logger.ComponentGantry))
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		if err := controller.Close(closeCtx); err != nil {
			log.Warnf("Controller did not stop in time: %s", err)
		}
	}()

	stall := stallchecker.NewStallChecker(act.LastProgress, controller.InFlightSince,
		constants.StallThreshold, constants.StallCheckInterval)
	defer stall.Stop()

	// Streams
	pub := publisher.NewPublisher(controller, cfg.Stream.PublishInterval, logger.For(logger.ComponentPublisher))
	if cfg.Stream.MQTT.BrokerURL != "" {
		sink, err := publisher.NewMQTTSink(ctx, cfg.Stream.MQTT, logger.For(logger.ComponentMQTTSink))
		if err != nil {
			// Without a broker the websocket stream still works
			sentry.ReportServiceError(log, cfg.Stream.MQTT.ClientID, "mqtt-sink", "connect",
				fmt.Errorf("MQTT publishing disabled: %w", err))
		} else {
			pub.AddSink(sink)
			defer sink.Close()
		}
	}

	// Transport
	server, err := api.NewServer(controller, pub, &api.ServerConfig{
		Port:          cfg.Agent.HTTPPort,
		Debug:         cfg.Agent.Debug,
		MaxGoroutines: api.DefaultServerConfig().MaxGoroutines,
	}, logger.For(logger.ComponentAPIServer))
	if err != nil {
		return err
	}

	metricsServer := metrics.SetupMetricsEndpoint(fmt.Sprintf(":%d", cfg.Agent.MetricsPort))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx)
	})
	g.Go(func() error {
		return pub.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		if err := server.Stop(shutdownCtx); err != nil {
			log.Warnf("Failed to stop API server: %s", err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Warnf("Failed to stop metrics server: %s", err)
		}
		return nil
	})

	return g.Wait()
}
