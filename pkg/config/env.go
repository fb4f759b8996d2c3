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

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/united-manufacturing-hub/gantry-core/pkg/constants"
	"github.com/united-manufacturing-hub/gantry-core/pkg/env"
	"github.com/united-manufacturing-hub/gantry-core/pkg/sentry"
)

// ConfigPath returns the config file location, CONFIG_PATH or the default.
func ConfigPath() string {
	path, _ := env.GetAsString("CONFIG_PATH", false, constants.DefaultConfigPath)
	return path
}

// LoadFile reads the config file at path on top of the defaults. Keys missing
// in the file keep their default. A missing file yields the defaults.
func LoadFile(path string, log *zap.SugaredLogger) (FullConfig, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Infof("No config file at %s, using defaults", path)
		return cfg, nil
	}
	if err != nil {
		return FullConfig{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return FullConfig{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads the config file and applies the
// environment overrides on top. The result is validated.
func LoadConfigWithEnvOverrides(path string, log *zap.SugaredLogger) (FullConfig, error) {
	cfg, err := LoadFile(path, log)
	if err != nil {
		return FullConfig{}, err
	}

	applyEnvOverrides(&cfg, log)

	if err := cfg.Validate(); err != nil {
		return FullConfig{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides replaces config values with set environment variables.
// The env getters fall back to the current value for unset or unparsable variables.
func applyEnvOverrides(cfg *FullConfig, log *zap.SugaredLogger) {
	var err error

	warn := func(key string, err error) {
		if err != nil {
			sentry.ReportIssuef(sentry.IssueTypeWarning, log, "Failed to get %s: %s", key, err)
		}
	}

	cfg.Agent.LogLevel, err = env.GetAsString("LOGGING_LEVEL", false, cfg.Agent.LogLevel)
	warn("LOGGING_LEVEL", err)
	cfg.Agent.LogFormat, err = env.GetAsString("LOGGING_FORMAT", false, cfg.Agent.LogFormat)
	warn("LOGGING_FORMAT", err)
	cfg.Agent.HTTPPort, err = env.GetAsInt("HTTP_PORT", false, cfg.Agent.HTTPPort)
	warn("HTTP_PORT", err)
	cfg.Agent.MetricsPort, err = env.GetAsInt("METRICS_PORT", false, cfg.Agent.MetricsPort)
	warn("METRICS_PORT", err)
	cfg.Agent.SentryDSN, err = env.GetAsString("SENTRY_DSN", false, cfg.Agent.SentryDSN)
	warn("SENTRY_DSN", err)
	cfg.Agent.Debug, err = env.GetAsBool("DEBUG", false, cfg.Agent.Debug)
	warn("DEBUG", err)

	cfg.Actuator.TickPeriod, err = env.GetAsDuration("TICK_PERIOD", false, cfg.Actuator.TickPeriod)
	warn("TICK_PERIOD", err)
	cfg.Actuator.GripperDelay, err = env.GetAsDuration("GRIPPER_DELAY", false, cfg.Actuator.GripperDelay)
	warn("GRIPPER_DELAY", err)
	cfg.Actuator.MotionTimeout, err = env.GetAsDuration("MOTION_TIMEOUT", false, cfg.Actuator.MotionTimeout)
	warn("MOTION_TIMEOUT", err)

	cfg.Simulator.MaxStep, err = env.GetAsFloat("SIM_MAX_STEP", false, cfg.Simulator.MaxStep)
	warn("SIM_MAX_STEP", err)

	cfg.Stream.MQTT.BrokerURL, err = env.GetAsString("MQTT_BROKER_URL", false, cfg.Stream.MQTT.BrokerURL)
	warn("MQTT_BROKER_URL", err)
	cfg.Stream.MQTT.Topic, err = env.GetAsString("MQTT_TOPIC", false, cfg.Stream.MQTT.Topic)
	warn("MQTT_TOPIC", err)
}
