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
	"time"

	"github.com/tiendc/go-deepcopy"

	"github.com/united-manufacturing-hub/gantry-core/pkg/communicator/publisher"
	"github.com/united-manufacturing-hub/gantry-core/pkg/constants"
	"github.com/united-manufacturing-hub/gantry-core/pkg/models"
	"github.com/united-manufacturing-hub/gantry-core/pkg/service/actuator"
)

// FullConfig is the content of the config file.
type FullConfig struct {
	Agent     AgentConfig              `yaml:"agent"`
	Actuator  ActuatorConfig           `yaml:"actuator"`
	Simulator actuator.SimulatorConfig `yaml:"simulator"`
	Stream    StreamConfig             `yaml:"stream"`
	Sequence  SequenceConfig           `yaml:"sequence"`
}

// AgentConfig holds process level settings.
type AgentConfig struct {
	LogLevel    string `yaml:"logLevel"`
	LogFormat   string `yaml:"logFormat"`
	HTTPPort    int    `yaml:"httpPort"`
	MetricsPort int    `yaml:"metricsPort"`
	SentryDSN   string `yaml:"sentryDSN,omitempty"`
	Debug       bool   `yaml:"debug"`
}

type ActuatorConfig struct {
	actuator.Config `yaml:",inline"`
	HomePosition    models.Position `yaml:"homePosition"`
}

type StreamConfig struct {
	PublishInterval time.Duration `yaml:"publishInterval"`
	// MQTT is only used when mqtt.brokerURL is set.
	MQTT publisher.MQTTConfig `yaml:"mqtt"`
}

type SequenceConfig struct {
	LiftingHeight float64         `yaml:"liftingHeight"`
	Source        models.Position `yaml:"source"`
	Destination   models.Position `yaml:"destination"`
}

var defaultConfig = FullConfig{
	Agent: AgentConfig{
		LogLevel:    "PRODUCTION",
		LogFormat:   "console",
		HTTPPort:    constants.DefaultHTTPPort,
		MetricsPort: constants.DefaultMetricsPort,
	},
	Actuator: ActuatorConfig{
		Config:       actuator.DefaultConfig(),
		HomePosition: models.Position{X: 0, Y: 0, Z: 500},
	},
	Simulator: actuator.DefaultSimulatorConfig(),
	Stream: StreamConfig{
		PublishInterval: constants.DefaultStreamPublishInterval,
		MQTT:            publisher.DefaultMQTTConfig(),
	},
	Sequence: SequenceConfig{
		LiftingHeight: constants.LiftingHeightAboveTable,
		Source:        models.DefaultCubeStartPosition().Position(),
		Destination:   models.DefaultCubeDestinationPosition().Position(),
	},
}

// DefaultConfig returns a copy of the defaults. Callers may modify it freely.
func DefaultConfig() FullConfig {
	return defaultConfig.Clone()
}

// Clone creates a deep copy of FullConfig
func (c FullConfig) Clone() FullConfig {
	var clone FullConfig
	if err := deepcopy.Copy(&clone, &c); err != nil {
		// Only plain data lives in FullConfig, copying cannot fail
		panic(fmt.Sprintf("failed to copy config: %v", err))
	}
	return clone
}

// HomePosition returns the validated home position.
func (c FullConfig) HomePosition() (models.HomePosition, error) {
	p := c.Actuator.HomePosition
	return models.NewHomePosition(p.X, p.Y, p.Z)
}

// Source returns the validated default pick position.
func (c FullConfig) Source() (models.CubeStartPosition, error) {
	p := c.Sequence.Source
	return models.NewCubeStartPosition(p.X, p.Y, p.Z)
}

// Destination returns the validated default place position.
func (c FullConfig) Destination() (models.CubeDestinationPosition, error) {
	p := c.Sequence.Destination
	return models.NewCubeDestinationPosition(p.X, p.Y, p.Z)
}

// Validate checks the whole config and returns every problem at once.
func (c FullConfig) Validate() error {
	var errs []error

	if c.Agent.HTTPPort <= 0 || c.Agent.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("agent.httpPort %d is not a valid port", c.Agent.HTTPPort))
	}
	if c.Agent.MetricsPort <= 0 || c.Agent.MetricsPort > 65535 {
		errs = append(errs, fmt.Errorf("agent.metricsPort %d is not a valid port", c.Agent.MetricsPort))
	}

	a := c.Actuator
	if a.TickPeriod <= 0 {
		errs = append(errs, fmt.Errorf("actuator.tickPeriod must be positive, got %s", a.TickPeriod))
	}
	if a.GripperDelay < 0 {
		errs = append(errs, fmt.Errorf("actuator.gripperDelay must not be negative, got %s", a.GripperDelay))
	}
	if a.MotionTimeout < 0 {
		errs = append(errs, fmt.Errorf("actuator.motionTimeout must not be negative, got %s", a.MotionTimeout))
	}
	for name, speed := range map[string]float64{"transferSpeed": a.TransferSpeed, "homeSpeed": a.HomeSpeed} {
		if speed <= 0 || speed > 100 {
			errs = append(errs, fmt.Errorf("actuator.%s must be within (0, 100], got %g", name, speed))
		}
	}

	if c.Simulator.MaxStep <= 0 {
		errs = append(errs, fmt.Errorf("simulator.maxStep must be positive, got %g", c.Simulator.MaxStep))
	}
	if c.Stream.PublishInterval <= 0 {
		errs = append(errs, fmt.Errorf("stream.publishInterval must be positive, got %s", c.Stream.PublishInterval))
	}
	if c.Stream.MQTT.BrokerURL != "" && c.Stream.MQTT.Topic == "" {
		errs = append(errs, errors.New("stream.mqtt.topic must be set when a broker is configured"))
	}
	if c.Sequence.LiftingHeight <= constants.TableHeight {
		errs = append(errs, fmt.Errorf("sequence.liftingHeight must be above the table, got %g", c.Sequence.LiftingHeight))
	}

	if _, err := c.HomePosition(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Source(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Destination(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
