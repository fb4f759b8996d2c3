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

package constants

import "time"

const (
	// DefaultAppVersion is reported by local builds that were not stamped via ldflags.
	DefaultAppVersion = "0.0.0-dev"

	DefaultDevelopmentEnvironment = "development"
	DefaultProductionEnvironment  = "production"

	DefaultConfigPath = "/data/config.yaml"

	DefaultHTTPPort    = 8000
	DefaultMetricsPort = 8081

	// DefaultStreamPublishInterval is how often position and status are pushed to stream subscribers.
	DefaultStreamPublishInterval = 100 * time.Millisecond

	DefaultMQTTTopic    = "gantry"
	DefaultMQTTClientID = "gantry-core"

	// StallThreshold is how long an in-flight action may go without any
	// position change before the stall checker raises a warning.
	StallThreshold = 30 * time.Second

	// StallCheckInterval is how often the stall checker looks at the actuator.
	StallCheckInterval = time.Second

	// ExpectedMaxP95ExecutionTimePerEvent is the minimum time a context must have left
	// before an event is sent to the state machine.
	ExpectedMaxP95ExecutionTimePerEvent = 5 * time.Millisecond

	// ShutdownTimeout bounds how long servers and in-flight actions get to finish on exit.
	ShutdownTimeout = 3 * time.Second
)
