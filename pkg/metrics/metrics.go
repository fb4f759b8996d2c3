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

package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/united-manufacturing-hub/gantry-core/pkg/logger"
	"github.com/united-manufacturing-hub/gantry-core/pkg/sentry"
)

const (
	// Component labels.
	ComponentGantryInstance = "gantry_instance"
	ComponentActuator       = "actuator"
	ComponentPublisher      = "publisher"
	ComponentAPIServer      = "api_server"
	ComponentStallChecker   = "stall_checker"
)

var (
	namespace = "gantry"
	subsystem = "core"

	errorCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "errors_total",
			Help:      "Total number of errors encountered by component",
		},
		[]string{"component", "instance"},
	)

	transitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "transitions_total",
			Help:      "Total number of state machine transitions",
		},
		[]string{"instance", "from", "to", "trigger"},
	)

	currentState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "current_state",
			Help:      "1 for the state the sequence controller is currently in, 0 otherwise",
		},
		[]string{"instance", "state"},
	)

	faultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "faults_total",
			Help:      "Total number of actions that failed and moved the controller into the fault state",
		},
		[]string{"instance", "state"},
	)

	actionDuration = promauto.NewSummaryVec(
		prometheus.SummaryOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "action_duration_milliseconds",
			Help:      "Time taken by the entry action of a state (in milliseconds)",
			Objectives: map[float64]float64{
				0.5:  0.01,
				0.9:  0.01,
				0.95: 0.01,
				0.99: 0.01,
			},
		},
		[]string{"instance", "state"},
	)

	motionTicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "motion_ticks_total",
			Help:      "Total number of motion steps issued to the actuator",
		},
		[]string{"kind"},
	)

	homeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "home_requests_total",
			Help:      "Total number of home requests, by whether they were executed immediately or deferred",
		},
		[]string{"mode"},
	)

	stalledSeconds = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "action_stalled_total_seconds",
			Help:      "Total seconds an in-flight action made no positional progress beyond the stall threshold",
		},
	)

	streamPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "stream_publish_errors_total",
			Help:      "Total number of failed publishes to a stream sink",
		},
		[]string{"sink"},
	)
)

// SetupMetricsEndpoint starts an HTTP server to expose metrics.
// This should be called once at application startup.
func SetupMetricsEndpoint(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sentry.ReportIssue(err, sentry.IssueTypeFatal, logger.For(logger.ComponentMetrics))
		}
	}()

	return server
}

// IncErrorCount increments the error counter for a component.
func IncErrorCount(component, instance string) {
	errorCounter.WithLabelValues(component, instance).Inc()
}

// InitErrorCounter initializes the error counter for a component so it shows up as 0.
func InitErrorCounter(component, instance string) {
	errorCounter.WithLabelValues(component, instance).Add(0)
}

// RecordTransition counts a transition and moves the current_state marker.
func RecordTransition(instance, from, to, trigger string) {
	transitionsTotal.WithLabelValues(instance, from, to, trigger).Inc()
	if from != "" {
		currentState.WithLabelValues(instance, from).Set(0)
	}
	currentState.WithLabelValues(instance, to).Set(1)
}

// SetCurrentState marks state as the current state without counting a transition.
func SetCurrentState(instance, state string) {
	currentState.WithLabelValues(instance, state).Set(1)
}

// IncFaultCount counts an action failure in the given state.
func IncFaultCount(instance, state string) {
	faultsTotal.WithLabelValues(instance, state).Inc()
}

// ObserveActionTime records how long the entry action of a state ran.
func ObserveActionTime(instance, state string, duration time.Duration) {
	actionDuration.WithLabelValues(instance, state).Observe(float64(duration.Milliseconds()))
}

// IncMotionTicks counts a motion step of the given kind ("transfer" or "home").
func IncMotionTicks(kind string) {
	motionTicksTotal.WithLabelValues(kind).Inc()
}

// IncHomeRequests counts a home request; mode is "immediate" or "deferred".
func IncHomeRequests(mode string) {
	homeRequestsTotal.WithLabelValues(mode).Inc()
}

// AddStallTime increases the stall counter by the specified seconds.
func AddStallTime(seconds float64) {
	stalledSeconds.Add(seconds)
}

// IncStreamPublishErrors counts a failed publish to the named sink.
func IncStreamPublishErrors(sink string) {
	streamPublishErrors.WithLabelValues(sink).Inc()
}
