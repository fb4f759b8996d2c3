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
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestMetrics(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Metrics Suite")
}

func read(m prometheus.Metric) *dto.Metric {
	out := &dto.Metric{}
	Expect(m.Write(out)).To(Succeed())
	return out
}

var _ = Describe("Metrics", func() {
	It("should move the current state marker on a transition", func() {
		RecordTransition("metrics-test", "ready.idle", "picking.moving", "start")
		RecordTransition("metrics-test", "picking.moving", "picking.lowering", "picking.moving.done")

		Expect(read(currentState.WithLabelValues("metrics-test", "ready.idle")).GetGauge().GetValue()).To(BeZero())
		Expect(read(currentState.WithLabelValues("metrics-test", "picking.moving")).GetGauge().GetValue()).To(BeZero())
		Expect(read(currentState.WithLabelValues("metrics-test", "picking.lowering")).GetGauge().GetValue()).To(Equal(1.0))
		Expect(read(transitionsTotal.WithLabelValues("metrics-test", "ready.idle", "picking.moving", "start")).
			GetCounter().GetValue()).To(Equal(1.0))
	})

	It("should expose an initialized error counter as zero", func() {
		InitErrorCounter(ComponentActuator, "metrics-test")
		Expect(read(errorCounter.WithLabelValues(ComponentActuator, "metrics-test")).GetCounter().GetValue()).To(BeZero())

		IncErrorCount(ComponentActuator, "metrics-test")
		Expect(read(errorCounter.WithLabelValues(ComponentActuator, "metrics-test")).GetCounter().GetValue()).To(Equal(1.0))
	})

	It("should record action durations in milliseconds", func() {
		ObserveActionTime("metrics-test", "placing.opening", 1500*time.Millisecond)

		summary := &dto.Metric{}
		observer := actionDuration.WithLabelValues("metrics-test", "placing.opening")
		Expect(observer.(prometheus.Metric).Write(summary)).To(Succeed())
		Expect(summary.GetSummary().GetSampleCount()).To(Equal(uint64(1)))
		Expect(summary.GetSummary().GetSampleSum()).To(Equal(1500.0))
	})

	It("should accumulate stall time", func() {
		before := read(stalledSeconds).GetCounter().GetValue()
		AddStallTime(0.5)
		AddStallTime(0.25)
		Expect(read(stalledSeconds).GetCounter().GetValue() - before).To(Equal(0.75))
	})
})
