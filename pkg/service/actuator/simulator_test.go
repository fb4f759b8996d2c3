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

package actuator

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/gantry-core/pkg/models"
)

var _ = Describe("Simulator", func() {
	var sim *Simulator

	BeforeEach(func() {
		sim = NewSimulator(SimulatorConfig{
			MaxStep:       100,
			Acceleration:  50,
			StartPosition: models.Position{},
		}, nil)
	})

	It("should ramp up its speed from rest", func() {
		target := models.Position{X: 1000}

		Expect(sim.Step(target, 100).Error).To(BeEmpty())
		Expect(sim.Position().X).To(BeNumerically("~", 50, 1e-9))

		Expect(sim.Step(target, 100).Error).To(BeEmpty())
		Expect(sim.Position().X).To(BeNumerically("~", 150, 1e-9))
	})

	It("should snap onto the target when it is within one step", func() {
		target := models.Position{X: 30, Y: 0, Z: 10}
		Expect(sim.Step(target, 100).Error).To(BeEmpty())
		Expect(sim.Position()).To(Equal(target))
	})

	It("should restart the ramp after a replan", func() {
		target := models.Position{X: 1000}
		sim.Step(target, 100)
		sim.Step(target, 100)
		sim.Replan()

		before := sim.Position().X
		sim.Step(target, 100)
		Expect(sim.Position().X - before).To(BeNumerically("~", 50, 1e-9))
	})

	It("should reject targets outside the work area", func() {
		res := sim.Step(models.Position{X: 1200}, 50)
		Expect(res.Error).To(ContainSubstring("outside the work area"))
		Expect(sim.Position()).To(Equal(models.Position{}))
	})

	It("should reject invalid speeds", func() {
		Expect(sim.Step(models.Position{X: 10}, 0).Error).NotTo(BeEmpty())
		Expect(sim.Step(models.Position{X: 10}, 101).Error).NotTo(BeEmpty())
	})
})
