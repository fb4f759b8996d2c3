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

package gantry

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap/zaptest"

	"github.com/united-manufacturing-hub/gantry-core/pkg/constants"
	"github.com/united-manufacturing-hub/gantry-core/pkg/models"
	"github.com/united-manufacturing-hub/gantry-core/pkg/service/actuator"
)

type brokenPrimitive struct{}

func (brokenPrimitive) Step(models.Position, float64) actuator.StepResult {
	return actuator.StepResult{Error: "encoder lost"}
}

func (brokenPrimitive) Position() models.Position { return models.Position{} }

var _ = Describe("GantryInstance driving a simulated gantry", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
		cfg    actuator.Config
		home   models.HomePosition
	)

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		cfg = actuator.DefaultConfig()
		cfg.TickPeriod = time.Millisecond
		cfg.GripperDelay = time.Millisecond

		var err error
		home, err = models.NewHomePosition(0, 0, 500)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		cancel()
	})

	newSimulated := func() (*GantryInstance, *actuator.Actuator) {
		log := zaptest.NewLogger(GinkgoT()).Sugar()
		simCfg := actuator.DefaultSimulatorConfig()
		simCfg.MaxStep = 200
		simCfg.Acceleration = 0
		act := actuator.NewActuator(actuator.NewSimulator(simCfg, log), home, cfg, log)
		g := NewGantryInstance(act, DefaultConfig(), log)
		DeferCleanup(func() { Expect(g.Close(context.Background())).To(Succeed()) })
		return g, act
	}

	It("should pick up the cube and place it on table B", func() {
		g, act := newSimulated()
		rec := &recorder{}
		g.AddTransitionObserver(rec.observe)
		dst := g.NextDestination().Position()

		Expect(g.Start(ctx)).To(Succeed())
		Expect(g.Wait(ctx)).To(Succeed())

		Expect(rec.transitions()).To(Equal(fullCycle))
		// The cube sits at dst, the gripper was lifted clear of it afterwards
		Expect(act.GetCurrentPosition()).To(Equal(dst.WithZ(constants.LiftingHeightAboveTable)))
		Expect(act.IsGripperOpen()).To(BeTrue())
	})

	It("should close the gripper while transporting", func() {
		g, act := newSimulated()
		var gripperWhileMoving []bool
		g.AddTransitionObserver(func(from, to, event string) {
			if to == StateTransportingMoving {
				gripperWhileMoving = append(gripperWhileMoving, act.IsGripperOpen())
			}
		})

		Expect(g.Start(ctx)).To(Succeed())
		Expect(g.Wait(ctx)).To(Succeed())
		Expect(gripperWhileMoving).To(Equal([]bool{false}))
	})

	It("should move to the updated home position", func() {
		g, act := newSimulated()
		newHome, err := models.NewHomePosition(300, -200, 400)
		Expect(err).NotTo(HaveOccurred())
		g.SetHomePosition(newHome)

		Expect(g.RequestHome(ctx)).To(Succeed())
		Expect(g.Wait(ctx)).To(Succeed())
		Expect(g.GetCurrentState()).To(Equal(StateHomeHome))
		Expect(act.GetCurrentPosition()).To(Equal(newHome.Position()))
	})

	It("should follow a home position changed during the home move", func() {
		log := zaptest.NewLogger(GinkgoT()).Sugar()
		simCfg := actuator.DefaultSimulatorConfig()
		simCfg.MaxStep = 2
		simCfg.Acceleration = 0
		act := actuator.NewActuator(actuator.NewSimulator(simCfg, log), home, cfg, log)
		g := NewGantryInstance(act, DefaultConfig(), log)
		DeferCleanup(func() { Expect(g.Close(context.Background())).To(Succeed()) })

		newHome, err := models.NewHomePosition(300, -200, 400)
		Expect(err).NotTo(HaveOccurred())

		Expect(g.RequestHome(ctx)).To(Succeed())
		Expect(g.GetCurrentState()).To(Equal(StateHomeMoving))
		g.SetHomePosition(newHome)
		Expect(g.RequestHome(ctx)).To(Succeed())

		Expect(g.Wait(ctx)).To(Succeed())
		Expect(g.GetCurrentState()).To(Equal(StateHomeHome))
		Expect(act.GetCurrentPosition()).To(Equal(newHome.Position()))
	})

	It("should fault when the motion primitive reports an error", func() {
		log := zaptest.NewLogger(GinkgoT()).Sugar()
		act := actuator.NewActuator(brokenPrimitive{}, home, cfg, log)
		g := NewGantryInstance(act, DefaultConfig(), log)
		DeferCleanup(func() { Expect(g.Close(context.Background())).To(Succeed()) })

		Expect(g.Start(ctx)).To(Succeed())
		Expect(g.Wait(ctx)).To(Succeed())

		Expect(g.GetCurrentState()).To(Equal(StateFault))
		Expect(g.CurrentTask().Err()).To(MatchError(actuator.ErrMotionFault))
	})
})
