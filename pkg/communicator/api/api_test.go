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

package api

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap/zaptest"

	"github.com/united-manufacturing-hub/gantry-core/pkg/fsm/gantry"
	"github.com/united-manufacturing-hub/gantry-core/pkg/models"
)

func TestAPI(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "API Suite")
}

type fakeController struct {
	mu          sync.Mutex
	state       string
	position    models.Position
	home        models.HomePosition
	source      models.CubeStartPosition
	destination models.CubeDestinationPosition
	commands    []string
	failWith    error
}

func newFakeController() *fakeController {
	home, _ := models.NewHomePosition(0, 0, 500)
	return &fakeController{
		state:       gantry.StateReady,
		position:    models.Position{Z: 300},
		home:        home,
		source:      models.DefaultCubeStartPosition(),
		destination: models.DefaultCubeDestinationPosition(),
	}
}

func (f *fakeController) command(name string, allowed ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, name)
	if f.failWith != nil {
		return f.failWith
	}
	for _, s := range allowed {
		if s == f.state {
			return nil
		}
	}
	return fmt.Errorf("%w: %s in state %s", gantry.ErrConflict, name, f.state)
}

func (f *fakeController) Start(context.Context) error {
	if err := f.command("start", gantry.IdleStates...); err != nil {
		return err
	}
	f.setState(gantry.StatePickingMoving)
	return nil
}

func (f *fakeController) RequestHome(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, "home")
	return f.failWith
}

func (f *fakeController) Reset(context.Context) error {
	if err := f.command("reset", gantry.StateFault); err != nil {
		return err
	}
	f.setState(gantry.StateReady)
	return nil
}

func (f *fakeController) setState(state string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = state
}

func (f *fakeController) GetCurrentPosition() models.Position {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position
}

func (f *fakeController) Status() gantry.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return gantry.Status{
		State:       f.state,
		Group:       gantry.StateGroup(f.state),
		Idle:        gantry.IsIdleState(f.state),
		GripperOpen: true,
		Fault:       f.state == gantry.StateFault,
	}
}

func (f *fakeController) GetHomePosition() models.HomePosition {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.home
}

func (f *fakeController) SetHomePosition(home models.HomePosition) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.home = home
}

func (f *fakeController) NextSource() models.CubeStartPosition {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.source
}

func (f *fakeController) SetNextSource(source models.CubeStartPosition) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.source = source
}

func (f *fakeController) NextDestination() models.CubeDestinationPosition {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.destination
}

func (f *fakeController) SetNextDestination(destination models.CubeDestinationPosition) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destination = destination
}

type channelStreams struct {
	mu   sync.Mutex
	subs []chan []byte
}

func (c *channelStreams) Subscribe(buffer int) (<-chan []byte, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan []byte, buffer)
	c.subs = append(c.subs, ch)
	return ch, func() {}
}

func (c *channelStreams) send(data string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.subs {
		ch <- []byte(data)
	}
}

func (c *channelStreams) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

var _ = Describe("Server", func() {
	var (
		controller *fakeController
		streams    *channelStreams
		server     *Server
	)

	BeforeEach(func() {
		controller = newFakeController()
		streams = &channelStreams{}
		var err error
		server, err = NewServer(controller, streams, DefaultServerConfig(), zaptest.NewLogger(GinkgoT()).Sugar())
		Expect(err).NotTo(HaveOccurred())
	})

	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, req)
		return rec
	}

	errorCode := func(rec *httptest.ResponseRecorder) string {
		var resp ErrorResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		return resp.Error.Code
	}

	Describe("readouts", func() {
		It("should return the position", func() {
			rec := do(http.MethodGet, "/api/v1/position", "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(MatchJSON(`{"x":0,"y":0,"z":300}`))
		})

		It("should return the status with the position", func() {
			rec := do(http.MethodGet, "/api/v1/status", "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(MatchJSON(`{
				"state_machine_state": "ready",
				"group": "ready",
				"idle": true,
				"gripper_open": true,
				"fault": false,
				"position": {"x":0,"y":0,"z":300}
			}`))
		})

		It("should compress responses for clients that accept gzip", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/position", nil)
			req.Header.Set("Accept-Encoding", "gzip")
			rec := httptest.NewRecorder()
			server.Handler().ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Encoding")).To(Equal("gzip"))

			reader, err := gzip.NewReader(rec.Body)
			Expect(err).NotTo(HaveOccurred())
			body, err := io.ReadAll(reader)
			Expect(err).NotTo(HaveOccurred())
			Expect(body).To(MatchJSON(`{"x":0,"y":0,"z":300}`))
		})
	})

	Describe("commands", func() {
		It("should start a cycle when idle", func() {
			rec := do(http.MethodPost, "/api/v1/start", "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring(`"state_machine_state":"picking.moving"`))
		})

		It("should answer 409 when start is sent while busy", func() {
			controller.setState(gantry.StatePlacingLowering)

			rec := do(http.MethodPost, "/api/v1/start", "")
			Expect(rec.Code).To(Equal(http.StatusConflict))
			Expect(errorCode(rec)).To(Equal(CodeConflict))
			Expect(controller.Status().State).To(Equal(gantry.StatePlacingLowering))
		})

		It("should accept home at any time", func() {
			controller.setState(gantry.StateTransportingMoving)

			rec := do(http.MethodPost, "/api/v1/home", "")
			Expect(rec.Code).To(Equal(http.StatusAccepted))
			Expect(controller.commands).To(Equal([]string{"home"}))
		})

		It("should reset only from fault", func() {
			rec := do(http.MethodPost, "/api/v1/reset", "")
			Expect(rec.Code).To(Equal(http.StatusConflict))

			controller.setState(gantry.StateFault)
			rec = do(http.MethodPost, "/api/v1/reset", "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(controller.Status().State).To(Equal(gantry.StateReady))
		})

		It("should answer 500 for unexpected command errors", func() {
			controller.failWith = fmt.Errorf("context deadline exceeded")

			rec := do(http.MethodPost, "/api/v1/home", "")
			Expect(rec.Code).To(Equal(http.StatusInternalServerError))
			Expect(errorCode(rec)).To(Equal(CodeInternal))
		})
	})

	Describe("targets", func() {
		It("should update the cube start position when it lies on table A", func() {
			rec := do(http.MethodPut, "/api/v1/cube-start-position", `{"x":-700,"y":600,"z":0}`)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(controller.NextSource().Position()).To(Equal(models.Position{X: -700, Y: 600}))

			rec = do(http.MethodGet, "/api/v1/cube-start-position", "")
			Expect(rec.Body.String()).To(MatchJSON(`{"x":-700,"y":600,"z":0}`))
		})

		It("should answer 422 for a cube start position outside table A", func() {
			before := controller.NextSource()

			rec := do(http.MethodPut, "/api/v1/cube-start-position", `{"x":0,"y":0,"z":0}`)
			Expect(rec.Code).To(Equal(http.StatusUnprocessableEntity))
			Expect(errorCode(rec)).To(Equal(CodeValidationFailed))
			Expect(controller.NextSource()).To(Equal(before))
		})

		It("should answer 422 for a cube destination position outside table B", func() {
			rec := do(http.MethodPut, "/api/v1/cube-destination-position", `{"x":-650,"y":650,"z":0}`)
			Expect(rec.Code).To(Equal(http.StatusUnprocessableEntity))
		})

		It("should update the cube destination position", func() {
			dst := models.DefaultCubeDestinationPosition().Position()
			body := fmt.Sprintf(`{"x":%g,"y":%g,"z":0}`, dst.X, dst.Y)

			rec := do(http.MethodPut, "/api/v1/cube-destination-position", body)
			Expect(rec.Code).To(Equal(http.StatusOK))
		})

		It("should update the home position within the work area", func() {
			rec := do(http.MethodPut, "/api/v1/home-position", `{"x":100,"y":-100,"z":400}`)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(controller.GetHomePosition().Position()).To(Equal(models.Position{X: 100, Y: -100, Z: 400}))
		})

		It("should answer 422 for a home position outside the work area", func() {
			rec := do(http.MethodPut, "/api/v1/home-position", `{"x":1500,"y":0,"z":400}`)
			Expect(rec.Code).To(Equal(http.StatusUnprocessableEntity))
		})

		It("should answer 400 for malformed or incomplete bodies", func() {
			Expect(do(http.MethodPut, "/api/v1/home-position", `{"x":`).Code).To(Equal(http.StatusBadRequest))
			Expect(do(http.MethodPut, "/api/v1/home-position", `{"x":1,"y":2}`).Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("health", func() {
		It("should be ready unless the controller is in fault", func() {
			Expect(do(http.MethodGet, "/live", "").Code).To(Equal(http.StatusOK))
			Expect(do(http.MethodGet, "/ready", "").Code).To(Equal(http.StatusOK))

			controller.setState(gantry.StateFault)
			Expect(do(http.MethodGet, "/ready", "").Code).To(Equal(http.StatusServiceUnavailable))
			Expect(do(http.MethodGet, "/live", "").Code).To(Equal(http.StatusOK))
		})
	})

	Describe("stream", func() {
		It("should forward published messages to websocket clients", func() {
			ts := httptest.NewServer(server.Handler())
			defer ts.Close()

			url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/stream"
			ws, _, err := websocket.DefaultDialer.Dial(url, nil)
			Expect(err).NotTo(HaveOccurred())
			defer ws.Close()

			Eventually(streams.count).Should(Equal(1))
			streams.send(`{"stream":"position","payload":{"x":1,"y":2,"z":3}}`)

			Expect(ws.SetReadDeadline(time.Now().Add(5 * time.Second))).To(Succeed())
			_, data, err := ws.ReadMessage()
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring(`"stream":"position"`))
		})

		It("should close streams when the server stops", func() {
			ts := httptest.NewServer(server.Handler())
			defer ts.Close()

			url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/stream"
			ws, _, err := websocket.DefaultDialer.Dial(url, nil)
			Expect(err).NotTo(HaveOccurred())
			defer ws.Close()
			Eventually(streams.count).Should(Equal(1))

			Expect(server.Stop(context.Background())).To(Succeed())

			Expect(ws.SetReadDeadline(time.Now().Add(5 * time.Second))).To(Succeed())
			_, _, err = ws.ReadMessage()
			Expect(websocket.IsCloseError(err, websocket.CloseGoingAway)).To(BeTrue())
		})
	})
})
