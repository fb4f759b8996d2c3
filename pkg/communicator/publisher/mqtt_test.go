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

package publisher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap/zaptest"
)

type fakeToken struct {
	err error
}

func (t fakeToken) Wait() bool                     { return true }
func (t fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t fakeToken) Error() error                   { return t.err }

func (t fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// fakeClient overrides the calls the sink makes. Everything else panics
// through the nil embedded interface.
type fakeClient struct {
	mqtt.Client

	mu              sync.Mutex
	connectFailures int
	connectCalls    int
	connected       bool
	published       map[string][]byte
	disconnected    bool
}

func (c *fakeClient) Connect() mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectCalls++
	if c.connectCalls <= c.connectFailures {
		return fakeToken{err: errors.New("connection refused")}
	}
	c.connected = true
	return fakeToken{}
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published[topic] = payload.([]byte)
	return fakeToken{}
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
	c.connected = false
}

var _ = Describe("MQTTSink", func() {
	var (
		client *fakeClient
		sink   *MQTTSink
		cfg    MQTTConfig
	)

	BeforeEach(func() {
		client = &fakeClient{published: map[string][]byte{}}
		cfg = DefaultMQTTConfig()
		cfg.BrokerURL = "tcp://localhost:1883"
		cfg.ConnectRetries = 3
		sink = newMQTTSinkWithClient(client, cfg, zaptest.NewLogger(GinkgoT()).Sugar())

		original := newBackOff
		newBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) }
		DeferCleanup(func() { newBackOff = original })
	})

	It("should retry the initial connect", func() {
		client.connectFailures = 2

		Expect(sink.connect(context.Background())).To(Succeed())
		Expect(client.connectCalls).To(Equal(3))
	})

	It("should give up after the configured retries", func() {
		client.connectFailures = 100

		err := sink.connect(context.Background())
		Expect(err).To(MatchError(ContainSubstring("connection refused")))
		Expect(client.connectCalls).To(Equal(int(cfg.ConnectRetries) + 1))
	})

	It("should publish each stream to its own topic", func() {
		Expect(sink.connect(context.Background())).To(Succeed())

		Expect(sink.Publish(context.Background(), StreamPosition, []byte(`{"x":1}`))).To(Succeed())
		Expect(sink.Publish(context.Background(), StreamStatus, []byte(`{"idle":true}`))).To(Succeed())

		Expect(client.published).To(HaveKeyWithValue("gantry/position", []byte(`{"x":1}`)))
		Expect(client.published).To(HaveKeyWithValue("gantry/status", []byte(`{"idle":true}`)))
	})

	It("should refuse to publish while disconnected", func() {
		Expect(sink.Publish(context.Background(), StreamPosition, []byte(`{}`))).NotTo(Succeed())
		Expect(client.published).To(BeEmpty())
	})

	It("should disconnect on close", func() {
		Expect(sink.connect(context.Background())).To(Succeed())
		sink.Close()
		Expect(client.disconnected).To(BeTrue())
	})

	It("should reject an empty broker url", func() {
		_, err := NewMQTTSink(context.Background(), DefaultMQTTConfig(), nil)
		Expect(err).To(HaveOccurred())
	})
})
