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


package sentry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestSentry(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Sentry Suite")
}

var _ = Describe("createSentryEvent", func() {
	It("should order the fingerprint by FingerprintKeys", func() {
		event := createSentryEvent(sentry.LevelError, errors.New("move failed: out of reach"), map[string]interface{}{
			"state":       "picking.moving",
			"trigger":     "picking.moving.enter",
			"fsm_type":    "gantry",
			"instance_id": "gantry",
		})

		Expect(event.Fingerprint).To(Equal([]string{
			"{{ default }}",
			"level: error",
			"fsm_type: gantry",
			"trigger: picking.moving.enter",
			"state: picking.moving",
		}))
		Expect(event.Tags).To(HaveKeyWithValue("instance_id", "gantry"))
	})

	It("should keep non scalar context values as extras", func() {
		event := createSentryEvent(sentry.LevelWarning, errors.New("stalled"), map[string]interface{}{
			"attempt": 3,
			"target":  []float64{1, 2, 3},
		})

		Expect(event.Tags).To(HaveKeyWithValue("attempt", "3"))
		Expect(event.Extra).To(HaveKey("target"))
	})

	It("should title the exception with the first phrase", func() {
		event := createSentryEvent(sentry.LevelError, errors.New("action failed, entering fault state: boom"), nil)

		Expect(event.Exception).To(HaveLen(1))
		Expect(event.Exception[0].Type).To(Equal("action failed"))
		Expect(event.Fingerprint).To(Equal([]string{"{{ default }}", "level: error"}))
	})

	It("should attach the goroutines to errors only", func() {
		event := createSentryEvent(sentry.LevelError, errors.New("boom"), nil)
		Expect(event.Threads).NotTo(BeEmpty())
		Expect(event.Threads[0].Current).To(BeTrue())
		Expect(event.Threads[0].Stacktrace.Frames).NotTo(BeEmpty())
		Expect(event.Attachments).To(HaveLen(1))

		warning := createSentryEvent(sentry.LevelWarning, errors.New("slow"), nil)
		Expect(warning.Threads).To(BeEmpty())
		Expect(warning.Attachments).To(BeEmpty())
	})
})

var _ = Describe("Reporting", func() {
	var (
		store  *eventStore
		logger *zap.SugaredLogger
	)

	BeforeEach(func() {
		store = &eventStore{}
		Expect(sentry.Init(sentry.ClientOptions{
			Dsn:       "https://test@sentry.io/123",
			Transport: &mockTransport{store: store},
		})).To(Succeed())
		enabled.Store(true)
		DeferCleanup(func() { enabled.Store(false) })

		core := zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(discardWriter{}),
			zapcore.DebugLevel,
		)
		logger = zap.New(WrapCore(core)).Sugar()
	})

	It("should capture warnings logged through the hook", func() {
		logger.Warnw("gripper slow", "state", "placing.opening")

		Eventually(store.Len, time.Second, 10*time.Millisecond).Should(Equal(1))
		event := store.GetAll()[0]
		Expect(event.Message).To(Equal("gripper slow"))
		Expect(event.Level).To(Equal(sentry.LevelWarning))
		Expect(event.Tags).To(HaveKeyWithValue("state", "placing.opening"))
	})

	It("should not capture info logs", func() {
		logger.Info("cycle finished")

		Consistently(store.Len, 100*time.Millisecond, 10*time.Millisecond).Should(BeZero())
	})

	It("should capture a reported issue exactly once", func() {
		ReportFSMError(logger, "gantry", "picking.moving", "picking.moving.enter", errors.New("move failed"))

		Eventually(store.Len, time.Second, 10*time.Millisecond).Should(Equal(1))
		Consistently(store.Len, 100*time.Millisecond, 10*time.Millisecond).Should(Equal(1))

		event := store.GetAll()[0]
		Expect(event.Level).To(Equal(sentry.LevelError))
		Expect(event.Tags).To(HaveKeyWithValue("instance_id", "gantry"))
		Expect(event.Fingerprint).To(ContainElement("state: picking.moving"))
	})

	It("should only log when sentry is disabled", func() {
		enabled.Store(false)

		ReportIssuef(IssueTypeError, logger, "move failed: %s", "out of reach")

		Consistently(store.Len, 100*time.Millisecond, 10*time.Millisecond).Should(BeZero())
	})
})

var _ = Describe("InitSentry", func() {
	It("should stay disabled without a DSN", func() {
		InitSentry("", "1.2.3")
		Expect(Enabled()).To(BeFalse())
	})

	It("should stay disabled for local builds", func() {
		InitSentry("https://test@sentry.io/123", "")
		Expect(Enabled()).To(BeFalse())
	})
})

type eventStore struct {
	mu     sync.Mutex
	events []*sentry.Event
}

func (s *eventStore) Add(event *sentry.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *eventStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func (s *eventStore) GetAll() []*sentry.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*sentry.Event(nil), s.events...)
}

type mockTransport struct {
	store *eventStore
}

func (t *mockTransport) Configure(options sentry.ClientOptions)    {}
func (t *mockTransport) Flush(timeout time.Duration) bool          { return true }
func (t *mockTransport) FlushWithContext(ctx context.Context) bool { return true }
func (t *mockTransport) Close()                                    {}

func (t *mockTransport) SendEvent(event *sentry.Event) {
	t.store.Add(event)
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
func (discardWriter) Sync() error                 { return nil }
