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
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/gantry-core/pkg/constants"
	"github.com/united-manufacturing-hub/gantry-core/pkg/fsm/gantry"
	"github.com/united-manufacturing-hub/gantry-core/pkg/logger"
	"github.com/united-manufacturing-hub/gantry-core/pkg/metrics"
	"github.com/united-manufacturing-hub/gantry-core/pkg/models"
)

const (
	StreamPosition = "position"
	StreamStatus   = "status"
)

// Source is what the publisher reads on every tick. Both calls must not block.
type Source interface {
	GetCurrentPosition() models.Position
	Status() gantry.Status
}

// Message is the envelope of every published sample.
type Message struct {
	Stream      string      `json:"stream"`
	TimestampMs int64       `json:"timestamp_ms"`
	Payload     interface{} `json:"payload"`
}

// Sink receives every encoded message of a stream.
type Sink interface {
	Name() string
	Publish(ctx context.Context, stream string, data []byte) error
}

// Publisher samples the source at a fixed interval and fans the samples out
// to websocket subscribers and sinks.
type Publisher struct {
	source   Source
	interval time.Duration
	logger   *zap.SugaredLogger

	mu          sync.Mutex
	sinks       []Sink
	failing     map[string]bool
	subscribers map[uint64]chan []byte
	nextID      uint64
}

func NewPublisher(source Source, interval time.Duration, log *zap.SugaredLogger) *Publisher {
	if interval <= 0 {
		interval = constants.DefaultStreamPublishInterval
	}
	if log == nil {
		log = logger.For(logger.ComponentPublisher)
	}
	metrics.InitErrorCounter(metrics.ComponentPublisher, "publisher")
	return &Publisher{
		source:      source,
		interval:    interval,
		logger:      log,
		failing:     map[string]bool{},
		subscribers: map[uint64]chan []byte{},
	}
}

func (p *Publisher) AddSink(sink Sink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sinks = append(p.sinks, sink)
}

// Subscribe returns a channel receiving every encoded message and a function
// to unsubscribe. Slow subscribers lose messages instead of blocking the publisher.
func (p *Publisher) Subscribe(buffer int) (<-chan []byte, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextID
	p.nextID++
	ch := make(chan []byte, buffer)
	p.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			delete(p.subscribers, id)
			close(ch)
		})
	}
}

// SubscriberCount returns the number of active subscribers.
func (p *Publisher) SubscriberCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subscribers)
}

// Run publishes until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) error {
	p.logger.Infof("Publishing position and status every %s", p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.PublishOnce(ctx); err != nil {
				return err
			}
		}
	}
}

// PublishOnce samples the source and publishes one message per stream.
// Sink failures are counted and logged but do not stop publishing.
func (p *Publisher) PublishOnce(ctx context.Context) error {
	now := time.Now().UnixMilli()
	messages := []Message{
		{Stream: StreamPosition, TimestampMs: now, Payload: p.source.GetCurrentPosition()},
		{Stream: StreamStatus, TimestampMs: now, Payload: p.source.Status()},
	}

	for _, msg := range messages {
		data, err := json.Marshal(msg)
		if err != nil {
			metrics.IncErrorCount(metrics.ComponentPublisher, "publisher")
			return fmt.Errorf("failed to encode %s message: %w", msg.Stream, err)
		}
		p.broadcast(data)
		p.publishToSinks(ctx, msg.Stream, data)
	}
	return nil
}

func (p *Publisher) broadcast(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.subscribers {
		select {
		case ch <- data:
		default:
		}
	}
}

func (p *Publisher) publishToSinks(ctx context.Context, stream string, data []byte) {
	p.mu.Lock()
	sinks := append([]Sink(nil), p.sinks...)
	p.mu.Unlock()

	for _, sink := range sinks {
		err := sink.Publish(ctx, stream, data)
		p.mu.Lock()
		wasFailing := p.failing[sink.Name()]
		p.failing[sink.Name()] = err != nil
		p.mu.Unlock()

		switch {
		case err != nil:
			metrics.IncStreamPublishErrors(sink.Name())
			// Only the first failure of a streak is logged at warn level
			if !wasFailing {
				p.logger.Warnw("Failed to publish to sink", "sink", sink.Name(), "stream", stream, "error", err)
			} else {
				p.logger.Debugw("Failed to publish to sink", "sink", sink.Name(), "stream", stream, "error", err)
			}
		case wasFailing:
			p.logger.Infow("Publishing to sink recovered", "sink", sink.Name())
		}
	}
}
