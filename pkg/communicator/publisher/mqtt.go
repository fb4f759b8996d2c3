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
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/gantry-core/pkg/constants"
	"github.com/united-manufacturing-hub/gantry-core/pkg/logger"
)

var errTokenTimeout = errors.New("mqtt operation timed out")

// newBackOff is the retry policy of the initial connect.
var newBackOff = func() backoff.BackOff {
	return backoff.NewExponentialBackOff()
}

type MQTTConfig struct {
	BrokerURL string `yaml:"brokerURL"`
	Topic     string `yaml:"topic"`
	ClientID  string `yaml:"clientID"`
	// Timeout bounds a single connect or publish round trip.
	Timeout time.Duration `yaml:"timeout"`
	// ConnectRetries is how often the initial connect is retried before giving up.
	ConnectRetries uint64 `yaml:"connectRetries"`
}

func DefaultMQTTConfig() MQTTConfig {
	return MQTTConfig{
		Topic:          constants.DefaultMQTTTopic,
		ClientID:       constants.DefaultMQTTClientID,
		Timeout:        5 * time.Second,
		ConnectRetries: 5,
	}
}

// MQTTSink publishes every stream to <topic>/<stream>.
type MQTTSink struct {
	client mqtt.Client
	cfg    MQTTConfig
	logger *zap.SugaredLogger
}

// NewMQTTSink connects to the broker, retrying with exponential backoff.
func NewMQTTSink(ctx context.Context, cfg MQTTConfig, log *zap.SugaredLogger) (*MQTTSink, error) {
	if cfg.BrokerURL == "" {
		return nil, errors.New("mqtt broker url is empty")
	}
	if log == nil {
		log = logger.For(logger.ComponentMQTTSink)
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(cfg.Timeout)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		log.Infof("Connected to MQTT broker %s", cfg.BrokerURL)
	})
	opts.SetConnectionLostHandler(func(c mqtt.Client, err error) {
		log.Warnf("Connection to MQTT broker lost: %s", err)
	})

	sink := newMQTTSinkWithClient(mqtt.NewClient(opts), cfg, log)
	if err := sink.connect(ctx); err != nil {
		return nil, err
	}
	return sink, nil
}

func newMQTTSinkWithClient(client mqtt.Client, cfg MQTTConfig, log *zap.SugaredLogger) *MQTTSink {
	return &MQTTSink{client: client, cfg: cfg, logger: log}
}

func (s *MQTTSink) connect(ctx context.Context) error {
	operation := func() error {
		return s.wait(s.client.Connect())
	}
	notify := func(err error, next time.Duration) {
		s.logger.Infof("Failed to connect to MQTT broker (%s), retrying in %s", err, next)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(newBackOff(), s.cfg.ConnectRetries), ctx)
	if err := backoff.RetryNotify(operation, b, notify); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker %s: %w", s.cfg.BrokerURL, err)
	}
	return nil
}

func (s *MQTTSink) Name() string {
	return "mqtt"
}

func (s *MQTTSink) Topic(stream string) string {
	return s.cfg.Topic + "/" + stream
}

func (s *MQTTSink) Publish(ctx context.Context, stream string, data []byte) error {
	if !s.client.IsConnected() {
		return errors.New("not connected to MQTT broker")
	}
	return s.wait(s.client.Publish(s.Topic(stream), 0, false, data))
}

func (s *MQTTSink) wait(token mqtt.Token) error {
	if !token.WaitTimeout(s.cfg.Timeout) {
		return errTokenTimeout
	}
	return token.Error()
}

func (s *MQTTSink) Close() {
	s.client.Disconnect(250)
}
