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
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/getsentry/sentry-go"
	"github.com/united-manufacturing-hub/gantry-core/pkg/constants"
	"go.uber.org/zap"
)

var enabled atomic.Bool

// InitSentry initializes the sentry client.
// Reporting stays disabled when no DSN is configured or when running a local
// build that still carries the default version.
func InitSentry(dsn string, appVersion string) {
	if dsn == "" {
		zap.S().Debug("Sentry disabled, no DSN configured")
		return
	}
	if appVersion == "" || appVersion == constants.DefaultAppVersion {
		zap.S().Debug("Sentry disabled for local development build")
		return
	}

	environment := constants.DefaultDevelopmentEnvironment

	version, err := semver.NewVersion(appVersion)
	if err != nil {
		zap.S().Errorf("Failed to parse app version, using default environment (development): %s", err)
	} else if version.Prerelease() == "" {
		environment = constants.DefaultProductionEnvironment
	}

	err = sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          "gantry-core@" + appVersion,
		AttachStacktrace: true,
	})
	if err != nil {
		zap.S().Errorf("Failed to initialize Sentry: %s", err)
		return
	}

	enabled.Store(true)
}

// Enabled reports whether InitSentry configured a client.
func Enabled() bool {
	return enabled.Load()
}

// Flush waits up to timeout for buffered events to be sent.
func Flush(timeout time.Duration) {
	if !enabled.Load() {
		return
	}
	sentry.Flush(timeout)
}

func getMeaningfulErrorTitle(err error) string {
	message := err.Error()

	// first phrase, up to a period, comma or colon
	idx := strings.IndexAny(message, ".,:")
	if idx > 0 {
		message = message[:idx]
	}

	if len(message) > 100 {
		message = message[:97] + "..."
	}

	return message
}

func createSentryEvent(level sentry.Level, err error, context map[string]interface{}) *sentry.Event {
	event := sentry.NewEvent()
	event.Level = level
	event.Message = err.Error()
	event.Exception = []sentry.Exception{{
		Type:       getMeaningfulErrorTitle(err),
		Value:      err.Error(),
		Stacktrace: sentry.ExtractStacktrace(err),
	}}
	event.Fingerprint = []string{
		"{{ default }}",
		"level: " + getLevelString(level),
	}

	// A fault usually means some goroutine is stuck or failed, ship all of them
	if level == sentry.LevelError || level == sentry.LevelFatal {
		threads, dump := goroutineThreads()
		event.Threads = threads
		event.Attachments = append(event.Attachments, &sentry.Attachment{
			Filename:    "goroutines.txt",
			ContentType: "text/plain",
			Payload:     dump,
		})
	}

	if len(context) == 0 {
		return event
	}

	event.Tags = make(map[string]string, len(context))
	for key, value := range context {
		switch v := value.(type) {
		case string:
			event.Tags[key] = v
		case int, int64, uint, uint64, float64, bool:
			event.Tags[key] = fmt.Sprintf("%v", v)
		default:
			if event.Extra == nil {
				event.Extra = make(map[string]interface{})
			}
			event.Extra[key] = v
		}
	}

	// Fixed key order keeps the fingerprint stable across events
	for _, key := range FingerprintKeys {
		if value, ok := context[key]; ok {
			event.Fingerprint = append(event.Fingerprint, fmt.Sprintf("%s: %v", key, value))
		}
	}

	return event
}

func getLevelString(level sentry.Level) string {
	switch level {
	case sentry.LevelDebug:
		return "debug"
	case sentry.LevelInfo:
		return "info"
	case sentry.LevelWarning:
		return "warning"
	case sentry.LevelError:
		return "error"
	case sentry.LevelFatal:
		return "fatal"
	default:
		return "unknown"
	}
}
