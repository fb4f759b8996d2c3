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
	"math"
	"strconv"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap/zapcore"
)

// reportedFieldKey marks log entries that ReportIssueWithContext already captured.
const reportedFieldKey = "sentry_reported"

// FingerprintKeys are the field keys that affect Sentry grouping.
var FingerprintKeys = []string{"operation", "fsm_type", "service_type", "trigger", "state"}

// SentryHook wraps a zapcore.Core and forwards Warn and Error entries to Sentry.
type SentryHook struct {
	zapcore.Core
}

func NewSentryHook(core zapcore.Core) *SentryHook {
	return &SentryHook{Core: core}
}

// WrapCore is the function handed to logger.Initialize.
func WrapCore(core zapcore.Core) zapcore.Core {
	return NewSentryHook(core)
}

func (h *SentryHook) With(fields []zapcore.Field) zapcore.Core {
	return &SentryHook{Core: h.Core.With(fields)}
}

func (h *SentryHook) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if h.Enabled(entry.Level) {
		return ce.AddCore(entry, h)
	}

	return ce
}

func (h *SentryHook) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	if entry.Level >= zapcore.WarnLevel && Enabled() && !alreadyReported(fields) {
		go h.captureToSentry(entry, fields)
	}

	return h.Core.Write(entry, fields)
}

func (h *SentryHook) captureToSentry(entry zapcore.Entry, fields []zapcore.Field) {
	tags := extractFieldsAsContext(fields)
	fingerprint := extractFingerprintKeys(tags)
	level := zapLevelToSentry(entry.Level)

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(level)
		scope.SetFingerprint(append([]string{"{{ default }}", "level: " + getLevelString(level)}, fingerprint...))
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		if entry.LoggerName != "" {
			scope.SetTag("component", entry.LoggerName)
		}

		sentry.CaptureMessage(entry.Message)
	})
}

func alreadyReported(fields []zapcore.Field) bool {
	for _, field := range fields {
		if field.Key == reportedFieldKey {
			return true
		}
	}
	return false
}

func extractFieldsAsContext(fields []zapcore.Field) map[string]string {
	context := make(map[string]string, len(fields))

	for _, field := range fields {
		switch field.Type {
		case zapcore.StringType:
			context[field.Key] = field.String
		case zapcore.Int64Type, zapcore.Int32Type, zapcore.Int16Type, zapcore.Int8Type, zapcore.DurationType:
			context[field.Key] = strconv.FormatInt(field.Integer, 10)
		case zapcore.Uint64Type, zapcore.Uint32Type, zapcore.Uint16Type, zapcore.Uint8Type:
			context[field.Key] = strconv.FormatUint(uint64(field.Integer), 10)
		case zapcore.BoolType:
			context[field.Key] = strconv.FormatBool(field.Integer == 1)
		case zapcore.Float64Type:
			context[field.Key] = strconv.FormatFloat(math.Float64frombits(uint64(field.Integer)), 'g', -1, 64)
		case zapcore.ErrorType:
			if err, ok := field.Interface.(error); ok {
				context[field.Key] = err.Error()
			}
		default:
			if field.Interface != nil {
				context[field.Key] = fmt.Sprintf("%v", field.Interface)
			}
		}
	}

	return context
}

func extractFingerprintKeys(tags map[string]string) []string {
	var fingerprint []string
	for _, key := range FingerprintKeys {
		if value, ok := tags[key]; ok {
			fingerprint = append(fingerprint, fmt.Sprintf("%s: %s", key, value))
		}
	}

	return fingerprint
}

func zapLevelToSentry(level zapcore.Level) sentry.Level {
	switch level {
	case zapcore.DebugLevel:
		return sentry.LevelDebug
	case zapcore.InfoLevel:
		return sentry.LevelInfo
	case zapcore.WarnLevel:
		return sentry.LevelWarning
	case zapcore.ErrorLevel:
		return sentry.LevelError
	case zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return sentry.LevelFatal
	default:
		return sentry.LevelInfo
	}
}
