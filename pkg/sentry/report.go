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
	"sort"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

type IssueType string

const (
	IssueTypeWarning IssueType = "warning"
	IssueTypeError   IssueType = "error"
	IssueTypeFatal   IssueType = "fatal"
)

func (t IssueType) level() sentry.Level {
	switch t {
	case IssueTypeFatal:
		return sentry.LevelFatal
	case IssueTypeError:
		return sentry.LevelError
	default:
		return sentry.LevelWarning
	}
}

// ReportIssue logs err and, when sentry is enabled, captures it as an event.
func ReportIssue(err error, issueType IssueType, log *zap.SugaredLogger) {
	ReportIssueWithContext(err, issueType, log, nil)
}

func ReportIssuef(issueType IssueType, log *zap.SugaredLogger, template string, args ...interface{}) {
	ReportIssue(fmt.Errorf(template, args...), issueType, log)
}

// ReportIssueWithContext logs err at the level of issueType with the context
// as fields and, when sentry is enabled, captures it with the context as tags.
func ReportIssueWithContext(err error, issueType IssueType, log *zap.SugaredLogger, context map[string]interface{}) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	keysAndValues := make([]interface{}, 0, 2*len(context)+2)
	for _, key := range sortedKeys(context) {
		keysAndValues = append(keysAndValues, key, context[key])
	}
	// The zap hook skips entries carrying this field, they are captured below
	keysAndValues = append(keysAndValues, reportedFieldKey, true)

	switch issueType {
	case IssueTypeWarning:
		log.Warnw(err.Error(), keysAndValues...)
	default:
		log.Errorw(err.Error(), keysAndValues...)
	}

	if !Enabled() {
		return
	}
	sentry.CaptureEvent(createSentryEvent(issueType.level(), err, context))
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ReportFSMError reports a failed state machine action with the state and trigger it happened in.
func ReportFSMError(log *zap.SugaredLogger, instanceID string, state string, trigger string, err error) {
	ReportIssueWithContext(err, IssueTypeError, log, map[string]interface{}{
		"instance_id": instanceID,
		"fsm_type":    "gantry",
		"state":       state,
		"trigger":     trigger,
	})
}

// ReportServiceError reports a service-related error with proper context.
func ReportServiceError(log *zap.SugaredLogger, serviceID string, serviceType string, operation string, err error) {
	ReportIssueWithContext(err, IssueTypeError, log, map[string]interface{}{
		"service_id":   serviceID,
		"service_type": serviceType,
		"operation":    operation,
	})
}
