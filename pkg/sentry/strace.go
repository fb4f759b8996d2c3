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
	"bytes"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/DataDog/gostackparse"
	"github.com/getsentry/sentry-go"
)

// goroutineThreads dumps every goroutine and converts it into a Sentry thread.
// The raw dump is returned as well so it can be attached verbatim.
// The reporting goroutine is listed first by the runtime and marked current.
func goroutineThreads() ([]sentry.Thread, []byte) {
	dump := allStacks()

	goroutines, errs := gostackparse.Parse(bytes.NewReader(dump))
	if len(errs) > 0 && len(goroutines) == 0 {
		return nil, dump
	}

	threads := make([]sentry.Thread, 0, len(goroutines))
	for i, g := range goroutines {
		threads = append(threads, sentry.Thread{
			ID:         strconv.Itoa(g.ID),
			Name:       "goroutine " + strconv.Itoa(g.ID) + " [" + g.State + "]",
			Stacktrace: &sentry.Stacktrace{Frames: toSentryFrames(g.Stack)},
			Current:    i == 0,
		})
	}
	return threads, dump
}

func allStacks() []byte {
	buf := make([]byte, 4096)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) {
			return buf[:n]
		}
		buf = make([]byte, 2*len(buf))
	}
}

// toSentryFrames converts parsed frames. Sentry expects the innermost frame
// last, the runtime prints it first.
func toSentryFrames(stack []*gostackparse.Frame) []sentry.Frame {
	frames := make([]sentry.Frame, len(stack))
	for i, f := range stack {
		frames[len(stack)-1-i] = sentry.Frame{
			Function: f.Func,
			Filename: filepath.Base(f.File),
			AbsPath:  f.File,
			Lineno:   f.Line,
		}
	}
	return frames
}
