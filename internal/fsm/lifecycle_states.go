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

package fsm

// Lifecycle states and events shared by every machine built on BaseFSMInstance.
// They are added before the operational transitions.
const (
	// LifecycleStateReady is the initial state of every instance
	LifecycleStateReady = "ready"
	// LifecycleStateFault is reachable from any state and is only left by an explicit reset
	LifecycleStateFault = "fault"

	// LifecycleEventToFault moves the instance into LifecycleStateFault from anywhere
	LifecycleEventToFault = "to_fault"
	// LifecycleEventReset moves the instance from LifecycleStateFault back to LifecycleStateReady
	LifecycleEventReset = "reset"
)

// AnyState can be used as the only source of a transition to allow it from every known state.
const AnyState = "*"

// IsLifecycleState reports whether state is one of the lifecycle states.
func IsLifecycleState(state string) bool {
	switch state {
	case LifecycleStateReady, LifecycleStateFault:
		return true
	default:
		return false
	}
}
