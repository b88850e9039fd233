// Copyright 2021 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tension

import (
	"errors"
	"fmt"
)

// Reason is why a motion or cycle was aborted.
type Reason int

const (
	None      Reason = iota
	UserExit         // Exit pressed; a cancel, not a fault
	OverLimit        // Rear limit reached outside homing
	NoString         // Travelled without load, or the string broke
	AbortGram        // Tension above the safety ceiling
)

var reasonNames = []string{"none", "user exit", "over limit", "no string", "abort gram"}

func (r Reason) String() string {
	if r < 0 || int(r) >= len(reasonNames) {
		return fmt.Sprintf("reason(%d)", int(r))
	}
	return reasonNames[r]
}

// Error lets an abort reason be returned as an error.
func (r Reason) Error() string {
	return r.String()
}

// Fault is true for the reasons that are safety faults.
func (r Reason) Fault() bool {
	return r == OverLimit || r == NoString || r == AbortGram
}

// Outcome is the result of a motion primitive: either Completed with
// the steps taken, or Aborted with a reason.
type Outcome struct {
	Steps  int
	Reason Reason
}

// Completed returns a successful outcome.
func Completed(steps int) Outcome {
	return Outcome{Steps: steps}
}

// Aborted returns an aborted outcome.
func Aborted(r Reason, steps int) Outcome {
	return Outcome{Steps: steps, Reason: r}
}

// Ok is true if the motion completed.
func (o Outcome) Ok() bool {
	return o.Reason == None
}

func (o Outcome) String() string {
	if o.Ok() {
		return fmt.Sprintf("completed(%d)", o.Steps)
	}
	return fmt.Sprintf("aborted(%s after %d)", o.Reason, o.Steps)
}

var (
	// ErrBaselineUnstable is returned when the zero reference does not
	// settle near zero after a reset.
	ErrBaselineUnstable = errors.New("sensor baseline unstable")
	// ErrMotionDisabled is returned while motion is locked out
	// after ErrBaselineUnstable.
	ErrMotionDisabled = errors.New("motion disabled")
	// ErrTuningFailed is returned when a tuning run is abandoned;
	// the configuration has been restored.
	ErrTuningFailed = errors.New("tuning failed")
	// ErrSettleTimeout is returned when a tuning cycle does not
	// reach the target band in time.
	ErrSettleTimeout = errors.New("settle timeout")
)
