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

// Package tension implements the tensioner control core: load sampling,
// slide motion with limit homing, safety policy, the tensioning cycle
// and the self-tuning engine.
//
// Two goroutines cooperate. The sampler reads the load cell and the
// buttons in a tight loop; the control goroutine runs everything else.
// They exchange state only through Shared, where every field has
// exactly one writer.
package tension

import (
	"math"
	"sync/atomic"
)

// Button identifies one of the front panel buttons.
type Button int

const (
	Head Button = iota
	Up
	Down
	Left
	Right
	Settings
	Exit
	NumButtons
)

var buttonNames = [NumButtons]string{"head", "up", "down", "left", "right", "settings", "exit"}

func (b Button) String() string {
	if b < 0 || b >= NumButtons {
		return "unknown"
	}
	return buttonNames[b]
}

// ButtonByName returns the button with the name.
func ButtonByName(name string) (Button, bool) {
	for i, n := range buttonNames {
		if n == name {
			return Button(i), true
		}
	}
	return 0, false
}

// Shared holds the state exchanged between the sampler and the
// control goroutine. Each field is a single scalar with one writer;
// readers tolerate values up to one sample interval old.
type Shared struct {
	// Written by the sampler.
	tension     atomic.Int64
	raw         atomic.Int64
	baseline    atomic.Int64
	baselineSet atomic.Bool
	samples     atomic.Uint64
	resetAck    atomic.Uint64
	stopSeq     atomic.Uint64
	edgeSeq     [NumButtons]atomic.Uint32

	// Written by the control goroutine.
	moveID      atomic.Uint64
	stopGrams   atomic.Int64
	correction  atomic.Uint64 // float64 bits
	calibration atomic.Int64
	resetReq    atomic.Uint64
	position    atomic.Int64
	state       atomic.Int32
}

// NewShared returns the shared state with nominal calibration.
func NewShared() *Shared {
	sh := new(Shared)
	sh.calibration.Store(defaultCalibration)
	sh.setCorrection(defaultCorrection)
	return sh
}

// Tension returns the latest calibrated tension in grams.
func (sh *Shared) Tension() int {
	return int(sh.tension.Load())
}

// Raw returns the latest raw load sample.
func (sh *Shared) Raw() int {
	return int(sh.raw.Load())
}

// Baseline returns the zero reference and whether it is established.
func (sh *Shared) Baseline() (int, bool) {
	return int(sh.baseline.Load()), sh.BaselineReady()
}

// BaselineReady is true once a baseline exists that was taken after
// the most recent reset request.
func (sh *Shared) BaselineReady() bool {
	return sh.baselineSet.Load() && sh.resetAck.Load() == sh.resetReq.Load()
}

// Samples returns the number of calibrated readings published so far.
func (sh *Shared) Samples() uint64 {
	return sh.samples.Load()
}

// Position returns the slide position last published by the motion controller.
func (sh *Shared) Position() int {
	return int(sh.position.Load())
}

// State returns the current cycle state.
func (sh *Shared) State() State {
	return State(sh.state.Load())
}

// Correction returns the published correction coefficient.
func (sh *Shared) Correction() float64 {
	return math.Float64frombits(sh.correction.Load())
}

// Calibration returns the published load cell calibration factor.
func (sh *Shared) Calibration() int {
	return int(sh.calibration.Load())
}

func (sh *Shared) setCorrection(c float64) {
	sh.correction.Store(math.Float64bits(c))
}

// requestBaselineReset asks the sampler to discard its baseline.
func (sh *Shared) requestBaselineReset() {
	sh.resetReq.Add(1)
}

// Buttons consumes the edges published by the sampler. It is owned by
// the control goroutine; reading an edge consumes it.
type Buttons struct {
	sh   *Shared
	seen [NumButtons]uint32
}

// NewButtons creates an edge consumer on the shared state.
func NewButtons(sh *Shared) *Buttons {
	return &Buttons{sh: sh}
}

// Pressed returns true once for each press of the button.
func (b *Buttons) Pressed(btn Button) bool {
	seq := b.sh.edgeSeq[btn].Load()
	if seq == b.seen[btn] {
		return false
	}
	b.seen[btn] = seq
	return true
}

// Clear discards any pending edges.
func (b *Buttons) Clear() {
	for i := range b.seen {
		b.seen[i] = b.sh.edgeSeq[i].Load()
	}
}
