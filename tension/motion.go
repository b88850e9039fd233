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
	"log"
	"time"

	"github.com/aamcrae/tensioner/io"
	"github.com/aamcrae/tensioner/metrics"
)

// Motor moves the slide by one physical step per call.
type Motor interface {
	Forward() error
	Backward() error
}

// MotionParams are the mechanical constants of the slide.
type MotionParams struct {
	Seek     time.Duration // Step delay for fast moves
	Fine     time.Duration // Step delay for corrections
	Backoff  int           // Steps to move off the front switch after homing
	MaxSteps int           // Soft limit of the slide position
}

// DefaultMotionParams returns the parameters of the standard slide.
func DefaultMotionParams() MotionParams {
	return MotionParams{
		Seek:     100 * time.Microsecond,
		Fine:     500 * time.Microsecond,
		Backoff:  2000,
		MaxSteps: 60000,
	}
}

// Motion drives the slide and owns its position, which is referenced
// from the front limit switch. All methods run on the control goroutine.
type Motion struct {
	Params   MotionParams
	sh       *Shared
	motor    Motor
	front    io.Getter
	rear     io.Getter
	buttons  *Buttons
	clock    Clock
	ceiling  func() int
	position int
	travel   int
	moveID   uint64
	homed    bool
	errs     int
	Forwards int // Total forward steps, for diagnostics
}

// NewMotion creates a motion controller. ceiling returns the current
// abort threshold in grams.
func NewMotion(sh *Shared, motor Motor, front, rear io.Getter, buttons *Buttons, clock Clock, params MotionParams, ceiling func() int) *Motion {
	return &Motion{
		Params:  params,
		sh:      sh,
		motor:   motor,
		front:   front,
		rear:    rear,
		buttons: buttons,
		clock:   clock,
		ceiling: ceiling,
		travel:  params.MaxSteps,
	}
}

// Position returns the slide position in steps from the front switch.
func (m *Motion) Position() int {
	return m.position
}

// Homed is true once the front switch has been found.
func (m *Motion) Homed() bool {
	return m.homed
}

// Travel returns the last measured travel.
func (m *Motion) Travel() int {
	return m.travel
}

// SetTravel sets the travel used by the no-string check, typically
// restored from the saved configuration.
func (m *Motion) SetTravel(t int) {
	if t > 0 {
		m.travel = t
	}
}

// Arm sets the corrected target at which the sampler stops the next
// checked advance. Zero disarms.
func (m *Motion) Arm(grams int) {
	m.sh.stopGrams.Store(int64(grams))
}

// Advance moves the slide forward (increasing tension) up to maxSteps.
// The safety ceiling and the rear limit are always enforced; checked
// adds the exit button, the no-string check and the armed stop flag.
// Any abort re-homes the slide before returning. In homing mode
// reaching the rear limit completes the move, and the steps taken
// are the travel measurement.
func (m *Motion) Advance(delay time.Duration, maxSteps int, checked, homing bool) Outcome {
	id := m.begin()
	defer m.end()
	for i := 0; i < maxSteps; i++ {
		c := Conditions{
			Tension: m.sh.Tension(),
			Ceiling: m.ceiling(),
			Rear:    m.atRear(),
			Homing:  homing,
			Checked: checked,
			Steps:   i,
			Travel:  m.travel,
		}
		if checked {
			c.Exit = m.buttons.Pressed(Exit)
		}
		if r := Check(c); r != None {
			log.Printf("motion: advance aborted after %d steps at %d: %s (%d g)", i, m.position, r, c.Tension)
			metrics.Abort(r.String())
			m.end()
			m.rehome(false)
			return Aborted(r, i)
		}
		if c.Rear {
			log.Printf("motion: rear limit after %d steps", i)
			m.end()
			m.rehome(true)
			return Completed(i)
		}
		if checked && m.sh.stopSeq.Load() == id {
			return Completed(i)
		}
		m.forward()
		m.clock.Sleep(delay)
	}
	return Completed(maxSteps)
}

// Retreat moves the slide backward up to maxSteps. If checked, the
// front switch ends the move: the position origin is reset and the
// slide backs off the switch. In homing mode the steps taken are
// recorded as the measured travel.
func (m *Motion) Retreat(delay time.Duration, maxSteps int, checked, homing bool) Outcome {
	m.begin()
	defer m.end()
	for i := 0; i < maxSteps; i++ {
		if m.atFront() {
			if !checked {
				m.setPosition(0)
				return Completed(i)
			}
			if homing {
				m.travel = i
				log.Printf("motion: measured travel %d steps", i)
			}
			m.homed = true
			m.setPosition(0)
			m.backoff()
			return Completed(i)
		}
		m.backward()
		m.clock.Sleep(delay)
	}
	return Completed(maxSteps)
}

// HomeToStandby retreats to the front switch and backs off it. When
// already on the switch, only the backoff is performed. If
// resetBaseline is set the sampler discards its zero reference.
func (m *Motion) HomeToStandby(resetBaseline bool) Outcome {
	o := m.Retreat(m.Params.Seek, m.limit(), true, false)
	if resetBaseline {
		m.sh.requestBaselineReset()
	}
	return o
}

// MeasureTravel runs from standby to the rear switch and back,
// returning the forward steps.
func (m *Motion) MeasureTravel() Outcome {
	m.HomeToStandby(false)
	return m.Advance(m.Params.Seek, m.limit(), false, true)
}

// rehome returns to the front switch after an abort or the rear limit.
func (m *Motion) rehome(homing bool) {
	m.Arm(0)
	m.Retreat(m.Params.Seek, m.limit(), true, homing)
}

// backoff moves off the front switch without any checks.
func (m *Motion) backoff() {
	for i := 0; i < m.Params.Backoff && !m.atRear(); i++ {
		m.forward()
		m.clock.Sleep(m.Params.Seek)
	}
}

func (m *Motion) limit() int {
	// Enough to cross the slide from anywhere, with margin for an
	// unhomed start.
	return 2*m.Params.MaxSteps + m.Params.Backoff
}

func (m *Motion) begin() uint64 {
	m.moveID++
	m.sh.moveID.Store(m.moveID)
	return m.moveID
}

func (m *Motion) end() {
	m.sh.moveID.Store(0)
}

func (m *Motion) atFront() bool {
	v, err := m.front.Get()
	return err == nil && v != 0
}

func (m *Motion) atRear() bool {
	if m.homed && m.position >= m.Params.MaxSteps {
		return true
	}
	v, err := m.rear.Get()
	return err == nil && v != 0
}

func (m *Motion) forward() {
	if err := m.motor.Forward(); err != nil {
		m.fail(err)
		return
	}
	m.Forwards++
	if m.position < m.Params.MaxSteps {
		m.setPosition(m.position + 1)
	}
}

func (m *Motion) backward() {
	if err := m.motor.Backward(); err != nil {
		m.fail(err)
		return
	}
	if m.position > 0 {
		m.setPosition(m.position - 1)
	}
}

func (m *Motion) setPosition(p int) {
	m.position = p
	m.sh.position.Store(int64(p))
	metrics.Position.Set(float64(p))
}

func (m *Motion) fail(err error) {
	if m.errs%100 == 0 {
		log.Printf("motion: step: %v", err)
	}
	m.errs++
}
