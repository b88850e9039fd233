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
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/aamcrae/tensioner/io"
	"github.com/aamcrae/tensioner/metrics"
)

// Beeper gives audible feedback without delaying the caller.
type Beeper interface {
	Beep(time.Duration)
	Pattern(on, off time.Duration, count int)
}

// View receives operator facing state. Where and how it is shown is
// up to the implementation.
type View interface {
	Message(text string)
	Live(grams int)
	Settle(d time.Duration)
}

//go:generate mockgen -destination=mocks/persistence.go -package=mocks github.com/aamcrae/tensioner/tension Persistence

// Persistence stores the configuration and the cycle log. Failures
// are handled by the implementation and never reported.
type Persistence interface {
	SaveConfig(Config)
	LoadConfig() Config
	AppendLogRecord(Record)
	LoadLogRecords(limit int) []Record
}

// Hardware is the set of devices the controller runs.
type Hardware struct {
	Motor   Motor
	Front   io.Getter
	Rear    io.Getter
	Load    LoadSource
	Buttons [NumButtons]io.Getter
	Beeper  Beeper
}

// Params are the control loop constants.
type Params struct {
	Motion          MotionParams
	Band            int           // Precision band in grams
	SubCoefficient  float64       // Backward pulse as a fraction of the fine step
	Stay            time.Duration // Wait after the approach stops, before correcting
	Dwell           time.Duration // Time in band required by the second settle
	PulseGap        time.Duration // Wait after each correction pulse
	Poll            time.Duration // Hold loop interval
	BurstWindow     time.Duration
	NudgeLimit      int // More forward corrections than this lowers the coefficient
	BaselineTimeout time.Duration
	ZeroTolerance   int // Largest reading accepted after a zero reset
	ZeroVerify      time.Duration
	CheckTravel     bool // Measure the slide travel at boot
	Tune            TuneParams
}

// DefaultParams returns the constants for the standard machine.
func DefaultParams() Params {
	return Params{
		Motion:          DefaultMotionParams(),
		Band:            100,
		SubCoefficient:  0.5,
		Stay:            time.Second,
		Dwell:           500 * time.Millisecond,
		PulseGap:        100 * time.Millisecond,
		Poll:            20 * time.Millisecond,
		BurstWindow:     time.Second,
		NudgeLimit:      5,
		BaselineTimeout: 5 * time.Second,
		ZeroTolerance:   200,
		ZeroVerify:      time.Second,
		Tune:            DefaultTuneParams(),
	}
}

// Machine is the control goroutine: it runs tensioning cycles, the
// tuning engine and the maintenance operations, and owns Config.
type Machine struct {
	Params   Params
	Config   Config
	Session  string
	OnState  func(s State, tension int) // Called on every state change
	sh       *Shared
	sampler  *Sampler
	motion   *Motion
	buttons  *Buttons
	clock    Clock
	beeper   Beeper
	view     View
	store    Persistence
	last     time.Time // End of the previous recorded cycle
	disabled bool
}

// New creates the controller for the hardware, restoring the saved
// configuration from the store.
func New(hw Hardware, clock Clock, store Persistence, params Params) *Machine {
	m := &Machine{
		Params:  params,
		Session: uuid.NewString(),
		sh:      NewShared(),
		clock:   clock,
		beeper:  hw.Beeper,
		view:    nopView{},
		store:   store,
	}
	if m.beeper == nil {
		m.beeper = nopBeeper{}
	}
	m.buttons = NewButtons(m.sh)
	m.sampler = NewSampler(m.sh, hw.Load, hw.Buttons, clock)
	m.motion = NewMotion(m.sh, hw.Motor, hw.Front, hw.Rear, m.buttons, clock, params.Motion, func() int {
		return m.Config.AbortGrams
	})
	m.Config = store.LoadConfig()
	m.Config.Clamp()
	m.motion.SetTravel(m.Config.Travel)
	m.publish()
	return m
}

// Shared returns the state shared with the sampler.
func (m *Machine) Shared() *Shared { return m.sh }

// Sampler returns the sampler, to be run on its own goroutine.
func (m *Machine) Sampler() *Sampler { return m.sampler }

// Motion returns the motion controller.
func (m *Machine) Motion() *Motion { return m.motion }

// SetView sets the operator view.
func (m *Machine) SetView(v View) {
	if v == nil {
		v = nopView{}
	}
	m.view = v
}

// Disabled is true while motion is locked out by an unstable baseline.
func (m *Machine) Disabled() bool { return m.disabled }

// Pressed consumes a button edge.
func (m *Machine) Pressed(b Button) bool {
	return m.buttons.Pressed(b)
}

// ClearButtons discards pending button edges.
func (m *Machine) ClearButtons() {
	m.buttons.Clear()
}

// Adjust edits a configuration field, clamped, and publishes it.
func (m *Machine) Adjust(f Field, steps int) {
	m.Config.Adjust(f, steps)
	m.publish()
}

// Save persists the configuration.
func (m *Machine) Save() {
	m.store.SaveConfig(m.Config)
}

// Beep sounds the beeper.
func (m *Machine) Beep(d time.Duration) {
	m.beeper.Beep(d)
}

// Boot waits for the baseline and moves the slide to standby.
func (m *Machine) Boot() error {
	m.view.Message("Tension monitoring...")
	if err := m.awaitBaseline(); err != nil {
		m.disabled = true
		m.fault(err.Error())
		return err
	}
	m.view.Message("Resetting...")
	m.motion.HomeToStandby(false)
	if m.Params.CheckTravel {
		m.view.Message("Checking the motor...")
		if o := m.motion.MeasureTravel(); o.Ok() {
			m.Config.Travel = m.motion.Travel()
			m.Save()
		} else {
			m.fault(o.Reason.String())
		}
	}
	log.Printf("machine: ready, session %s, travel %d", m.Session, m.motion.Travel())
	m.view.Message("Ready")
	m.beeper.Beep(100 * time.Millisecond)
	return nil
}

// Home moves the slide to standby.
func (m *Machine) Home() {
	m.view.Message("Resetting...")
	m.motion.HomeToStandby(false)
	m.view.Message("Ready")
}

// ZeroReset re-establishes the load cell zero with the slide at
// standby. The operator has a countdown to unload the string. If the
// new zero does not hold near zero, motion is disabled until a later
// reset succeeds.
func (m *Machine) ZeroReset() error {
	for i := 3; i > 0; i-- {
		m.view.Message(fmt.Sprintf("Zero reset in %d", i))
		m.clock.Sleep(time.Second)
	}
	m.view.Message("Resetting...")
	m.motion.HomeToStandby(true)
	if err := m.awaitBaseline(); err != nil {
		m.disabled = true
		m.fault(err.Error())
		return err
	}
	m.clock.Sleep(m.Params.ZeroVerify)
	if t := m.sh.Tension(); t > m.Params.ZeroTolerance || t < -m.Params.ZeroTolerance {
		m.disabled = true
		log.Printf("machine: zero unstable, %d g after reset", t)
		m.fault("Zero unstable")
		return fmt.Errorf("%w: %d g after reset", ErrBaselineUnstable, t)
	}
	m.disabled = false
	base, _ := m.sh.Baseline()
	log.Printf("machine: zero reset, baseline %d", base)
	m.view.Message("Zero OK")
	m.beeper.Beep(100 * time.Millisecond)
	return nil
}

func (m *Machine) awaitBaseline() error {
	deadline := m.clock.Now().Add(m.Params.BaselineTimeout)
	for !m.sh.BaselineReady() {
		if m.clock.Now().After(deadline) {
			return fmt.Errorf("%w: no baseline after %s", ErrBaselineUnstable, m.Params.BaselineTimeout)
		}
		m.clock.Sleep(m.Params.Poll)
	}
	return nil
}

// publish makes the configuration seen by the sampler current.
func (m *Machine) publish() {
	m.sh.calibration.Store(int64(m.Config.Calibration))
	m.sh.setCorrection(m.Config.Correction)
	metrics.Coefficients(m.Config.Correction, m.Config.FineStep)
}

func (m *Machine) setState(s State) {
	m.sh.state.Store(int32(s))
	if m.OnState != nil {
		m.OnState(s, m.sh.Tension())
	}
}

// fault reports a fault reason to the operator.
func (m *Machine) fault(text string) {
	m.view.Message(text)
	m.beeper.Pattern(200*time.Millisecond, 100*time.Millisecond, 3)
}

// abortMessage reports a motion abort to the operator.
func (m *Machine) abortMessage(r Reason) {
	switch r {
	case UserExit:
		m.view.Message("Abort")
		m.beeper.Beep(100 * time.Millisecond)
	case AbortGram:
		m.view.Message(fmt.Sprintf("Exceeding %dG, Abort", m.Config.AbortGrams))
		m.beeper.Beep(time.Second)
	case NoString:
		m.fault("No string")
	case OverLimit:
		m.fault("Over limit")
	}
}

type nopView struct{}

func (nopView) Message(string)       {}
func (nopView) Live(int)             {}
func (nopView) Settle(time.Duration) {}

type nopBeeper struct{}

func (nopBeeper) Beep(time.Duration)                {}
func (nopBeeper) Pattern(_, _ time.Duration, _ int) {}
