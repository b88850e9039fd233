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
	"math"
	"time"

	"github.com/aamcrae/tensioner/metrics"
)

// State is the phase of a tensioning cycle.
type State int32

const (
	Idle State = iota
	Approach
	Settle1
	Settle2
	Hold
	Terminated
)

var stateNames = []string{"idle", "approach", "settle1", "settle2", "hold", "terminated"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// CycleResult describes one tensioning cycle.
type CycleResult struct {
	Outcome           Outcome       // Completed, or why the cycle was aborted
	Target            int           // Approach target in grams
	Load              int           // Hold target in grams
	Reached           bool          // The target band was reached
	Held              bool          // Hold was entered
	Broken            bool          // The string broke during hold
	Exited            bool          // Hold was ended with the exit button
	TimedOut          bool          // The band was not reached in time
	SettleTension     int           // Tension when the band was first reached
	Achieved          int           // Tension when hold ended
	Settle            time.Duration // Cycle start to the band
	HoldTime          time.Duration
	Forward           int // Automatic forward corrections
	Backward          int // Automatic backward corrections
	ForwardBeforeHold int
	Manual            int
	MaxBurst          int  // Most forward corrections in one burst window
	LateOvershoot     bool // A backward correction was needed in hold
}

type cycleOpts struct {
	load, target  int
	holdFor       time.Duration // Zero holds until the operator ends it
	settleTimeout time.Duration
	record        bool
}

// cycle is the working state of a running cycle.
type cycle struct {
	res      CycleResult
	start    time.Time
	forwards []time.Time
	held     bool
}

// Cycle runs one operator tensioning cycle with the current
// configuration. Hold continues until head or exit is pressed, or the
// string breaks.
func (m *Machine) Cycle() (CycleResult, error) {
	if m.disabled {
		return CycleResult{}, ErrMotionDisabled
	}
	r := m.run(cycleOpts{
		load:   m.Config.LoadGrams(),
		target: m.Config.TargetGrams(),
		record: true,
	})
	return r, nil
}

func (m *Machine) run(o cycleOpts) CycleResult {
	c := &cycle{start: m.clock.Now()}
	c.res.Target = o.target
	c.res.Load = o.load
	log.Printf("cycle: start, target %d g, load %d g", o.target, o.load)
	m.view.Message("Tensioning")
	m.beeper.Beep(100 * time.Millisecond)
	m.setState(Approach)

	m.motion.Arm(o.target)
	out := m.motion.Advance(m.Params.Motion.Seek, m.motion.limit(), true, false)
	m.motion.Arm(0)
	if !out.Ok() {
		// The motion has re-homed already.
		c.res.Outcome = out
		return m.abandon(c, o, out.Reason, true)
	}
	m.clock.Sleep(m.Params.Stay)

	var deadline time.Time
	if o.settleTimeout > 0 {
		deadline = c.start.Add(o.settleTimeout)
	}
	if r, ok := m.converge(c, o.target, 0, deadline); r != None {
		return m.abandon(c, o, r, ok)
	} else if !ok {
		c.res.TimedOut = true
		log.Printf("cycle: target band not reached in %s", o.settleTimeout)
		m.fault("Settle timeout")
		return m.abandon(c, o, None, false)
	}
	c.res.Reached = true
	c.res.SettleTension = m.sh.Tension()
	c.res.Settle = m.clock.Now().Sub(c.start)
	m.setState(Settle1)
	m.view.Message("Target Tension")
	m.beeper.Beep(300 * time.Millisecond)
	metrics.SettleSeconds.Observe(c.res.Settle.Seconds())

	if o.target != o.load {
		m.setState(Settle2)
		if r, ok := m.converge(c, o.load, m.Params.Dwell, time.Time{}); r != None {
			return m.abandon(c, o, r, ok)
		}
	}
	m.hold(c, o)
	return m.finish(c, o)
}

// converge corrects toward target until the tension has stayed in the
// band for dwell. It returns the abort reason, and false for ok if the
// deadline passed first. A motion abort has already re-homed, which is
// reported by ok being true with a reason.
func (m *Machine) converge(c *cycle, target int, dwell time.Duration, deadline time.Time) (Reason, bool) {
	var since time.Time
	for {
		t := m.sh.Tension()
		if t > m.Config.AbortGrams {
			return AbortGram, false
		}
		if t < MinStrungGrams {
			return NoString, false
		}
		if m.buttons.Pressed(Exit) {
			return UserExit, false
		}
		now := m.clock.Now()
		if InBand(target, t, m.Params.Band) {
			if since.IsZero() {
				since = now
			}
			if now.Sub(since) >= dwell {
				return None, true
			}
			m.clock.Sleep(m.Params.Poll)
			continue
		}
		since = time.Time{}
		if !deadline.IsZero() && now.After(deadline) {
			return None, false
		}
		var o Outcome
		if t < target {
			o = m.pulseForward(c, false)
		} else {
			o = m.pulseBackward(c, false)
		}
		if !o.Ok() {
			return o.Reason, true
		}
		m.clock.Sleep(m.Params.PulseGap)
	}
}

// hold keeps the load in band until the cycle is ended.
func (m *Machine) hold(c *cycle, o cycleOpts) {
	m.setState(Hold)
	c.held = true
	c.res.Held = true
	start := m.clock.Now()
	manual := false
	for {
		t := m.sh.Tension()
		now := m.clock.Now()
		c.res.HoldTime = now.Sub(start)
		m.view.Live(t)
		m.view.Settle(c.res.HoldTime)
		c.res.Achieved = t
		if t > m.Config.AbortGrams {
			c.res.Outcome = Aborted(AbortGram, 0)
			return
		}
		if t < MinStrungGrams {
			log.Printf("cycle: string broken, %d g in hold", t)
			c.res.Broken = true
			c.res.Outcome = Aborted(NoString, 0)
			return
		}
		if m.buttons.Pressed(Head) {
			return
		}
		if m.buttons.Pressed(Exit) {
			c.res.Exited = true
			return
		}
		if o.holdFor > 0 && c.res.HoldTime >= o.holdFor {
			return
		}
		if m.buttons.Pressed(Settings) {
			manual = !manual
			m.beeper.Beep(50 * time.Millisecond)
		}
		var out Outcome
		pulsed := true
		switch {
		case m.buttons.Pressed(Up):
			manual = true
			out = m.pulseForward(c, true)
		case m.buttons.Pressed(Down):
			manual = true
			out = m.pulseBackward(c, true)
		case !manual && !InBand(o.load, t, m.Params.Band):
			if t < o.load {
				out = m.pulseForward(c, false)
			} else {
				c.res.LateOvershoot = true
				out = m.pulseBackward(c, false)
			}
		default:
			pulsed = false
		}
		if !out.Ok() {
			c.res.Outcome = out
			return
		}
		if pulsed {
			m.clock.Sleep(m.Params.PulseGap)
		} else {
			m.clock.Sleep(m.Params.Poll)
		}
	}
}

// pulseForward is one forward correction of the fine step.
func (m *Machine) pulseForward(c *cycle, manual bool) Outcome {
	o := m.motion.Advance(m.Params.Motion.Fine, m.Config.FineStep, false, false)
	switch {
	case manual:
		c.res.Manual++
		m.beeper.Beep(50 * time.Millisecond)
	default:
		c.res.Forward++
		c.forwards = append(c.forwards, m.clock.Now())
		if !c.held {
			c.res.ForwardBeforeHold++
		}
		m.beeper.Beep(20 * time.Millisecond)
	}
	return o
}

// pulseBackward is one backward correction, a fraction of the fine step.
func (m *Machine) pulseBackward(c *cycle, manual bool) Outcome {
	steps := int(math.Round(float64(m.Config.FineStep) * m.Params.SubCoefficient))
	if steps < 1 {
		steps = 1
	}
	o := m.motion.Retreat(m.Params.Motion.Fine, steps, true, false)
	if manual {
		c.res.Manual++
		m.beeper.Beep(50 * time.Millisecond)
	} else {
		c.res.Backward++
		m.beeper.Beep(20 * time.Millisecond)
	}
	return o
}

// abandon ends a cycle that did not complete. If rehomed is false the
// slide is returned to standby first.
func (m *Machine) abandon(c *cycle, o cycleOpts, r Reason, rehomed bool) CycleResult {
	if r != None {
		c.res.Outcome = Aborted(r, c.res.Outcome.Steps)
		log.Printf("cycle: aborted: %s", r)
		m.abortMessage(r)
	}
	if !rehomed {
		m.motion.HomeToStandby(false)
	}
	m.setState(Idle)
	c.res.MaxBurst = MaxBurst(c.forwards, m.Params.BurstWindow)
	metrics.Corrections(c.res.Forward, c.res.Backward)
	return c.res
}

// finish terminates a cycle that reached hold: the slide is re-homed,
// and an operator cycle is counted, logged and saved.
func (m *Machine) finish(c *cycle, o cycleOpts) CycleResult {
	m.setState(Terminated)
	if r := c.res.Outcome.Reason; r != None {
		m.abortMessage(r)
	}
	m.view.Message("Resetting...")
	m.motion.HomeToStandby(false)
	c.res.MaxBurst = MaxBurst(c.forwards, m.Params.BurstWindow)
	metrics.Corrections(c.res.Forward, c.res.Backward)
	if o.record {
		now := m.clock.Now()
		m.Config.Cycles++
		m.nudge(c.res.ForwardBeforeHold)
		rec := m.record(&c.res, now)
		m.store.AppendLogRecord(rec)
		m.Save()
		m.last = now
		metrics.CyclesTotal.Inc()
		log.Printf("cycle: %d done, achieved %d g, %d/%d corrections, settle %s",
			rec.Cycle, rec.Achieved, rec.Forward, rec.Backward, c.res.Settle)
	}
	if !c.res.Broken && c.res.Outcome.Ok() {
		m.view.Message("Ready")
	}
	m.setState(Idle)
	return c.res
}

// nudge applies the automatic coefficient adjustment for a cycle.
// Only operator cycles are nudged.
func (m *Machine) nudge(forward int) {
	if !m.Config.AutoNudge {
		return
	}
	if Nudge(&m.Config, forward, m.Params.NudgeLimit) {
		log.Printf("cycle: correction coefficient now %.2f", m.Config.Correction)
		m.publish()
	}
}

// Nudge moves the correction coefficient one hundredth toward fewer
// corrections: down after more than limit forward corrections, up
// after none. It returns true if the coefficient changed.
func Nudge(c *Config, forward, limit int) bool {
	old := c.Correction
	switch {
	case forward > limit:
		c.Adjust(FieldCorrection, -1)
	case forward == 0:
		c.Adjust(FieldCorrection, 1)
	}
	return c.Correction != old
}

// InBand is true if the tension is strictly within band of the target.
func InBand(target, tension, band int) bool {
	d := target - tension
	if d < 0 {
		d = -d
	}
	return d < band
}

// MaxBurst returns the most events that fall in any window of the
// duration. The times must be in order.
func MaxBurst(times []time.Time, window time.Duration) int {
	best := 0
	first := 0
	for i, t := range times {
		for t.Sub(times[first]) >= window {
			first++
		}
		if n := i - first + 1; n > best {
			best = n
		}
	}
	return best
}
