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
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/aamcrae/tensioner/metrics"
)

// TuneParams control the tuning engine.
type TuneParams struct {
	Trials        int           // Coefficient trials in phase 1
	NominalLb     float64       // Phase 1 target
	ProbeStep     int           // Fine step during phase 1
	HoldFor       time.Duration // Hold observed in each phase 2 cycle
	SettleTimeout time.Duration // A phase 2 cycle must reach the band in this time
	MaxCycles     int           // Phase 2 gives up after this many cycles
	Stable        int           // Unchanged cycles needed to finish
}

// DefaultTuneParams returns the standard tuning constants.
func DefaultTuneParams() TuneParams {
	return TuneParams{
		Trials:        5,
		NominalLb:     15,
		ProbeStep:     10,
		HoldFor:       3 * time.Second,
		SettleTimeout: 10 * time.Second,
		MaxCycles:     20,
		Stable:        2,
	}
}

// TrialResult is the outcome of one tuning cycle.
type TrialResult struct {
	Succeeded   bool
	Coefficient float64
	FineStep    int
	Burst       int
}

// TuneReport summarises a tuning run.
type TuneReport struct {
	RunID      string
	Trials     []TrialResult // Phase 1
	Candidate  float64
	Cycles     []TrialResult // Phase 2
	Correction float64
	FineStep   int
}

// AutoTune learns the correction coefficient and the fine step. Phase 1
// measures the overshoot at a nominal load with the coefficient at 1,
// and takes the median as the candidate. Phase 2 runs full cycles and
// adjusts the fine step from the correction bursts until two cycles in
// a row change nothing. Any abort, exit press or settle timeout
// restores the configuration as it was and returns ErrTuningFailed.
// Tuning cycles are not recorded, so the automatic coefficient nudge
// does not run for them.
func (m *Machine) AutoTune() (TuneReport, error) {
	rep := TuneReport{RunID: uuid.NewString()}
	if m.disabled {
		return rep, ErrMotionDisabled
	}
	tp := m.Params.Tune
	saved := m.Config
	m.buttons.Clear()
	log.Printf("smart: run %s starting", rep.RunID)

	fail := func(err error) (TuneReport, error) {
		m.Config = saved
		m.publish()
		m.Save()
		metrics.Tuned("failed")
		log.Printf("smart: run %s: %v, configuration restored", rep.RunID, err)
		m.fault("SMART failed")
		return rep, err
	}

	// Phase 1
	m.Config.FineStep = tp.ProbeStep
	target := stretched(tp.NominalLb, 0)
	var coefs []float64
	for i := 0; i < tp.Trials; i++ {
		if m.buttons.Pressed(Exit) {
			return fail(fmt.Errorf("%w: phase 1: %s", ErrTuningFailed, UserExit))
		}
		m.view.Message(fmt.Sprintf("SMART 1: %d/%d", i+1, tp.Trials))
		coef, r := m.trial(target)
		rep.Trials = append(rep.Trials, TrialResult{Succeeded: r == nil, Coefficient: coef, FineStep: tp.ProbeStep})
		if r != nil {
			return fail(fmt.Errorf("%w: phase 1 trial %d: %w", ErrTuningFailed, i+1, r))
		}
		log.Printf("smart: trial %d coefficient %.2f", i+1, coef)
		coefs = append(coefs, coef)
	}
	rep.Candidate = MedianCoefficient(coefs)
	m.Config.Correction = CorrectionRange.Clamp(rep.Candidate)
	m.Config.FineStep = saved.FineStep
	m.publish()
	log.Printf("smart: candidate coefficient %.2f", m.Config.Correction)

	// Phase 2
	stable := 0
	for n := 1; stable < tp.Stable; n++ {
		if n > tp.MaxCycles {
			return fail(fmt.Errorf("%w: no convergence in %d cycles", ErrTuningFailed, tp.MaxCycles))
		}
		if m.buttons.Pressed(Exit) {
			return fail(fmt.Errorf("%w: phase 2: %s", ErrTuningFailed, UserExit))
		}
		m.view.Message(fmt.Sprintf("SMART 2: cycle %d", n))
		r := m.run(cycleOpts{
			load:          m.Config.LoadGrams(),
			target:        m.Config.TargetGrams(),
			holdFor:       tp.HoldFor,
			settleTimeout: tp.SettleTimeout,
		})
		switch {
		case !r.Outcome.Ok():
			return fail(fmt.Errorf("%w: phase 2 cycle %d: %w", ErrTuningFailed, n, r.Outcome.Reason))
		case r.Exited:
			return fail(fmt.Errorf("%w: phase 2 cycle %d: %s", ErrTuningFailed, n, UserExit))
		case r.TimedOut:
			return fail(fmt.Errorf("%w: phase 2 cycle %d: %w", ErrTuningFailed, n, ErrSettleTimeout))
		}
		if Tune(&m.Config, r) {
			stable = 0
			m.publish()
		} else {
			stable++
		}
		rep.Cycles = append(rep.Cycles, TrialResult{
			Succeeded:   true,
			Coefficient: m.Config.Correction,
			FineStep:    m.Config.FineStep,
			Burst:       r.MaxBurst,
		})
		log.Printf("smart: cycle %d burst %d, overshoot %v, coefficient %.2f, fine step %d",
			n, r.MaxBurst, r.LateOvershoot, m.Config.Correction, m.Config.FineStep)
	}
	rep.Correction = m.Config.Correction
	rep.FineStep = m.Config.FineStep
	m.Save()
	metrics.Tuned("converged")
	log.Printf("smart: run %s converged", rep.RunID)
	m.view.Message(fmt.Sprintf("SMART CC %.2f FT %d", rep.Correction, rep.FineStep))
	m.beeper.Pattern(100*time.Millisecond, 100*time.Millisecond, 2)
	return rep, nil
}

// Tune applies the phase 2 rules for one cycle and returns true if the
// configuration changed. A cycle without any correction nudges the
// coefficient up. Otherwise a late overshoot shrinks the fine step;
// only without one do large forward bursts grow it.
func Tune(c *Config, r CycleResult) bool {
	old := *c
	switch {
	case r.Forward+r.Backward == 0:
		c.Adjust(FieldCorrection, 1)
		return c.Correction != old.Correction
	case r.LateOvershoot:
		c.Adjust(FieldFineStep, -1)
	case r.MaxBurst >= 8:
		c.Adjust(FieldFineStep, 2)
	case r.MaxBurst >= 5:
		c.Adjust(FieldFineStep, 1)
	}
	return c.FineStep != old.FineStep
}

// trial approaches target with the coefficient at 1, lets the load
// settle, and returns the measured coefficient. The slide is then
// corrected into band with the probe step and returned to standby.
func (m *Machine) trial(target int) (float64, error) {
	m.Config.Correction = 1
	m.publish()
	coef, c, err := m.measure(target)
	if err != nil {
		return 0, err
	}
	if r, ok := m.converge(c, target, 0, time.Time{}); r != None {
		m.abandon(c, cycleOpts{}, r, ok)
		return 0, r
	}
	m.setState(Terminated)
	m.motion.HomeToStandby(false)
	m.setState(Idle)
	return coef, nil
}

// measure approaches target and returns the settled tension as a
// fraction of it, rounded to 2 places. On error the slide has been
// returned to standby.
func (m *Machine) measure(target int) (float64, *cycle, error) {
	c := &cycle{start: m.clock.Now()}
	c.res.Target = target
	c.res.Load = target
	m.setState(Approach)
	m.motion.Arm(target)
	out := m.motion.Advance(m.Params.Motion.Seek, m.motion.limit(), true, false)
	m.motion.Arm(0)
	if !out.Ok() {
		m.abortMessage(out.Reason)
		m.setState(Idle)
		return 0, nil, out.Reason
	}
	m.clock.Sleep(m.Params.Stay)
	t := m.sh.Tension()
	if t > m.Config.AbortGrams {
		m.abandon(c, cycleOpts{}, AbortGram, false)
		return 0, nil, AbortGram
	}
	if t < MinStrungGrams {
		m.abandon(c, cycleOpts{}, NoString, false)
		return 0, nil, NoString
	}
	m.setState(Settle1)
	return round2(float64(t) / float64(target)), c, nil
}

// Probe measures the correction coefficient with a single approach to
// the configured target and stores it.
func (m *Machine) Probe() (float64, error) {
	if m.disabled {
		return 0, ErrMotionDisabled
	}
	saved := m.Config.Correction
	m.view.Message("CC AUTO")
	m.Config.Correction = 1
	m.publish()
	coef, _, err := m.measure(m.Config.TargetGrams())
	if err != nil {
		m.Config.Correction = saved
		m.publish()
		return 0, err
	}
	m.motion.HomeToStandby(false)
	m.setState(Idle)
	m.Config.Correction = round2(CorrectionRange.Clamp(coef))
	m.publish()
	m.Save()
	log.Printf("smart: probe coefficient %.2f", m.Config.Correction)
	m.view.Message(fmt.Sprintf("CC %.2f", m.Config.Correction))
	return m.Config.Correction, nil
}

// MedianCoefficient returns the middle of the sorted coefficients.
func MedianCoefficient(coefs []float64) float64 {
	if len(coefs) == 0 {
		return 0
	}
	s := append([]float64(nil), coefs...)
	sort.Float64s(s)
	return s[len(s)/2]
}
