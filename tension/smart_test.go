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

package tension_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aamcrae/tensioner/sim"
	"github.com/aamcrae/tensioner/store"
	"github.com/aamcrae/tensioner/tension"
)

// fastSampling gives a 1ms conversion period, so that the approach
// overshoot varies little from cycle to cycle.
func fastSampling(r *sim.Rig) {
	r.SamplePeriod = time.Millisecond
}

func TestMedianCoefficient(t *testing.T) {
	assert.Equal(t, 1.00, tension.MedianCoefficient([]float64{1.00, 1.02, 0.98, 1.05, 0.97}))
	assert.Equal(t, 1.1, tension.MedianCoefficient([]float64{1.1}))
	assert.Equal(t, 0.0, tension.MedianCoefficient(nil))
}

func TestTuneRules(t *testing.T) {
	tests := []struct {
		name     string
		res      tension.CycleResult
		corr     float64
		fine     int
		changed  bool
		startCor float64
	}{
		{"no corrections", tension.CycleResult{}, 1.14, 20, true, 1.13},
		{"no corrections at max", tension.CycleResult{}, 1.5, 20, false, 1.5},
		{"small burst", tension.CycleResult{Forward: 3, MaxBurst: 3}, 1.13, 20, false, 1.13},
		{"burst of 5", tension.CycleResult{Forward: 5, MaxBurst: 5}, 1.13, 21, true, 1.13},
		{"burst of 8", tension.CycleResult{Forward: 9, MaxBurst: 8}, 1.13, 22, true, 1.13},
		{"late overshoot", tension.CycleResult{Backward: 1, LateOvershoot: true}, 1.13, 19, true, 1.13},
		{"burst and overshoot", tension.CycleResult{Forward: 5, Backward: 1, MaxBurst: 5, LateOvershoot: true}, 1.13, 19, true, 1.13},
		{"large burst and overshoot", tension.CycleResult{Forward: 9, Backward: 1, MaxBurst: 8, LateOvershoot: true}, 1.13, 19, true, 1.13},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := tension.DefaultConfig()
			c.Correction = tc.startCor
			assert.Equal(t, tc.changed, tension.Tune(&c, tc.res))
			assert.InDelta(t, tc.corr, c.Correction, 1e-9)
			assert.Equal(t, tc.fine, c.FineStep)
		})
	}
}

func TestAutoTuneConverges(t *testing.T) {
	ms := store.NewMemory()
	b := newBench(t, ms, 5000, fastSampling)
	b.m.Config = noPercent(b.m.Config)
	b.boot(t)
	before := b.m.Config

	rep, err := b.m.AutoTune()
	require.NoError(t, err)
	assert.NotEmpty(t, rep.RunID)
	require.Len(t, rep.Trials, 5)
	for _, tr := range rep.Trials {
		assert.True(t, tr.Succeeded)
		assert.InDelta(t, 1.11, tr.Coefficient, 0.03)
	}
	assert.InDelta(t, 1.11, rep.Candidate, 0.03)
	assert.GreaterOrEqual(t, len(rep.Cycles), 2)
	assert.GreaterOrEqual(t, rep.Correction, rep.Candidate, "phase 2 only raises the coefficient")
	assert.Equal(t, rep.Correction, b.m.Config.Correction)
	assert.Equal(t, rep.FineStep, b.m.Config.FineStep)
	assert.Equal(t, before.Cycles, b.m.Config.Cycles, "tuning cycles are not counted")
	assert.Empty(t, ms.LoadLogRecords(0), "tuning cycles are not logged")
	assert.Equal(t, b.m.Config, ms.LoadConfig())
	assert.InDelta(t, rep.Correction, b.m.Shared().Correction(), 1e-9)
	assert.Equal(t, backoff, b.m.Motion().Position())
}

func TestAutoTuneExitRestores(t *testing.T) {
	ms := store.NewMemory()
	b := newBench(t, ms, 5000, fastSampling)
	b.boot(t)
	before := b.m.Config
	b.press(tension.Exit, 2*time.Second)
	rep, err := b.m.AutoTune()
	require.ErrorIs(t, err, tension.ErrTuningFailed)
	assert.Equal(t, before, b.m.Config)
	assert.Equal(t, before, ms.LoadConfig())
	assert.InDelta(t, before.Correction, b.m.Shared().Correction(), 1e-9)
	require.Len(t, rep.Trials, 1)
	assert.False(t, rep.Trials[0].Succeeded)
	assert.Equal(t, backoff, b.m.Motion().Position())
}

func TestAutoTuneCoefficientFollowsTuneRules(t *testing.T) {
	b := newBench(t, nil, 5000, fastSampling)
	b.m.Config = noPercent(b.m.Config)
	b.m.Config.AutoNudge = true
	b.boot(t)
	rep, err := b.m.AutoTune()
	require.NoError(t, err)
	require.NotEmpty(t, rep.Cycles)
	// Tune only ever raises the coefficient by one step per cycle.
	prev := tension.CorrectionRange.Clamp(rep.Candidate)
	for i, c := range rep.Cycles {
		step := c.Coefficient - prev
		assert.True(t, step > -1e-9 && step < 0.01+1e-9, "cycle %d moved the coefficient by %.3f", i+1, step)
		prev = c.Coefficient
	}
	assert.True(t, b.m.Config.AutoNudge)
}

func TestAutoTuneBreakInHoldRestores(t *testing.T) {
	ms := store.NewMemory()
	b := newBench(t, ms, 5000, fastSampling)
	b.boot(t)
	before := b.m.Config
	// Phase 1 never holds, so the first hold is in phase 2.
	broken := false
	b.m.OnState = func(s tension.State, _ int) {
		if s == tension.Hold && !broken {
			broken = true
			b.rig.Break()
		}
	}
	rep, err := b.m.AutoTune()
	require.ErrorIs(t, err, tension.ErrTuningFailed)
	assert.ErrorIs(t, err, tension.NoString)
	assert.True(t, broken)
	assert.Len(t, rep.Trials, 5)
	assert.Empty(t, rep.Cycles)
	assert.Equal(t, before, b.m.Config)
	assert.Equal(t, before, ms.LoadConfig())
	assert.InDelta(t, before.Correction, b.m.Shared().Correction(), 1e-9)
}

func TestAutoTuneSettleTimeoutRestores(t *testing.T) {
	ms := store.NewMemory()
	b := newBench(t, ms, 5000, fastSampling)
	b.boot(t)
	b.m.Params.Tune.SettleTimeout = time.Second
	before := b.m.Config
	approaches := 0
	b.m.OnState = func(s tension.State, _ int) {
		if s != tension.Approach {
			return
		}
		approaches++
		if approaches == b.m.Params.Tune.Trials+1 {
			// Drop the load while the slide waits after the approach,
			// past the settle deadline.
			b.rig.At(1600*time.Millisecond, func() { b.rig.AddLoad(-1500) })
		}
	}
	rep, err := b.m.AutoTune()
	require.ErrorIs(t, err, tension.ErrTuningFailed)
	assert.ErrorIs(t, err, tension.ErrSettleTimeout)
	assert.Equal(t, 6, approaches)
	assert.Len(t, rep.Trials, 5)
	assert.Empty(t, rep.Cycles)
	assert.Equal(t, before, b.m.Config)
	assert.Equal(t, before, ms.LoadConfig())
	assert.InDelta(t, before.Correction, b.m.Shared().Correction(), 1e-9)
	assert.Equal(t, backoff, b.m.Motion().Position())
}

func TestAutoTuneNoString(t *testing.T) {
	b := newBench(t, nil, 5000, func(r *sim.Rig) { r.SetNoString(true) })
	b.boot(t)
	before := b.m.Config
	_, err := b.m.AutoTune()
	require.ErrorIs(t, err, tension.ErrTuningFailed)
	assert.ErrorIs(t, err, tension.NoString)
	assert.Equal(t, before, b.m.Config)
}

func TestProbe(t *testing.T) {
	ms := store.NewMemory()
	b := newBench(t, ms, 5000, fastSampling)
	b.boot(t)
	// 10% pre-stretch on 18 lb.
	require.Equal(t, 8981, b.m.Config.TargetGrams())
	coef, err := b.m.Probe()
	require.NoError(t, err)
	assert.InDelta(t, 1.08, coef, 0.02)
	assert.Equal(t, coef, b.m.Config.Correction)
	assert.Equal(t, coef, ms.LoadConfig().Correction)
	assert.Equal(t, backoff, b.m.Motion().Position())
}

func TestZeroReset(t *testing.T) {
	b := newBench(t, nil, 5000, nil)
	b.boot(t)
	require.NoError(t, b.m.ZeroReset())
	assert.False(t, b.m.Disabled())
	assert.True(t, b.m.Shared().BaselineReady())
	assert.Equal(t, backoff, b.m.Motion().Position())
}

func TestZeroResetUnstable(t *testing.T) {
	b := newBench(t, nil, 5000, func(r *sim.Rig) { r.Drift = 50000 })
	b.boot(t)
	err := b.m.ZeroReset()
	require.ErrorIs(t, err, tension.ErrBaselineUnstable)
	assert.True(t, b.m.Disabled())
	_, err = b.m.AutoTune()
	assert.ErrorIs(t, err, tension.ErrMotionDisabled)
	_, err = b.m.Probe()
	assert.ErrorIs(t, err, tension.ErrMotionDisabled)

	// A later reset without drift re-enables motion.
	b.rig.Drift = 0
	require.NoError(t, b.m.ZeroReset())
	assert.False(t, b.m.Disabled())
}
