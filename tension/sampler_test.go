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
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aamcrae/tensioner/io"
)

type fakeLoad struct {
	vals []int
	err  error
}

func (f *fakeLoad) Read() (int, bool, error) {
	if f.err != nil {
		return 0, false, f.err
	}
	if len(f.vals) == 0 {
		return 0, false, nil
	}
	v := f.vals[0]
	f.vals = f.vals[1:]
	return v, true, nil
}

type level struct {
	v int
}

func (l *level) Get() (int, error) {
	return l.v, nil
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time        { return c.now }
func (c *fakeClock) Sleep(d time.Duration) { c.now = c.now.Add(d) }

func newTestSampler(load LoadSource) (*Sampler, *Shared, *fakeClock, [NumButtons]*level) {
	sh := NewShared()
	clk := &fakeClock{now: time.Unix(1000, 0)}
	var levels [NumButtons]*level
	var inputs [NumButtons]io.Getter
	for i := range levels {
		levels[i] = &level{}
		inputs[i] = levels[i]
	}
	return NewSampler(sh, load, inputs, clk), sh, clk, levels
}

// liveLoad is a load source changed from another goroutine.
type liveLoad struct {
	raw atomic.Int64
}

func (l *liveLoad) Read() (int, bool, error) {
	return int(l.raw.Load()), true, nil
}

type liveLevel struct {
	v atomic.Int32
}

func (l *liveLevel) Get() (int, error) {
	return int(l.v.Load()), nil
}

func TestSamplerRun(t *testing.T) {
	load := &liveLoad{}
	load.raw.Store(500)
	var levels [NumButtons]*liveLevel
	var inputs [NumButtons]io.Getter
	for i := range levels {
		levels[i] = &liveLevel{}
		inputs[i] = levels[i]
	}
	sh := NewShared()
	s := NewSampler(sh, load, inputs, SystemClock)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, time.Millisecond) }()

	require.Eventually(t, sh.BaselineReady, time.Second, time.Millisecond)
	base, _ := sh.Baseline()
	assert.Equal(t, 500, base)
	load.raw.Store(500 + 12000)
	require.Eventually(t, func() bool { return sh.Tension() == 120 }, time.Second, time.Millisecond)

	sh.requestBaselineReset()
	assert.False(t, sh.BaselineReady())
	require.Eventually(t, sh.BaselineReady, time.Second, time.Millisecond)
	base, _ = sh.Baseline()
	assert.Equal(t, 12500, base)

	sh.moveID.Store(3)
	sh.stopGrams.Store(1000)
	load.raw.Store(12500 + 200000)
	require.Eventually(t, func() bool { return sh.stopSeq.Load() == 3 }, time.Second, time.Millisecond)
	assert.Equal(t, 2000, sh.Tension())

	b := NewButtons(sh)
	levels[Exit].v.Store(1)
	require.Eventually(t, func() bool { return b.Pressed(Exit) }, time.Second, 5*time.Millisecond)
	levels[Exit].v.Store(0)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sampler did not stop")
	}
}

func TestMedian(t *testing.T) {
	in := []int{50, 3, 99, 7, 12, 1000, -4, 8, 21, 40, 15}
	assert.Equal(t, 15, Median(in))
	// Input order does not matter and the input is not modified.
	rev := make([]int, len(in))
	for i, v := range in {
		rev[len(in)-1-i] = v
	}
	assert.Equal(t, 15, Median(rev))
	assert.Equal(t, 50, in[0])
}

func TestScale(t *testing.T) {
	tests := []struct {
		raw, base, cal, want int
	}{
		{12000 + 500, 500, 20, 120},
		{12050, 0, 20, 120},
		{12000, 0, 25, 150},
		{12000, 0, 15, 90},
		{-150, 0, 20, -2},
		{0, 0, 20, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Scale(tt.raw, tt.base, tt.cal), "raw %d cal %d", tt.raw, tt.cal)
	}
}

func TestSamplerBaseline(t *testing.T) {
	vals := []int{503, 498, 9000, 501, 497, 500, 499, 502, 496, 504, -7000}
	load := &fakeLoad{vals: append(append([]int(nil), vals...), 500+12000)}
	s, sh, _, _ := newTestSampler(load)
	for i := 0; i < BaselineSamples-1; i++ {
		s.Poll()
		assert.False(t, sh.BaselineReady())
	}
	s.Poll()
	require.True(t, sh.BaselineReady())
	base, ok := sh.Baseline()
	assert.True(t, ok)
	assert.Equal(t, 500, base)
	assert.Equal(t, uint64(0), sh.Samples())

	s.Poll()
	assert.Equal(t, 120, sh.Tension())
	assert.Equal(t, uint64(1), sh.Samples())
	assert.Equal(t, 12500, sh.Raw())
}

func TestSamplerReset(t *testing.T) {
	load := &fakeLoad{}
	for i := 0; i < BaselineSamples; i++ {
		load.vals = append(load.vals, 100)
	}
	load.vals = append(load.vals, 100+5000)
	s, sh, _, _ := newTestSampler(load)
	for len(load.vals) > 0 {
		s.Poll()
	}
	require.True(t, sh.BaselineReady())
	assert.Equal(t, 50, sh.Tension())

	sh.requestBaselineReset()
	assert.False(t, sh.BaselineReady())
	s.Poll()
	assert.False(t, sh.BaselineReady())
	assert.Equal(t, 0, sh.Tension())
	for i := 0; i < BaselineSamples; i++ {
		load.vals = append(load.vals, 2000)
	}
	for len(load.vals) > 0 {
		s.Poll()
	}
	assert.True(t, sh.BaselineReady())
	base, _ := sh.Baseline()
	assert.Equal(t, 2000, base)
}

func TestSamplerLoadError(t *testing.T) {
	s, sh, _, _ := newTestSampler(&fakeLoad{err: errors.New("bus")})
	s.Poll()
	s.Poll()
	assert.False(t, sh.BaselineReady())
}

func TestStopFlag(t *testing.T) {
	load := &fakeLoad{}
	for i := 0; i < BaselineSamples; i++ {
		load.vals = append(load.vals, 0)
	}
	s, sh, _, _ := newTestSampler(load)
	for len(load.vals) > 0 {
		s.Poll()
	}
	sh.setCorrection(1.13)
	sh.stopGrams.Store(1000)

	// Not moving: no flag.
	load.vals = []int{90000}
	s.Poll()
	assert.Equal(t, uint64(0), sh.stopSeq.Load())

	sh.moveID.Store(7)
	// 880 * 1.13 = 994.4
	load.vals = []int{88000}
	s.Poll()
	assert.Equal(t, uint64(0), sh.stopSeq.Load())
	// 890 * 1.13 = 1005.7
	load.vals = []int{89000}
	s.Poll()
	assert.Equal(t, uint64(7), sh.stopSeq.Load())

	// Disarmed.
	sh.moveID.Store(8)
	sh.stopGrams.Store(0)
	load.vals = []int{150000}
	s.Poll()
	assert.Equal(t, uint64(7), sh.stopSeq.Load())
}

func TestButtonClick(t *testing.T) {
	s, sh, clk, levels := newTestSampler(&fakeLoad{})
	b := NewButtons(sh)

	levels[Up].v = 1
	s.Poll()
	clk.Sleep(100 * time.Millisecond)
	s.Poll()
	assert.False(t, b.Pressed(Up), "no edge while held inside the click window")
	levels[Up].v = 0
	s.Poll()
	assert.True(t, b.Pressed(Up))
	assert.False(t, b.Pressed(Up), "edge is consumed by reading it")
	assert.False(t, b.Pressed(Down))
}

func TestButtonHeld(t *testing.T) {
	s, sh, clk, levels := newTestSampler(&fakeLoad{})
	b := NewButtons(sh)

	levels[Exit].v = 1
	for i := 0; i < 30; i++ {
		s.Poll()
		clk.Sleep(20 * time.Millisecond)
	}
	assert.True(t, b.Pressed(Exit), "held past the window reports the press")
	levels[Exit].v = 0
	s.Poll()
	assert.False(t, b.Pressed(Exit), "release after a long press is not a second edge")

	levels[Exit].v = 1
	s.Poll()
	levels[Exit].v = 0
	s.Poll()
	levels[Head].v = 1
	s.Poll()
	levels[Head].v = 0
	s.Poll()
	b.Clear()
	assert.False(t, b.Pressed(Exit))
	assert.False(t, b.Pressed(Head))
}

func TestButtonNames(t *testing.T) {
	for b := Button(0); b < NumButtons; b++ {
		got, ok := ButtonByName(b.String())
		assert.True(t, ok)
		assert.Equal(t, b, got)
	}
	_, ok := ButtonByName("menu")
	assert.False(t, ok)
}
