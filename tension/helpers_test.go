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

	"github.com/stretchr/testify/require"

	"github.com/aamcrae/tensioner/io"
	"github.com/aamcrae/tensioner/sim"
	"github.com/aamcrae/tensioner/store"
	"github.com/aamcrae/tensioner/tension"
)

const backoff = 2000

// bench is a controller running a simulated rig on a virtual clock.
type bench struct {
	clock *sim.Clock
	rig   *sim.Rig
	m     *tension.Machine
}

func testParams() tension.Params {
	p := tension.DefaultParams()
	p.Band = 50
	p.Motion.MaxSteps = 40000
	p.Motion.Backoff = backoff
	return p
}

// newBench builds a bench with the slide at start. setup may change
// the rig before the controller is created.
func newBench(t *testing.T, ps tension.Persistence, start int, setup func(*sim.Rig)) *bench {
	t.Helper()
	clock := sim.NewClock()
	rig := sim.NewRig(clock, start)
	if setup != nil {
		setup(rig)
	}
	var buttons [tension.NumButtons]io.Getter
	for i := range buttons {
		buttons[i] = rig.Button(i)
	}
	hw := tension.Hardware{
		Motor:   rig,
		Front:   rig.Front(),
		Rear:    rig.Rear(),
		Load:    rig,
		Buttons: buttons,
	}
	if ps == nil {
		ps = store.NewMemory()
	}
	m := tension.New(hw, clock, ps, testParams())
	clock.OnTick(func(time.Time) { m.Sampler().Poll() })
	return &bench{clock: clock, rig: rig, m: m}
}

// boot establishes the baseline and homes the slide.
func (b *bench) boot(t *testing.T) {
	t.Helper()
	require.NoError(t, b.m.Boot())
	require.Equal(t, backoff, b.m.Motion().Position())
	require.Equal(t, backoff, b.rig.Pos())
}

// press schedules a short press of the button.
func (b *bench) press(btn tension.Button, after time.Duration) {
	b.rig.Press(int(btn), after, 50*time.Millisecond)
}

// noPercent returns the default configuration without pre-stretch.
func noPercent(c tension.Config) tension.Config {
	c.PreStretch = 0
	c.KnotActive = false
	return c
}
