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

package panel

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aamcrae/tensioner/display"
	"github.com/aamcrae/tensioner/io"
	"github.com/aamcrae/tensioner/sim"
	"github.com/aamcrae/tensioner/store"
	"github.com/aamcrae/tensioner/tension"
)

type pin struct {
	mu     sync.Mutex
	values []int
}

func (p *pin) Set(v int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values = append(p.values, v)
	return nil
}

func (p *pin) last() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.values) == 0 {
		return -1
	}
	return p.values[len(p.values)-1]
}

type led struct {
	calls []string
}

func (l *led) On()  { l.calls = append(l.calls, "on") }
func (l *led) Off() { l.calls = append(l.calls, "off") }
func (l *led) Set(period time.Duration, duty int) error {
	l.calls = append(l.calls, fmt.Sprintf("blink %s %d", period, duty))
	return nil
}

func (l *led) last() string {
	if len(l.calls) == 0 {
		return ""
	}
	return l.calls[len(l.calls)-1]
}

type bench struct {
	clock  *sim.Clock
	rig    *sim.Rig
	m      *tension.Machine
	p      *Panel
	screen *display.Screen
	store  *store.Memory
	green  *pin
	yellow *pin
	red    *led
}

func newBench(t *testing.T, setup func(*sim.Rig)) *bench {
	t.Helper()
	b := &bench{
		clock:  sim.NewClock(),
		screen: display.NewScreen(),
		store:  store.NewMemory(),
		green:  &pin{},
		yellow: &pin{},
		red:    &led{},
	}
	b.rig = sim.NewRig(b.clock, 5000)
	if setup != nil {
		setup(b.rig)
	}
	var buttons [tension.NumButtons]io.Getter
	for i := range buttons {
		buttons[i] = b.rig.Button(i)
	}
	hw := tension.Hardware{
		Motor:   b.rig,
		Front:   b.rig.Front(),
		Rear:    b.rig.Rear(),
		Load:    b.rig,
		Buttons: buttons,
	}
	params := tension.DefaultParams()
	params.Band = 50
	params.Motion.MaxSteps = 40000
	b.m = tension.New(hw, b.clock, b.store, params)
	b.clock.OnTick(func(time.Time) { b.m.Sampler().Poll() })
	b.p = New(b.m, b.screen, b.clock, Lights{Green: b.green, Yellow: b.yellow, Red: b.red})
	return b
}

func (b *bench) boot(t *testing.T) {
	t.Helper()
	require.NoError(t, b.m.Boot())
	b.p.showMain()
}

// press clicks a button and lets the panel handle it.
func (b *bench) press(btn tension.Button) {
	b.rig.Press(int(btn), 0, 50*time.Millisecond)
	b.clock.Sleep(100 * time.Millisecond)
	b.p.Step()
}

func (b *bench) line(row int) string {
	return strings.TrimRight(b.screen.Lines()[row], " ")
}

func TestMainPageEdit(t *testing.T) {
	b := newBench(t, nil)
	b.p.showMain()
	assert.Equal(t, "T 18.0lb    PS 10%", b.line(0))
	assert.Equal(t, "CC 1.13     FT 20", b.line(1))
	assert.Equal(t, "Ready", b.line(3))

	b.press(tension.Up)
	assert.Equal(t, 28.0, b.m.Config.TargetLb)
	assert.Equal(t, "T 28.0lb    PS 10%", b.line(0))
	assert.Equal(t, "lb-tens 28.0lb", b.line(3))
	assert.Equal(t, 28.0, b.store.LoadConfig().TargetLb)

	b.press(tension.Right)
	b.press(tension.Right)
	assert.Equal(t, "Edit lb-tenths", b.line(3))
	b.press(tension.Down)
	assert.Equal(t, 27.9, b.m.Config.TargetLb)

	b.press(tension.Right)
	b.press(tension.Up)
	assert.Equal(t, 11, b.m.Config.PreStretch)
	assert.Equal(t, "T 27.9lb    PS 11%", b.line(0))

	// The cursor wraps.
	b.press(tension.Right)
	assert.Equal(t, "Edit lb-tens", b.line(3))
	b.press(tension.Left)
	assert.Equal(t, "Edit pre-stretch", b.line(3))
}

func TestMainPageKilograms(t *testing.T) {
	b := newBench(t, nil)
	b.m.Config.Unit = tension.Kilograms
	b.m.Config.KnotActive = true
	b.p.showMain()
	assert.Equal(t, "T 8.2kg     KN 20%", b.line(0))
	b.press(tension.Right)
	b.press(tension.Up)
	assert.Equal(t, "T 9.2kg     KN 20%", b.line(0))
	assert.InDelta(t, 20.3, b.m.Config.TargetLb, 0.05)
}

func TestSettingsPage(t *testing.T) {
	b := newBench(t, nil)
	b.p.showMain()
	b.press(tension.Settings)
	assert.Equal(t, "SETTINGS 1/12", b.line(0))
	assert.Equal(t, "Correction      1.13", b.line(1))
	b.press(tension.Right)
	assert.Equal(t, "Correction      1.14", b.line(1))
	b.press(tension.Down)
	b.press(tension.Left)
	assert.Equal(t, "Fine step         19", b.line(1))
	b.press(tension.Up)
	b.press(tension.Up)
	assert.Equal(t, "SETTINGS 12/12", b.line(0))
	assert.Equal(t, "SMART", b.line(1))
	assert.Equal(t, "HEAD to start", b.line(2))
	// Left and right do nothing on an action.
	before := b.m.Config
	b.press(tension.Right)
	assert.Equal(t, before, b.m.Config)

	saves := b.store.Saves
	b.press(tension.Exit)
	assert.Equal(t, saves+1, b.store.Saves)
	assert.Equal(t, 1.14, b.store.LoadConfig().Correction)
	assert.Equal(t, 19, b.store.LoadConfig().FineStep)
	assert.Equal(t, "CC 1.14     FT 19", b.line(1))
}

func TestCycleFromPanel(t *testing.T) {
	b := newBench(t, nil)
	b.boot(t)
	b.rig.Press(int(tension.Head), 10*time.Second, 50*time.Millisecond)
	b.press(tension.Head)
	assert.Equal(t, 1, b.m.Config.Cycles)
	assert.Len(t, b.store.LoadLogRecords(0), 1)
	assert.Equal(t, "Ready", b.line(3))
	assert.Equal(t, 1, b.green.last())
	assert.Equal(t, 0, b.yellow.last())
	assert.Equal(t, "off", b.red.last())
}

func TestAbortGramAcknowledge(t *testing.T) {
	b := newBench(t, func(r *sim.Rig) { r.Lag = 0 })
	b.boot(t)
	b.rig.At(600*time.Millisecond, func() { b.rig.AddLoad(21000) })
	b.rig.Press(int(tension.Exit), 5*time.Second, 50*time.Millisecond)
	start := b.clock.Now()
	b.press(tension.Head)
	assert.Greater(t, b.clock.Now().Sub(start), 5*time.Second, "waited for exit")
	assert.Contains(t, b.red.calls, "blink 500ms 50")
	assert.Equal(t, "off", b.red.last())
	assert.Equal(t, "Ready", b.line(3))
	assert.Equal(t, 0, b.m.Config.Cycles)
}

func TestLiveRateLimited(t *testing.T) {
	b := newBench(t, nil)
	b.p.Live(100)
	b.p.Live(4536)
	assert.Equal(t, "100g 0.2lb", strings.TrimRight(b.screen.Lines()[2][:15], " "))
	b.clock.Sleep(300 * time.Millisecond)
	b.p.Live(4536)
	assert.Equal(t, "4536g 10.0lb", strings.TrimRight(b.screen.Lines()[2][:15], " "))
	b.p.Settle(12 * time.Second)
	assert.Equal(t, " 12s", b.screen.Lines()[2][15:19])
}

func TestZeroResetAction(t *testing.T) {
	b := newBench(t, nil)
	b.boot(t)
	b.press(tension.Settings)
	for i := 0; i < 3; i++ {
		b.press(tension.Up)
	}
	assert.Equal(t, "TS RESET", b.line(1))
	b.press(tension.Head)
	assert.False(t, b.m.Disabled())
	assert.Equal(t, "Zero OK", b.line(2))
	assert.Equal(t, 1, b.green.last())
}

func TestRun(t *testing.T) {
	b := newBench(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.rig.At(3*time.Second, cancel)
	err := b.p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, b.m.Motion().Homed())
	assert.Contains(t, b.red.calls, "on", "self test")
	assert.Equal(t, 0, b.green.last())
	assert.Equal(t, "off", b.red.last())
}

func TestAbortGramInSettingsActions(t *testing.T) {
	tests := []struct {
		name   string
		ups    int
		action string
	}{
		{"cc auto", 2, "CC AUTO"},
		{"smart", 1, "SMART"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := newBench(t, func(r *sim.Rig) { r.Lag = 0 })
			b.boot(t)
			saved := b.m.Config
			b.press(tension.Settings)
			for i := 0; i < tc.ups; i++ {
				b.press(tension.Up)
			}
			require.Equal(t, tc.action, b.line(1))
			b.rig.At(600*time.Millisecond, func() { b.rig.AddLoad(21000) })
			b.rig.Press(int(tension.Exit), 5*time.Second, 50*time.Millisecond)
			start := b.clock.Now()
			b.press(tension.Head)
			assert.Greater(t, b.clock.Now().Sub(start), 5*time.Second, "waited for exit")
			assert.Contains(t, b.red.calls, "blink 500ms 50")
			assert.Equal(t, "off", b.red.last())
			assert.Equal(t, saved.Correction, b.m.Config.Correction)
			assert.Equal(t, saved.FineStep, b.m.Config.FineStep)
			// Exit acknowledged the fault and left the settings page open.
			assert.True(t, strings.HasPrefix(b.line(0), "SETTINGS"))
		})
	}
}
