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

// Package panel runs the front panel of the tensioner: the main page
// with the target settings and live tension, the settings page, the
// status LEDs and the fault handling. It runs on the control goroutine
// and drives the machine directly.
package panel

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/time/rate"

	"github.com/aamcrae/tensioner/io"
	"github.com/aamcrae/tensioner/tension"
)

// Display is a character display.
type Display interface {
	WriteCell(row, col, width int, text string)
	Clear()
}

// Indicator is an LED that can blink.
type Indicator interface {
	On()
	Off()
	Set(period time.Duration, duty int) error
}

// Lights are the status LEDs. Any of them may be nil.
type Lights struct {
	Green  io.Setter // Ready
	Yellow io.Setter // Moving
	Red    Indicator // Fault, blinking while an acknowledgement is due
}

// Fastest refresh of the live tension.
const liveEvery = 250 * time.Millisecond

type lightState int

const (
	lightsOff lightState = iota
	lightsReady
	lightsMoving
	lightsHold
	lightsFault
	lightsAck
)

// Panel is the operator interface of one machine.
type Panel struct {
	Poll       time.Duration // Button poll interval
	m          *tension.Machine
	d          Display
	lights     Lights
	clock      tension.Clock
	live       *rate.Limiter
	ctx        context.Context
	onSettings bool
	cursor     int
	sel        int
	message    string
}

// New creates the panel and makes it the machine's view.
func New(m *tension.Machine, d Display, clock tension.Clock, lights Lights) *Panel {
	p := &Panel{
		Poll:   20 * time.Millisecond,
		m:      m,
		d:      d,
		lights: lights,
		clock:  clock,
		ctx:    context.Background(),
	}
	p.live = rate.NewLimiter(rate.Every(liveEvery), 1)
	m.SetView(p)
	prev := m.OnState
	m.OnState = func(s tension.State, t int) {
		if prev != nil {
			prev(s, t)
		}
		p.stateChanged(s)
	}
	return p
}

// Run tests the lights, boots the machine and then handles the
// buttons until the context is cancelled.
func (p *Panel) Run(ctx context.Context) error {
	p.ctx = ctx
	p.selfTest()
	p.d.Clear()
	p.show(lightsMoving)
	if err := p.m.Boot(); err != nil {
		log.Printf("panel: boot: %v", err)
		p.show(lightsFault)
	} else {
		p.show(lightsReady)
	}
	p.showMain()
	for ctx.Err() == nil {
		p.Step()
		p.clock.Sleep(p.Poll)
	}
	p.show(lightsOff)
	return ctx.Err()
}

// Step handles at most one button press.
func (p *Panel) Step() {
	if p.onSettings {
		p.settingsStep()
	} else {
		p.mainStep()
	}
}

// Message shows an operator message.
func (p *Panel) Message(text string) {
	p.message = text
	p.write(itemMessage, text)
}

// Live shows the tension, limited to one refresh per liveEvery.
func (p *Panel) Live(grams int) {
	if p.onSettings || !p.live.AllowN(p.clock.Now(), 1) {
		return
	}
	p.write(itemLive, live(grams, p.m.Config.Unit))
}

// Settle shows the time in hold.
func (p *Panel) Settle(d time.Duration) {
	p.write(itemSettle, seconds(d))
}

func (p *Panel) mainStep() {
	m := p.m
	switch {
	case m.Pressed(tension.Head):
		p.cycle()
	case m.Pressed(tension.Exit):
		p.show(lightsMoving)
		m.Home()
		p.show(p.idle())
	case m.Pressed(tension.Settings):
		p.onSettings = true
		p.sel = 0
		p.showSettings()
	case m.Pressed(tension.Up):
		p.adjustMain(1)
	case m.Pressed(tension.Down):
		p.adjustMain(-1)
	case m.Pressed(tension.Left):
		p.moveCursor(-1)
	case m.Pressed(tension.Right):
		p.moveCursor(1)
	default:
		p.Live(m.Shared().Tension())
	}
}

func (p *Panel) settingsStep() {
	m := p.m
	s := settings[p.sel]
	switch {
	case m.Pressed(tension.Exit), m.Pressed(tension.Settings):
		p.onSettings = false
		m.Save()
		p.showMain()
	case m.Pressed(tension.Up):
		p.sel = (p.sel + len(settings) - 1) % len(settings)
		p.showSettings()
	case m.Pressed(tension.Down):
		p.sel = (p.sel + 1) % len(settings)
		p.showSettings()
	case m.Pressed(tension.Left):
		if s.action == nil {
			m.Adjust(s.field, -1)
			p.showSettings()
		}
	case m.Pressed(tension.Right):
		if s.action == nil {
			m.Adjust(s.field, 1)
			p.showSettings()
		}
	case m.Pressed(tension.Head):
		if s.action != nil {
			s.action(p)
			m.ClearButtons()
			p.showSettings()
			// Keep the action's result visible below the setting.
			p.write(itemHint, p.message)
		}
	}
}

// cycle runs one tensioning cycle and handles its faults.
func (p *Panel) cycle() {
	p.show(lightsMoving)
	res, err := p.m.Cycle()
	if err != nil {
		p.Message(err.Error())
		p.show(lightsFault)
		return
	}
	switch r := res.Outcome.Reason; {
	case r == tension.AbortGram:
		p.acknowledge()
	case r.Fault():
		p.show(lightsFault)
	default:
		p.show(lightsReady)
	}
	p.showMainKeep()
}

// acknowledge waits for exit after the safety ceiling was exceeded.
func (p *Panel) acknowledge() {
	log.Printf("panel: tension over %d g, waiting for acknowledgement", p.m.Config.AbortGrams)
	p.show(lightsAck)
	p.write(itemLive, "Press EXIT")
	p.m.ClearButtons()
	for !p.m.Pressed(tension.Exit) {
		if p.ctx.Err() != nil {
			return
		}
		p.clock.Sleep(p.Poll)
	}
	p.m.ClearButtons()
	p.show(p.idle())
	p.Message("Ready")
}

func (p *Panel) adjustMain(steps int) {
	f := p.field()
	p.m.Adjust(f, steps)
	p.m.Save()
	p.showMainKeep()
	p.Message(fmt.Sprintf("%s %s", f, value(&p.m.Config, f)))
}

func (p *Panel) moveCursor(d int) {
	n := len(mainFields(&p.m.Config))
	p.cursor = (p.cursor + n + d) % n
	p.Message(fmt.Sprintf("Edit %s", p.field()))
}

// field is the main page field under the cursor.
func (p *Panel) field() tension.Field {
	fs := mainFields(&p.m.Config)
	if p.cursor >= len(fs) {
		p.cursor = 0
	}
	return fs[p.cursor]
}

func (p *Panel) showMain() {
	p.message = "Ready"
	if p.m.Disabled() {
		p.message = "Motion disabled"
	}
	p.showMainKeep()
}

// showMainKeep redraws the main page, keeping the current message.
func (p *Panel) showMainKeep() {
	c := &p.m.Config
	p.d.Clear()
	target := value(c, tension.FieldTargetLbUnits)
	if c.Unit == tension.Kilograms {
		target = value(c, tension.FieldTargetKgUnits)
	}
	p.write(itemTarget, "T "+target)
	pct, mode := c.Percent()
	label := "PS"
	if mode == "knot" {
		label = "KN"
	}
	p.write(itemPercent, fmt.Sprintf("%s %d%%", label, pct))
	p.write(itemCorrection, "CC "+value(c, tension.FieldCorrection))
	p.write(itemFineStep, "FT "+value(c, tension.FieldFineStep))
	p.write(itemLive, live(p.m.Shared().Tension(), c.Unit))
	p.write(itemMessage, p.message)
}

func (p *Panel) showSettings() {
	s := settings[p.sel]
	p.d.Clear()
	p.write(itemTitle, fmt.Sprintf("SETTINGS %d/%d", p.sel+1, len(settings)))
	if s.action != nil {
		p.write(itemSetting, s.name)
		p.write(itemHint, "HEAD to start")
		return
	}
	p.write(itemSetting, fmt.Sprintf("%-12s%8s", s.name, value(&p.m.Config, s.field)))
	p.write(itemHint, "< > change")
}

func (p *Panel) zeroReset() {
	p.show(lightsMoving)
	if err := p.m.ZeroReset(); err != nil {
		p.failed(err)
		return
	}
	p.show(lightsReady)
}

func (p *Panel) probe() {
	p.show(lightsMoving)
	if _, err := p.m.Probe(); err != nil {
		p.Message(fmt.Sprintf("CC AUTO: %v", err))
		p.failed(err)
		return
	}
	p.show(lightsReady)
}

func (p *Panel) smart() {
	p.show(lightsMoving)
	rep, err := p.m.AutoTune()
	if err != nil {
		log.Printf("panel: SMART run %s: %v", rep.RunID, err)
		p.failed(err)
		return
	}
	p.show(lightsReady)
}

// failed shows a fault. Exceeding the safety ceiling also halts the
// panel until it is acknowledged.
func (p *Panel) failed(err error) {
	if errors.Is(err, tension.AbortGram) {
		p.acknowledge()
		return
	}
	p.show(lightsFault)
}

func (p *Panel) stateChanged(s tension.State) {
	switch s {
	case tension.Approach, tension.Settle1, tension.Settle2, tension.Terminated:
		p.show(lightsMoving)
	case tension.Hold:
		p.show(lightsHold)
	}
}

func (p *Panel) idle() lightState {
	if p.m.Disabled() {
		return lightsFault
	}
	return lightsReady
}

// selfTest lights each LED in turn.
func (p *Panel) selfTest() {
	p.d.Clear()
	p.Message("Tensioner")
	p.m.Beep(100 * time.Millisecond)
	for _, s := range []lightState{lightsReady, lightsMoving, lightsFault} {
		p.show(s)
		p.clock.Sleep(200 * time.Millisecond)
	}
	p.show(lightsOff)
}

func (p *Panel) show(s lightState) {
	l := p.lights
	set := func(o io.Setter, on bool) {
		if o == nil {
			return
		}
		v := 0
		if on {
			v = 1
		}
		if err := o.Set(v); err != nil {
			log.Printf("panel: led: %v", err)
		}
	}
	set(l.Green, s == lightsReady || s == lightsHold)
	set(l.Yellow, s == lightsMoving || s == lightsHold)
	if l.Red == nil {
		return
	}
	switch s {
	case lightsFault:
		l.Red.On()
	case lightsAck:
		l.Red.Set(500*time.Millisecond, 50)
	default:
		l.Red.Off()
	}
}
