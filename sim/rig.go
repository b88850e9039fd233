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

package sim

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/aamcrae/tensioner/io"
)

// Rig models the slide between its limit switches, a string that
// takes up load after some slack, and a load cell whose reading lags
// the true load. The lag is what makes the slide overshoot.
type Rig struct {
	Travel       int           // Steps between the front and rear switches
	Slack        int           // Position at which the string takes load
	Stiffness    float64       // Grams per step once taut
	Lag          time.Duration // Load cell time constant
	Noise        int           // Peak raw noise
	Zero         int           // Raw reading at no load
	Calibration  int           // The true scale, 20 nominal
	SamplePeriod time.Duration // Conversion period of the amplifier
	Creep        float64       // Relaxation of the string in grams per second
	Drift        float64       // Zero drift in raw counts per second

	mu        sync.Mutex
	clock     *Clock
	pos       int
	sensed    float64
	relax     float64
	extra     float64
	drift     float64
	broken    bool
	noString  bool
	buttons   []bool
	events    []event
	last      time.Time
	next      time.Time
	raw       int
	ready     bool
	rnd       *rand.Rand
	forwards  int
	backwards int
}

type event struct {
	at time.Time
	fn func()
}

// NewRig creates a rig with the slide at position start, attached to
// the clock. Parameters may be changed before the first Sleep.
func NewRig(clock *Clock, start int) *Rig {
	r := &Rig{
		Travel:       40000,
		Slack:        10000,
		Stiffness:    3,
		Lag:          25 * time.Millisecond,
		Zero:         84000,
		Calibration:  20,
		SamplePeriod: 12500 * time.Microsecond,
		clock:        clock,
		pos:          start,
		buttons:      make([]bool, 8),
		last:         clock.Now(),
		next:         clock.Now(),
		rnd:          rand.New(rand.NewSource(1)),
	}
	clock.OnTick(r.tick)
	return r
}

// Seed sets the noise generator seed.
func (r *Rig) Seed(seed int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rnd = rand.New(rand.NewSource(seed))
}

// Forward moves the slide one step toward the rear.
func (r *Rig) Forward() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pos >= r.Travel+100 {
		return fmt.Errorf("rig: slide jammed at rear (%d)", r.pos)
	}
	r.pos++
	r.forwards++
	return nil
}

// Backward moves the slide one step toward the front.
func (r *Rig) Backward() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pos <= -100 {
		return fmt.Errorf("rig: slide jammed at front (%d)", r.pos)
	}
	r.pos--
	r.backwards++
	return nil
}

// Pos returns the slide position; 0 is the front switch.
func (r *Rig) Pos() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pos
}

// Steps returns the total forward and backward steps.
func (r *Rig) Steps() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.forwards, r.backwards
}

// TrueLoad returns the load on the string in grams.
func (r *Rig) TrueLoad() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

// Break breaks the string.
func (r *Rig) Break() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broken = true
}

// SetNoString removes (or restores) the string.
func (r *Rig) SetNoString(b bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.noString = b
}

// AddLoad adds an external load in grams.
func (r *Rig) AddLoad(g float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extra += g
}

// At schedules f to run after the delay in virtual time.
func (r *Rig) At(after time.Duration, f func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{r.clock.Now().Add(after), f})
	sort.SliceStable(r.events, func(i, j int) bool { return r.events[i].at.Before(r.events[j].at) })
}

// Press schedules a press of button b after the delay, held for hold.
func (r *Rig) Press(b int, after, hold time.Duration) {
	r.At(after, func() { r.setButton(b, true) })
	r.At(after+hold, func() { r.setButton(b, false) })
}

func (r *Rig) setButton(b int, v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buttons[b] = v
}

// Front returns the front limit switch.
func (r *Rig) Front() io.Getter {
	return inputOf(func() bool { return r.pos <= 0 }, &r.mu)
}

// Rear returns the rear limit switch.
func (r *Rig) Rear() io.Getter {
	return inputOf(func() bool { return r.pos >= r.Travel }, &r.mu)
}

// Button returns the input of button b.
func (r *Rig) Button(b int) io.Getter {
	return inputOf(func() bool { return r.buttons[b] }, &r.mu)
}

// Read returns a raw conversion once per sample period.
func (r *Rig) Read() (int, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.ready {
		return 0, false, nil
	}
	r.ready = false
	return r.raw, true, nil
}

func (r *Rig) tick(now time.Time) {
	r.mu.Lock()
	var due []func()
	for len(r.events) > 0 && !r.events[0].at.After(now) {
		due = append(due, r.events[0].fn)
		r.events = r.events[1:]
	}
	r.mu.Unlock()
	for _, f := range due {
		f()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	dt := now.Sub(r.last).Seconds()
	r.last = now
	load := r.load()
	if load > 0 {
		r.relax = math.Min(r.relax+r.Creep*dt, 0.05*load)
		load -= r.relax
	} else {
		r.relax = 0
	}
	load += r.extra
	alpha := 1.0
	if r.Lag > 0 {
		alpha = 1 - math.Exp(-dt/r.Lag.Seconds())
	}
	r.sensed += (load - r.sensed) * alpha
	r.drift += r.Drift * dt
	if !now.Before(r.next) {
		noise := 0
		if r.Noise > 0 {
			noise = r.rnd.Intn(2*r.Noise+1) - r.Noise
		}
		r.raw = r.Zero + int(r.sensed*100*20/float64(r.Calibration)) + int(r.drift) + noise
		r.ready = true
		r.next = r.next.Add(r.SamplePeriod)
		if r.next.Before(now) {
			r.next = now.Add(r.SamplePeriod)
		}
	}
}

// load is the string load from the slide position, before relaxation.
func (r *Rig) load() float64 {
	if r.broken || r.noString {
		return 0
	}
	ext := r.pos - r.Slack
	if ext <= 0 {
		return 0
	}
	return float64(ext) * r.Stiffness
}

type input func() bool

func inputOf(f func() bool, mu *sync.Mutex) input {
	return func() bool {
		mu.Lock()
		defer mu.Unlock()
		return f()
	}
}

// Get returns 1 when the input is active.
func (in input) Get() (int, error) {
	if in() {
		return 1, nil
	}
	return 0, nil
}
