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

// Package sim simulates the tensioner slide, string and load cell
// against a virtual clock, for tests and for running the controller
// without hardware.
package sim

import (
	"sync"
	"time"
)

// Tick is the largest virtual time advanced between hook calls.
const Tick = 5 * time.Millisecond

// Epoch is the start time of a new virtual clock.
var Epoch = time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)

// Clock is a virtual clock. Sleep advances the time and runs the
// hooks, so that the simulated hardware moves forward in step with
// the code sleeping on it.
type Clock struct {
	mu       sync.Mutex
	now      time.Time
	hooks    []func(time.Time)
	Realtime bool // Also sleep in real time
}

// NewClock returns a clock at Epoch.
func NewClock() *Clock {
	return &Clock{now: Epoch}
}

// Now returns the virtual time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// OnTick adds a hook called after each advance of the time.
// Hooks run in the order they were added.
func (c *Clock) OnTick(f func(time.Time)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, f)
}

// Sleep advances the time by d, in increments of at most Tick.
func (c *Clock) Sleep(d time.Duration) {
	for d > 0 {
		inc := d
		if inc > Tick {
			inc = Tick
		}
		d -= inc
		c.mu.Lock()
		c.now = c.now.Add(inc)
		now := c.now
		hooks := c.hooks
		c.mu.Unlock()
		if c.Realtime {
			time.Sleep(inc)
		}
		for _, h := range hooks {
			h(now)
		}
	}
}
