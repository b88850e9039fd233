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

// Audible feedback on a single output line.

package io

import (
	"time"
)

type beepMsg struct {
	on, off time.Duration
	count   int
}

// Beeper pulses an output line from a background goroutine, so that
// a beep never delays the caller's step timing.
type Beeper struct {
	out Setter
	c   chan beepMsg
}

// NewBeeper creates a beeper on the output.
func NewBeeper(out Setter) *Beeper {
	b := &Beeper{out: out, c: make(chan beepMsg, 4)}
	out.Set(0)
	go b.handler()
	return b
}

// Beep sounds the beeper for the duration. If the queue is full the
// beep is dropped.
func (b *Beeper) Beep(d time.Duration) {
	b.Pattern(d, 0, 1)
}

// Pattern sounds count beeps of length on separated by off.
func (b *Beeper) Pattern(on, off time.Duration, count int) {
	if count <= 0 || on <= 0 {
		return
	}
	select {
	case b.c <- beepMsg{on, off, count}:
	default:
	}
}

// Close stops the handler. Queued beeps are discarded.
func (b *Beeper) Close() {
	close(b.c)
}

func (b *Beeper) handler() {
	for m := range b.c {
		for i := 0; i < m.count; i++ {
			b.out.Set(1)
			time.Sleep(m.on)
			b.out.Set(0)
			if i < m.count-1 {
				time.Sleep(m.off)
			}
		}
	}
	b.out.Set(0)
}
