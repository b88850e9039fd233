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

// Software PWM for the indicator LEDs.

package io

import (
	"fmt"
	"time"
)

type blinkMsg struct {
	period time.Duration
	duty   int // Duty cycle as percentage
	stop   chan bool
}

// Blinker drives an output with a software generated PWM, which is
// slow enough for visible blinking of the fault LED.
type Blinker struct {
	pin Setter
	c   chan blinkMsg
}

// NewBlinker creates a new blinker on the pin. The output starts off.
func NewBlinker(pin Setter) *Blinker {
	b := new(Blinker)
	b.pin = pin
	b.c = make(chan blinkMsg, 1)
	go b.handler()
	return b
}

// Close stops the blinker and leaves the output off.
func (b *Blinker) Close() {
	sc := make(chan bool)
	b.c <- blinkMsg{0, 0, sc}
	<-sc
	close(sc)
	close(b.c)
}

// Set sets the blink parameters. The changes take
// place at the end of the current period.
// A duty of 100 is steady on, 0 is off.
func (b *Blinker) Set(period time.Duration, duty int) error {
	if duty < 0 || duty > 100 {
		return fmt.Errorf("%d: invalid duty cycle percentage", duty)
	}
	b.c <- blinkMsg{period, duty, nil}
	return nil
}

// On turns the output on steadily.
func (b *Blinker) On() {
	b.Set(100*time.Millisecond, 100)
}

// Off turns the output off.
func (b *Blinker) Off() {
	b.Set(100*time.Millisecond, 0)
}

// goroutine handler
// Listens on message channel, and runs the PWM.
func (b *Blinker) handler() {
	var on, off time.Duration
	off = time.Millisecond * 50
	current := 0
	b.pin.Set(0)
	for {
		if on != 0 {
			if current != 1 {
				b.pin.Set(1)
				current = 1
			}
			time.Sleep(on)
		}
		if off != 0 {
			if current != 0 {
				b.pin.Set(0)
				current = 0
			}
			time.Sleep(off)
		}
		// Check for new parameters after each cycle.
		select {
		case m := <-b.c:
			if m.stop != nil {
				b.pin.Set(0)
				m.stop <- true
				return
			}
			on = m.period * time.Duration(m.duty) / 100
			off = m.period - on
		default:
		}
	}
}
