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

package io

import (
	"sync/atomic"
)

// Phase tables for the driver inputs. One physical step is a full
// traversal of a table; the rows are written in order with no delay
// between them, and the caller paces the steps.
var (
	forwardPhases = [4][4]int{
		{1, 0, 1, 0},
		{0, 1, 0, 0},
		{0, 1, 1, 1},
		{1, 0, 1, 0},
	}
	backwardPhases = [4][4]int{
		{0, 1, 0, 1},
		{1, 0, 0, 1},
		{1, 0, 1, 0},
		{0, 1, 1, 0},
	}
)

// Stepper represents the slide stepper motor, driven by 4 output lines.
// Unlike a queued stepper, each call moves exactly one step and returns,
// so that the caller can evaluate abort conditions between steps.
// The step count is an accumulative signed value (forward positive)
// and is only used for diagnostics; the motion controller keeps the
// authoritative position referenced from the front limit switch.
type Stepper struct {
	pins    [4]Setter
	current int64
	on      bool
}

// NewStepper creates a Stepper using the 4 output pins.
func NewStepper(pin1, pin2, pin3, pin4 Setter) *Stepper {
	return &Stepper{pins: [4]Setter{pin1, pin2, pin3, pin4}}
}

// Forward moves the slide one step towards the rear (increasing tension).
func (s *Stepper) Forward() error {
	if err := s.sequence(&forwardPhases); err != nil {
		return err
	}
	atomic.AddInt64(&s.current, 1)
	return nil
}

// Backward moves the slide one step towards the front (releasing tension).
func (s *Stepper) Backward() error {
	if err := s.sequence(&backwardPhases); err != nil {
		return err
	}
	atomic.AddInt64(&s.current, -1)
	return nil
}

// GetStep returns the accumulated step count.
func (s *Stepper) GetStep() int64 {
	return atomic.LoadInt64(&s.current)
}

// Off removes power from the driver inputs.
func (s *Stepper) Off() error {
	if !s.on {
		return nil
	}
	for _, p := range s.pins {
		if err := p.Set(0); err != nil {
			return err
		}
	}
	s.on = false
	return nil
}

func (s *Stepper) sequence(table *[4][4]int) error {
	s.on = true
	for _, row := range table {
		for i, v := range row {
			if err := s.pins[i].Set(v); err != nil {
				return err
			}
		}
	}
	return nil
}
