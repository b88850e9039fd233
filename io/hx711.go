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

// HX711 load cell amplifier, bit-banged over two GPIO lines.

package io

import (
	"fmt"
)

// Extra clock pulses after the 24 data bits select the gain and
// channel for the next conversion.
const (
	GainA128 = 1
	GainB32  = 2
	GainA64  = 3
)

// HX711 reads 24 bit conversions from the amplifier.
// Read never waits for a conversion: when DOUT is still high the
// conversion is not ready and ok is false.
type HX711 struct {
	dout  Getter
	sck   Setter
	pulse int
}

// NewHX711 creates a HX711 reader using the data and clock pins.
func NewHX711(dout Getter, sck Setter, gain int) (*HX711, error) {
	if gain < GainA128 || gain > GainA64 {
		return nil, fmt.Errorf("hx711: invalid gain selector %d", gain)
	}
	h := &HX711{dout: dout, sck: sck, pulse: gain}
	// Holding SCK low powers up the device.
	if err := sck.Set(0); err != nil {
		return nil, fmt.Errorf("hx711: sck: %v", err)
	}
	return h, nil
}

// Read returns the latest raw conversion if one is ready.
func (h *HX711) Read() (int, bool, error) {
	v, err := h.dout.Get()
	if err != nil {
		return 0, false, err
	}
	if v != 0 {
		return 0, false, nil
	}
	var raw int32
	for i := 0; i < 24; i++ {
		b, err := h.clock()
		if err != nil {
			return 0, false, err
		}
		raw = raw<<1 | int32(b)
	}
	for i := 0; i < h.pulse; i++ {
		if _, err := h.clock(); err != nil {
			return 0, false, err
		}
	}
	// Sign extend from 24 bits.
	if raw&0x800000 != 0 {
		raw |= -0x1000000
	}
	return int(raw), true, nil
}

// Close puts the amplifier into power down.
func (h *HX711) Close() error {
	return h.sck.Set(1)
}

func (h *HX711) clock() (int, error) {
	if err := h.sck.Set(1); err != nil {
		return 0, err
	}
	if err := h.sck.Set(0); err != nil {
		return 0, err
	}
	return h.dout.Get()
}
