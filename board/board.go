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

package board

import (
	"fmt"
	"log"

	"github.com/aamcrae/tensioner/io"
	"github.com/aamcrae/tensioner/panel"
	"github.com/aamcrae/tensioner/tension"
)

// Board holds the opened devices.
type Board struct {
	Hardware tension.Hardware
	Lights   panel.Lights
	stepper  *io.Stepper
	closers  []func()
}

// Open opens every device in the config. On error, anything already
// opened is closed again.
func Open(c *Config) (*Board, error) {
	b := &Board{}
	if err := b.open(c); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

func (b *Board) open(c *Config) error {
	var motor [4]*io.Gpio
	for i, g := range c.Motor {
		p, err := b.output(g)
		if err != nil {
			return fmt.Errorf("motor: %v", err)
		}
		motor[i] = p
	}
	b.stepper = io.NewStepper(motor[0], motor[1], motor[2], motor[3])
	b.Hardware.Motor = b.stepper

	var err error
	if b.Hardware.Front, err = b.input(c.Front, c.ActiveLow); err != nil {
		return fmt.Errorf("front switch: %v", err)
	}
	if b.Hardware.Rear, err = b.input(c.Rear, c.ActiveLow); err != nil {
		return fmt.Errorf("rear switch: %v", err)
	}
	for i, g := range c.Buttons {
		if b.Hardware.Buttons[i], err = b.input(g, c.ActiveLow); err != nil {
			return fmt.Errorf("%s button: %v", tension.Button(i), err)
		}
	}

	if c.HX711[0] >= 0 {
		dout, err := b.input(c.HX711[0], false)
		if err != nil {
			return fmt.Errorf("hx711: %v", err)
		}
		sck, err := b.output(c.HX711[1])
		if err != nil {
			return fmt.Errorf("hx711: %v", err)
		}
		h, err := io.NewHX711(dout, sck, io.GainA128)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, func() { h.Close() })
		b.Hardware.Load = h
	} else {
		s, err := io.OpenSerialLoad(c.Serial, c.Baud)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, func() { s.Close() })
		b.Hardware.Load = s
	}

	switch {
	case c.PWM >= 0:
		pwm, err := io.NewHwPWM(c.PWM)
		if err != nil {
			return fmt.Errorf("beeper: %v", err)
		}
		b.closers = append(b.closers, pwm.Close)
		tone, err := io.NewTone(pwm, c.Tone)
		if err != nil {
			return fmt.Errorf("beeper: %v", err)
		}
		b.Hardware.Beeper = b.beeper(tone)
	case c.Beeper >= 0:
		out, err := b.output(c.Beeper)
		if err != nil {
			return fmt.Errorf("beeper: %v", err)
		}
		b.Hardware.Beeper = b.beeper(out)
	}

	if c.Green >= 0 {
		p, err := b.output(c.Green)
		if err != nil {
			return fmt.Errorf("green led: %v", err)
		}
		b.Lights.Green = p
	}
	if c.Yellow >= 0 {
		p, err := b.output(c.Yellow)
		if err != nil {
			return fmt.Errorf("yellow led: %v", err)
		}
		b.Lights.Yellow = p
	}
	if c.Red >= 0 {
		p, err := b.output(c.Red)
		if err != nil {
			return fmt.Errorf("red led: %v", err)
		}
		bl := io.NewBlinker(p)
		b.closers = append(b.closers, bl.Close)
		b.Lights.Red = bl
	}
	return nil
}

// Close releases the devices, with the motor powered off.
func (b *Board) Close() {
	if b.stepper != nil {
		if err := b.stepper.Off(); err != nil {
			log.Printf("board: motor off: %v", err)
		}
	}
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

func (b *Board) beeper(out io.Setter) *io.Beeper {
	bp := io.NewBeeper(out)
	b.closers = append(b.closers, bp.Close)
	return bp
}

func (b *Board) output(gpio int) (*io.Gpio, error) {
	p, err := io.OutputPin(gpio)
	if err != nil {
		return nil, err
	}
	b.closers = append(b.closers, p.Close)
	return p, nil
}

func (b *Board) input(gpio int, activeLow bool) (*io.Gpio, error) {
	p, err := io.Pin(gpio)
	if err != nil {
		return nil, err
	}
	p.ActiveLow = activeLow
	b.closers = append(b.closers, p.Close)
	return p, nil
}
