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

// Hardware PWM via the sysfs pwmchip interface, used to drive a
// passive piezo buzzer at a fixed tone.

package io

import (
	"fmt"
	"os"
	"time"
)

const (
	pwmBaseDir      = "/sys/class/pwm/pwmchip0/"
	pwmExportFile   = pwmBaseDir + "export"
	pwmUnexportFile = pwmBaseDir + "unexport"
	periodFile      = "/period"
	dutyFile        = "/duty_cycle"
	enableFile      = "/enable"
)

// HwPwm is one channel of the PWM controller.
type HwPwm struct {
	unit   int
	base   string
	pFile  *os.File
	dFile  *os.File
	period int64
	duty   int64
}

// NewHwPWM creates a new hardware PWM controller, initially silent.
func NewHwPWM(unit int) (*HwPwm, error) {
	p := new(HwPwm)
	p.unit = unit
	p.base = fmt.Sprintf("%spwm%d", pwmBaseDir, unit)
	p.period = -1
	p.duty = -1

	vFile := p.base + periodFile
	if err := exportNode(vFile, pwmExportFile, unit); err != nil {
		return nil, fmt.Errorf("pwm%d: export: %v", unit, err)
	}
	var err error
	p.pFile, err = os.OpenFile(vFile, os.O_RDWR, 0600)
	if err != nil {
		unexportNode(pwmUnexportFile, unit)
		return nil, err
	}
	dName := p.base + dutyFile
	if err = awaitWritable(dName, 2*time.Second); err == nil {
		p.dFile, err = os.OpenFile(dName, os.O_RDWR, 0600)
	}
	if err != nil {
		p.pFile.Close()
		unexportNode(pwmUnexportFile, unit)
		return nil, err
	}
	p.Set(time.Millisecond, 0)
	if err = writeNode(p.base+enableFile, "1"); err != nil {
		p.pFile.Close()
		p.dFile.Close()
		unexportNode(pwmUnexportFile, unit)
		return nil, err
	}
	return p, nil
}

// Close closes the PWM controller
func (p *HwPwm) Close() {
	writeNode(p.base+enableFile, "0")
	p.pFile.Close()
	p.dFile.Close()
	unexportNode(pwmUnexportFile, p.unit)
}

// Set sets the PWM parameters.
func (p *HwPwm) Set(period time.Duration, duty int) error {
	if duty < 0 || duty > 100 {
		return fmt.Errorf("pwm%d: %d: invalid duty cycle percentage", p.unit, duty)
	}
	pNano := period.Nanoseconds()
	if pNano < 15 {
		return fmt.Errorf("pwm%d: invalid period", p.unit)
	}
	dNano := pNano * int64(duty) / 100
	// The duty cycle must never exceed the current period, so the
	// order of the writes depends on the direction of the change.
	if dNano > p.period {
		if err := p.write(p.pFile, pNano); err != nil {
			return err
		}
		if err := p.write(p.dFile, dNano); err != nil {
			return err
		}
	} else {
		if dNano != p.duty {
			if err := p.write(p.dFile, dNano); err != nil {
				return err
			}
		}
		if pNano != p.period {
			if err := p.write(p.pFile, pNano); err != nil {
				return err
			}
		}
	}
	p.period = pNano
	p.duty = dNano
	return nil
}

func (p *HwPwm) write(f *os.File, v int64) error {
	_, err := f.WriteAt([]byte(fmt.Sprintf("%d", v)), 0)
	return err
}

// Tone adapts a PWM channel to a Setter, so that a passive buzzer
// can be used wherever a plain output line drives an active one.
// Set(1) starts a square wave at the frequency, Set(0) silences it.
type Tone struct {
	pwm    *HwPwm
	period time.Duration
}

// NewTone creates a Tone at freq Hz on the PWM channel.
func NewTone(pwm *HwPwm, freq int) (*Tone, error) {
	if freq <= 0 {
		return nil, fmt.Errorf("pwm%d: invalid tone frequency %d", pwm.unit, freq)
	}
	return &Tone{pwm: pwm, period: time.Second / time.Duration(freq)}, nil
}

// Set turns the tone on or off.
func (t *Tone) Set(v int) error {
	if v != 0 {
		return t.pwm.Set(t.period, 50)
	}
	return t.pwm.Set(t.period, 0)
}
