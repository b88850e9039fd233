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

// Package board describes how the tensioner hardware is wired, and
// opens the devices.
package board

import (
	"fmt"
	"strings"
	"time"

	"github.com/aamcrae/config"

	"github.com/aamcrae/tensioner/tension"
)

// Config is the board wiring, read from a configuration file.
type Config struct {
	Motor     [4]int
	Motion    tension.MotionParams
	Front     int
	Rear      int
	ActiveLow bool   // Switches and buttons pull the line low
	HX711     [2]int // DOUT and SCK, or -1 if not used
	Serial    string // Serial load cell bridge port
	Baud      int
	Buttons   [tension.NumButtons]int
	Beeper    int // Output line, or -1
	PWM       int // PWM unit for a passive buzzer, or -1
	Tone      int // Buzzer frequency in Hz
	Green     int // -1 if not fitted
	Yellow    int
	Red       int
	Port      int // Status server port, 0 disables it
}

// ParseConfig reads and validates the board config.
// Sample config:
//
//	[motor]
//	pins=4,5,2,3             # GPIOs for the 4 driver inputs
//	seek=100us               # Step delay for fast moves
//	fine=500us               # Step delay for corrections
//	backoff=2000             # Steps off the front switch at standby
//	travel=60000             # Soft limit of the slide
//	[switches]
//	front=6
//	rear=7
//	active_low=false
//	[load]
//	hx711=27,26              # DOUT, SCK; or serial=/dev/ttyACM0 and baud=115200
//	[buttons]
//	head=8
//	up=13
//	down=19
//	left=16
//	right=20
//	settings=12
//	exit=21
//	[beeper]
//	pin=22                   # or pwm=0,2700 for a passive buzzer
//	[leds]
//	green=23
//	yellow=24
//	red=25
//	[http]
//	port=8080
func ParseConfig(conf *config.Config) (*Config, error) {
	c := &Config{
		Motion: tension.DefaultMotionParams(),
		HX711:  [2]int{-1, -1},
		Beeper: -1,
		PWM:    -1,
		Green:  -1,
		Yellow: -1,
		Red:    -1,
	}
	s, err := section(conf, "motor")
	if err != nil {
		return nil, err
	}
	if err := scan(s, "pins", "%d,%d,%d,%d", &c.Motor[0], &c.Motor[1], &c.Motor[2], &c.Motor[3]); err != nil {
		return nil, err
	}
	for _, d := range []struct {
		key string
		v   *time.Duration
	}{{"seek", &c.Motion.Seek}, {"fine", &c.Motion.Fine}} {
		if err := duration(s, d.key, d.v); err != nil {
			return nil, err
		}
	}
	if err := optional(s, "backoff", "%d", &c.Motion.Backoff); err != nil {
		return nil, err
	}
	if err := optional(s, "travel", "%d", &c.Motion.MaxSteps); err != nil {
		return nil, err
	}
	if c.Motion.Backoff < 0 || c.Motion.MaxSteps <= c.Motion.Backoff {
		return nil, fmt.Errorf("motor: invalid backoff %d or travel %d", c.Motion.Backoff, c.Motion.MaxSteps)
	}

	if s, err = section(conf, "switches"); err != nil {
		return nil, err
	}
	if err := scan(s, "front", "%d", &c.Front); err != nil {
		return nil, err
	}
	if err := scan(s, "rear", "%d", &c.Rear); err != nil {
		return nil, err
	}
	if err := optional(s, "active_low", "%t", &c.ActiveLow); err != nil {
		return nil, err
	}

	if s, err = section(conf, "load"); err != nil {
		return nil, err
	}
	if s.Has("hx711") {
		if err := scan(s, "hx711", "%d,%d", &c.HX711[0], &c.HX711[1]); err != nil {
			return nil, err
		}
	} else if s.Has("serial") {
		v, err := s.GetArg("serial")
		if err != nil {
			return nil, fmt.Errorf("serial: %v", err)
		}
		c.Serial = strings.TrimSpace(v)
		c.Baud = 115200
		if err := optional(s, "baud", "%d", &c.Baud); err != nil {
			return nil, err
		}
	} else {
		return nil, fmt.Errorf("load: no hx711 or serial source")
	}

	if s, err = section(conf, "buttons"); err != nil {
		return nil, err
	}
	for b := tension.Button(0); b < tension.NumButtons; b++ {
		if err := scan(s, b.String(), "%d", &c.Buttons[b]); err != nil {
			return nil, err
		}
	}

	if s := conf.GetSection("beeper"); s != nil {
		if err := optional(s, "pin", "%d", &c.Beeper); err != nil {
			return nil, err
		}
		c.Tone = 2700
		if s.Has("pwm") {
			n, err := s.Parse("pwm", "%d,%d", &c.PWM, &c.Tone)
			if err != nil && n < 1 {
				return nil, fmt.Errorf("pwm: %v", err)
			}
		}
	}
	if s := conf.GetSection("leds"); s != nil {
		for _, l := range []struct {
			key string
			v   *int
		}{{"green", &c.Green}, {"yellow", &c.Yellow}, {"red", &c.Red}} {
			if err := optional(s, l.key, "%d", l.v); err != nil {
				return nil, err
			}
		}
	}
	if s := conf.GetSection("http"); s != nil {
		if err := optional(s, "port", "%d", &c.Port); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// entries is the part of a config section used here.
type entries interface {
	Has(key string) bool
	GetArg(key string) (string, error)
	Parse(key, format string, args ...interface{}) (int, error)
}

func section(conf *config.Config, name string) (entries, error) {
	s := conf.GetSection(name)
	if s == nil {
		return nil, fmt.Errorf("no config for %s", name)
	}
	return s, nil
}

// scan parses a required key, which must supply every value.
func scan(s entries, key, format string, args ...interface{}) error {
	n, err := s.Parse(key, format, args...)
	if err != nil {
		return fmt.Errorf("%s: %v", key, err)
	}
	if n != len(args) {
		return fmt.Errorf("%s: argument count", key)
	}
	return nil
}

// optional parses a key if it is present.
func optional(s entries, key, format string, args ...interface{}) error {
	if !s.Has(key) {
		return nil
	}
	return scan(s, key, format, args...)
}

func duration(s entries, key string, d *time.Duration) error {
	if !s.Has(key) {
		return nil
	}
	v, err := s.GetArg(key)
	if err != nil {
		return fmt.Errorf("%s: %v", key, err)
	}
	*d, err = time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %v", key, err)
	}
	return nil
}
