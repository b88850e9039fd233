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

// GPIO pins via the sysfs interface.

package io

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Mode
const (
	IN  = iota // Default
	OUT = iota
)

// Edge
const (
	NONE    = iota // Default
	RISING  = iota
	FALLING = iota
	BOTH    = iota
)

const (
	baseDir      = "/sys/class/gpio/"
	exportFile   = baseDir + "export"
	unexportFile = baseDir + "unexport"
	valueFile    = "/value"
)

// Gpio represents one GPIO pin.
// Limit switches and buttons on the tensioner are wired with pull-downs,
// so an active input reads 1. ActiveLow inverts the sense for boards
// wired the other way.
type Gpio struct {
	number    int
	value     *os.File
	buf       []byte
	direction int
	edge      int
	pollfd    []unix.PollFd
	ActiveLow bool
}

// OutputPin opens a GPIO pin and sets the direction as OUTPUT.
// The output is driven low before it is returned.
func OutputPin(gpio int) (*Gpio, error) {
	g, err := Pin(gpio)
	if err != nil {
		return nil, err
	}
	err = g.Direction(OUT)
	if err != nil {
		g.Close()
		return nil, err
	}
	if err = g.Set(0); err != nil {
		g.Close()
		return nil, err
	}
	return g, nil
}

// Pin opens a GPIO pin as an input (by default)
func Pin(gpio int) (*Gpio, error) {
	g := new(Gpio)
	g.number = gpio
	g.buf = make([]byte, 1)

	vName := fmt.Sprintf("%sgpio%d%s", baseDir, gpio, valueFile)
	err := exportNode(vName, exportFile, gpio)
	if err != nil {
		return nil, fmt.Errorf("gpio%d: export: %v", gpio, err)
	}
	err = g.Direction(IN)
	if err != nil {
		unexportNode(unexportFile, gpio)
		return nil, err
	}
	err = g.Edge(NONE)
	if err != nil {
		unexportNode(unexportFile, gpio)
		return nil, err
	}
	g.value, err = os.OpenFile(vName, os.O_RDWR, 0600)
	if err != nil {
		unexportNode(unexportFile, gpio)
		return nil, err
	}
	g.pollfd = []unix.PollFd{{Fd: int32(g.value.Fd()), Events: unix.POLLPRI | unix.POLLERR}}
	return g, nil
}

// Number returns the GPIO number of the pin.
func (g *Gpio) Number() int {
	return g.number
}

// Direction sets the mode (direction) of the GPIO pin.
func (g *Gpio) Direction(d int) error {
	var s string
	switch d {
	case IN:
		s = "in"
	case OUT:
		s = "out"
	default:
		return fmt.Errorf("gpio%d: unknown direction", g.number)
	}
	err := writeNode(fmt.Sprintf("%sgpio%d/direction", baseDir, g.number), s)
	if err == nil {
		g.direction = d
	}
	return err
}

// Edge sets the edge detection on the GPIO pin.
// With an edge set, Get blocks until the input changes, which is only
// wanted by the watch utility; the control loops poll with NONE.
func (g *Gpio) Edge(e int) error {
	if g.direction != IN {
		return fmt.Errorf("gpio%d: not set as an input pin", g.number)
	}
	var s string
	switch e {
	case NONE:
		s = "none"
	case RISING:
		s = "rising"
	case FALLING:
		s = "falling"
	case BOTH:
		s = "both"
	default:
		return fmt.Errorf("gpio%d: unknown edge", g.number)
	}
	err := writeNode(fmt.Sprintf("%sgpio%d/edge", baseDir, g.number), s)
	if err == nil {
		g.edge = e
	}
	return err
}

// Set the output of the GPIO pin (only valid for OUTPUT pins)
func (g *Gpio) Set(v int) error {
	if g.direction != OUT {
		return fmt.Errorf("gpio%d: is not output", g.number)
	}
	switch v {
	case 0:
		g.buf[0] = '0'
	case 1:
		g.buf[0] = '1'
	default:
		return fmt.Errorf("gpio%d: illegal value %d", g.number, v)
	}
	_, err := g.value.WriteAt(g.buf, 0)
	return err
}

// Get returns the current value of the GPIO pin, with ActiveLow applied.
func (g *Gpio) Get() (int, error) {
	if g.edge != NONE {
		// Wait for edge using poll.
		g.pollfd[0].Revents = 0
		_, err := unix.Poll(g.pollfd, -1)
		if err != nil {
			return 0, err
		}
	}
	_, err := g.value.ReadAt(g.buf, 0)
	if err != nil {
		return 0, err
	}
	var v int
	switch g.buf[0] {
	case '0':
		v = 0
	case '1':
		v = 1
	default:
		return 0, fmt.Errorf("gpio%d: unknown value %s", g.number, g.buf)
	}
	if g.ActiveLow {
		v ^= 1
	}
	return v, nil
}

// Close the GPIO pin and unexport it.
func (g *Gpio) Close() {
	if g.value != nil {
		g.value.Close()
	}
	unexportNode(unexportFile, g.number)
}
