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

// Load cell bridge attached over a serial line.

package io

import (
	"bufio"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.bug.st/serial"
)

// SerialLoad reads raw load cell conversions streamed by a bridge
// microcontroller as one decimal integer per line.
// A background goroutine keeps the latest value; Read returns it
// once, so that a consumer sees each conversion at most once.
type SerialLoad struct {
	name   string
	port   serial.Port
	latest atomic.Int64
	seq    atomic.Uint64
	seen   uint64
	closed atomic.Bool
}

// OpenSerialLoad opens the serial port at the baud rate and starts reading.
func OpenSerialLoad(name string, baud int) (*SerialLoad, error) {
	port, err := serial.Open(name, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("%s: %v", name, err)
	}
	if err := port.SetReadTimeout(time.Second); err != nil {
		port.Close()
		return nil, fmt.Errorf("%s: %v", name, err)
	}
	s := &SerialLoad{name: name, port: port}
	go s.reader()
	return s, nil
}

// SerialPorts returns the serial ports present on the system.
func SerialPorts() ([]string, error) {
	return serial.GetPortsList()
}

// Read returns the newest conversion if it has not been returned before.
func (s *SerialLoad) Read() (int, bool, error) {
	seq := s.seq.Load()
	if seq == s.seen {
		return 0, false, nil
	}
	s.seen = seq
	return int(s.latest.Load()), true, nil
}

// Close stops the reader and closes the port.
func (s *SerialLoad) Close() error {
	s.closed.Store(true)
	return s.port.Close()
}

func (s *SerialLoad) reader() {
	scanner := bufio.NewScanner(s.port)
	for {
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			v, err := strconv.ParseInt(line, 10, 32)
			if err != nil {
				// Bridges print banners at reset.
				continue
			}
			s.latest.Store(v)
			s.seq.Add(1)
		}
		if s.closed.Load() {
			return
		}
		// A read timeout ends the scan without an error worth reporting.
		if err := scanner.Err(); err != nil {
			log.Printf("%s: read: %v", s.name, err)
			time.Sleep(100 * time.Millisecond)
		}
		scanner = bufio.NewScanner(s.port)
	}
}
