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

// Package io drives the tensioner hardware: sysfs GPIO lines, the
// stepper phase outputs, the load cell amplifier and the beeper.
package io

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"golang.org/x/sys/unix"
)

// Setter drives an output line or device.
type Setter interface {
	Set(int) error
}

// Getter reads an input line.
type Getter interface {
	Get() (int, error)
}

// settle is the longest wait for a sysfs node created by an export to
// become writable. udev changes the group of new nodes some time after
// they appear, so only processes not running as root need to wait.
var settle time.Duration

func init() {
	if os.Geteuid() != 0 {
		settle = 2 * time.Second
	}
}

// exportNode asks the kernel for the unit by writing its number to
// the class export file, unless node is already accessible.
func exportNode(node, exportFile string, unit int) error {
	if unix.Access(node, unix.W_OK|unix.R_OK) == nil {
		return nil
	}
	if err := writeNode(exportFile, strconv.Itoa(unit)); err != nil {
		return err
	}
	return awaitWritable(node, settle)
}

func unexportNode(unexportFile string, unit int) error {
	return writeNode(unexportFile, strconv.Itoa(unit))
}

// writeNode writes v to an existing sysfs attribute.
func writeNode(path, v string) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	_, err = f.WriteString(v)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// awaitWritable polls until path is writable, for at most limit.
func awaitWritable(path string, limit time.Duration) error {
	deadline := time.Now().Add(limit)
	for unix.Access(path, unix.W_OK) != nil {
		if !time.Now().Before(deadline) {
			return fmt.Errorf("%s: not writable after %s", path, limit)
		}
		time.Sleep(time.Millisecond)
	}
	return nil
}
