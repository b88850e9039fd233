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

// Package store persists the tensioner configuration and cycle log.
// Storage failures are logged and otherwise ignored: the controller
// carries on with its in-memory state.
package store

import (
	"bufio"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aamcrae/config"

	"github.com/aamcrae/tensioner/tension"
)

// Section is the config file section holding the control configuration.
const Section = "tensioner"

const sep = "|"

// File stores the configuration as key=value lines in a config file
// section, and the log as one delimited line per cycle.
type File struct {
	mu         sync.Mutex
	configPath string
	logPath    string
}

// NewFile creates a store using the two paths. An empty log path
// disables the log.
func NewFile(configPath, logPath string) *File {
	return &File{configPath: configPath, logPath: logPath}
}

// SaveConfig writes the configuration, replacing the file.
func (f *File) SaveConfig(c tension.Config) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := writeAtomic(f.configPath, FormatConfig(c)); err != nil {
		log.Printf("store: %s: %v", f.configPath, err)
	}
}

// LoadConfig reads the configuration over the defaults. Missing or
// invalid keys keep their default, and every value is clamped.
func (f *File) LoadConfig() tension.Config {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := tension.DefaultConfig()
	if _, err := os.Stat(f.configPath); errors.Is(err, os.ErrNotExist) {
		return c
	}
	conf, err := config.ParseFile(f.configPath)
	if err != nil {
		log.Printf("store: %s: %v", f.configPath, err)
		return c
	}
	ParseConfig(conf, &c)
	return c
}

// AppendLogRecord adds a record to the end of the log.
func (f *File) AppendLogRecord(r tension.Record) {
	if f.logPath == "" {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	lf, err := os.OpenFile(f.logPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		log.Printf("store: %s: %v", f.logPath, err)
		return
	}
	defer lf.Close()
	if _, err := fmt.Fprintln(lf, FormatRecord(r)); err != nil {
		log.Printf("store: %s: %v", f.logPath, err)
	}
}

// LoadLogRecords returns up to limit of the newest records, oldest
// first. A limit of 0 returns all of them.
func (f *File) LoadLogRecords(limit int) []tension.Record {
	if f.logPath == "" {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	lf, err := os.Open(f.logPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("store: %s: %v", f.logPath, err)
		}
		return nil
	}
	defer lf.Close()
	var recs []tension.Record
	scanner := bufio.NewScanner(lf)
	line := 0
	for scanner.Scan() {
		line++
		r, err := ParseRecord(scanner.Text())
		if err != nil {
			log.Printf("store: %s:%d: %v", f.logPath, line, err)
			continue
		}
		recs = append(recs, r)
	}
	if err := scanner.Err(); err != nil {
		log.Printf("store: %s: %v", f.logPath, err)
	}
	return newest(recs, limit)
}

func newest(recs []tension.Record, limit int) []tension.Record {
	if limit > 0 && len(recs) > limit {
		recs = recs[len(recs)-limit:]
	}
	return recs
}

// Config file keys.
var keys = []string{
	"target", "prestretch", "knot", "knot_active", "correction", "fine_step",
	"calibration", "abort_grams", "unit", "auto_nudge", "cycles", "travel",
}

// FormatConfig returns the configuration as a config file section.
func FormatConfig(c tension.Config) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]\n", Section)
	vals := []string{
		strconv.FormatFloat(c.TargetLb, 'f', 1, 64),
		strconv.Itoa(c.PreStretch),
		strconv.Itoa(c.Knot),
		strconv.FormatBool(c.KnotActive),
		strconv.FormatFloat(c.Correction, 'f', 2, 64),
		strconv.Itoa(c.FineStep),
		strconv.Itoa(c.Calibration),
		strconv.Itoa(c.AbortGrams),
		c.Unit.String(),
		strconv.FormatBool(c.AutoNudge),
		strconv.Itoa(c.Cycles),
		strconv.Itoa(c.Travel),
	}
	for i, k := range keys {
		fmt.Fprintf(&b, "%s=%s\n", k, vals[i])
	}
	return b.String()
}

// ParseConfig applies the keys present in the tensioner section to c,
// then clamps it.
func ParseConfig(conf *config.Config, c *tension.Config) {
	s := conf.GetSection(Section)
	if s == nil {
		return
	}
	for _, k := range keys {
		v, err := s.GetArg(k)
		if err != nil {
			continue
		}
		if err := set(c, k, strings.TrimSpace(v)); err != nil {
			log.Printf("store: %s: %v", k, err)
		}
	}
	c.Clamp()
}

func set(c *tension.Config, k, v string) error {
	switch k {
	case "target":
		return assign(&c.TargetLb, parseFloat, v)
	case "prestretch":
		return assign(&c.PreStretch, strconv.Atoi, v)
	case "knot":
		return assign(&c.Knot, strconv.Atoi, v)
	case "knot_active":
		return assign(&c.KnotActive, strconv.ParseBool, v)
	case "correction":
		return assign(&c.Correction, parseFloat, v)
	case "fine_step":
		return assign(&c.FineStep, strconv.Atoi, v)
	case "calibration":
		return assign(&c.Calibration, strconv.Atoi, v)
	case "abort_grams":
		return assign(&c.AbortGrams, strconv.Atoi, v)
	case "unit":
		return assign(&c.Unit, parseUnit, v)
	case "auto_nudge":
		return assign(&c.AutoNudge, strconv.ParseBool, v)
	case "cycles":
		return assign(&c.Cycles, strconv.Atoi, v)
	case "travel":
		return assign(&c.Travel, strconv.Atoi, v)
	}
	return nil
}

// assign stores the parsed value, leaving dst alone if v is invalid.
func assign[T any](dst *T, parse func(string) (T, error), v string) error {
	x, err := parse(v)
	if err != nil {
		return err
	}
	*dst = x
	return nil
}

func parseFloat(v string) (float64, error) {
	return strconv.ParseFloat(v, 64)
}

func parseUnit(v string) (tension.Unit, error) {
	switch v {
	case "lb":
		return tension.Pounds, nil
	case "kg":
		return tension.Kilograms, nil
	}
	return tension.Pounds, fmt.Errorf("unknown unit %q", v)
}

// FormatRecord returns the log line for a record.
func FormatRecord(r tension.Record) string {
	return strings.Join([]string{
		r.Session,
		strconv.Itoa(r.Cycle),
		r.Time.UTC().Format(time.RFC3339),
		strconv.FormatInt(r.Since.Milliseconds(), 10),
		r.Unit.String(),
		strconv.FormatFloat(r.TargetLb, 'f', 1, 64),
		strconv.Itoa(r.Achieved),
		strconv.Itoa(r.Percent),
		r.Mode,
		strconv.FormatInt(r.Settle.Milliseconds(), 10),
		strconv.FormatInt(r.Hold.Milliseconds(), 10),
		strconv.Itoa(r.Forward),
		strconv.Itoa(r.Backward),
		strconv.Itoa(r.Manual),
		strconv.FormatFloat(r.Correction, 'f', 2, 64),
		strconv.Itoa(r.FineStep),
	}, sep)
}

const recordFields = 16

// ParseRecord parses a log line.
func ParseRecord(line string) (tension.Record, error) {
	var r tension.Record
	f := strings.Split(strings.TrimSpace(line), sep)
	if len(f) != recordFields {
		return r, fmt.Errorf("%d fields, expected %d", len(f), recordFields)
	}
	p := parser{fields: f}
	r.Session = f[0]
	r.Cycle = p.int(1)
	r.Time = p.time(2)
	r.Since = p.millis(3)
	r.Unit = p.unit(4)
	r.TargetLb = p.float(5)
	r.Achieved = p.int(6)
	r.Percent = p.int(7)
	r.Mode = f[8]
	r.Settle = p.millis(9)
	r.Hold = p.millis(10)
	r.Forward = p.int(11)
	r.Backward = p.int(12)
	r.Manual = p.int(13)
	r.Correction = p.float(14)
	r.FineStep = p.int(15)
	return r, p.err
}

// parser keeps the first conversion error.
type parser struct {
	fields []string
	err    error
}

func (p *parser) int(i int) int {
	v, err := strconv.Atoi(p.fields[i])
	p.keep(i, err)
	return v
}

func (p *parser) float(i int) float64 {
	v, err := strconv.ParseFloat(p.fields[i], 64)
	p.keep(i, err)
	return v
}

func (p *parser) millis(i int) time.Duration {
	v, err := strconv.ParseInt(p.fields[i], 10, 64)
	p.keep(i, err)
	return time.Duration(v) * time.Millisecond
}

func (p *parser) time(i int) time.Time {
	v, err := time.Parse(time.RFC3339, p.fields[i])
	p.keep(i, err)
	return v
}

func (p *parser) keep(i int, err error) {
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("field %d: %v", i+1, err)
	}
}

func (p *parser) unit(i int) tension.Unit {
	u, err := parseUnit(p.fields[i])
	p.keep(i, err)
	return u
}

func writeAtomic(path, data string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.WriteString(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
