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

package tension

import (
	"fmt"
	"math"
)

// GramsPerLb converts pounds to grams.
const GramsPerLb = 453.59237

const (
	defaultCalibration = 20
	defaultCorrection  = 1.13
)

// Unit selects how loads are shown and logged.
type Unit int

const (
	Pounds Unit = iota
	Kilograms
)

func (u Unit) String() string {
	if u == Kilograms {
		return "kg"
	}
	return "lb"
}

// Number is the set of types handled by ClampingAdjust.
type Number interface {
	~int | ~float64
}

// Range is the inclusive bound of a tunable.
type Range[T Number] struct {
	Min, Max T
}

// Clamp limits v to the range.
func (r Range[T]) Clamp(v T) T {
	return ClampingAdjust(v, 0, r.Min, r.Max)
}

// ClampingAdjust adds delta to value and clamps the result to [min, max].
func ClampingAdjust[T Number](value, delta, min, max T) T {
	v := value + delta
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Bounds of the tunables.
var (
	TargetRange      = Range[float64]{15, 35}
	PercentRange     = Range[int]{0, 30}
	CorrectionRange  = Range[float64]{0.5, 1.5}
	FineStepRange    = Range[int]{2, 80}
	CalibrationRange = Range[int]{15, 25}
	AbortRange       = Range[int]{5000, 25000}
)

// MaxLoadGrams caps the approach target, pre-stretch included.
var MaxLoadGrams = LbToGrams(TargetRange.Max)

// Config is the operator tunable control configuration. It is owned by
// the control goroutine; the sampler sees the calibration and
// correction values only through Shared.
type Config struct {
	TargetLb    float64 // Target load, 0.1 lb resolution
	PreStretch  int     // Percent over target during the first settle
	Knot        int     // Percent used instead of PreStretch when KnotActive
	KnotActive  bool
	Correction  float64 // Overshoot correction coefficient
	FineStep    int     // Motor steps per forward correction pulse
	Calibration int     // Load cell scale factor, 20 nominal
	AbortGrams  int     // Safety ceiling
	Unit        Unit
	AutoNudge   bool // Adjust Correction after each cycle
	Cycles      int  // Completed cycle counter
	Travel      int  // Last measured slide travel in steps
}

// DefaultConfig returns the factory configuration.
func DefaultConfig() Config {
	return Config{
		TargetLb:    18,
		PreStretch:  10,
		Knot:        20,
		Correction:  defaultCorrection,
		FineStep:    20,
		Calibration: defaultCalibration,
		AbortGrams:  20000,
		Unit:        Pounds,
		AutoNudge:   true,
	}
}

// Clamp forces every tunable into its range.
func (c *Config) Clamp() {
	c.TargetLb = round1(TargetRange.Clamp(c.TargetLb))
	c.PreStretch = PercentRange.Clamp(c.PreStretch)
	c.Knot = PercentRange.Clamp(c.Knot)
	c.Correction = round2(CorrectionRange.Clamp(c.Correction))
	c.FineStep = FineStepRange.Clamp(c.FineStep)
	c.Calibration = CalibrationRange.Clamp(c.Calibration)
	c.AbortGrams = AbortRange.Clamp(c.AbortGrams)
	if c.Unit != Kilograms {
		c.Unit = Pounds
	}
	if c.Cycles < 0 {
		c.Cycles = 0
	}
	if c.Travel < 0 {
		c.Travel = 0
	}
}

// Percent returns the active over-target percentage and its mode name.
func (c *Config) Percent() (int, string) {
	if c.KnotActive {
		return c.Knot, "knot"
	}
	return c.PreStretch, "pre-stretch"
}

// LoadGrams is the target load without any over-target percentage.
func (c *Config) LoadGrams() int {
	return LbToGrams(c.TargetLb)
}

// TargetGrams is the approach target including the active percentage,
// capped at MaxLoadGrams.
func (c *Config) TargetGrams() int {
	pct, _ := c.Percent()
	return stretched(c.TargetLb, pct)
}

func stretched(lb float64, pct int) int {
	g := int(math.Round(lb * GramsPerLb * float64(100+pct) / 100))
	if g > MaxLoadGrams {
		return MaxLoadGrams
	}
	return g
}

// LbToGrams converts a load in pounds to grams.
func LbToGrams(lb float64) int {
	return int(math.Round(lb * GramsPerLb))
}

// Kg returns the target load in kilograms at 0.1 resolution.
func (c *Config) Kg() float64 {
	return round1(c.TargetLb * GramsPerLb / 1000)
}

// Field identifies an operator editable setting, independent of where
// it is shown.
type Field int

const (
	FieldTargetLbTens Field = iota
	FieldTargetLbUnits
	FieldTargetLbTenths
	FieldTargetKgTens
	FieldTargetKgUnits
	FieldTargetKgTenths
	FieldPreStretch
	FieldKnot
	FieldKnotActive
	FieldCorrection
	FieldFineStep
	FieldCalibration
	FieldAbortGrams
	FieldUnit
	FieldAutoNudge
	NumFields
)

type fieldDef struct {
	name   string
	adjust func(c *Config, steps int)
}

var fields = [NumFields]fieldDef{
	FieldTargetLbTens:   {"lb-tens", func(c *Config, n int) { c.adjustLb(10 * float64(n)) }},
	FieldTargetLbUnits:  {"lb-units", func(c *Config, n int) { c.adjustLb(float64(n)) }},
	FieldTargetLbTenths: {"lb-tenths", func(c *Config, n int) { c.adjustLb(0.1 * float64(n)) }},
	FieldTargetKgTens:   {"kg-tens", func(c *Config, n int) { c.adjustKg(10 * float64(n)) }},
	FieldTargetKgUnits:  {"kg-units", func(c *Config, n int) { c.adjustKg(float64(n)) }},
	FieldTargetKgTenths: {"kg-tenths", func(c *Config, n int) { c.adjustKg(0.1 * float64(n)) }},
	FieldPreStretch: {"pre-stretch", func(c *Config, n int) {
		c.PreStretch = ClampingAdjust(c.PreStretch, n, PercentRange.Min, PercentRange.Max)
	}},
	FieldKnot: {"knot", func(c *Config, n int) {
		c.Knot = ClampingAdjust(c.Knot, n, PercentRange.Min, PercentRange.Max)
	}},
	FieldKnotActive: {"knot-active", func(c *Config, n int) { c.KnotActive = toggle(c.KnotActive, n) }},
	FieldCorrection: {"correction", func(c *Config, n int) {
		c.Correction = round2(ClampingAdjust(c.Correction, 0.01*float64(n), CorrectionRange.Min, CorrectionRange.Max))
	}},
	FieldFineStep: {"fine-step", func(c *Config, n int) {
		c.FineStep = ClampingAdjust(c.FineStep, n, FineStepRange.Min, FineStepRange.Max)
	}},
	FieldCalibration: {"calibration", func(c *Config, n int) {
		c.Calibration = ClampingAdjust(c.Calibration, n, CalibrationRange.Min, CalibrationRange.Max)
	}},
	FieldAbortGrams: {"abort-grams", func(c *Config, n int) {
		c.AbortGrams = ClampingAdjust(c.AbortGrams, 500*n, AbortRange.Min, AbortRange.Max)
	}},
	FieldUnit: {"unit", func(c *Config, n int) {
		if n%2 != 0 {
			c.Unit = 1 - c.Unit
		}
	}},
	FieldAutoNudge: {"auto-nudge", func(c *Config, n int) { c.AutoNudge = toggle(c.AutoNudge, n) }},
}

func (f Field) String() string {
	if f < 0 || f >= NumFields {
		return fmt.Sprintf("field(%d)", int(f))
	}
	return fields[f].name
}

// Adjust moves the field by steps increments of its unit and clamps it.
// Boolean fields toggle on any odd step count.
func (c *Config) Adjust(f Field, steps int) {
	if f < 0 || f >= NumFields {
		return
	}
	fields[f].adjust(c, steps)
}

func (c *Config) adjustLb(delta float64) {
	c.TargetLb = round1(ClampingAdjust(c.TargetLb, delta, TargetRange.Min, TargetRange.Max))
}

// Kilogram edits are applied to the kilogram value and converted back.
func (c *Config) adjustKg(delta float64) {
	kg := c.Kg() + delta
	c.TargetLb = round1(TargetRange.Clamp(kg * 1000 / GramsPerLb))
}

func toggle(b bool, n int) bool {
	if n%2 != 0 {
		return !b
	}
	return b
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
