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

package main

import (
	"time"

	"github.com/aamcrae/tensioner/tension"
)

// recordView is a log record as printed with --yaml.
type recordView struct {
	Session    string        `yaml:"session"`
	Cycle      int           `yaml:"cycle"`
	Time       time.Time     `yaml:"time"`
	Since      time.Duration `yaml:"since,omitempty"`
	Unit       string        `yaml:"unit"`
	Target     float64       `yaml:"target"`
	Achieved   float64       `yaml:"achieved"`
	Grams      int           `yaml:"achieved_g"`
	Percent    int           `yaml:"percent"`
	Mode       string        `yaml:"mode"`
	Settle     time.Duration `yaml:"settle"`
	Hold       time.Duration `yaml:"hold"`
	Forward    int           `yaml:"forward"`
	Backward   int           `yaml:"backward"`
	Manual     int           `yaml:"manual"`
	Correction float64       `yaml:"correction"`
	FineStep   int           `yaml:"fine_step"`
}

// configView is the control configuration as printed by the config command.
type configView struct {
	TargetLb    float64 `yaml:"target_lb"`
	TargetKg    float64 `yaml:"target_kg"`
	PreStretch  int     `yaml:"pre_stretch"`
	Knot        int     `yaml:"knot"`
	KnotActive  bool    `yaml:"knot_active"`
	Correction  float64 `yaml:"correction"`
	FineStep    int     `yaml:"fine_step"`
	Calibration int     `yaml:"calibration"`
	AbortGrams  int     `yaml:"abort_g"`
	Unit        string  `yaml:"unit"`
	AutoNudge   bool    `yaml:"auto_nudge"`
	Cycles      int     `yaml:"cycles"`
	Travel      int     `yaml:"travel"`
	TargetGrams int     `yaml:"approach_g"`
}

func viewRecord(r tension.Record) recordView {
	v := recordView{
		Session:    r.Session,
		Cycle:      r.Cycle,
		Time:       r.Time,
		Since:      r.Since,
		Unit:       r.Unit.String(),
		Target:     r.TargetLb,
		Grams:      r.Achieved,
		Percent:    r.Percent,
		Mode:       r.Mode,
		Settle:     r.Settle,
		Hold:       r.Hold,
		Forward:    r.Forward,
		Backward:   r.Backward,
		Manual:     r.Manual,
		Correction: r.Correction,
		FineStep:   r.FineStep,
	}
	if r.Unit == tension.Kilograms {
		v.Target = round1(float64(tension.LbToGrams(r.TargetLb)) / 1000)
		v.Achieved = round1(float64(r.Achieved) / 1000)
	} else {
		v.Achieved = round1(float64(r.Achieved) / tension.GramsPerLb)
	}
	return v
}

func viewConfig(c tension.Config) configView {
	return configView{
		TargetLb:    c.TargetLb,
		TargetKg:    c.Kg(),
		PreStretch:  c.PreStretch,
		Knot:        c.Knot,
		KnotActive:  c.KnotActive,
		Correction:  c.Correction,
		FineStep:    c.FineStep,
		Calibration: c.Calibration,
		AbortGrams:  c.AbortGrams,
		Unit:        c.Unit.String(),
		AutoNudge:   c.AutoNudge,
		Cycles:      c.Cycles,
		Travel:      c.Travel,
		TargetGrams: c.TargetGrams(),
	}
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
