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
	"time"
)

// Record is the log entry written at the end of each operator cycle.
type Record struct {
	Session    string
	Cycle      int
	Time       time.Time
	Since      time.Duration // Since the end of the previous cycle, zero for the first
	Unit       Unit
	TargetLb   float64
	Achieved   int // Grams when hold ended
	Percent    int
	Mode       string // Which percentage was active: pre-stretch or knot
	Settle     time.Duration
	Hold       time.Duration
	Forward    int
	Backward   int
	Manual     int
	Correction float64
	FineStep   int
}

func (m *Machine) record(r *CycleResult, now time.Time) Record {
	pct, mode := m.Config.Percent()
	rec := Record{
		Session:    m.Session,
		Cycle:      m.Config.Cycles,
		Time:       now,
		Unit:       m.Config.Unit,
		TargetLb:   m.Config.TargetLb,
		Achieved:   r.Achieved,
		Percent:    pct,
		Mode:       mode,
		Settle:     r.Settle,
		Hold:       r.HoldTime,
		Forward:    r.Forward,
		Backward:   r.Backward,
		Manual:     r.Manual,
		Correction: m.Config.Correction,
		FineStep:   m.Config.FineStep,
	}
	if !m.last.IsZero() {
		rec.Since = now.Sub(m.last)
	}
	return rec
}
