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
	"context"
	"log"
	"math"
	"sort"
	"time"

	"github.com/aamcrae/tensioner/io"
	"github.com/aamcrae/tensioner/metrics"
)

const (
	// BaselineSamples is the number of raw samples in the median baseline.
	BaselineSamples = 11
	// ClickWindow is how long a button may be held before the press
	// is reported without waiting for the release.
	ClickWindow = 300 * time.Millisecond
	// SampleInterval is the sampler loop period on hardware.
	SampleInterval = 20 * time.Millisecond
)

// LoadSource produces raw load samples. ok is false when no new
// conversion is available; Read never blocks.
type LoadSource interface {
	Read() (raw int, ok bool, err error)
}

// Sampler converts raw load samples to tension and detects button edges.
// All its methods run on the sampling goroutine.
type Sampler struct {
	sh        *Shared
	load      LoadSource
	buttons   [NumButtons]io.Getter
	clock     Clock
	buf       []int
	baseline  int
	ready     bool
	resetSeen uint64
	down      [NumButtons]time.Time // Time of the rising edge, zero when released
	reported  [NumButtons]bool      // Edge already published for this press
	errs      int
}

// NewSampler creates a sampler. Nil buttons are ignored.
func NewSampler(sh *Shared, load LoadSource, buttons [NumButtons]io.Getter, clock Clock) *Sampler {
	return &Sampler{
		sh:      sh,
		load:    load,
		buttons: buttons,
		clock:   clock,
		buf:     make([]int, 0, BaselineSamples),
	}
}

// Run polls until the context is cancelled.
func (s *Sampler) Run(ctx context.Context, interval time.Duration) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		s.Poll()
		s.clock.Sleep(interval)
	}
}

// Poll performs one sampling iteration.
func (s *Sampler) Poll() {
	if req := s.sh.resetReq.Load(); req != s.resetSeen {
		s.buf = s.buf[:0]
		s.ready = false
		s.sh.baselineSet.Store(false)
		s.sh.tension.Store(0)
		s.resetSeen = req
		s.sh.resetAck.Store(req)
	}
	raw, ok, err := s.load.Read()
	if err != nil {
		// Report the first error and then every 100th.
		if s.errs%100 == 0 {
			log.Printf("sampler: load read: %v", err)
		}
		s.errs++
	} else if ok {
		s.sample(raw)
	}
	s.scanButtons()
}

func (s *Sampler) sample(raw int) {
	s.sh.raw.Store(int64(raw))
	if !s.ready {
		s.buf = append(s.buf, raw)
		if len(s.buf) == BaselineSamples {
			s.baseline = Median(s.buf)
			s.ready = true
			s.sh.baseline.Store(int64(s.baseline))
			s.sh.baselineSet.Store(true)
		}
		return
	}
	t := Scale(raw, s.baseline, s.sh.Calibration())
	s.sh.tension.Store(int64(t))
	s.sh.samples.Add(1)
	metrics.Tension.Set(float64(t))
	// Raise the stop flag for the motion in progress once the
	// corrected tension crosses the armed target.
	if id := s.sh.moveID.Load(); id != 0 {
		if stop := s.sh.stopGrams.Load(); stop > 0 && float64(t)*s.sh.Correction() > float64(stop) {
			s.sh.stopSeq.Store(id)
		}
	}
}

func (s *Sampler) scanButtons() {
	now := s.clock.Now()
	for i, b := range s.buttons {
		if b == nil {
			continue
		}
		v, err := b.Get()
		if err != nil {
			continue
		}
		if v != 0 {
			if s.down[i].IsZero() {
				s.down[i] = now
				s.reported[i] = false
			} else if !s.reported[i] && now.Sub(s.down[i]) >= ClickWindow {
				s.publish(i)
			}
		} else if !s.down[i].IsZero() {
			if !s.reported[i] {
				s.publish(i)
			}
			s.down[i] = time.Time{}
		}
	}
}

func (s *Sampler) publish(i int) {
	s.reported[i] = true
	s.sh.edgeSeq[i].Add(1)
}

// Median returns the middle element of the sorted samples,
// the 6th smallest of 11.
func Median(samples []int) int {
	sorted := append([]int(nil), samples...)
	sort.Ints(sorted)
	return sorted[len(sorted)/2]
}

// Scale converts a raw sample to grams. A calibration of 20 is nominal;
// 100 raw counts are one gram at nominal calibration.
func Scale(raw, baseline, calibration int) int {
	return int(math.Floor(float64(raw-baseline) / 100 * (float64(calibration) / 20)))
}
