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

// MinStrungGrams is the lowest plausible tension of a strung line (5 lb).
const MinStrungGrams = 2267

// NoStringPercent is the fraction of the measured travel that may be
// covered without reaching MinStrungGrams.
const NoStringPercent = 30

// Conditions is the input of the safety policy for one step.
type Conditions struct {
	Tension int  // Live tension in grams
	Ceiling int  // Abort ceiling in grams
	Rear    bool // Rear limit switch (or soft limit) active
	Homing  bool // Motion is measuring travel
	Checked bool // Operator and load checks enabled
	Exit    bool // Exit edge observed
	Steps   int  // Steps taken so far in this motion
	Travel  int  // Last measured travel
}

// Check evaluates the abort conditions in priority order and returns
// None if motion may continue. AbortGram is always evaluated and
// overrides everything else.
func Check(c Conditions) Reason {
	if c.Tension > c.Ceiling {
		return AbortGram
	}
	if c.Rear && !c.Homing {
		return OverLimit
	}
	if !c.Checked {
		return None
	}
	if c.Exit {
		return UserExit
	}
	if c.Travel > 0 && c.Steps*100 > c.Travel*NoStringPercent && c.Tension < MinStrungGrams {
		return NoString
	}
	return None
}
