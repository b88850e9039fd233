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

package panel

import (
	"fmt"
	"time"

	"github.com/aamcrae/tensioner/tension"
)

// item is a region of the screen.
type item int

const (
	itemTarget item = iota
	itemPercent
	itemCorrection
	itemFineStep
	itemLive
	itemSettle
	itemMessage
	itemTitle
	itemSetting
	itemHint
	numItems
)

type cell struct {
	row, col, width int
}

// layout is the only place screen positions are known.
var layout = [numItems]cell{
	// Main page
	itemTarget:     {0, 0, 10},
	itemPercent:    {0, 12, 8},
	itemCorrection: {1, 0, 9},
	itemFineStep:   {1, 12, 8},
	itemLive:       {2, 0, 15},
	itemSettle:     {2, 15, 5},
	itemMessage:    {3, 0, 20},
	// Settings page
	itemTitle:   {0, 0, 20},
	itemSetting: {1, 0, 20},
	itemHint:    {2, 0, 20},
}

func (p *Panel) write(it item, text string) {
	c := layout[it]
	p.d.WriteCell(c.row, c.col, c.width, text)
}

// mainFields are the fields edited from the main page, in cursor order.
func mainFields(c *tension.Config) []tension.Field {
	pct := tension.FieldPreStretch
	if c.KnotActive {
		pct = tension.FieldKnot
	}
	if c.Unit == tension.Kilograms {
		return []tension.Field{tension.FieldTargetKgTens, tension.FieldTargetKgUnits, tension.FieldTargetKgTenths, pct}
	}
	return []tension.Field{tension.FieldTargetLbTens, tension.FieldTargetLbUnits, tension.FieldTargetLbTenths, pct}
}

// setting is one line of the settings page: a field edited with
// left and right, or an action started with head.
type setting struct {
	name   string
	field  tension.Field
	action func(p *Panel)
}

var settings = []setting{
	{name: "Correction", field: tension.FieldCorrection},
	{name: "Fine step", field: tension.FieldFineStep},
	{name: "Calibration", field: tension.FieldCalibration},
	{name: "Abort", field: tension.FieldAbortGrams},
	{name: "Unit", field: tension.FieldUnit},
	{name: "Pre-stretch", field: tension.FieldPreStretch},
	{name: "Knot", field: tension.FieldKnot},
	{name: "Knot active", field: tension.FieldKnotActive},
	{name: "Auto CC", field: tension.FieldAutoNudge},
	{name: "TS RESET", action: (*Panel).zeroReset},
	{name: "CC AUTO", action: (*Panel).probe},
	{name: "SMART", action: (*Panel).smart},
}

// value formats a field for display.
func value(c *tension.Config, f tension.Field) string {
	switch f {
	case tension.FieldTargetLbTens, tension.FieldTargetLbUnits, tension.FieldTargetLbTenths:
		return fmt.Sprintf("%.1flb", c.TargetLb)
	case tension.FieldTargetKgTens, tension.FieldTargetKgUnits, tension.FieldTargetKgTenths:
		return fmt.Sprintf("%.1fkg", c.Kg())
	case tension.FieldPreStretch:
		return fmt.Sprintf("%d%%", c.PreStretch)
	case tension.FieldKnot:
		return fmt.Sprintf("%d%%", c.Knot)
	case tension.FieldKnotActive, tension.FieldAutoNudge:
		on := c.KnotActive
		if f == tension.FieldAutoNudge {
			on = c.AutoNudge
		}
		if on {
			return "on"
		}
		return "off"
	case tension.FieldCorrection:
		return fmt.Sprintf("%.2f", c.Correction)
	case tension.FieldFineStep:
		return fmt.Sprintf("%d", c.FineStep)
	case tension.FieldCalibration:
		return fmt.Sprintf("%d", c.Calibration)
	case tension.FieldAbortGrams:
		return fmt.Sprintf("%dG", c.AbortGrams)
	case tension.FieldUnit:
		return c.Unit.String()
	}
	return "?"
}

// live formats a tension reading in grams and the display unit.
func live(grams int, u tension.Unit) string {
	if u == tension.Kilograms {
		return fmt.Sprintf("%dg %.1fkg", grams, float64(grams)/1000)
	}
	return fmt.Sprintf("%dg %.1flb", grams, float64(grams)/tension.GramsPerLb)
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%3ds", int(d/time.Second))
}
