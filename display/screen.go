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

// Package display holds the 20x4 character screen of the front panel
// and serves it, with the controller status and metrics, over HTTP.
package display

import (
	"image"
	"strings"
	"sync"

	"github.com/fogleman/gg"
)

// Screen geometry.
const (
	Rows = 4
	Cols = 20
)

// Rendered character cell size in pixels.
const (
	cellW  = 12
	cellH  = 22
	border = 10
)

// Screen is a character framebuffer. It is written by the control
// goroutine and read by the HTTP server.
type Screen struct {
	mu       sync.Mutex
	cells    [Rows][Cols]byte
	onChange func()
}

// NewScreen returns a blank screen.
func NewScreen() *Screen {
	s := &Screen{}
	s.clear()
	return s
}

// OnChange sets a function called after every change of the contents.
func (s *Screen) OnChange(f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = f
}

// WriteCell writes text into the field of width characters at the row
// and column, truncating or padding with spaces. Fields running past
// the edge of the screen are cut off.
func (s *Screen) WriteCell(row, col, width int, text string) {
	if row < 0 || row >= Rows || col < 0 || col >= Cols {
		return
	}
	if col+width > Cols {
		width = Cols - col
	}
	s.mu.Lock()
	changed := false
	for i := 0; i < width; i++ {
		c := byte(' ')
		if i < len(text) {
			c = text[i]
			if c < ' ' || c > '~' {
				c = '?'
			}
		}
		if s.cells[row][col+i] != c {
			s.cells[row][col+i] = c
			changed = true
		}
	}
	f := s.onChange
	s.mu.Unlock()
	if changed && f != nil {
		f()
	}
}

// Clear blanks the screen.
func (s *Screen) Clear() {
	s.mu.Lock()
	s.clear()
	f := s.onChange
	s.mu.Unlock()
	if f != nil {
		f()
	}
}

func (s *Screen) clear() {
	for r := range s.cells {
		for c := range s.cells[r] {
			s.cells[r][c] = ' '
		}
	}
}

// Lines returns the screen contents, one string per row.
func (s *Screen) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := make([]string, Rows)
	for r := range s.cells {
		l[r] = string(s.cells[r][:])
	}
	return l
}

// String returns the rows joined by newlines, with trailing spaces removed.
func (s *Screen) String() string {
	l := s.Lines()
	for i := range l {
		l[i] = strings.TrimRight(l[i], " ")
	}
	return strings.Join(l, "\n")
}

// Render draws the screen as an image of a backlit LCD.
func (s *Screen) Render() image.Image {
	lines := s.Lines()
	c := gg.NewContext(Cols*cellW+2*border, Rows*cellH+2*border)
	c.SetRGB(0.1, 0.2, 0.8)
	c.Clear()
	c.SetRGB(0.9, 0.95, 1)
	for r, l := range lines {
		y := float64(border + r*cellH + cellH/2)
		for i, ch := range l {
			if ch == ' ' {
				continue
			}
			x := float64(border + i*cellW + cellW/2)
			c.DrawStringAnchored(string(ch), x, y, 0.5, 0.5)
		}
	}
	return c.Image()
}
