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

package io

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePin struct {
	mu     sync.Mutex
	values []int
}

func (p *fakePin) Set(v int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values = append(p.values, v)
	return nil
}

func (p *fakePin) history() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.values...)
}

func TestStepperPhases(t *testing.T) {
	var pins [4]fakePin
	s := NewStepper(&pins[0], &pins[1], &pins[2], &pins[3])
	require.NoError(t, s.Forward())
	require.NoError(t, s.Forward())
	require.NoError(t, s.Backward())
	assert.Equal(t, int64(1), s.GetStep())
	for i := range pins {
		h := pins[i].history()
		require.Len(t, h, 12)
		for r := 0; r < 4; r++ {
			assert.Equal(t, forwardPhases[r][i], h[r], "pin %d row %d", i, r)
			assert.Equal(t, backwardPhases[r][i], h[8+r], "pin %d row %d", i, r)
		}
	}
	require.NoError(t, s.Off())
	for i := range pins {
		h := pins[i].history()
		assert.Equal(t, 0, h[len(h)-1])
	}
	// Already off.
	require.NoError(t, s.Off())
	assert.Len(t, pins[0].history(), 13)
}

// hx711 models the amplifier serial interface: each rising clock edge
// shifts out the next data bit, most significant first.
type hx711 struct {
	ready  bool
	value  int32
	bit    int
	clocks int
	sck    int
}

func (h *hx711) Get() (int, error) {
	if !h.ready {
		return 1, nil
	}
	if h.bit == 0 {
		return 0, nil
	}
	if h.bit > 24 {
		return 1, nil
	}
	return int(uint32(h.value)>>(24-h.bit)) & 1, nil
}

func (h *hx711) Set(v int) error {
	if v == 1 && h.sck == 0 {
		h.clocks++
		h.bit++
	}
	h.sck = v
	return nil
}

func TestHX711(t *testing.T) {
	tests := []struct {
		raw  int32
		want int
	}{
		{0x000123, 0x123},
		{0x7fffff, 8388607},
		{0xffffff, -1},
		{0x800000, -8388608},
	}
	for _, tc := range tests {
		dev := &hx711{ready: true, value: tc.raw}
		h, err := NewHX711(dev, dev, GainA128)
		require.NoError(t, err)
		v, ok, err := h.Read()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, tc.want, v)
		assert.Equal(t, 25, dev.clocks, "24 data bits and the gain pulse")
	}
}

func TestHX711NotReady(t *testing.T) {
	dev := &hx711{}
	h, err := NewHX711(dev, dev, GainA64)
	require.NoError(t, err)
	_, ok, err := h.Read()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, dev.clocks)
	require.NoError(t, h.Close())
	assert.Equal(t, 1, dev.sck, "power down")
}

func TestHX711Gain(t *testing.T) {
	dev := &hx711{}
	_, err := NewHX711(dev, dev, 7)
	assert.Error(t, err)
}

func TestBeeper(t *testing.T) {
	p := &fakePin{}
	b := NewBeeper(p)
	b.Pattern(time.Millisecond, time.Millisecond, 3)
	b.Beep(0)
	assert.Eventually(t, func() bool { return len(p.history()) >= 7 }, time.Second, time.Millisecond)
	assert.Equal(t, []int{0, 1, 0, 1, 0, 1, 0}, p.history())
	b.Close()
}

func TestBlinker(t *testing.T) {
	p := &fakePin{}
	b := NewBlinker(p)
	assert.Error(t, b.Set(time.Millisecond, 101))
	require.NoError(t, b.Set(2*time.Millisecond, 50))
	assert.Eventually(t, func() bool {
		h := p.history()
		return len(h) >= 4
	}, time.Second, time.Millisecond)
	b.Close()
	h := p.history()
	assert.Equal(t, 0, h[len(h)-1], "off after close")
}

func TestExportNode(t *testing.T) {
	dir := t.TempDir()
	export := filepath.Join(dir, "export")
	node := filepath.Join(dir, "gpio17")
	require.NoError(t, os.WriteFile(export, nil, 0644))
	old := settle
	settle = 5 * time.Millisecond
	defer func() { settle = old }()

	// Not yet exported: the unit is written and the node waited for.
	err := exportNode(node, export, 17)
	assert.ErrorContains(t, err, "not writable")
	got, err := os.ReadFile(export)
	require.NoError(t, err)
	assert.Equal(t, "17", string(got))

	// Already exported: the export file is left alone.
	require.NoError(t, os.WriteFile(node, nil, 0644))
	require.NoError(t, os.WriteFile(export, nil, 0644))
	require.NoError(t, exportNode(node, export, 17))
	got, err = os.ReadFile(export)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWriteNode(t *testing.T) {
	dir := t.TempDir()
	attr := filepath.Join(dir, "direction")
	require.NoError(t, os.WriteFile(attr, nil, 0644))
	require.NoError(t, writeNode(attr, "out"))
	got, err := os.ReadFile(attr)
	require.NoError(t, err)
	assert.Equal(t, "out", string(got))

	// Attributes are never created.
	missing := filepath.Join(dir, "edge")
	assert.Error(t, writeNode(missing, "both"))
	assert.NoFileExists(t, missing)
}

func TestAwaitWritable(t *testing.T) {
	node := filepath.Join(t.TempDir(), "duty_cycle")
	go func() {
		time.Sleep(10 * time.Millisecond)
		os.WriteFile(node, nil, 0644)
	}()
	assert.NoError(t, awaitWritable(node, time.Second))
	assert.Error(t, awaitWritable(filepath.Join(t.TempDir(), "none"), 5*time.Millisecond))
}
