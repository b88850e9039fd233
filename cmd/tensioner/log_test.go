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
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/aamcrae/tensioner/store"
	"github.com/aamcrae/tensioner/tension"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func record(cycle int, unit tension.Unit) tension.Record {
	return tension.Record{
		Session:    "f47ac10b-58cc-4372-a567-0e02b2c3d479",
		Cycle:      cycle,
		Time:       time.Date(2024, time.May, 4, 10, 30, 0, 0, time.UTC),
		Since:      90 * time.Second,
		Unit:       unit,
		TargetLb:   18,
		Achieved:   8200,
		Percent:    10,
		Mode:       "pre-stretch",
		Settle:     1500 * time.Millisecond,
		Hold:       20 * time.Second,
		Forward:    3,
		Backward:   1,
		Correction: 1.13,
		FineStep:   20,
	}
}

func TestLogCommand(t *testing.T) {
	dir := t.TempDir()
	state := filepath.Join(dir, "tensioner.conf")
	logPath := filepath.Join(dir, "cycles.log")
	st := store.NewFile(state, logPath)
	for i := 1; i <= 3; i++ {
		st.AppendLogRecord(record(i, tension.Pounds))
	}
	st.AppendLogRecord(record(4, tension.Kilograms))

	out := execute(t, "log", "--verbose=false", "--state", state, "--log", logPath, "-n", "2")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, store.FormatRecord(record(3, tension.Pounds)), lines[0])

	out = execute(t, "log", "--verbose=false", "--state", state, "--log", logPath, "-n", "2", "--yaml")
	var views []recordView
	require.NoError(t, yaml.Unmarshal([]byte(out), &views))
	require.Len(t, views, 2)
	assert.Equal(t, 3, views[0].Cycle)
	assert.Equal(t, "lb", views[0].Unit)
	assert.Equal(t, 18.0, views[0].Target)
	assert.Equal(t, 18.1, views[0].Achieved)
	assert.Equal(t, 20*time.Second, views[0].Hold)
	assert.Equal(t, "kg", views[1].Unit)
	assert.Equal(t, 8.2, views[1].Target)
	assert.Equal(t, 8.2, views[1].Achieved)
	assert.Contains(t, out, "hold: 20s")
}

func TestConfigCommand(t *testing.T) {
	dir := t.TempDir()
	state := filepath.Join(dir, "tensioner.conf")
	c := tension.DefaultConfig()
	c.TargetLb = 24.5
	c.KnotActive = true
	store.NewFile(state, "").SaveConfig(c)

	out := execute(t, "config", "--verbose=false", "--state", state, "--log", "")
	var v configView
	require.NoError(t, yaml.Unmarshal([]byte(out), &v))
	assert.Equal(t, 24.5, v.TargetLb)
	assert.Equal(t, 11.1, v.TargetKg)
	assert.True(t, v.KnotActive)
	assert.Equal(t, "lb", v.Unit)
	assert.Equal(t, c.TargetGrams(), v.TargetGrams)
}

func TestQuiet(t *testing.T) {
	assert.NoError(t, quiet(nil))
	assert.NoError(t, quiet(context.Canceled))
	assert.Error(t, quiet(assert.AnError))
}
