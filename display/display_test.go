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

package display

import (
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aamcrae/tensioner/tension"
)

func TestWriteCell(t *testing.T) {
	s := NewScreen()
	changes := 0
	s.OnChange(func() { changes++ })
	s.WriteCell(0, 0, 8, "Target 18.0lb")
	s.WriteCell(1, 4, 6, "ok")
	s.WriteCell(3, 17, 10, "12345")
	s.WriteCell(4, 0, 5, "off")
	l := s.Lines()
	assert.Equal(t, "Target 1            ", l[0])
	assert.Equal(t, "    ok              ", l[1])
	assert.Equal(t, "                 123", l[3])
	assert.Equal(t, 3, changes)

	s.WriteCell(1, 4, 6, "ok")
	assert.Equal(t, 3, changes, "no change")
	s.WriteCell(2, 0, 3, "a\tb")
	assert.Equal(t, "a?b", s.Lines()[2][:3])

	s.Clear()
	assert.Equal(t, "\n\n\n", s.String())
}

func TestRender(t *testing.T) {
	s := NewScreen()
	s.WriteCell(0, 0, 20, "Ready")
	img := s.Render()
	b := img.Bounds()
	assert.Equal(t, Cols*cellW+2*border, b.Dx())
	assert.Equal(t, Rows*cellH+2*border, b.Dy())
}

func newTestServer(t *testing.T, press func(tension.Button)) (*Server, *httptest.Server) {
	sh := tension.NewShared()
	s := NewServer(0, NewScreen(), sh)
	s.Session = "test-session"
	s.Press = press
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func TestStatus(t *testing.T) {
	s, ts := newTestServer(t, nil)
	s.screen.WriteCell(0, 0, 20, "Ready")
	resp, err := http.Get(ts.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, "test-session", st.Session)
	assert.Equal(t, "idle", st.State)
	assert.False(t, st.BaselineReady)
	require.Len(t, st.Screen, Rows)
	assert.Equal(t, "Ready", st.Screen[0][:5])
}

func TestScreenImage(t *testing.T) {
	_, ts := newTestServer(t, nil)
	resp, err := http.Get(ts.URL + "/screen.png")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	_, err = png.Decode(resp.Body)
	assert.NoError(t, err)
}

func TestPress(t *testing.T) {
	_, ts := newTestServer(t, nil)
	resp, err := http.Post(ts.URL+"/press?button=head", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "disabled without a press function")

	got := make(chan tension.Button, 1)
	_, ts = newTestServer(t, func(b tension.Button) { got <- b })
	resp, err = http.Post(ts.URL+"/press?button=exit", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, tension.Exit, <-got)

	resp, err = http.Post(ts.URL+"/press?button=reset", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/press?button=up")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestMetrics(t *testing.T) {
	_, ts := newTestServer(t, nil)
	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
