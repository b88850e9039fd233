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

// HTTP server for the panel screen and controller status.

package display

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aamcrae/tensioner/tension"
)

// Status is the controller state reported by /status.
type Status struct {
	Session       string   `json:"session"`
	State         string   `json:"state"`
	Tension       int      `json:"tension_g"`
	Raw           int      `json:"raw"`
	Baseline      int      `json:"baseline"`
	BaselineReady bool     `json:"baseline_ready"`
	Samples       uint64   `json:"samples"`
	Position      int      `json:"position"`
	Correction    float64  `json:"correction"`
	Calibration   int      `json:"calibration"`
	Screen        []string `json:"screen"`
}

// Server serves the screen image, the status and the metrics.
type Server struct {
	Port    int
	Session string
	// Press, if set, enables /press?button=name, used to drive a
	// simulated panel from the browser.
	Press  func(tension.Button)
	screen *Screen
	sh     *tension.Shared
}

// NewServer creates a server for the screen and the shared state.
func NewServer(port int, screen *Screen, sh *tension.Shared) *Server {
	return &Server{Port: port, screen: screen, sh: sh}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/screen.png", s.image)
	mux.HandleFunc("/status", s.status)
	mux.HandleFunc("/press", s.press)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Run serves until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	url := fmt.Sprintf(":%d", s.Port)
	log.Printf("display: starting server on %s", url)
	server := &http.Server{Addr: url, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		server.Shutdown(sctx)
	}()
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Status returns the current controller status.
func (s *Server) Status() Status {
	base, ready := s.sh.Baseline()
	return Status{
		Session:       s.Session,
		State:         s.sh.State().String(),
		Tension:       s.sh.Tension(),
		Raw:           s.sh.Raw(),
		Baseline:      base,
		BaselineReady: ready,
		Samples:       s.sh.Samples(),
		Position:      s.sh.Position(),
		Correction:    s.sh.Correction(),
		Calibration:   s.sh.Calibration(),
		Screen:        s.screen.Lines(),
	}
}

func (s *Server) image(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := png.Encode(w, s.screen.Render()); err != nil {
		log.Printf("display: writing image: %v", err)
	}
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.Status()); err != nil {
		log.Printf("display: writing status: %v", err)
	}
}

func (s *Server) press(w http.ResponseWriter, r *http.Request) {
	if s.Press == nil {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	name := r.URL.Query().Get("button")
	b, ok := tension.ButtonByName(name)
	if !ok {
		http.Error(w, fmt.Sprintf("unknown button %q", name), http.StatusBadRequest)
		return
	}
	s.Press(b)
	w.WriteHeader(http.StatusNoContent)
}
