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
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/aamcrae/tensioner/display"
	"github.com/aamcrae/tensioner/io"
	"github.com/aamcrae/tensioner/panel"
	"github.com/aamcrae/tensioner/sim"
	"github.com/aamcrae/tensioner/store"
	"github.com/aamcrae/tensioner/tension"
)

var simFlags struct {
	port    int
	persist bool
	echo    bool
	noise   int
	creep   float64
	lag     time.Duration
}

var simCmd = &cobra.Command{
	Use:   "sim",
	Short: "Run the controller on a simulated slide and string",
	Long: `Runs the controller against the simulator in real time. The screen is
served on /screen.png and the buttons are pressed with
POST /press?button=head (or up, down, left, right, settings, exit).`,
	Args: cobra.NoArgs,
	RunE: runSim,
}

func init() {
	f := simCmd.Flags()
	f.IntVar(&simFlags.port, "http", 8080, "Status server port")
	f.BoolVar(&simFlags.persist, "persist", false, "Use the --state and --log files instead of memory")
	f.BoolVar(&simFlags.echo, "echo", false, "Print the screen on every change")
	f.IntVar(&simFlags.noise, "noise", 20, "Peak load cell noise in raw counts")
	f.Float64Var(&simFlags.creep, "creep", 5, "String relaxation in grams per second")
	f.DurationVar(&simFlags.lag, "lag", 25*time.Millisecond, "Load cell time constant")
	rootCmd.AddCommand(simCmd)
}

func runSim(cmd *cobra.Command, args []string) error {
	clock := sim.NewClock()
	clock.Realtime = true
	rig := sim.NewRig(clock, 5000)
	rig.Noise = simFlags.noise
	rig.Creep = simFlags.creep
	rig.Lag = simFlags.lag

	var buttons [tension.NumButtons]io.Getter
	for i := range buttons {
		buttons[i] = rig.Button(i)
	}
	hw := tension.Hardware{
		Motor:   rig,
		Front:   rig.Front(),
		Rear:    rig.Rear(),
		Load:    rig,
		Buttons: buttons,
	}
	var st tension.Persistence = store.NewMemory()
	if simFlags.persist {
		st = openStore()
	}
	params := tension.DefaultParams()
	params.Motion.MaxSteps = rig.Travel
	params.CheckTravel = true
	m := tension.New(hw, clock, st, params)
	// The sampler runs on the clock, so that it sees every conversion.
	clock.OnTick(func(time.Time) { m.Sampler().Poll() })

	screen := display.NewScreen()
	if simFlags.echo {
		screen.OnChange(func() { fmt.Printf("%s\n", screen) })
	}
	p := panel.New(m, screen, clock, panel.Lights{})
	s := display.NewServer(simFlags.port, screen, m.Shared())
	s.Session = m.Session
	s.Press = func(b tension.Button) {
		rig.Press(int(b), 0, 100*time.Millisecond)
	}

	ctx, stop := signalContext(cmd)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.Run(gctx)
	})
	g.Go(func() error {
		return s.Run(gctx)
	})
	return quiet(g.Wait())
}
