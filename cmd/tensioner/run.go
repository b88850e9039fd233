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
	"context"
	"errors"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/aamcrae/tensioner/board"
	"github.com/aamcrae/tensioner/display"
	"github.com/aamcrae/tensioner/panel"
	"github.com/aamcrae/tensioner/tension"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the controller on the board",
	Args:  cobra.NoArgs,
	RunE:  runBoard,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runBoard(cmd *cobra.Command, args []string) error {
	bc, err := readBoard()
	if err != nil {
		return err
	}
	b, err := board.Open(bc)
	if err != nil {
		return err
	}
	defer b.Close()

	params := tension.DefaultParams()
	params.Motion = bc.Motion
	params.CheckTravel = true
	m := tension.New(b.Hardware, tension.SystemClock, openStore(), params)
	screen := display.NewScreen()
	p := panel.New(m, screen, tension.SystemClock, b.Lights)

	ctx, stop := signalContext(cmd)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return m.Sampler().Run(gctx, tension.SampleInterval)
	})
	g.Go(func() error {
		return p.Run(gctx)
	})
	if bc.Port > 0 {
		s := display.NewServer(bc.Port, screen, m.Shared())
		s.Session = m.Session
		g.Go(func() error {
			return s.Run(gctx)
		})
	}
	return quiet(g.Wait())
}

// quiet drops the error of a shutdown by signal.
func quiet(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
