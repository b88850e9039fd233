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

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/aamcrae/tensioner/io"
	"github.com/aamcrae/tensioner/tension"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print the limit switch and button inputs as they change",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

type input struct {
	name string
	gpio int
}

func runWatch(cmd *cobra.Command, args []string) error {
	bc, err := readBoard()
	if err != nil {
		return err
	}
	inputs := []input{{"front", bc.Front}, {"rear", bc.Rear}}
	for b, g := range bc.Buttons {
		inputs = append(inputs, input{tension.Button(b).String(), g})
	}
	ctx, stop := signalContext(cmd)
	defer stop()
	var g errgroup.Group
	for _, in := range inputs {
		p, err := io.Pin(in.gpio)
		if err != nil {
			return fmt.Errorf("%s: pin %d: %v", in.name, in.gpio, err)
		}
		defer p.Close()
		p.ActiveLow = bc.ActiveLow
		if err := p.Edge(io.BOTH); err != nil {
			return fmt.Errorf("%s: pin %d: edge BOTH: %v", in.name, in.gpio, err)
		}
		in := in
		g.Go(func() error {
			for {
				v, err := p.Get()
				if err != nil {
					return fmt.Errorf("%s: pin %d: Get: %v", in.name, in.gpio, err)
				}
				fmt.Printf("%-8s gpio%-3d = %d\n", in.name, in.gpio, v)
			}
		})
	}
	done := make(chan error, 1)
	go func() { done <- g.Wait() }()
	select {
	case <-ctx.Done():
		return nil
	case err := <-done:
		return err
	}
}
