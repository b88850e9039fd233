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
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aamcrae/tensioner/board"
	"github.com/aamcrae/tensioner/tension"
)

var jogCmd = &cobra.Command{
	Use:   "jog",
	Short: "Move the slide by hand and read the tension",
	Long: `Homes the slide, then reads commands from stdin to move it and show
the load cell. Used to check the wiring and the calibration. The
safety ceiling and the limit switches still apply.`,
	Args: cobra.NoArgs,
	RunE: runJog,
}

func init() {
	rootCmd.AddCommand(jogCmd)
}

func runJog(cmd *cobra.Command, args []string) error {
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
	m := tension.New(b.Hardware, tension.SystemClock, openStore(), params)

	ctx, stop := signalContext(cmd)
	defer stop()
	go m.Sampler().Run(ctx, tension.SampleInterval)
	if err := m.Boot(); err != nil {
		return err
	}
	mo := m.Motion()
	sh := m.Shared()
	reader := bufio.NewReader(os.Stdin)
	for ctx.Err() == nil {
		base, _ := sh.Baseline()
		fmt.Printf("Position %d, tension %d g (raw %d, zero %d, calibration %d)\n",
			mo.Position(), sh.Tension(), sh.Raw(), base, sh.Calibration())
		fmt.Print("Enter steps or command ('help' for help) ")
		text, err := reader.ReadString('\n')
		if err != nil {
			return nil
		}
		text = strings.TrimSpace(text)
		switch text {
		case "help":
			fmt.Println("  help - print help")
			fmt.Println("  [-]NNN - move steps, negative to slacken")
			fmt.Println("  h - return to standby")
			fmt.Println("  t - measure the travel")
			fmt.Println("  z - reset the load cell zero")
			fmt.Println("  q - quit")
		case "":
		case "q":
			return nil
		case "h":
			m.Home()
		case "t":
			o := mo.MeasureTravel()
			mo.HomeToStandby(false)
			fmt.Printf("Travel %d steps (%s)\n", mo.Travel(), o)
		case "z":
			if err := m.ZeroReset(); err != nil {
				fmt.Printf("Zero reset: %v\n", err)
			}
		default:
			var steps int
			n, err := fmt.Sscanf(text, "%d", &steps)
			if err != nil || n != 1 {
				fmt.Printf("Unrecognised input\n")
				continue
			}
			var o tension.Outcome
			if steps >= 0 {
				o = mo.Advance(params.Motion.Fine, steps, false, false)
			} else {
				o = mo.Retreat(params.Motion.Fine, -steps, false, false)
			}
			if !o.Ok() {
				fmt.Printf("Move stopped: %s\n", o)
			}
		}
	}
	return nil
}
