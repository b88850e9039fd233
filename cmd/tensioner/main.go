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

// Tensioner controller program

package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/aamcrae/config"
	"github.com/spf13/cobra"

	"github.com/aamcrae/tensioner/board"
	"github.com/aamcrae/tensioner/store"
)

var (
	boardFile string
	stateFile string
	logFile   string
	port      int
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "tensioner",
	Short: "Motorized string tensioner controller",
	Long: `Drives the tensioner slide from the front panel buttons: pulls the
string to the target tension, holds it there and logs every cycle.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if !verbose {
			log.SetOutput(io.Discard)
		}
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&boardFile, "config", "/etc/tensioner/board.conf", "Board wiring configuration file")
	f.StringVar(&stateFile, "state", "/var/lib/tensioner/tensioner.conf", "Control configuration file")
	f.StringVar(&logFile, "log", "/var/lib/tensioner/cycles.log", "Cycle log file, empty to disable")
	f.IntVar(&port, "port", -1, "Status server port, overriding the board config; 0 disables it")
	f.BoolVarP(&verbose, "verbose", "v", true, "Log to stderr")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// signalContext is cancelled on an interrupt or terminate signal.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func readBoard() (*board.Config, error) {
	conf, err := config.ParseFile(boardFile)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", boardFile, err)
	}
	bc, err := board.ParseConfig(conf)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", boardFile, err)
	}
	if port >= 0 {
		bc.Port = port
	}
	return bc, nil
}

func openStore() *store.File {
	return store.NewFile(stateFile, logFile)
}
