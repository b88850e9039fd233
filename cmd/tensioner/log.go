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
	stdio "io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/aamcrae/tensioner/io"
	"github.com/aamcrae/tensioner/store"
)

var logFlags struct {
	count int
	yaml  bool
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Print the newest cycle log records",
	Args:  cobra.NoArgs,
	RunE:  runLog,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the control configuration in effect",
	Args:  cobra.NoArgs,
	RunE:  runConfig,
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List the serial ports, for a serial load cell bridge",
	Args:  cobra.NoArgs,
	RunE:  runPorts,
}

func init() {
	f := logCmd.Flags()
	f.IntVarP(&logFlags.count, "count", "n", 20, "Records to print, 0 for all")
	f.BoolVar(&logFlags.yaml, "yaml", false, "Print as YAML")
	rootCmd.AddCommand(logCmd, configCmd, portsCmd)
}

func runLog(cmd *cobra.Command, args []string) error {
	recs := openStore().LoadLogRecords(logFlags.count)
	out := cmd.OutOrStdout()
	if !logFlags.yaml {
		for _, r := range recs {
			fmt.Fprintln(out, store.FormatRecord(r))
		}
		return nil
	}
	views := make([]recordView, len(recs))
	for i, r := range recs {
		views[i] = viewRecord(r)
	}
	return writeYAML(out, views)
}

func runConfig(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(stateFile); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v, showing the defaults\n", stateFile, err)
	}
	return writeYAML(cmd.OutOrStdout(), viewConfig(openStore().LoadConfig()))
}

func runPorts(cmd *cobra.Command, args []string) error {
	ports, err := io.SerialPorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No serial ports found.")
	}
	for _, p := range ports {
		fmt.Fprintln(cmd.OutOrStdout(), p)
	}
	return nil
}

func writeYAML(w stdio.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
