// Copyright 2025 The quicd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cmd is the process entrypoint: a cobra command tree wiring
// configuration loading, GOMAXPROCS tuning and signal-driven
// start/reload/stop for the serve subcommand.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/quicd/quicd/logger"
)

var rootCmd = &cobra.Command{
	Use:   "quicd",
	Short: "quicd runs a QUIC transport endpoint with a dc streaming extension",
}

// Execute runs the command tree; it is the only function main calls.
func Execute() {
	if _, err := maxprocs.Set(maxprocs.Logger(logger.Infof)); err != nil {
		fmt.Fprintf(os.Stderr, "failed to set GOMAXPROCS: %v\n", err)
	}
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
