// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Signalbox - Z21 Command Station Client
//
// A CLI tool for driving, monitoring and recording Z21 model railway
// command stations over UDP, serial or a WebSocket bridge.

package main

import (
	"os"

	"github.com/Thermoquad/signalbox/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(cmd.ExitCode(err))
	}
}
