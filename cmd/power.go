// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Thermoquad/signalbox/pkg/z21"
	"github.com/spf13/cobra"
)

var (
	powerTimeout  int
	statusTimeout int
)

var powerCmd = &cobra.Command{
	Use:   "power on|off",
	Short: "Switch track power",
	Long: `Switch track power on or off and wait for the command station to confirm.

Exit codes:
  0 - Power state confirmed
  1 - No confirmation before timeout
  2 - Connection error`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE:      runPower,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query the command station status",
	Long: `Request LAN_X_GET_STATUS and print the reported track power state.

Exit codes:
  0 - Status received
  1 - No reply before timeout
  2 - Connection error`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(powerCmd)
	rootCmd.AddCommand(statusCmd)
	powerCmd.Flags().IntVar(&powerTimeout, "timeout", 5, "Timeout in seconds to wait for confirmation")
	statusCmd.Flags().IntVar(&statusTimeout, "timeout", 5, "Timeout in seconds to wait for a reply")
}

// powerEvents are the replies that report a track power state
var powerEvents = []z21.EventKind{
	z21.EventTrackPowerOn,
	z21.EventTrackPowerOff,
	z21.EventProgrammingMode,
}

func runPower(cmd *cobra.Command, args []string) error {
	var send func(c *z21.Codec)
	var want z21.EventKind
	switch args[0] {
	case "on":
		send, want = (*z21.Codec).SetTrackPowerOn, z21.EventTrackPowerOn
	case "off":
		send, want = (*z21.Codec).SetTrackPowerOff, z21.EventTrackPowerOff
	default:
		return fmt.Errorf("invalid power state %q (on or off)", args[0])
	}

	timeout := timeoutFor(cmd, powerTimeout)
	return runWithStation(func(ctx context.Context, st *Station) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		ev, err := st.Request(ctx, compose(send), eventIs(powerEvents...))
		if err != nil {
			return waitFailure("power confirmation", timeout, err)
		}
		fmt.Printf("Track power: %s\n", ev.Kind)
		if ev.Kind != want {
			return failure("command station reported %s, expected %s", ev.Kind, want)
		}
		return nil
	})
}

func runStatus(cmd *cobra.Command, args []string) error {
	timeout := timeoutFor(cmd, statusTimeout)
	return runWithStation(func(ctx context.Context, st *Station) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		ev, err := st.Request(ctx, compose((*z21.Codec).GetStatus), eventIs(powerEvents...))
		if err != nil {
			return waitFailure("status", timeout, err)
		}
		fmt.Printf("Connection: %s\n", st.Info())
		fmt.Printf("Status: %s\n", ev.Kind)
		return nil
	})
}

// waitFailure maps a WaitFor error to an exit code
func waitFailure(what string, timeout time.Duration, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return failure("TIMEOUT: no %s received within %v", what, timeout)
	}
	if errors.Is(err, context.Canceled) {
		return failure("interrupted while waiting for %s", what)
	}
	return connectionFailure(err)
}
