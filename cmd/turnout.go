// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/Thermoquad/signalbox/pkg/z21"
	"github.com/spf13/cobra"
)

var turnoutPulse int

var turnoutCmd = &cobra.Command{
	Use:   "turnout <address> turn|forward|off",
	Short: "Switch a turnout",
	Long: `Switch a turnout (accessory decoder output).

With --pulse the output is switched off again after the given number of
milliseconds, which suits solenoid drives without end-position cut-off.`,
	Args: cobra.ExactArgs(2),
	RunE: runTurnout,
}

func init() {
	rootCmd.AddCommand(turnoutCmd)
	turnoutCmd.Flags().IntVar(&turnoutPulse, "pulse", 0, "Deactivate after N milliseconds (0 = leave on)")
}

func runTurnout(cmd *cobra.Command, args []string) error {
	address, err := parseTurnoutAddress(args[0])
	if err != nil {
		return err
	}
	direction, err := parseTurnoutDirection(args[1])
	if err != nil {
		return err
	}

	return runWithStation(func(ctx context.Context, st *Station) error {
		if err := st.Send(compose(func(c *z21.Codec) { c.SetTurnout(address, direction) })); err != nil {
			return err
		}
		fmt.Printf("Sent: turnout %d %s\n", address, direction)

		if turnoutPulse <= 0 || direction == z21.TurnoutOff {
			return nil
		}

		select {
		case <-time.After(time.Duration(turnoutPulse) * time.Millisecond):
		case <-ctx.Done():
		}
		if err := st.Send(compose(func(c *z21.Codec) { c.SetTurnout(address, z21.TurnoutOff) })); err != nil {
			return err
		}
		fmt.Printf("Sent: turnout %d off\n", address)
		return nil
	})
}
