// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/Thermoquad/signalbox/pkg/z21"
	"github.com/spf13/cobra"
)

var (
	locoTimeout int

	driveSpeed   int
	driveSteps   int
	driveReverse bool

	libIndex int
	libTotal int
)

var locoCmd = &cobra.Command{
	Use:   "loco",
	Short: "Query and drive locomotives",
	Long: `Query and drive locomotives by DCC address (1-9999).

Addresses above 127 are sent as long addresses.`,
}

var locoInfoCmd = &cobra.Command{
	Use:   "info <address>",
	Short: "Show speed, direction and functions of a locomotive",
	Args:  cobra.ExactArgs(1),
	RunE:  runLocoInfo,
}

var locoDriveCmd = &cobra.Command{
	Use:   "drive <address>",
	Short: "Set speed and direction",
	Long: `Set the speed and direction of a locomotive.

Speed is normalized to the step mode: 0-14, 0-28 or 0-127, with 0 = stop.
The step mode defaults to default_steps from the config file (128).`,
	Args: cobra.ExactArgs(1),
	RunE: runLocoDrive,
}

var locoFnCmd = &cobra.Command{
	Use:   "fn <address> <function> on|off|toggle",
	Short: "Switch a locomotive function (F0-F63)",
	Args:  cobra.ExactArgs(3),
	RunE:  runLocoFn,
}

var locoModeCmd = &cobra.Command{
	Use:   "mode <address>",
	Short: "Show the decoder protocol (DCC or MM) of an address",
	Args:  cobra.ExactArgs(1),
	RunE:  runLocoMode,
}

var locoLibCmd = &cobra.Command{
	Use:   "lib <address> <name>",
	Short: "Send a loc-library entry (name up to 10 bytes)",
	Args:  cobra.ExactArgs(2),
	RunE:  runLocoLib,
}

func init() {
	rootCmd.AddCommand(locoCmd)
	locoCmd.AddCommand(locoInfoCmd, locoDriveCmd, locoFnCmd, locoModeCmd, locoLibCmd)

	locoCmd.PersistentFlags().IntVar(&locoTimeout, "timeout", 2, "Timeout in seconds to wait for a reply")

	locoDriveCmd.Flags().IntVarP(&driveSpeed, "speed", "s", 0, "Speed (0 = stop)")
	locoDriveCmd.Flags().IntVar(&driveSteps, "steps", 128, "Speed steps (14, 28 or 128)")
	locoDriveCmd.Flags().BoolVarP(&driveReverse, "reverse", "r", false, "Drive in reverse")

	locoLibCmd.Flags().IntVar(&libIndex, "index", 0, "Entry index")
	locoLibCmd.Flags().IntVar(&libTotal, "total", 1, "Total number of entries")
}

func runLocoInfo(cmd *cobra.Command, args []string) error {
	address, err := parseLocoAddress(args[0])
	if err != nil {
		return err
	}

	timeout := timeoutFor(cmd, locoTimeout)
	return runWithStation(func(ctx context.Context, st *Station) error {
		info, err := queryLocoInfo(ctx, st, address, timeout)
		if err != nil {
			return waitFailure(fmt.Sprintf("loco info for %d", address), timeout, err)
		}
		fmt.Print(z21.FormatLocoInfo(info))
		return nil
	})
}

func queryLocoInfo(ctx context.Context, st *Station, address uint16, timeout time.Duration) (z21.LocoInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ev, err := st.Request(ctx, compose(func(c *z21.Codec) { c.GetLocoInfo(address) }), locoInfoFor(address))
	if err != nil {
		return z21.LocoInfo{}, err
	}
	return ev.Payload.(z21.LocoInfo), nil
}

func runLocoDrive(cmd *cobra.Command, args []string) error {
	address, err := parseLocoAddress(args[0])
	if err != nil {
		return err
	}

	steps := cfg.DefaultSteps
	if cmd.Flags().Changed("steps") {
		if steps, err = z21.ParseSpeedSteps(driveSteps); err != nil {
			return err
		}
	}
	if driveSpeed < 0 || driveSpeed > int(z21.MaxSpeed(steps)) {
		return fmt.Errorf("speed %d out of range for %s (0-%d)", driveSpeed, steps, z21.MaxSpeed(steps))
	}

	loco := z21.LocoInfo{
		Address:   address,
		Speed:     uint8(driveSpeed),
		Steps:     steps,
		Direction: z21.DirectionForward,
	}
	if driveReverse {
		loco.Direction = z21.DirectionReverse
	}

	timeout := timeoutFor(cmd, locoTimeout)
	return runWithStation(func(ctx context.Context, st *Station) error {
		if err := st.Send(func(c *z21.Codec) error { return c.SetLocoDrive(loco) }); err != nil {
			return err
		}
		fmt.Printf("Sent: loco %d speed %d/%d (%s), %s\n", address, loco.Speed, z21.MaxSpeed(steps), steps, loco.Direction)
		return confirmLoco(ctx, st, address, timeout)
	})
}

func runLocoFn(cmd *cobra.Command, args []string) error {
	address, err := parseLocoAddress(args[0])
	if err != nil {
		return err
	}
	function, err := parseFunction(args[1])
	if err != nil {
		return err
	}
	mode, err := parseFunctionMode(args[2])
	if err != nil {
		return err
	}

	timeout := timeoutFor(cmd, locoTimeout)
	return runWithStation(func(ctx context.Context, st *Station) error {
		if err := st.Send(func(c *z21.Codec) error { return c.SetLocoFunction(address, function, mode) }); err != nil {
			return err
		}
		fmt.Printf("Sent: loco %d F%d %s\n", address, function, mode)
		return confirmLoco(ctx, st, address, timeout)
	})
}

// confirmLoco prints the loco state after a command when it arrives in time
func confirmLoco(ctx context.Context, st *Station, address uint16, timeout time.Duration) error {
	info, err := queryLocoInfo(ctx, st, address, timeout)
	switch {
	case err == nil:
		fmt.Print(z21.FormatLocoInfo(info))
	case errors.Is(err, context.DeadlineExceeded):
		fmt.Printf("(no loco info received within %v)\n", timeout)
	default:
		return waitFailure("loco info", timeout, err)
	}
	return nil
}

func runLocoMode(cmd *cobra.Command, args []string) error {
	address, err := parseLocoAddress(args[0])
	if err != nil {
		return err
	}

	timeout := timeoutFor(cmd, locoTimeout)
	return runWithStation(func(ctx context.Context, st *Station) error {
		// LAN_GET_LOCOMODE replies are not decoded by the codec; read them raw
		modeChan := make(chan byte, 1)
		st.SetFrameHandler(func(frame []byte, kind z21.EventKind, err error) {
			if err != nil || len(frame) < z21.HeaderSize+3 || frame[2] != z21.GroupGetLocoMode {
				return
			}
			wire := binary.BigEndian.Uint16(frame[z21.HeaderSize:])
			if z21.FromWireAddress(wire) != address {
				return
			}
			select {
			case modeChan <- frame[z21.HeaderSize+2]:
			default:
			}
		})

		if err := st.Send(compose(func(c *z21.Codec) { c.GetLocoMode(address) })); err != nil {
			return connectionFailure(err)
		}

		select {
		case mode := <-modeChan:
			name := "DCC"
			if mode == 1 {
				name = "MM"
			}
			fmt.Printf("Loco %d: %s\n", address, name)
			return nil
		case <-st.Done():
			return connectionFailure(st.Err())
		case <-ctx.Done():
			return failure("interrupted")
		case <-time.After(timeout):
			return failure("TIMEOUT: no loco mode received within %v", timeout)
		}
	})
}

func runLocoLib(cmd *cobra.Command, args []string) error {
	address, err := parseLocoAddress(args[0])
	if err != nil {
		return err
	}
	if libIndex < 0 || libIndex > 255 || libTotal < 0 || libTotal > 255 {
		return fmt.Errorf("index and total must be 0-255")
	}

	entry := z21.LocLibEntry{
		Address: address,
		Name:    args[1],
		Index:   uint8(libIndex),
		Total:   uint8(libTotal),
	}
	return runWithStation(func(ctx context.Context, st *Station) error {
		if err := st.Send(func(c *z21.Codec) error { return c.SetLocLibData(entry) }); err != nil {
			return err
		}
		fmt.Printf("Sent: loc library entry %d/%d, loco %d %q\n", entry.Index, entry.Total, entry.Address, entry.Name)
		return nil
	})
}
