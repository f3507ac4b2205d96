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

var infoTimeout int

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Identify the command station",
	Long: `Query the serial number, X-Bus version and firmware version.

Each query waits up to --timeout seconds. Missing replies are reported and
the remaining queries still run.

Exit codes:
  0 - At least one reply received
  1 - No replies before timeout
  2 - Connection error`,
	Args: cobra.NoArgs,
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
	infoCmd.Flags().IntVar(&infoTimeout, "timeout", 2, "Timeout in seconds for each query")
}

// stationInfo collects the identification replies
type stationInfo struct {
	serial      uint32
	hasSerial   bool
	xbus        uint16
	hasXBus     bool
	firmware    uint16
	hasFirmware bool
}

func (i stationInfo) replies() int {
	n := 0
	for _, ok := range []bool{i.hasSerial, i.hasXBus, i.hasFirmware} {
		if ok {
			n++
		}
	}
	return n
}

func runInfo(cmd *cobra.Command, args []string) error {
	timeout := timeoutFor(cmd, infoTimeout)
	return runWithStation(func(ctx context.Context, st *Station) error {
		fmt.Printf("Signalbox - Command Station Info\n")
		fmt.Printf("Connection: %s\n", st.Info())
		fmt.Printf("Timeout: %v per query\n\n", timeout)

		var info stationInfo

		// Serial number replies are not decoded by the codec; read them raw
		serialChan := make(chan uint32, 1)
		st.SetFrameHandler(func(frame []byte, kind z21.EventKind, err error) {
			if err != nil || len(frame) < z21.HeaderSize+4 || frame[2] != z21.GroupSerialNumber {
				return
			}
			select {
			case serialChan <- binary.LittleEndian.Uint32(frame[z21.HeaderSize:]):
			default:
			}
		})

		fmt.Printf("Sending LAN_GET_SERIAL_NUMBER...\n")
		if err := st.Send(compose((*z21.Codec).GetSerialNumber)); err != nil {
			return connectionFailure(err)
		}
		select {
		case info.serial = <-serialChan:
			info.hasSerial = true
		case <-st.Done():
			return connectionFailure(st.Err())
		case <-ctx.Done():
			return failure("interrupted")
		case <-time.After(timeout):
			fmt.Printf("  TIMEOUT: no serial number\n")
		}

		fmt.Printf("Sending LAN_X_GET_VERSION...\n")
		if ev, err := request(ctx, st, timeout, (*z21.Codec).GetVersion, z21.EventVersionResponse); err == nil {
			info.xbus, info.hasXBus = ev.Payload.(uint16)
		} else if err := infoQueryError(err); err != nil {
			return err
		}

		fmt.Printf("Sending LAN_X_GET_FIRMWARE_VERSION...\n")
		if ev, err := request(ctx, st, timeout, (*z21.Codec).GetFirmwareVersion, z21.EventFirmwareVersionResponse); err == nil {
			info.firmware, info.hasFirmware = ev.Payload.(uint16)
		} else if err := infoQueryError(err); err != nil {
			return err
		}

		// Summary
		fmt.Printf("\n--- Command station ---\n")
		if info.hasSerial {
			fmt.Printf("Serial number: %d\n", info.serial)
		}
		if info.hasXBus {
			// high byte is the BCD X-Bus version, low byte the station type
			version := byte(info.xbus >> 8)
			fmt.Printf("X-Bus version: %x.%x (station ID 0x%02X)\n", version>>4, version&0x0F, byte(info.xbus))
		}
		if info.hasFirmware {
			fmt.Printf("Firmware: %s\n", z21.FormatFirmwareVersion(info.firmware))
		}

		if info.replies() == 0 {
			return failure("no replies received. Check connection and command station power")
		}
		return nil
	})
}

// request sends one compose operation and waits up to timeout for want
func request(ctx context.Context, st *Station, timeout time.Duration, send func(c *z21.Codec), want z21.EventKind) (z21.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return st.Request(ctx, compose(send), eventIs(want))
}

// infoQueryError reports a per-query timeout and passes anything else through
func infoQueryError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		fmt.Printf("  TIMEOUT: no reply\n")
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return failure("interrupted")
	}
	return connectionFailure(err)
}
