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

var probeTimeout int

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Test connection by waiting for a valid Z21 frame",
	Long: `Send LAN_X_GET_STATUS and wait for any frame the codec accepts.

Frames that fail to decode and bytes that do not form a frame are counted
and skipped until a valid frame arrives or the timeout expires.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error

Useful for testing connectivity to a command station or WebSocket bridge.`,
	Args: cobra.NoArgs,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().IntVar(&probeTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
}

// probeResult is the first frame the codec accepted
type probeResult struct {
	frame   []byte
	kind    z21.EventKind
	skipped int
}

func runProbe(cmd *cobra.Command, args []string) error {
	timeout := timeoutFor(cmd, probeTimeout)
	return runWithStation(func(ctx context.Context, st *Station) error {
		fmt.Printf("Signalbox - Probe\n")
		fmt.Printf("Connection: %s\n", st.Info())
		fmt.Printf("Timeout: %v\n", timeout)
		fmt.Printf("Waiting for valid Z21 frame...\n\n")

		resultChan := make(chan probeResult, 1)
		skipped := 0
		st.SetFrameHandler(func(frame []byte, kind z21.EventKind, err error) {
			if err != nil {
				skipped++
				return
			}
			select {
			case resultChan <- probeResult{frame: frame, kind: kind, skipped: skipped}:
			default:
			}
		})

		if err := st.Send(compose((*z21.Codec).GetStatus)); err != nil {
			return connectionFailure(err)
		}

		select {
		case r := <-resultChan:
			if r.skipped > 0 {
				fmt.Printf("(skipped %d invalid frames before a valid one)\n", r.skipped)
			}
			fmt.Printf("SUCCESS: Received valid frame\n")
			fmt.Printf("  Command: %s (0x%02X)\n", z21.FormatGroup(r.frame[2]), r.frame[2])
			fmt.Printf("  Event: %s\n", r.kind)
			fmt.Printf("  Length: %d bytes\n", len(r.frame))
			return nil

		case <-st.Done():
			return connectionFailure(st.Err())

		case <-ctx.Done():
			return failure("interrupted")

		case <-time.After(timeout):
			return failure("TIMEOUT: No valid frame received within %v", timeout)
		}
	})
}
