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

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display raw frame log in human-readable format",
	Long: `Continuously decode and display Z21 frames as they arrive.

Each frame is shown with timestamp, command name and payload, followed by
the decoded event when the codec interprets it. Broadcasts are requested
with the configured broadcast_flags (driving and switching by default).

Supports UDP, serial and WebSocket connections.`,
	Args: cobra.NoArgs,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
}

func runRawLog(cmd *cobra.Command, args []string) error {
	return runWithStation(func(ctx context.Context, st *Station) error {
		fmt.Printf("Signalbox - Raw Frame Log\n")
		fmt.Printf("Connection: %s\n", st.Info())
		fmt.Printf("Broadcast flags: 0x%08X\n", cfg.BroadcastFlags)
		fmt.Printf("Press Ctrl+C to exit\n\n")

		st.SetFrameHandler(func(frame []byte, kind z21.EventKind, err error) {
			printFrame(time.Now(), frame, kind, err, st)
		})

		// Ask for the current state so the log starts with something
		if err := st.Send(compose((*z21.Codec).GetStatus)); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-st.Done():
			logger.WithError(st.Err()).Info("connection closed")
			return nil
		}
	})
}

// printFrame prints one inbound frame and its decode result
func printFrame(ts time.Time, frame []byte, kind z21.EventKind, err error, st *Station) {
	if frame == nil {
		fmt.Printf("[%s] [ERROR] %v\n", ts.Format("15:04:05.000"), err)
		return
	}
	fmt.Print(z21.FormatFrame(ts, frame))
	if err != nil {
		fmt.Printf("  [ERROR] %v\n", err)
		return
	}
	st.describe(kind)
}
