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
	pingTimeout int
	pingCount   int
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Measure round-trip time with status requests",
	Long: `Send LAN_X_GET_STATUS repeatedly and wait for each status reply.

This is useful for verifying:
  - The command station (or bridge) is reachable
  - Frames flow in both directions
  - Latency of the link

Exit codes:
  0 - All pings successful
  1 - One or more pings failed/timed out
  2 - Connection error`,
	Args: cobra.NoArgs,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVar(&pingTimeout, "timeout", 5, "Timeout in seconds for each ping")
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of pings to send")
}

func runPing(cmd *cobra.Command, args []string) error {
	if pingCount < 1 {
		return fmt.Errorf("--count must be at least 1")
	}

	timeout := timeoutFor(cmd, pingTimeout)
	return runWithStation(func(ctx context.Context, st *Station) error {
		fmt.Printf("Signalbox - Ping\n")
		fmt.Printf("Connection: %s\n", st.Info())
		fmt.Printf("Timeout: %v per ping\n", timeout)
		fmt.Printf("Count: %d pings\n\n", pingCount)

		successCount := 0
		failCount := 0
		var total time.Duration

		for i := 1; i <= pingCount; i++ {
			fmt.Printf("Ping %d/%d: ", i, pingCount)

			startTime := time.Now()
			pingCtx, cancel := context.WithTimeout(ctx, timeout)
			ev, err := st.Request(pingCtx, compose((*z21.Codec).GetStatus), eventIs(powerEvents...))
			cancel()

			switch {
			case err == nil:
				rtt := time.Since(startTime)
				total += rtt
				fmt.Printf("%s, rtt=%v\n", ev.Kind, rtt.Round(time.Microsecond))
				successCount++
			case errors.Is(err, context.DeadlineExceeded):
				fmt.Printf("TIMEOUT (no response in %v)\n", timeout)
				failCount++
			case errors.Is(err, context.Canceled):
				return failure("interrupted")
			default:
				fmt.Printf("FAILED: %v\n", err)
				return connectionFailure(err)
			}

			// Small delay between pings
			if i < pingCount {
				time.Sleep(100 * time.Millisecond)
			}
		}

		// Summary
		fmt.Printf("\n--- Ping statistics ---\n")
		fmt.Printf("%d pings sent, %d responses received, %.0f%% loss\n",
			pingCount, successCount, float64(failCount)/float64(pingCount)*100)
		if successCount > 0 {
			fmt.Printf("average rtt=%v\n", (total / time.Duration(successCount)).Round(time.Microsecond))
		}

		if failCount > 0 {
			return failure("%d of %d pings failed", failCount, pingCount)
		}
		return nil
	})
}
