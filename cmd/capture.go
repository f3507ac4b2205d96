// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/signalbox/pkg/z21"
	"github.com/spf13/cobra"
)

var (
	captureOut       string
	captureDuration  int
	captureHeartbeat int
	replayVerbose    bool
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Record all traffic to a capture file",
	Long: `Record every inbound and outbound frame to a CBOR capture file.

A LAN_X_GET_STATUS heartbeat is sent periodically so the session stays
registered with the command station. The capture stops after --duration
seconds, or on Ctrl+C when no duration is set.

Capture files can be inspected later with the replay command.`,
	Args: cobra.NoArgs,
	RunE: runCapture,
}

var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Decode a capture file offline",
	Long: `Feed every inbound frame of a capture file through a fresh codec and
print the decode statistics. With --verbose each frame and its decoded
event is printed as well.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(replayCmd)

	captureCmd.Flags().StringVarP(&captureOut, "out", "o", "", "Capture file to write (required)")
	captureCmd.Flags().IntVarP(&captureDuration, "duration", "d", 0, "Capture duration in seconds (0 = until interrupted)")
	captureCmd.Flags().IntVar(&captureHeartbeat, "heartbeat", 30, "Seconds between status heartbeats (0 = disabled)")
	captureCmd.MarkFlagRequired("out")

	replayCmd.Flags().BoolVarP(&replayVerbose, "verbose", "v", false, "Print every frame")
}

func runCapture(cmd *cobra.Command, args []string) error {
	f, err := os.Create(captureOut)
	if err != nil {
		return fmt.Errorf("failed to create capture file: %w", err)
	}
	defer f.Close()

	writer, err := z21.NewCaptureWriter(f)
	if err != nil {
		return err
	}

	return runWithStation(func(ctx context.Context, st *Station) error {
		fmt.Printf("Signalbox - Capture\n")
		fmt.Printf("Connection: %s\n", st.Info())
		fmt.Printf("Output: %s\n", captureOut)
		if captureDuration > 0 {
			fmt.Printf("Duration: %ds\n", captureDuration)
		}
		fmt.Printf("Press Ctrl+C to stop\n\n")

		st.SetCapture(writer)
		// The subscription frame went out before the writer was attached
		if err := st.Subscribe(cfg.BroadcastFlags); err != nil {
			return connectionFailure(err)
		}

		if captureDuration > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, time.Duration(captureDuration)*time.Second)
			defer cancel()
		}

		var heartbeat <-chan time.Time
		if captureHeartbeat > 0 {
			ticker := time.NewTicker(time.Duration(captureHeartbeat) * time.Second)
			defer ticker.Stop()
			heartbeat = ticker.C
		}

		start := time.Now()
		for {
			select {
			case <-heartbeat:
				if err := st.Send(compose((*z21.Codec).GetStatus)); err != nil {
					logger.WithError(err).Warn("heartbeat failed")
				}
			case <-st.Done():
				st.SetCapture(nil)
				fmt.Printf("Connection closed after %v, %d frames captured\n", time.Since(start).Round(time.Second), writer.Count())
				return connectionFailure(st.Err())
			case <-ctx.Done():
				st.SetCapture(nil)
				fmt.Printf("Captured %d frames in %v\n", writer.Count(), time.Since(start).Round(time.Second))
				return nil
			}
		}
	})
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open capture file: %w", err)
	}
	defer f.Close()

	codec := z21.NewCodec(z21.WithLogger(logger))
	stats := z21.NewStatistics()
	outbound := 0

	err = z21.Replay(f, codec, func(rec z21.CaptureRecord, kind z21.EventKind, err error) error {
		if rec.Direction == z21.CaptureOutbound {
			outbound++
			if replayVerbose {
				fmt.Printf("%s ", rec.Direction)
				fmt.Print(z21.FormatFrame(rec.Timestamp, rec.Frame))
			}
			return nil
		}

		stats.Update(kind, err)
		if replayVerbose {
			fmt.Printf("%s ", rec.Direction)
			fmt.Print(z21.FormatFrame(rec.Timestamp, rec.Frame))
			if err != nil {
				fmt.Printf("  [ERROR] %v\n", err)
			} else {
				fmt.Print(z21.FormatEvent(kind, codec))
			}
		}
		return nil
	})
	if err != nil {
		return failure("replay failed: %v", err)
	}

	fmt.Printf("\nOutbound frames: %d\n", outbound)
	fmt.Print(stats.String())
	return nil
}
