// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/Thermoquad/signalbox/pkg/z21"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Monitor traffic and track decode errors",
	Long: `Track frame errors, unknown commands and layout state with statistics.

This command decodes each frame and detects:
  - Framing errors (invalid length fields on stream transports)
  - Truncated frames and unrecognized command groups
  - Unknown X-bus headers
  - Statistics and trends (frame rate, error rate, events per kind)

By default, only errors and state changes are displayed. Use --show-all to
display every frame.

Before the first valid frame, framing errors on serial and WebSocket links
are counted as synchronization noise rather than reported.`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all frames (not just errors)")
	monitorCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	monitorCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
}

// frameMsg carries one frame result from the station reader
type frameMsg struct {
	timestamp time.Time
	frame     []byte
	kind      z21.EventKind
	err       error
	loco      *z21.LocoInfo
}

// syncTracker ignores framing errors until the first accepted frame
type syncTracker struct {
	synchronized bool
	skipped      int
}

// accept reports whether a result should be counted, and whether it is
// the one that completed synchronization
func (t *syncTracker) accept(frame []byte, err error) (count bool, synced bool) {
	if t.synchronized {
		return true, false
	}
	if frame == nil || err != nil {
		t.skipped++
		return false, false
	}
	t.synchronized = true
	return true, true
}

func runMonitor(cmd *cobra.Command, args []string) error {
	if statsInterval < 1 {
		return fmt.Errorf("--stats-interval must be at least 1")
	}

	return runWithStation(func(ctx context.Context, st *Station) error {
		if useTUI {
			return runTUIMode(ctx, st)
		}
		return runTextMode(ctx, st)
	})
}

// frameHandler builds a station callback that snapshots loco state
func frameHandler(st *Station, deliver func(frameMsg)) FrameHandler {
	return func(frame []byte, kind z21.EventKind, err error) {
		msg := frameMsg{timestamp: time.Now(), frame: frame, kind: kind, err: err}
		if err == nil && kind == z21.EventLocoInfo {
			info := st.LocoInfo()
			msg.loco = &info
		}
		deliver(msg)
	}
}

// runTUIMode runs the monitor in TUI mode
func runTUIMode(ctx context.Context, st *Station) error {
	m := initialMonitorModel(st.Info(), statsInterval, showAll)
	p := tea.NewProgram(m, tea.WithContext(ctx))

	st.SetFrameHandler(frameHandler(st, func(msg frameMsg) { p.Send(msg) }))
	go func() {
		<-st.Done()
		p.Send(disconnectedMsg{err: st.Err()})
	}()

	if err := st.Send(compose((*z21.Codec).GetStatus)); err != nil {
		return connectionFailure(err)
	}

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}

// runTextMode runs the monitor in text mode
func runTextMode(ctx context.Context, st *Station) error {
	fmt.Printf("Signalbox - Monitor\n")
	fmt.Printf("Connection: %s\n", st.Info())
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All frames\n")
	} else {
		fmt.Printf("Mode: Errors and state changes\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	stats := z21.NewStatistics()
	tracker := &syncTracker{}

	frames := make(chan frameMsg, 64)
	st.SetFrameHandler(frameHandler(st, func(msg frameMsg) {
		select {
		case frames <- msg:
		default:
			logger.Warn("monitor falling behind, frame dropped")
		}
	}))

	if err := st.Send(compose((*z21.Codec).GetStatus)); err != nil {
		return connectionFailure(err)
	}

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case msg := <-frames:
			count, synced := tracker.accept(msg.frame, msg.err)
			if synced {
				if tracker.skipped > 0 {
					fmt.Printf("[SYNC] Synchronized after skipping %d invalid frames\n\n", tracker.skipped)
				} else {
					fmt.Printf("[SYNC] Synchronized\n\n")
				}
			}
			if !count {
				continue
			}
			printMonitorFrame(stats, msg)

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()

		case <-st.Done():
			fmt.Println()
			fmt.Print(stats.String())
			return connectionFailure(st.Err())

		case <-ctx.Done():
			fmt.Println()
			fmt.Print(stats.String())
			return nil
		}
	}
}

// printMonitorFrame updates stats and prints one frame result
func printMonitorFrame(stats *z21.Statistics, msg frameMsg) {
	timestamp := msg.timestamp.Format("15:04:05.000")

	if msg.frame == nil {
		stats.RecordFramingError()
		fmt.Printf("[%s] \033[1;31mFRAMING ERROR:\033[0m %v\n\n", timestamp, msg.err)
		return
	}

	stats.Update(msg.kind, msg.err)

	switch {
	case msg.err != nil:
		fmt.Printf("[%s] \033[1;31mDECODE ERROR:\033[0m %v\n", timestamp, msg.err)
		fmt.Print(z21.FormatFrame(msg.timestamp, msg.frame))
		fmt.Printf("  >>> FRAME REJECTED <<<\n\n")
	case msg.kind == z21.EventUnknown:
		fmt.Printf("[%s] \033[1;33mUNKNOWN X-BUS:\033[0m\n", timestamp)
		fmt.Print(z21.FormatFrame(msg.timestamp, msg.frame))
		fmt.Println()
	case msg.loco != nil:
		fmt.Printf("[%s] \033[1;32mLOCO_INFO:\033[0m\n", timestamp)
		fmt.Print(z21.FormatLocoInfo(*msg.loco))
		fmt.Println()
	case isPowerEvent(msg.kind):
		fmt.Printf("[%s] \033[1;32m%s\033[0m\n\n", timestamp, msg.kind)
	case showAll:
		fmt.Print(z21.FormatFrame(msg.timestamp, msg.frame))
		fmt.Println()
	}
}

func isPowerEvent(kind z21.EventKind) bool {
	for _, k := range powerEvents {
		if k == kind {
			return true
		}
	}
	return false
}
