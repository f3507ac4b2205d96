// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Thermoquad/signalbox/pkg/z21"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	throttleLocos []string
	throttlePoll  int
)

var throttleCmd = &cobra.Command{
	Use:   "throttle",
	Short: "Interactive TUI for driving locomotives",
	Long: `Drive locomotives via an interactive terminal UI.

Features:
  - Loco list with live speed, direction and light state
  - Speed entry and step nudging
  - Direction, light and emergency stop keys
  - Track power toggle
  - Statistics tracking and event logging
  - Automatic reconnection on connection loss

Locos are given with --loco (repeatable); default_loco from the config file
is used when none is given. Loco state is polled every --poll seconds in
addition to the broadcasts the command station sends.

A quiet link is kept alive with status requests. When nothing at all is
received for three poll intervals (at least 15 seconds) the connection is
treated as lost and re-established. UDP gives no other signal that the
command station has gone away.

Supports UDP, serial and WebSocket connections.`,
	Args: cobra.NoArgs,
	RunE: runThrottle,
}

func init() {
	rootCmd.AddCommand(throttleCmd)
	throttleCmd.Flags().StringSliceVarP(&throttleLocos, "loco", "l", nil, "Loco address to control (repeatable)")
	throttleCmd.Flags().IntVar(&throttlePoll, "poll", 5, "Seconds between loco state polls (0 = broadcasts only)")
}

// errNotConnected is returned while the connection is being re-established
var errNotConnected = errors.New("not connected")

// minSilenceTimeout is the shortest receive silence treated as a lost link
const minSilenceTimeout = 15 * time.Second

// silenceTimeout scales the receive watchdog to the poll interval
func silenceTimeout(poll time.Duration) time.Duration {
	if timeout := 3 * poll; timeout > minSilenceTimeout {
		return timeout
	}
	return minSilenceTimeout
}

// receiveWatchdog tracks how long a station has been silent
type receiveWatchdog struct {
	timeout time.Duration
	last    atomic.Int64 // UnixNano of the last inbound frame
}

func newReceiveWatchdog(timeout time.Duration, now time.Time) *receiveWatchdog {
	w := &receiveWatchdog{timeout: timeout}
	w.seen(now)
	return w
}

func (w *receiveWatchdog) seen(t time.Time) {
	w.last.Store(t.UnixNano())
}

func (w *receiveWatchdog) silentFor(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, w.last.Load()))
}

// expired reports whether the station has been silent for the full timeout.
// A zero timeout never expires.
func (w *receiveWatchdog) expired(now time.Time) bool {
	return w.timeout > 0 && w.silentFor(now) >= w.timeout
}

// keepaliveDue reports whether a status request should be sent to provoke
// a reply, given when the previous one went out
func (w *receiveWatchdog) keepaliveDue(now, lastKeepalive time.Time) bool {
	interval := w.timeout / 3
	return w.timeout > 0 && w.silentFor(now) >= interval && now.Sub(lastKeepalive) >= interval
}

// connectionManager handles station lifecycle and reconnection
type connectionManager struct {
	station *Station
	mu      sync.RWMutex
	p       *tea.Program
	locos   []uint16
	done    chan struct{}
	silence time.Duration     // receive watchdog timeout, zero disables
	log     logrus.FieldLogger // nil: package logger
}

func (cm *connectionManager) logEntry() logrus.FieldLogger {
	if cm.log != nil {
		return cm.log
	}
	return logger
}

func (cm *connectionManager) getStation() *Station {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.station
}

func (cm *connectionManager) setStation(st *Station) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.station = st
}

// send composes and writes one frame on the current station
func (cm *connectionManager) send(compose func(c *z21.Codec) error) error {
	st := cm.getStation()
	if st == nil {
		return errNotConnected
	}
	return st.Send(compose)
}

// parseThrottleLocos resolves the --loco flags, falling back to the
// configured default loco
func parseThrottleLocos(args []string) ([]uint16, error) {
	if len(args) == 0 {
		return []uint16{cfg.DefaultLoco}, nil
	}

	seen := make(map[uint16]bool)
	var locos []uint16
	for _, arg := range args {
		addr, err := parseLocoAddress(arg)
		if err != nil {
			return nil, err
		}
		if !seen[addr] {
			seen[addr] = true
			locos = append(locos, addr)
		}
	}
	return locos, nil
}

func runThrottle(cmd *cobra.Command, args []string) error {
	locos, err := parseThrottleLocos(throttleLocos)
	if err != nil {
		return err
	}

	st, err := OpenStation()
	if err != nil {
		return connectionFailure(err)
	}

	cm := &connectionManager{
		station: st,
		locos:   locos,
		done:    make(chan struct{}),
		silence: silenceTimeout(time.Duration(throttlePoll) * time.Second),
	}

	m := initialThrottleModel(cm, st.Info(), locos, time.Duration(throttlePoll)*time.Second)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	cm.p = p

	go cm.readerLoop()

	_, err = p.Run()
	close(cm.done)
	if st := cm.getStation(); st != nil {
		st.Close()
	}
	if err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}

// readerLoop runs the current station with automatic reconnection
func (cm *connectionManager) readerLoop() {
	for {
		select {
		case <-cm.done:
			return
		default:
		}

		connLost := cm.readFromStation(cm.getStation())

		if connLost {
			cm.p.Send(connectionLostMsg{})

			if !cm.reconnect() {
				return // Shutdown requested during reconnect
			}
		}
	}
}

// readFromStation runs st until it fails or goes silent, delivering frame
// results to the TUI in batches. Returns true if the connection was lost,
// false if shutdown was requested.
func (cm *connectionManager) readFromStation(st *Station) bool {
	batchChan := make(chan frameMsg, 100)
	watchdog := newReceiveWatchdog(cm.silence, time.Now())
	lastKeepalive := time.Now()
	st.SetFrameHandler(frameHandler(st, func(msg frameMsg) {
		watchdog.seen(msg.timestamp)
		select {
		case batchChan <- msg:
		default:
		}
	}))

	go st.Run()
	cm.sendInitialRequests()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-cm.done:
			return false

		case <-st.Done():
			select {
			case <-cm.done:
				return false
			default:
				return true
			}

		case now := <-ticker.C:
			if watchdog.expired(now) {
				cm.logEntry().Warnf("nothing received for %s, reconnecting", watchdog.silentFor(now).Round(time.Second))
				st.Close()
				return true
			}
			if watchdog.keepaliveDue(now, lastKeepalive) {
				lastKeepalive = now
				if err := st.Send(compose((*z21.Codec).GetStatus)); err != nil {
					cm.logEntry().WithError(err).Debug("keepalive failed")
				}
			}

			var batch throttleBatchMsg

			// Drain all available messages from batch channel
		drainLoop:
			for {
				select {
				case msg := <-batchChan:
					batch.messages = append(batch.messages, msg)
				default:
					break drainLoop
				}
			}

			if len(batch.messages) > 0 {
				cm.p.Send(batch)
			}
		}
	}
}

// reconnect attempts to reconnect with exponential backoff.
// Returns false if shutdown was requested during reconnection.
func (cm *connectionManager) reconnect() bool {
	if st := cm.getStation(); st != nil {
		st.Close()
	}
	cm.setStation(nil)

	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-cm.done:
			return false
		case <-time.After(backoff):
		}

		st, err := OpenStation()
		if err == nil {
			cm.setStation(st)
			cm.p.Send(reconnectedMsg{connInfo: st.Info()})
			return true
		}
		logger.WithError(err).Debug("reconnect failed")

		// Exponential backoff
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// sendInitialRequests subscribes to broadcasts and asks for the track
// and loco state
func (cm *connectionManager) sendInitialRequests() {
	log := cm.logEntry()
	if err := cm.send(compose(func(c *z21.Codec) { c.SetBroadcastFlags(cfg.BroadcastFlags) })); err != nil {
		log.WithError(err).Warn("subscribe failed")
		return
	}
	if err := cm.send(compose((*z21.Codec).GetStatus)); err != nil {
		log.WithError(err).Warn("status request failed")
	}
	if err := cm.pollLocos(); err != nil {
		log.WithError(err).Warn("loco poll failed")
	}
}

// pollLocos requests the state of every controlled loco. A failed request
// does not stop the others unless the station is gone.
func (cm *connectionManager) pollLocos() error {
	var errs []error
	for _, addr := range cm.locos {
		if err := cm.send(compose(func(c *z21.Codec) { c.GetLocoInfo(addr) })); err != nil {
			if errors.Is(err, errNotConnected) {
				return err
			}
			errs = append(errs, fmt.Errorf("loco %d: %w", addr, err))
		}
	}
	return errors.Join(errs...)
}
