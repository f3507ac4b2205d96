// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Thermoquad/signalbox/pkg/z21"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	stationEventBuffer = 64
	stationReadBuffer  = 1500 // one Ethernet MTU covers any Z21 datagram
)

// FrameHandler observes every inbound frame after the codec has seen it.
// frame is nil for framing errors that never reached the codec.
type FrameHandler func(frame []byte, kind z21.EventKind, err error)

// Station drives a codec over a connection. Compose and decode run under a
// single lock; decoded events are delivered on a buffered channel.
type Station struct {
	conn     Connection
	info     string
	datagram bool

	mu      sync.Mutex
	codec   *z21.Codec
	capture *z21.CaptureWriter
	onFrame FrameHandler

	writeMu sync.Mutex
	framer  *z21.Framer // reader goroutine only

	events  chan z21.Event
	done    chan struct{}
	readErr error

	log logrus.FieldLogger
}

// NewStation wraps an open connection
func NewStation(conn Connection, info string, log logrus.FieldLogger) *Station {
	_, datagram := conn.(*UDPConnection)
	events := make(chan z21.Event, stationEventBuffer)
	return &Station{
		conn:     conn,
		info:     info,
		datagram: datagram,
		codec:    z21.NewCodec(z21.WithEventSink(z21.ChannelSink(events)), z21.WithLogger(log)),
		framer:   z21.NewFramer(),
		events:   events,
		done:     make(chan struct{}),
		log:      log,
	}
}

// OpenStation opens a connection from the runtime configuration
func OpenStation() (*Station, error) {
	conn, info, err := OpenConnection()
	if err != nil {
		return nil, err
	}
	return NewStation(conn, info, logger.WithField("conn", info)), nil
}

// Info describes the underlying connection
func (s *Station) Info() string {
	return s.info
}

// Done is closed when the reader stops
func (s *Station) Done() <-chan struct{} {
	return s.done
}

// Err returns why the reader stopped. Only valid after Done is closed.
func (s *Station) Err() error {
	if s.readErr == nil {
		return ErrConnectionClosed
	}
	return fmt.Errorf("connection lost: %w", s.readErr)
}

// SetCapture records every inbound and outbound frame to w
func (s *Station) SetCapture(w *z21.CaptureWriter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.capture = w
}

// SetFrameHandler installs fn for every inbound frame
func (s *Station) SetFrameHandler(fn FrameHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFrame = fn
}

// Run reads until the connection fails or is closed
func (s *Station) Run() error {
	defer close(s.done)

	buf := make([]byte, stationReadBuffer)
	for {
		n, err := s.conn.Read(buf)
		if err != nil {
			s.readErr = err
			return err
		}
		s.feed(buf[:n])
	}
}

func (s *Station) feed(data []byte) {
	var frames [][]byte
	var err error
	if s.datagram {
		frames, err = z21.SplitDatagram(data)
	} else {
		frames, err = s.framer.Write(data)
	}

	if err != nil {
		s.log.WithError(err).Debug("framing error")
		s.mu.Lock()
		handler := s.onFrame
		s.mu.Unlock()
		if handler != nil {
			handler(nil, z21.EventNone, err)
		}
	}

	for _, frame := range frames {
		s.process(frame)
	}
}

func (s *Station) process(frame []byte) {
	frame = append([]byte(nil), frame...)

	s.mu.Lock()
	if s.capture != nil {
		if err := s.capture.Write(z21.CaptureInbound, time.Now(), frame); err != nil {
			s.log.WithError(err).Warn("capture write failed")
		}
	}
	kind, err := s.codec.ProcessInbound(frame)
	handler := s.onFrame
	s.mu.Unlock()

	if err != nil {
		s.log.WithError(err).Debug("frame rejected")
	}
	if handler != nil {
		handler(frame, kind, err)
	}
}

// Send composes one frame and writes it
func (s *Station) Send(compose func(c *z21.Codec) error) error {
	s.mu.Lock()
	if err := compose(s.codec); err != nil {
		s.mu.Unlock()
		return err
	}
	frame, ok := s.codec.PullOutbound()
	if ok && s.capture != nil {
		if err := s.capture.Write(z21.CaptureOutbound, time.Now(), frame); err != nil {
			s.log.WithError(err).Warn("capture write failed")
		}
	}
	s.mu.Unlock()

	if !ok {
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.conn.Write(frame); err != nil {
		return fmt.Errorf("send failed: %w", err)
	}
	return nil
}

// Subscribe asks the command station for unsolicited broadcasts
func (s *Station) Subscribe(flags uint32) error {
	return s.Send(compose(func(c *z21.Codec) { c.SetBroadcastFlags(flags) }))
}

// WaitFor returns the next event accepted by match (any event if nil)
func (s *Station) WaitFor(ctx context.Context, match func(z21.Event) bool) (z21.Event, error) {
	for {
		select {
		case ev := <-s.events:
			if match == nil || match(ev) {
				return ev, nil
			}
		case <-s.done:
			return z21.Event{}, s.Err()
		case <-ctx.Done():
			return z21.Event{}, ctx.Err()
		}
	}
}

// Request discards pending events, sends one frame and waits for the reply
func (s *Station) Request(ctx context.Context, compose func(c *z21.Codec) error, match func(z21.Event) bool) (z21.Event, error) {
drain:
	for {
		select {
		case <-s.events:
		default:
			break drain
		}
	}

	if err := s.Send(compose); err != nil {
		return z21.Event{}, err
	}
	return s.WaitFor(ctx, match)
}

// Close logs off (UDP only) and closes the connection
func (s *Station) Close() error {
	if s.datagram {
		if err := s.Send(compose(func(c *z21.Codec) { c.LogOff() })); err != nil {
			s.log.WithError(err).Debug("logoff failed")
		}
	}
	return s.conn.Close()
}

// compose adapts a compose operation that cannot fail
func compose(fn func(c *z21.Codec)) func(c *z21.Codec) error {
	return func(c *z21.Codec) error {
		fn(c)
		return nil
	}
}

// eventIs matches any of kinds
func eventIs(kinds ...z21.EventKind) func(z21.Event) bool {
	return func(ev z21.Event) bool {
		for _, k := range kinds {
			if ev.Kind == k {
				return true
			}
		}
		return false
	}
}

// locoInfoFor matches loco-info events for one address
func locoInfoFor(address uint16) func(z21.Event) bool {
	return func(ev z21.Event) bool {
		info, ok := ev.Payload.(z21.LocoInfo)
		return ok && ev.Kind == z21.EventLocoInfo && info.Address == address
	}
}

// runWithStation opens a station, starts its reader, subscribes to
// broadcasts and runs fn until it returns or the user interrupts.
func runWithStation(fn func(ctx context.Context, st *Station) error) error {
	st, err := OpenStation()
	if err != nil {
		return connectionFailure(err)
	}
	defer st.Close()

	go st.Run()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := st.Subscribe(cfg.BroadcastFlags); err != nil {
		return connectionFailure(err)
	}
	return fn(ctx, st)
}

// timeoutFor picks the --timeout flag when given, then the config file
// timeout, then the command's flag default
func timeoutFor(cmd *cobra.Command, seconds int) time.Duration {
	if !cmd.Flags().Changed("timeout") && cfg.Timeout > 0 {
		return cfg.Timeout
	}
	return time.Duration(seconds) * time.Second
}

// describe prints the decoded event using the codec's cached state
func (s *Station) describe(kind z21.EventKind) {
	s.mu.Lock()
	text := z21.FormatEvent(kind, s.codec)
	s.mu.Unlock()
	fmt.Print(text)
}

// LocoInfo returns the codec's cached locomotive state
func (s *Station) LocoInfo() z21.LocoInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codec.LocoInfo()
}
