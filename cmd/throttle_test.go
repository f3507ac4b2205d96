// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSilenceTimeout(t *testing.T) {
	assert.Equal(t, minSilenceTimeout, silenceTimeout(0))
	assert.Equal(t, minSilenceTimeout, silenceTimeout(5*time.Second))
	assert.Equal(t, 30*time.Second, silenceTimeout(10*time.Second))
}

func TestReceiveWatchdog(t *testing.T) {
	start := time.Unix(1000, 0)
	w := newReceiveWatchdog(9*time.Second, start)

	assert.False(t, w.expired(start.Add(8*time.Second)))
	assert.True(t, w.expired(start.Add(9*time.Second)))

	// Keepalives start after a third of the timeout, one per third
	assert.False(t, w.keepaliveDue(start.Add(2*time.Second), start))
	assert.True(t, w.keepaliveDue(start.Add(3*time.Second), start))
	assert.False(t, w.keepaliveDue(start.Add(4*time.Second), start.Add(3*time.Second)))

	// Any inbound frame resets the silence
	w.seen(start.Add(8 * time.Second))
	assert.Equal(t, 2*time.Second, w.silentFor(start.Add(10*time.Second)))
	assert.False(t, w.expired(start.Add(10*time.Second)))
	assert.False(t, w.keepaliveDue(start.Add(10*time.Second), start))

	disabled := newReceiveWatchdog(0, start)
	assert.False(t, disabled.expired(start.Add(time.Hour)))
	assert.False(t, disabled.keepaliveDue(start.Add(time.Hour), start))
}

func TestConnectionManager_SilentStationIsLost(t *testing.T) {
	client, peer := net.Pipe()
	st := NewStation(client, "pipe", newQuietLogger())
	t.Cleanup(func() { peer.Close() })

	// The peer reads everything and never answers
	written := make(chan []byte, 32)
	go func() {
		buf := make([]byte, 256)
		for {
			n, err := peer.Read(buf)
			if err != nil {
				close(written)
				return
			}
			written <- append([]byte(nil), buf[:n]...)
		}
	}()

	log, hook := test.NewNullLogger()
	cm := &connectionManager{
		station: st,
		done:    make(chan struct{}),
		silence: 300 * time.Millisecond,
		log:     log,
	}

	lost := make(chan bool, 1)
	go func() { lost <- cm.readFromStation(st) }()

	select {
	case got := <-lost:
		assert.True(t, got)
	case <-time.After(3 * time.Second):
		t.Fatal("silent station was not reported as lost")
	}

	select {
	case <-st.Done():
	case <-time.After(time.Second):
		t.Fatal("station not closed")
	}

	statusRequests := 0
	for frame := range written {
		if bytes.Equal(frame, getStatusFrame) {
			statusRequests++
		}
	}
	// Initial request plus at least one keepalive
	assert.GreaterOrEqual(t, statusRequests, 2)

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Contains(t, hook.LastEntry().Message, "nothing received")
}

func TestConnectionManager_PollLocosErrors(t *testing.T) {
	cm := &connectionManager{locos: []uint16{3, 1234}}
	assert.ErrorIs(t, cm.pollLocos(), errNotConnected)

	client, peer := net.Pipe()
	peer.Close()
	client.Close()
	cm.station = NewStation(client, "pipe", newQuietLogger())

	// Every loco is tried and named
	err := cm.pollLocos()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loco 3")
	assert.Contains(t, err.Error(), "loco 1234")
}

func TestConnectionManager_InitialRequestFailuresLogged(t *testing.T) {
	log, hook := test.NewNullLogger()
	cm := &connectionManager{locos: []uint16{3}, log: log}

	cm.sendInitialRequests()

	require.Len(t, hook.Entries, 1)
	assert.Equal(t, "subscribe failed", hook.LastEntry().Message)
	assert.ErrorIs(t, hook.LastEntry().Data[logrus.ErrorKey].(error), errNotConnected)
}

func TestThrottleModel_PollFailureLogged(t *testing.T) {
	cm := &connectionManager{locos: []uint16{3}}
	m := initialThrottleModel(cm, "pipe", []uint16{3}, time.Nanosecond)

	updated, _ := m.Update(throttleTickMsg(time.Now()))
	m = updated.(throttleModel)

	require.Len(t, m.eventLog, 1)
	assert.True(t, m.eventLog[0].isError)
	assert.Contains(t, m.eventLog[0].message, "not connected")
}
