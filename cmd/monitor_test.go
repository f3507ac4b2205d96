// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"testing"
	"time"

	"github.com/Thermoquad/signalbox/pkg/z21"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0 seconds"},
		{500 * time.Millisecond, "0 seconds"},
		{time.Second, "1 second"},
		{45 * time.Second, "45 seconds"},
		{time.Minute, "1 minute"},
		{61 * time.Second, "1 minute and 1 second"},
		{2*time.Hour + 5*time.Minute, "2 hours and 5 minutes"},
		{26*time.Hour + 3*time.Minute + 4*time.Second, "1 day, 2 hours, 3 minutes, and 4 seconds"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatDuration(tt.in))
		})
	}
}

func TestSyncTracker(t *testing.T) {
	var tr syncTracker

	count, synced := tr.accept(nil, z21.ErrFrameLength)
	assert.False(t, count)
	assert.False(t, synced)

	count, synced = tr.accept(unknownGroupMsg, z21.ErrUnrecognizedGroup)
	assert.False(t, count)
	assert.False(t, synced)

	count, synced = tr.accept(powerOnFrame, nil)
	assert.True(t, count)
	assert.True(t, synced)
	assert.Equal(t, 2, tr.skipped)

	// Errors count once synchronized
	count, synced = tr.accept(nil, z21.ErrFrameLength)
	assert.True(t, count)
	assert.False(t, synced)
}

func monitorUpdate(t *testing.T, m monitorModel, msgs ...frameMsg) monitorModel {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		var ok bool
		m, ok = next.(monitorModel)
		require.True(t, ok)
	}
	return m
}

func TestMonitorModel_Frames(t *testing.T) {
	m := initialMonitorModel("pipe", 10, false)
	loco := z21.LocoInfo{Address: 3, Speed: 20, Steps: z21.Steps128, Direction: z21.DirectionForward}

	m = monitorUpdate(t, m,
		frameMsg{timestamp: time.Now(), frame: nil, err: z21.ErrFrameLength},
		frameMsg{timestamp: time.Now(), frame: powerOnFrame, kind: z21.EventTrackPowerOn},
		frameMsg{timestamp: time.Now(), frame: loco3InfoFrame, kind: z21.EventLocoInfo, loco: &loco},
		frameMsg{timestamp: time.Now(), frame: unknownGroupMsg, err: z21.ErrUnrecognizedGroup},
		frameMsg{timestamp: time.Now(), frame: nil, err: errors.New("bad length")},
	)

	assert.True(t, m.tracker.synchronized)
	assert.Equal(t, 1, m.tracker.skipped)
	assert.Equal(t, z21.EventTrackPowerOn, m.power)
	assert.Equal(t, loco, m.locos[3])

	assert.Equal(t, uint64(4), m.stats.TotalFrames)
	assert.Equal(t, uint64(2), m.stats.DecodedEvents)
	assert.Equal(t, uint64(1), m.stats.Unrecognized)
	assert.Equal(t, uint64(1), m.stats.FramingErrors)

	var errs int
	for _, e := range m.eventLog {
		if e.isError {
			errs++
		}
	}
	assert.Equal(t, 2, errs)
	assert.NotEmpty(t, m.View())
}

func TestMonitorModel_LogLimit(t *testing.T) {
	m := initialMonitorModel("pipe", 10, true)
	for i := 0; i < m.maxLogEntries+20; i++ {
		m.addLogEntry("entry", false)
	}
	assert.Len(t, m.eventLog, m.maxLogEntries)
}

func TestThrottleModel_LocoUpdates(t *testing.T) {
	m := initialThrottleModel(&connectionManager{}, "pipe", []uint16{3, 1234}, 0)

	selected := m.getSelectedLoco()
	require.NotNil(t, selected)
	assert.Equal(t, uint16(3), selected.info.Address)
	assert.False(t, selected.known)

	info := z21.LocoInfo{Address: 1234, Speed: 10, Steps: z21.Steps28, Direction: z21.DirectionReverse, Light: true}
	m.processFrame(frameMsg{timestamp: time.Now(), frame: loco3InfoFrame, kind: z21.EventLocoInfo, loco: &info})
	m.processFrame(frameMsg{timestamp: time.Now(), frame: powerOffReply, kind: z21.EventTrackPowerOff})

	assert.True(t, m.locos[1].known)
	assert.Equal(t, info, m.locos[1].info)
	assert.False(t, m.locos[0].known)
	assert.Equal(t, z21.EventTrackPowerOff, m.power)
	assert.Equal(t, "10/28 reverse", m.locos[1].Description())
}

func TestThrottleModel_CommandsWhileDisconnected(t *testing.T) {
	m := initialThrottleModel(&connectionManager{}, "pipe", []uint16{3}, 0)

	// No station: commands fail without changing state
	m.toggleLight()
	m.togglePower()
	m.connectionLost = true
	m.stop()

	require.Len(t, m.eventLog, 3)
	for _, e := range m.eventLog {
		assert.True(t, e.isError)
	}
	assert.Equal(t, uint8(0), m.locos[0].info.Speed)
}
