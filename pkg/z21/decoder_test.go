// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package z21

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// xbusFrame builds an inbound X-bus frame with a valid length and checksum
func xbusFrame(payload ...byte) []byte {
	frame := []byte{byte(HeaderSize + len(payload) + 1), 0x00, GroupXBus, 0x00}
	frame = append(frame, payload...)
	return append(frame, CalculateChecksum(payload))
}

// recorder collects emitted events
type recorder struct {
	events []Event
}

func (r *recorder) Emit(kind EventKind, payload interface{}) {
	r.events = append(r.events, Event{Kind: kind, Payload: payload})
}

// ============================================================
// Status Tests
// ============================================================

func TestProcessInbound_Status(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
		want  EventKind
	}{
		{"status power off", xbusFrame(0x61, 0x00), EventTrackPowerOff},
		{"status power on", xbusFrame(0x61, 0x01), EventTrackPowerOn},
		{"status programming", xbusFrame(0x61, 0x02), EventProgrammingMode},
		{"status cv nack", xbusFrame(0x61, 0x13), EventProgrammingCVNack},
		{"status short circuit is unknown", xbusFrame(0x61, 0x08), EventUnknown},
		{"changed normal", xbusFrame(0x62, 0x22, 0x00), EventTrackPowerOn},
		{"changed programming", xbusFrame(0x62, 0x22, 0x20), EventProgrammingMode},
		{"changed emergency stop", xbusFrame(0x62, 0x22, 0x01), EventTrackPowerOff},
		{"changed track voltage off", xbusFrame(0x62, 0x22, 0x02), EventTrackPowerOff},
		{"changed short circuit", xbusFrame(0x62, 0x22, 0x04), EventTrackPowerOff},
		{"unhandled opcode", xbusFrame(0x81, 0x00), EventUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCodec()
			kind, err := c.ProcessInbound(tt.frame)
			require.NoError(t, err)
			assert.Equal(t, tt.want, kind)
		})
	}
}

func TestProcessInbound_Versions(t *testing.T) {
	c := NewCodec()

	kind, err := c.ProcessInbound(xbusFrame(0x63, 0x21, 0x30, 0x12))
	require.NoError(t, err)
	assert.Equal(t, EventVersionResponse, kind)
	assert.Equal(t, uint16(0x3012), c.XBusVersion())

	kind, err = c.ProcessInbound(xbusFrame(0xF3, 0x0A, 0x01, 0x43))
	require.NoError(t, err)
	assert.Equal(t, EventFirmwareVersionResponse, kind)
	assert.Equal(t, uint16(0x0143), c.FirmwareVersion())
}

// ============================================================
// CV Result Tests
// ============================================================

func TestProcessInbound_CVResult(t *testing.T) {
	c := NewCodec()
	kind, err := c.ProcessInbound(xbusFrame(0x64, 0x14, 0x00, 0x00, 0x03))
	require.NoError(t, err)
	assert.Equal(t, EventProgrammingCVResult, kind)
	assert.Equal(t, CVResult{CV: 1, Value: 3}, c.CVResult())

	_, err = c.ProcessInbound(xbusFrame(0x64, 0x14, 0x03, 0xFF, 0xAA))
	require.NoError(t, err)
	assert.Equal(t, CVResult{CV: 1024, Value: 0xAA}, c.CVResult())
}

// ============================================================
// Loco Info Tests
// ============================================================

func TestProcessInbound_LocoInfo(t *testing.T) {
	c := NewCodec()
	frame := xbusFrame(0xEF, 0x00, 0x03, 0x02, 0x89, 0x1F, 0xAA, 0x01, 0x80)

	kind, err := c.ProcessInbound(frame)
	require.NoError(t, err)
	require.Equal(t, EventLocoInfo, kind)

	info := c.LocoInfo()
	assert.Equal(t, uint16(3), info.Address)
	assert.Equal(t, Steps28, info.Steps)
	assert.Equal(t, uint8(15), info.Speed)
	assert.Equal(t, DirectionForward, info.Direction)
	assert.True(t, info.Light)
	assert.False(t, info.Occupied)
	assert.Equal(t, uint32(0x08001AAF), info.Functions)

	assert.True(t, info.Function(0))
	assert.True(t, info.Function(1))
	assert.True(t, info.Function(4))
	assert.False(t, info.Function(5))
	assert.True(t, info.Function(6))
	assert.True(t, info.Function(13))
	assert.True(t, info.Function(28))
	assert.False(t, info.Function(29))
}

func TestProcessInbound_LocoInfoModes(t *testing.T) {
	tests := []struct {
		name      string
		addrHi    byte
		addrLo    byte
		mode      byte
		speed     byte
		wantAddr  uint16
		wantSteps SpeedSteps
		wantSpeed uint8
		wantDir   Direction
		wantOcc   bool
	}{
		{"14 steps decrement", 0x00, 0x03, 0x00, 0x06, 3, Steps14, 5, DirectionReverse, false},
		{"14 steps stop", 0x00, 0x03, 0x00, 0x00, 3, Steps14, 0, DirectionReverse, false},
		{"28 steps stop", 0x00, 0x03, 0x02, 0x90, 3, Steps28, 0, DirectionForward, false},
		{"28 steps max", 0x00, 0x03, 0x02, 0x1F, 3, Steps28, 28, DirectionReverse, false},
		{"128 steps passthrough", 0xC4, 0xD2, 0x04, 0xE4, 1234, Steps128, 100, DirectionForward, false},
		{"occupied by other handheld", 0x00, 0x03, 0x0C, 0x01, 3, Steps128, 1, DirectionReverse, true},
		{"unknown steps", 0x00, 0x03, 0x07, 0x85, 3, StepsUnknown, 0, DirectionForward, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCodec()
			_, err := c.ProcessInbound(xbusFrame(0xEF, tt.addrHi, tt.addrLo, tt.mode, tt.speed, 0, 0, 0, 0))
			require.NoError(t, err)

			info := c.LocoInfo()
			assert.Equal(t, tt.wantAddr, info.Address)
			assert.Equal(t, tt.wantSteps, info.Steps)
			assert.Equal(t, tt.wantSpeed, info.Speed)
			assert.Equal(t, tt.wantDir, info.Direction)
			assert.Equal(t, tt.wantOcc, info.Occupied)
		})
	}
}

// ============================================================
// Loc Library Tests
// ============================================================

func TestProcessInbound_LocLibData(t *testing.T) {
	c := NewCodec()
	entry := LocLibEntry{Address: 1234, Name: "BR 218", Index: 2, Total: 5}
	require.NoError(t, c.SetLocLibData(entry))
	frame, ok := c.PullOutbound()
	require.True(t, ok)

	kind, err := c.ProcessInbound(frame)
	require.NoError(t, err)
	assert.Equal(t, EventLocLibData, kind)
	assert.Equal(t, entry, c.LocLibEntry())

	// same opcode with a different db0 is not a library record
	kind, err = c.ProcessInbound(xbusFrame(0xE9, 0x00))
	require.NoError(t, err)
	assert.Equal(t, EventUnknown, kind)
}

// ============================================================
// Group and Truncation Tests
// ============================================================

func TestProcessInbound_Groups(t *testing.T) {
	c := NewCodec()

	for _, group := range []byte{0x10, 0x1A, 0x51, 0x60, 0x70, 0x80, 0x84, 0x88, 0xA2, 0xA4} {
		kind, err := c.ProcessInbound([]byte{0x08, 0x00, group, 0x00, 0x01, 0x02, 0x03, 0x04})
		assert.NoError(t, err, "group 0x%02X", group)
		assert.Equal(t, EventNone, kind, "group 0x%02X", group)
	}

	for _, group := range []byte{0x00, 0x41, 0x99, 0xFF} {
		_, err := c.ProcessInbound([]byte{0x05, 0x00, group, 0x00, 0x00})
		assert.ErrorIs(t, err, ErrUnrecognizedGroup, "group 0x%02X", group)
	}
}

func TestProcessInbound_Truncated(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
	}{
		{"empty", nil},
		{"no group", []byte{0x04, 0x00}},
		{"no x-bus header", []byte{0x04, 0x00, 0x40, 0x00}},
		{"status without db0", []byte{0x05, 0x00, 0x40, 0x00, 0x61}},
		{"status changed short", []byte{0x06, 0x00, 0x40, 0x00, 0x62, 0x22}},
		{"cv result short", []byte{0x08, 0x00, 0x40, 0x00, 0x64, 0x14, 0x00, 0x00}},
		{"loco info short", []byte{0x0C, 0x00, 0x40, 0x00, 0xEF, 0x00, 0x03, 0x02, 0x89, 0x00, 0x00, 0x00}},
		{"firmware short", []byte{0x07, 0x00, 0x40, 0x00, 0xF3, 0x0A, 0x01}},
		{"loc library short", []byte{0x0A, 0x00, 0x40, 0x00, 0xE9, 0xF1, 0x00, 0x03, 0x00, 0x01}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			c := NewCodec(WithEventSink(rec))
			before := c.LocoInfo()

			kind, err := c.ProcessInbound(tt.frame)
			require.ErrorIs(t, err, ErrTruncatedFrame)
			assert.Equal(t, EventNone, kind)
			assert.Equal(t, before, c.LocoInfo(), "cached loco info modified by truncated frame")
			assert.Empty(t, rec.events)
		})
	}
}

// ============================================================
// Event Sink Tests
// ============================================================

func TestEventSink(t *testing.T) {
	rec := &recorder{}
	c := NewCodec(WithEventSink(rec))

	_, _ = c.ProcessInbound(xbusFrame(0x61, 0x01))
	_, _ = c.ProcessInbound([]byte{0x08, 0x00, 0x10, 0x00, 0x01, 0x02, 0x03, 0x04})
	_, _ = c.ProcessInbound(xbusFrame(0x64, 0x14, 0x00, 0x07, 0x10))

	require.Len(t, rec.events, 2)
	assert.Equal(t, EventTrackPowerOn, rec.events[0].Kind)
	assert.Nil(t, rec.events[0].Payload)
	assert.Equal(t, EventProgrammingCVResult, rec.events[1].Kind)
	assert.Equal(t, CVResult{CV: 8, Value: 0x10}, rec.events[1].Payload)
}

func TestEventSinkFunc(t *testing.T) {
	var got []EventKind
	c := NewCodec(WithEventSink(EventSinkFunc(func(kind EventKind, _ interface{}) {
		got = append(got, kind)
	})))

	_, _ = c.ProcessInbound(xbusFrame(0x61, 0x00))
	_, _ = c.ProcessInbound(xbusFrame(0x81, 0x00))

	assert.Equal(t, []EventKind{EventTrackPowerOff, EventUnknown}, got)
}

func TestChannelSink(t *testing.T) {
	ch := make(chan Event, 1)
	c := NewCodec(WithEventSink(ChannelSink(ch)))

	_, _ = c.ProcessInbound(xbusFrame(0x61, 0x01))
	// buffer full, dropped without blocking
	_, _ = c.ProcessInbound(xbusFrame(0x61, 0x00))

	require.Len(t, ch, 1)
	ev := <-ch
	assert.Equal(t, EventTrackPowerOn, ev.Kind)
}
