// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package z21

import (
	"strings"
	"testing"
	"time"
)

func TestEventKind_String(t *testing.T) {
	tests := []struct {
		kind EventKind
		want string
	}{
		{EventNone, "NONE"},
		{EventTrackPowerOn, "TRACK_POWER_ON"},
		{EventProgrammingCVNack, "CV_NACK"},
		{EventLocoInfo, "LOCO_INFO"},
		{EventUnknown, "UNKNOWN"},
		{EventKind(99), "EventKind(99)"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", int(tt.kind), got, tt.want)
		}
	}
}

func TestFormatFrame(t *testing.T) {
	ts := time.Date(2025, 1, 1, 12, 30, 45, 123000000, time.UTC)

	got := FormatFrame(ts, xbusFrame(0x61, 0x01))
	if !strings.HasPrefix(got, "[12:30:45.123] LAN_X_STATUS (0x40/0x61) len=7\n") {
		t.Errorf("FormatFrame = %q", got)
	}
	if !strings.Contains(got, "Payload: 61 01 60") {
		t.Errorf("FormatFrame payload = %q", got)
	}

	got = FormatFrame(ts, []byte{0x04, 0x00, 0x10, 0x00})
	if got != "[12:30:45.123] LAN_GET_SERIAL_NUMBER (0x10) len=4\n" {
		t.Errorf("FormatFrame header-only = %q", got)
	}

	got = FormatFrame(ts, []byte{0x04})
	if !strings.Contains(got, "TRUNCATED len=1") {
		t.Errorf("FormatFrame truncated = %q", got)
	}
}

func TestFormatEvent(t *testing.T) {
	c := NewCodec()

	_, _ = c.ProcessInbound(xbusFrame(0xEF, 0x00, 0x03, 0x0A, 0x89, 0x11, 0x01, 0, 0))
	got := FormatEvent(EventLocoInfo, c)
	want := "  Loco 3: speed 15/28 (28 steps), forward, light on, occupied\n  Functions: F1 F5\n"
	if got != want {
		t.Errorf("FormatEvent(LOCO_INFO) = %q, want %q", got, want)
	}

	_, _ = c.ProcessInbound(xbusFrame(0xF3, 0x0A, 0x01, 0x43))
	if got := FormatEvent(EventFirmwareVersionResponse, c); got != "  Firmware: 1.43\n" {
		t.Errorf("FormatEvent(FIRMWARE) = %q", got)
	}

	_, _ = c.ProcessInbound(xbusFrame(0x64, 0x14, 0x00, 0x1C, 0x2A))
	if got := FormatEvent(EventProgrammingCVResult, c); got != "  CV29 = 42 (0x2A)\n" {
		t.Errorf("FormatEvent(CV_RESULT) = %q", got)
	}

	if got := FormatEvent(EventNone, c); got != "" {
		t.Errorf("FormatEvent(NONE) = %q", got)
	}
	if got := FormatEvent(EventTrackPowerOff, c); got != "  TRACK_POWER_OFF\n" {
		t.Errorf("FormatEvent(TRACK_POWER_OFF) = %q", got)
	}
}
