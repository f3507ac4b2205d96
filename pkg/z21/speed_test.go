// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package z21

import (
	"errors"
	"testing"
)

// ============================================================
// Address Tests
// ============================================================

func TestToWireAddress(t *testing.T) {
	tests := []struct {
		logical uint16
		wire    uint16
	}{
		{0, 0x0000},
		{3, 0x0003},
		{127, 0x007F},
		{128, 0xC080},
		{1234, 0xC4D2},
		{9999, 0xE70F},
	}

	for _, tt := range tests {
		if got := ToWireAddress(tt.logical); got != tt.wire {
			t.Errorf("ToWireAddress(%d) = 0x%04X, want 0x%04X", tt.logical, got, tt.wire)
		}
		if got := FromWireAddress(tt.wire); got != tt.logical {
			t.Errorf("FromWireAddress(0x%04X) = %d, want %d", tt.wire, got, tt.logical)
		}
	}
}

func TestAddressRoundTrip(t *testing.T) {
	for addr := uint16(0); addr <= 9999; addr++ {
		if got := FromWireAddress(ToWireAddress(addr)); got != addr {
			t.Fatalf("round trip %d -> 0x%04X -> %d", addr, ToWireAddress(addr), got)
		}
	}
}

func TestFromWireAddress_NoMarker(t *testing.T) {
	// values without the long marker pass through unchanged
	for _, wire := range []uint16{0x0080, 0x0100, 0x4000, 0x8000} {
		if got := FromWireAddress(wire); got != wire {
			t.Errorf("FromWireAddress(0x%04X) = 0x%04X, want unchanged", wire, got)
		}
	}
	// every marked wire value survives the reverse trip
	for wire := uint32(0xC080); wire <= 0xFFFF; wire++ {
		w := uint16(wire)
		if got := ToWireAddress(FromWireAddress(w)); got != w {
			t.Fatalf("ToWireAddress(FromWireAddress(0x%04X)) = 0x%04X", w, got)
		}
	}
}

// ============================================================
// Speed Tests
// ============================================================

func TestMaxSpeed(t *testing.T) {
	tests := []struct {
		steps SpeedSteps
		want  uint8
	}{
		{Steps14, 14},
		{Steps28, 28},
		{Steps128, 127},
		{StepsUnknown, 0},
	}
	for _, tt := range tests {
		if got := MaxSpeed(tt.steps); got != tt.want {
			t.Errorf("MaxSpeed(%v) = %d, want %d", tt.steps, got, tt.want)
		}
	}
}

func TestSpeed28Tables(t *testing.T) {
	for speed := uint8(0); speed <= 28; speed++ {
		code := speed28ToDCC[speed]
		if got := speed28FromDCC[code&0x1F]; got != speed {
			t.Errorf("speed %d -> code %d -> %d", speed, code, got)
		}
	}

	// stop and emergency stop codes decode to 0
	for _, code := range []byte{0, 1, 16, 17} {
		if got := decodeSpeed(Steps28, code); got != 0 {
			t.Errorf("decodeSpeed(28, %d) = %d, want 0", code, got)
		}
	}
}

// TestSpeedRoundTrip drives each speed out through SetLocoDrive and back
// in through a loco-info frame carrying the same speed byte.
func TestSpeedRoundTrip(t *testing.T) {
	modes := []struct {
		steps SpeedSteps
		mode  byte
	}{
		{Steps14, 0x00},
		{Steps28, 0x02},
		{Steps128, 0x04},
	}

	for _, m := range modes {
		for _, dir := range []Direction{DirectionReverse, DirectionForward} {
			for speed := uint8(0); speed <= MaxSpeed(m.steps); speed++ {
				c := NewCodec()
				loco := LocoInfo{Address: 1234, Steps: m.steps, Speed: speed, Direction: dir}
				if err := c.SetLocoDrive(loco); err != nil {
					t.Fatalf("%v speed %d: %v", m.steps, speed, err)
				}
				out, _ := c.PullOutbound()

				in := xbusFrame(0xEF, out[6], out[7], m.mode, out[8], 0, 0, 0, 0)
				if _, err := c.ProcessInbound(in); err != nil {
					t.Fatalf("%v speed %d: %v", m.steps, speed, err)
				}

				got := c.LocoInfo()
				if got.Speed != speed || got.Direction != dir || got.Steps != m.steps || got.Address != 1234 {
					t.Errorf("%v %v speed %d: decoded %+v", m.steps, dir, speed, got)
				}
			}
		}
	}
}

func TestParseSpeedSteps(t *testing.T) {
	for n, want := range map[int]SpeedSteps{14: Steps14, 28: Steps28, 128: Steps128} {
		got, err := ParseSpeedSteps(n)
		if err != nil || got != want {
			t.Errorf("ParseSpeedSteps(%d) = %v, %v", n, got, err)
		}
	}
	if _, err := ParseSpeedSteps(27); !errors.Is(err, ErrUnknownSpeedSteps) {
		t.Errorf("ParseSpeedSteps(27) err = %v, want ErrUnknownSpeedSteps", err)
	}
}
