// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package z21

import (
	"bytes"
	"errors"
	"testing"
)

// ============================================================
// Framer Tests
// ============================================================

func TestFramer_SingleFrame(t *testing.T) {
	f := NewFramer()
	frame := xbusFrame(0x61, 0x01)

	for i, b := range frame[:len(frame)-1] {
		got, err := f.DecodeByte(b)
		if err != nil {
			t.Fatalf("byte %d: %v", i, err)
		}
		if got != nil {
			t.Fatalf("byte %d: frame completed early", i)
		}
	}
	if f.Pending() != len(frame)-1 {
		t.Errorf("Pending() = %d, want %d", f.Pending(), len(frame)-1)
	}

	got, err := f.DecodeByte(frame[len(frame)-1])
	if err != nil {
		t.Fatalf("last byte: %v", err)
	}
	if !bytes.Equal(got, frame) {
		t.Errorf("frame = % X, want % X", got, frame)
	}
	if f.Pending() != 0 {
		t.Errorf("Pending() = %d after completion", f.Pending())
	}
}

func TestFramer_HeaderOnlyFrame(t *testing.T) {
	f := NewFramer()
	frames, err := f.Write([]byte{0x04, 0x00, 0x10, 0x00})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if len(frames) != 1 || len(frames[0]) != 4 {
		t.Errorf("frames = %v", frames)
	}
}

func TestFramer_StreamOfFrames(t *testing.T) {
	a := xbusFrame(0x61, 0x01)
	b := xbusFrame(0x64, 0x14, 0x00, 0x00, 0x03)
	c := []byte{0x08, 0x00, 0x10, 0x00, 0x01, 0x02, 0x03, 0x04}

	var stream []byte
	stream = append(stream, a...)
	stream = append(stream, b...)
	stream = append(stream, c...)

	f := NewFramer()
	// split across writes at an awkward boundary
	first, err := f.Write(stream[:9])
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	rest, err := f.Write(stream[9:])
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	frames := append(first, rest...)
	want := [][]byte{a, b, c}
	if len(frames) != len(want) {
		t.Fatalf("got %d frames, want %d", len(frames), len(want))
	}
	for i := range want {
		if !bytes.Equal(frames[i], want[i]) {
			t.Errorf("frame %d = % X, want % X", i, frames[i], want[i])
		}
	}
}

func TestFramer_LengthErrorResync(t *testing.T) {
	f := NewFramer()
	good := xbusFrame(0x61, 0x00)

	// length 2 is below the header size
	stream := append([]byte{0x02, 0x00}, good...)
	frames, err := f.Write(stream)
	if !errors.Is(err, ErrFrameLength) {
		t.Fatalf("err = %v, want ErrFrameLength", err)
	}
	if len(frames) != 1 || !bytes.Equal(frames[0], good) {
		t.Errorf("frames after resync = %v", frames)
	}

	// length 0x0200 exceeds the maximum frame size
	_, err = f.DecodeByte(0x00)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.DecodeByte(0x02); !errors.Is(err, ErrFrameLength) {
		t.Errorf("err = %v, want ErrFrameLength", err)
	}
	if f.Pending() != 0 {
		t.Errorf("Pending() = %d after error", f.Pending())
	}
}

func TestFramer_Reset(t *testing.T) {
	f := NewFramer()
	_, _ = f.Write([]byte{0x07, 0x00, 0x40})
	f.Reset()
	if f.Pending() != 0 {
		t.Errorf("Pending() = %d after Reset", f.Pending())
	}
	frames, err := f.Write(xbusFrame(0x61, 0x01))
	if err != nil || len(frames) != 1 {
		t.Errorf("frames = %v, err = %v", frames, err)
	}
}

// ============================================================
// Datagram Tests
// ============================================================

func TestSplitDatagram(t *testing.T) {
	a := xbusFrame(0x61, 0x01)
	b := xbusFrame(0xF3, 0x0A, 0x01, 0x43)
	datagram := append(append([]byte{}, a...), b...)

	frames, err := SplitDatagram(datagram)
	if err != nil {
		t.Fatalf("SplitDatagram failed: %v", err)
	}
	if len(frames) != 2 || !bytes.Equal(frames[0], a) || !bytes.Equal(frames[1], b) {
		t.Errorf("frames = % X", frames)
	}
}

func TestSplitDatagram_Errors(t *testing.T) {
	a := xbusFrame(0x61, 0x01)

	tests := []struct {
		name       string
		datagram   []byte
		wantFrames int
		wantErr    error
	}{
		{"trailing byte", append(append([]byte{}, a...), 0x07), 1, ErrTruncatedFrame},
		{"short frame", append(append([]byte{}, a...), 0x07, 0x00, 0x40), 1, ErrTruncatedFrame},
		{"bad length", []byte{0x01, 0x00, 0x40}, 0, ErrFrameLength},
		{"oversized length", []byte{0xFF, 0x00, 0x40, 0x00}, 0, ErrFrameLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frames, err := SplitDatagram(tt.datagram)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if len(frames) != tt.wantFrames {
				t.Errorf("got %d frames, want %d", len(frames), tt.wantFrames)
			}
		})
	}

	frames, err := SplitDatagram(nil)
	if err != nil || len(frames) != 0 {
		t.Errorf("empty datagram: frames = %v, err = %v", frames, err)
	}
}
