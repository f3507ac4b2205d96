// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package z21

import "fmt"

// Framer states (internal)
const (
	stateLengthLow = iota
	stateLengthHigh
	stateBody
)

// Framer reassembles complete frames from a byte stream. Each frame
// starts with its total length as a little-endian 16-bit word.
type Framer struct {
	state  int
	length int
	buffer []byte
}

// NewFramer creates a framer waiting for the first length byte.
func NewFramer() *Framer {
	return &Framer{
		buffer: make([]byte, 0, MaxFrameSize),
	}
}

// Reset discards any partial frame.
func (f *Framer) Reset() {
	f.state = stateLengthLow
	f.length = 0
	f.buffer = f.buffer[:0]
}

// Pending returns the number of bytes held for an incomplete frame.
func (f *Framer) Pending() int {
	return len(f.buffer)
}

// DecodeByte feeds one byte. It returns a complete frame (a fresh slice
// owned by the caller) once the last byte arrives, nil while the frame is
// incomplete, or an error when the length word is out of range.
func (f *Framer) DecodeByte(b byte) ([]byte, error) {
	switch f.state {
	case stateLengthLow:
		f.buffer = append(f.buffer[:0], b)
		f.length = int(b)
		f.state = stateLengthHigh
		return nil, nil

	case stateLengthHigh:
		f.length |= int(b) << 8
		if f.length < HeaderSize || f.length > MaxFrameSize {
			length := f.length
			f.Reset()
			return nil, fmt.Errorf("%w: %d (valid %d-%d)", ErrFrameLength, length, HeaderSize, MaxFrameSize)
		}
		f.buffer = append(f.buffer, b)
		f.state = stateBody
		return f.complete(), nil

	case stateBody:
		f.buffer = append(f.buffer, b)
		return f.complete(), nil

	default:
		f.Reset()
		return nil, fmt.Errorf("z21: invalid framer state: %d", f.state)
	}
}

func (f *Framer) complete() []byte {
	if len(f.buffer) < f.length {
		return nil
	}
	frame := make([]byte, f.length)
	copy(frame, f.buffer)
	f.Reset()
	return frame
}

// Write feeds a chunk of bytes and returns every frame completed by it.
// On a length error the framer resynchronizes on the next byte and keeps
// going; the first error is returned alongside the frames found.
func (f *Framer) Write(data []byte) ([][]byte, error) {
	var frames [][]byte
	var firstErr error
	for _, b := range data {
		frame, err := f.DecodeByte(b)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if frame != nil {
			frames = append(frames, frame)
		}
	}
	return frames, firstErr
}

// SplitDatagram splits one UDP datagram, which may carry several frames
// back to back, into individual frames.
func SplitDatagram(datagram []byte) ([][]byte, error) {
	var frames [][]byte
	for offset := 0; offset < len(datagram); {
		if len(datagram)-offset < 2 {
			return frames, fmt.Errorf("%w: %d trailing bytes", ErrTruncatedFrame, len(datagram)-offset)
		}
		length := int(datagram[offset]) | int(datagram[offset+1])<<8
		if length < HeaderSize || length > MaxFrameSize {
			return frames, fmt.Errorf("%w: %d (valid %d-%d)", ErrFrameLength, length, HeaderSize, MaxFrameSize)
		}
		if offset+length > len(datagram) {
			return frames, fmt.Errorf("%w: frame of %d bytes, %d available", ErrTruncatedFrame, length, len(datagram)-offset)
		}
		frames = append(frames, datagram[offset:offset+length])
		offset += length
	}
	return frames, nil
}
