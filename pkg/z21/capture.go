// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package z21

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// CaptureDirection marks whether a captured frame was sent or received.
type CaptureDirection uint8

// Capture directions
const (
	CaptureInbound  CaptureDirection = 0
	CaptureOutbound CaptureDirection = 1
)

// String returns "rx" or "tx"
func (d CaptureDirection) String() string {
	if d == CaptureOutbound {
		return "tx"
	}
	return "rx"
}

// CaptureRecord is one frame in a capture file. Records are stored as a
// sequence of CBOR maps with integer keys.
type CaptureRecord struct {
	Timestamp time.Time        `cbor:"0,keyasint"`
	Direction CaptureDirection `cbor:"1,keyasint"`
	Frame     []byte           `cbor:"2,keyasint"`
}

// CaptureWriter appends records to a capture stream.
type CaptureWriter struct {
	enc   *cbor.Encoder
	count int
}

// NewCaptureWriter creates a writer. Timestamps are encoded as RFC 3339
// strings with nanosecond precision.
func NewCaptureWriter(w io.Writer) (*CaptureWriter, error) {
	mode, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		return nil, fmt.Errorf("failed to create CBOR encoder: %w", err)
	}
	return &CaptureWriter{enc: mode.NewEncoder(w)}, nil
}

// Write appends one frame.
func (w *CaptureWriter) Write(direction CaptureDirection, timestamp time.Time, frame []byte) error {
	rec := CaptureRecord{Timestamp: timestamp, Direction: direction, Frame: frame}
	if err := w.enc.Encode(rec); err != nil {
		return fmt.Errorf("failed to encode capture record: %w", err)
	}
	w.count++
	return nil
}

// Count returns the number of records written.
func (w *CaptureWriter) Count() int {
	return w.count
}

// CaptureReader reads records from a capture stream.
type CaptureReader struct {
	dec *cbor.Decoder
}

// NewCaptureReader creates a reader.
func NewCaptureReader(r io.Reader) *CaptureReader {
	return &CaptureReader{dec: cbor.NewDecoder(r)}
}

// Next returns the next record, or io.EOF at the end of the stream.
func (r *CaptureReader) Next() (CaptureRecord, error) {
	var rec CaptureRecord
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return CaptureRecord{}, io.EOF
		}
		return CaptureRecord{}, fmt.Errorf("failed to decode capture record: %w", err)
	}
	return rec, nil
}

// Replay feeds every inbound record of a capture through a codec and
// calls fn with each result. Outbound records are passed with EventNone
// and no error. Replay stops at the first error returned by fn.
func Replay(r io.Reader, c *Codec, fn func(rec CaptureRecord, kind EventKind, err error) error) error {
	reader := NewCaptureReader(r)
	for {
		rec, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		var kind EventKind
		var decodeErr error
		if rec.Direction == CaptureInbound {
			kind, decodeErr = c.ProcessInbound(rec.Frame)
		}
		if err := fn(rec, kind, decodeErr); err != nil {
			return err
		}
	}
}
