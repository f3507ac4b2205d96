// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package z21

import (
	"errors"
	"fmt"
	"time"
)

// Statistics tracks decode results and error rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalFrames   uint64
	DecodedEvents uint64
	Acknowledged  uint64 // recognized group, nothing decoded
	UnknownXBus   uint64
	Unrecognized  uint64
	Truncated     uint64
	FramingErrors uint64
	Events        map[EventKind]uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
		Events:         make(map[EventKind]uint64),
	}
}

// Update records the outcome of one ProcessInbound call
func (s *Statistics) Update(kind EventKind, err error) {
	s.TotalFrames++
	s.LastUpdateTime = time.Now()

	if err != nil {
		switch {
		case errors.Is(err, ErrUnrecognizedGroup):
			s.Unrecognized++
		case errors.Is(err, ErrTruncatedFrame):
			s.Truncated++
		default:
			s.FramingErrors++
		}
		return
	}

	switch kind {
	case EventNone:
		s.Acknowledged++
	case EventUnknown:
		s.UnknownXBus++
	default:
		s.DecodedEvents++
	}
	s.Events[kind]++
}

// RecordFramingError counts a stream framing failure that never reached the codec
func (s *Statistics) RecordFramingError() {
	s.TotalFrames++
	s.FramingErrors++
	s.LastUpdateTime = time.Now()
}

// Errors returns the total error count
func (s *Statistics) Errors() uint64 {
	return s.Unrecognized + s.Truncated + s.FramingErrors
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.ErrorRate = float64(s.Errors()) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var decodedPercent, errorPercent float64
	if s.TotalFrames > 0 {
		decodedPercent = float64(s.DecodedEvents) * 100.0 / float64(s.TotalFrames)
		errorPercent = float64(s.Errors()) * 100.0 / float64(s.TotalFrames)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Decoded Events:  %8d (%.1f%%)\n", s.DecodedEvents, decodedPercent)

	for kind := EventTrackPowerOn; kind < EventUnknown; kind++ {
		if n := s.Events[kind]; n > 0 {
			result += fmt.Sprintf("  %-18s %5d\n", kind.String()+":", n)
		}
	}

	if s.Acknowledged > 0 {
		result += fmt.Sprintf("Acknowledged:    %8d\n", s.Acknowledged)
	}
	if s.UnknownXBus > 0 {
		result += fmt.Sprintf("Unknown X-Bus:   %8d\n", s.UnknownXBus)
	}
	if s.Errors() > 0 {
		result += fmt.Sprintf("Errors:          %8d (%.1f%%)\n", s.Errors(), errorPercent)
		if s.Unrecognized > 0 {
			result += fmt.Sprintf("  Unrecognized:     %5d\n", s.Unrecognized)
		}
		if s.Truncated > 0 {
			result += fmt.Sprintf("  Truncated:        %5d\n", s.Truncated)
		}
		if s.FramingErrors > 0 {
			result += fmt.Sprintf("  Framing:          %5d\n", s.FramingErrors)
		}
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
