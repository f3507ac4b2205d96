// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package z21

// EventSink receives decoded events. Payload is the updated LocoInfo,
// CVResult or LocLibEntry value, a uint16 version, or nil.
type EventSink interface {
	Emit(kind EventKind, payload interface{})
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(kind EventKind, payload interface{})

// Emit calls f(kind, payload).
func (f EventSinkFunc) Emit(kind EventKind, payload interface{}) {
	f(kind, payload)
}

// ChannelSink forwards events to a channel without blocking. Events are
// dropped when the channel is full.
type ChannelSink chan<- Event

// Event pairs a kind with its payload for channel delivery.
type Event struct {
	Kind    EventKind
	Payload interface{}
}

// Emit sends the event if the channel has room.
func (c ChannelSink) Emit(kind EventKind, payload interface{}) {
	select {
	case c <- Event{Kind: kind, Payload: payload}:
	default:
	}
}
