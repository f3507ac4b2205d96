// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package z21

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// minimum frame length per X-bus opcode (last accessed offset + 1)
var xbusMinLength = map[byte]int{
	XStatus:        6,
	XStatusChanged: 7,
	XVersion:       8,
	XCVResult:      9,
	XFirmware:      8,
	XLocoInfo:      13,
	XLocLibData:    6,
}

// ProcessInbound classifies one complete inbound frame and updates the
// cached state it carries.
//
// Recognized groups other than X-bus return (EventNone, nil). Unknown
// groups return ErrUnrecognizedGroup. An X-bus frame with an opcode the
// codec does not interpret returns (EventUnknown, nil). A frame too short
// for the fields of its opcode returns ErrTruncatedFrame and leaves the
// cached state untouched.
func (c *Codec) ProcessInbound(frame []byte) (EventKind, error) {
	if len(frame) < 3 {
		return EventNone, fmt.Errorf("%w: %d bytes (need 3 for command group)", ErrTruncatedFrame, len(frame))
	}

	c.log.Debugf("z21 receive: % X", frame)

	switch frame[2] {
	case GroupXBus:
		return c.decodeXBus(frame)
	case GroupSerialNumber,
		GroupHardwareInfo,
		GroupLogOff,
		GroupSetBroadcastFlags,
		GroupGetBroadcastFlags,
		GroupGetLocoMode,
		GroupSetLocoMode,
		GroupGetTurnoutMode,
		GroupSetTurnoutMode,
		GroupRMBusData,
		GroupRMBusGetData,
		GroupRMBusProgramModule,
		GroupSystemStateData,
		GroupSystemStateGetData,
		GroupRailComData,
		GroupRailComGetData,
		GroupLocoNetFromLAN,
		GroupLocoNetDispatch,
		GroupLocoNetDetector:
		return EventNone, nil
	default:
		return EventNone, fmt.Errorf("%w: 0x%02X", ErrUnrecognizedGroup, frame[2])
	}
}

// decodeXBus dispatches on the X-bus header at offset 4.
func (c *Codec) decodeXBus(frame []byte) (EventKind, error) {
	if len(frame) < MinInboundSize {
		return EventNone, fmt.Errorf("%w: %d bytes (need %d for X-bus header)", ErrTruncatedFrame, len(frame), MinInboundSize)
	}

	opcode := frame[4]
	if need, ok := xbusMinLength[opcode]; ok && len(frame) < need {
		return EventNone, fmt.Errorf("%w: opcode 0x%02X needs %d bytes, got %d", ErrTruncatedFrame, opcode, need, len(frame))
	}

	var kind EventKind
	var payload interface{}
	switch opcode {
	case XStatus:
		kind = decodeStatus(frame)
	case XStatusChanged:
		kind = decodeTrackPower(frame)
	case XVersion:
		c.xbusVersion = binary.BigEndian.Uint16(frame[6:8])
		kind, payload = EventVersionResponse, c.xbusVersion
	case XFirmware:
		c.firmwareVersion = binary.BigEndian.Uint16(frame[6:8])
		kind, payload = EventFirmwareVersionResponse, c.firmwareVersion
	case XCVResult:
		c.cvResult = CVResult{
			CV:    binary.BigEndian.Uint16(frame[6:8]) + 1,
			Value: frame[8],
		}
		kind, payload = EventProgrammingCVResult, c.cvResult
	case XLocoInfo:
		c.locoInfo = decodeLocoInfo(frame)
		kind, payload = EventLocoInfo, c.locoInfo
	case XLocLibData:
		if frame[5] != dbLocLibTransmit {
			kind = EventUnknown
			break
		}
		if len(frame) < 10+LocLibNameSize {
			return EventNone, fmt.Errorf("%w: loc library data needs %d bytes, got %d", ErrTruncatedFrame, 10+LocLibNameSize, len(frame))
		}
		c.locLib = decodeLocLib(frame)
		kind, payload = EventLocLibData, c.locLib
	default:
		kind = EventUnknown
	}

	c.emit(kind, payload)
	return kind, nil
}

func (c *Codec) emit(kind EventKind, payload interface{}) {
	if c.sink == nil || kind == EventNone {
		return
	}
	c.sink.Emit(kind, payload)
}

// decodeStatus maps LAN_X_STATUS replies (byte 5).
func decodeStatus(frame []byte) EventKind {
	switch frame[5] {
	case statusTrackPowerOff:
		return EventTrackPowerOff
	case statusTrackPowerOn:
		return EventTrackPowerOn
	case statusProgrammingMode:
		return EventProgrammingMode
	case statusCVNack:
		return EventProgrammingCVNack
	}
	return EventUnknown
}

// decodeTrackPower maps LAN_X_STATUS_CHANGED central state (byte 6).
// Emergency stop, short circuit and every other code collapse to
// track power off.
func decodeTrackPower(frame []byte) EventKind {
	switch frame[6] {
	case centralStateNormal:
		return EventTrackPowerOn
	case centralStateProgramming:
		return EventProgrammingMode
	}
	return EventTrackPowerOff
}

// decodeLocoInfo unpacks LAN_X_LOCO_INFO (bytes 5-12).
func decodeLocoInfo(frame []byte) LocoInfo {
	info := LocoInfo{
		Address: FromWireAddress(binary.BigEndian.Uint16(frame[5:7])),
		Steps:   stepsFromWire(frame[7]),
	}
	info.Speed = decodeSpeed(info.Steps, frame[8])
	info.Occupied = frame[7]&0x08 != 0
	if frame[8]&0x80 != 0 {
		info.Direction = DirectionForward
	}
	info.Light = frame[9]&0x10 != 0

	info.Functions = uint32(frame[9] & 0x0F)
	info.Functions |= uint32(frame[10]) << 4
	info.Functions |= uint32(frame[11]) << 12
	info.Functions |= uint32(frame[12]) << 20
	return info
}

// decodeLocLib unpacks a loc-library record (bytes 6-19).
func decodeLocLib(frame []byte) LocLibEntry {
	name := string(frame[10 : 10+LocLibNameSize])
	return LocLibEntry{
		Address: FromWireAddress(binary.BigEndian.Uint16(frame[6:8])),
		Index:   frame[8],
		Total:   frame[9],
		Name:    strings.TrimRight(name, "\x00"),
	}
}
