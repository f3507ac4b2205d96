// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package z21 provides a client-side codec for the Z21 LAN protocol used by
// Roco/Fleischmann digital command stations.
//
// The codec composes one outbound frame at a time into an internal buffer
// (pulled by the transport with PullOutbound) and decodes one inbound frame
// per ProcessInbound call, caching the last decoded locomotive, CV and
// loc-library state. It performs no I/O and no locking; callers that drive
// it from several goroutines must serialize access themselves.
package z21

// Frame layout
const (
	HeaderSize     = 4  // length (2) + command group (2)
	MinInboundSize = 5  // header + X-bus opcode
	TxBufferSize   = 30 // largest composed frame is 21 bytes
	MaxFrameSize   = 128
	DefaultUDPPort = 21105
)

// Command groups (byte 2 of every frame)
const (
	GroupSerialNumber       = 0x10
	GroupHardwareInfo       = 0x1A
	GroupLogOff             = 0x30
	GroupXBus               = 0x40
	GroupSetBroadcastFlags  = 0x50
	GroupGetBroadcastFlags  = 0x51
	GroupGetLocoMode        = 0x60
	GroupSetLocoMode        = 0x61
	GroupGetTurnoutMode     = 0x70
	GroupSetTurnoutMode     = 0x71
	GroupRMBusData          = 0x80
	GroupRMBusGetData       = 0x81
	GroupRMBusProgramModule = 0x82
	GroupSystemStateData    = 0x84
	GroupSystemStateGetData = 0x85
	GroupRailComData        = 0x88
	GroupRailComGetData     = 0x89
	GroupLocoNetFromLAN     = 0xA2
	GroupLocoNetDispatch    = 0xA3
	GroupLocoNetDetector    = 0xA4
)

// X-bus headers, outbound
const (
	xGetStatus       = 0x21
	xSetTurnout      = 0x53
	xCVRead          = 0x23
	xCVWrite         = 0x24
	xGetLocoInfo     = 0xE3
	xSetLoco         = 0xE4
	xLocLibData      = 0xE9
	xGetFirmware     = 0xF1
	dbGetVersion     = 0x21
	dbGetStatus      = 0x24
	dbTrackPowerOff  = 0x80
	dbTrackPowerOn   = 0x81
	dbGetFirmware    = 0x0A
	dbGetLocoInfo    = 0xF0
	dbSetLocoFunc    = 0xF8
	dbCVRead         = 0x11
	dbCVWrite        = 0x12
	dbLocLibTransmit = 0xF1
)

// X-bus headers, inbound (byte 4)
const (
	XStatus        = 0x61
	XStatusChanged = 0x62
	XVersion       = 0x63
	XCVResult      = 0x64
	XLocLibData    = 0xE9
	XLocoInfo      = 0xEF
	XFirmware      = 0xF3
)

// Status reply codes (byte 5 of XStatus)
const (
	statusTrackPowerOff   = 0x00
	statusTrackPowerOn    = 0x01
	statusProgrammingMode = 0x02
	statusCVNack          = 0x13
)

// Central state codes (byte 6 of XStatusChanged)
const (
	centralStateNormal      = 0x00
	centralStateProgramming = 0x20
)

// Long-address marker on the wire
const (
	longAddressMarker = 0xC000
	maxShortAddress   = 127
)

// Limits for compose validation
const (
	MaxFunction       = 0x3F
	MinCV             = 1
	MaxCV             = 1024
	LocLibNameSize    = 10
	locLibPayloadSize = 6 + LocLibNameSize
)

// Broadcast flags for SetBroadcastFlags
const (
	BroadcastDrivingSwitching = 0x00000001
	BroadcastRMBus            = 0x00000002
	BroadcastRailCom          = 0x00000004
	BroadcastSystemState      = 0x00000100
	BroadcastAllLocoInfo      = 0x00010000
	BroadcastRailComAll       = 0x00040000
	BroadcastCANDetector      = 0x00080000
	BroadcastLocoNet          = 0x01000000
)

// EventKind classifies a decoded inbound frame. Exactly one kind is
// produced per frame.
type EventKind int

// Event kinds
const (
	EventNone EventKind = iota
	EventTrackPowerOn
	EventTrackPowerOff
	EventProgrammingMode
	EventProgrammingCVNack
	EventProgrammingCVResult
	EventLocoInfo
	EventVersionResponse
	EventFirmwareVersionResponse
	EventLocLibData
	EventUnknown
)

// SpeedSteps is the locomotive decoder speed resolution.
type SpeedSteps int

// Speed step modes
const (
	Steps14 SpeedSteps = iota
	Steps28
	Steps128
	StepsUnknown
)

// Direction of travel. Values match bit 7 of the speed byte.
type Direction int

// Directions
const (
	DirectionReverse Direction = 0
	DirectionForward Direction = 1
)

// FunctionMode selects how SetLocoFunction changes a function.
type FunctionMode int

// Function modes
const (
	FunctionOff FunctionMode = iota
	FunctionOn
	FunctionToggle
)

// TurnoutDirection selects the turnout output.
type TurnoutDirection int

// Turnout directions
const (
	TurnoutOff TurnoutDirection = iota
	TurnoutTurn
	TurnoutForward
)

// turnout direction codes on the wire
const (
	turnoutCodeOff     = 0x80
	turnoutCodeTurn    = 0x88
	turnoutCodeForward = 0x89
)

// set-loco-drive step opcodes
const (
	driveSteps14  = 0x10
	driveSteps28  = 0x12
	driveSteps128 = 0x13
)

// function mode bits
const (
	functionBitsOff    = 0x00
	functionBitsOn     = 0x40
	functionBitsToggle = 0x80
)
