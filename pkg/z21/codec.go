// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package z21

import (
	"encoding/binary"
	"fmt"

	"github.com/sirupsen/logrus"
)

// LocoInfo is the last known state of a locomotive.
type LocoInfo struct {
	Address   uint16 // logical address, 14 bits
	Speed     uint8  // normalized to the step mode, 0 = stop
	Steps     SpeedSteps
	Direction Direction
	Light     bool
	Functions uint32 // bit n = F(n+1); F0 is Light
	Occupied  bool   // controlled by another handheld
}

// Function reports whether function n (F0-F28) is active.
func (l LocoInfo) Function(n int) bool {
	switch {
	case n == 0:
		return l.Light
	case n < 0 || n > 28:
		return false
	}
	return l.Functions&(1<<uint(n-1)) != 0
}

// CVResult is the last CV read or write confirmation.
type CVResult struct {
	CV    uint16 // 1-based
	Value uint8
}

// LocLibEntry is one loc-library record.
type LocLibEntry struct {
	Address uint16
	Name    string
	Index   uint8
	Total   uint8
}

// Option configures a Codec.
type Option func(*Codec)

// WithEventSink installs a sink that receives every decoded event.
func WithEventSink(sink EventSink) Option {
	return func(c *Codec) {
		c.sink = sink
	}
}

// WithLogger sets the logger used for frame debug traces.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Codec) {
		c.log = log
	}
}

// Codec composes outbound frames and decodes inbound frames.
// At most one outbound frame is pending at a time; composing replaces it.
type Codec struct {
	txBuffer [TxBufferSize]byte
	txLength int
	txReady  bool

	locoInfo        LocoInfo
	cvResult        CVResult
	locLib          LocLibEntry
	firmwareVersion uint16
	xbusVersion     uint16

	sink EventSink
	log  logrus.FieldLogger
}

// NewCodec creates a codec with empty cached state.
func NewCodec(opts ...Option) *Codec {
	c := &Codec{
		locoInfo: LocoInfo{Steps: StepsUnknown},
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// compose writes [len, 0x00, group, 0x00, payload..., xor?] into the
// transmit buffer and marks it ready.
func (c *Codec) compose(group byte, payload []byte, withChecksum bool) {
	length := HeaderSize + len(payload)
	if withChecksum {
		length++
	}

	c.txBuffer[0] = byte(length)
	c.txBuffer[1] = 0x00
	c.txBuffer[2] = group
	c.txBuffer[3] = 0x00
	copy(c.txBuffer[HeaderSize:], payload)
	if withChecksum {
		c.txBuffer[HeaderSize+len(payload)] = CalculateChecksum(payload)
	}

	c.txLength = length
	c.txReady = true
	c.log.Debugf("z21 compose: % X", c.txBuffer[:length])
}

// HasOutbound reports whether a composed frame is waiting to be pulled.
func (c *Codec) HasOutbound() bool {
	return c.txReady
}

// PullOutbound returns a copy of the pending frame and clears the ready
// flag. It returns false when nothing is pending.
func (c *Codec) PullOutbound() ([]byte, bool) {
	if !c.txReady {
		return nil, false
	}
	c.txReady = false
	frame := make([]byte, c.txLength)
	copy(frame, c.txBuffer[:c.txLength])
	return frame, true
}

// LocoInfo returns the last decoded locomotive state.
func (c *Codec) LocoInfo() LocoInfo {
	return c.locoInfo
}

// CVResult returns the last decoded CV programming result.
func (c *Codec) CVResult() CVResult {
	return c.cvResult
}

// LocLibEntry returns the last decoded loc-library record.
func (c *Codec) LocLibEntry() LocLibEntry {
	return c.locLib
}

// FirmwareVersion returns the last reported firmware version (BCD, e.g. 0x0143 = 1.43).
func (c *Codec) FirmwareVersion() uint16 {
	return c.firmwareVersion
}

// XBusVersion returns the last reported X-bus version word.
func (c *Codec) XBusVersion() uint16 {
	return c.xbusVersion
}

// GetSerialNumber composes LAN_GET_SERIAL_NUMBER.
func (c *Codec) GetSerialNumber() {
	c.compose(GroupSerialNumber, nil, false)
}

// LogOff composes LAN_LOGOFF.
func (c *Codec) LogOff() {
	c.compose(GroupLogOff, nil, false)
}

// GetVersion composes LAN_X_GET_VERSION.
func (c *Codec) GetVersion() {
	c.compose(GroupXBus, []byte{xGetStatus, dbGetVersion}, true)
}

// GetStatus composes LAN_X_GET_STATUS.
func (c *Codec) GetStatus() {
	c.compose(GroupXBus, []byte{xGetStatus, dbGetStatus}, true)
}

// SetTrackPowerOff composes LAN_X_SET_TRACK_POWER_OFF.
func (c *Codec) SetTrackPowerOff() {
	c.compose(GroupXBus, []byte{xGetStatus, dbTrackPowerOff}, true)
}

// SetTrackPowerOn composes LAN_X_SET_TRACK_POWER_ON.
func (c *Codec) SetTrackPowerOn() {
	c.compose(GroupXBus, []byte{xGetStatus, dbTrackPowerOn}, true)
}

// GetFirmwareVersion composes LAN_X_GET_FIRMWARE_VERSION.
func (c *Codec) GetFirmwareVersion() {
	c.compose(GroupXBus, []byte{xGetFirmware, dbGetFirmware}, true)
}

// SetBroadcastFlags composes LAN_SET_BROADCASTFLAGS. The flag word is
// little-endian on the wire.
func (c *Codec) SetBroadcastFlags(flags uint32) {
	var payload [4]byte
	binary.LittleEndian.PutUint32(payload[:], flags)
	c.compose(GroupSetBroadcastFlags, payload[:], true)
}

// GetLocoMode composes LAN_GET_LOCOMODE.
func (c *Codec) GetLocoMode(address uint16) {
	var payload [2]byte
	binary.BigEndian.PutUint16(payload[:], ToWireAddress(address))
	c.compose(GroupGetLocoMode, payload[:], false)
}

// GetLocoInfo composes LAN_X_GET_LOCO_INFO.
func (c *Codec) GetLocoInfo(address uint16) {
	wire := ToWireAddress(address)
	c.compose(GroupXBus, []byte{xGetLocoInfo, dbGetLocoInfo, byte(wire >> 8), byte(wire)}, true)
}

// SetLocoDrive composes LAN_X_SET_LOCO_DRIVE from the address, step mode,
// speed and direction of loco. The argument is not modified.
func (c *Codec) SetLocoDrive(loco LocoInfo) error {
	opcode, speed, err := encodeDrive(loco)
	if err != nil {
		return err
	}
	wire := ToWireAddress(loco.Address)
	c.compose(GroupXBus, []byte{xSetLoco, opcode, byte(wire >> 8), byte(wire), speed}, true)
	return nil
}

// SetLocoFunction composes LAN_X_SET_LOCO_FUNCTION.
func (c *Codec) SetLocoFunction(address uint16, function uint8, mode FunctionMode) error {
	if function > MaxFunction {
		return fmt.Errorf("%w: %d > %d", ErrFunctionOutOfRange, function, MaxFunction)
	}

	var bits byte
	switch mode {
	case FunctionOff:
		bits = functionBitsOff
	case FunctionOn:
		bits = functionBitsOn
	case FunctionToggle:
		bits = functionBitsToggle
	default:
		return fmt.Errorf("z21: invalid function mode %d", mode)
	}

	wire := ToWireAddress(address)
	c.compose(GroupXBus, []byte{xSetLoco, dbSetLocoFunc, byte(wire >> 8), byte(wire), bits | function}, true)
	return nil
}

// SetTurnout composes LAN_X_SET_TURNOUT. Turnout addresses are sent as-is.
func (c *Codec) SetTurnout(address uint16, direction TurnoutDirection) {
	code := byte(turnoutCodeOff)
	switch direction {
	case TurnoutTurn:
		code = turnoutCodeTurn
	case TurnoutForward:
		code = turnoutCodeForward
	}
	c.compose(GroupXBus, []byte{xSetTurnout, byte(address >> 8), byte(address), code}, true)
}

// CVRead composes LAN_X_CV_READ for a 1-based CV number.
func (c *Codec) CVRead(cv uint16) error {
	if err := checkCV(cv); err != nil {
		return err
	}
	wire := cv - 1
	c.compose(GroupXBus, []byte{xCVRead, dbCVRead, byte(wire >> 8), byte(wire)}, true)
	return nil
}

// CVWrite composes LAN_X_CV_WRITE for a 1-based CV number.
func (c *Codec) CVWrite(cv uint16, value uint8) error {
	if err := checkCV(cv); err != nil {
		return err
	}
	wire := cv - 1
	c.compose(GroupXBus, []byte{xCVWrite, dbCVWrite, byte(wire >> 8), byte(wire), value}, true)
	return nil
}

// SetLocLibData composes a loc-library transmission record. The name is
// NUL-padded to LocLibNameSize bytes.
func (c *Codec) SetLocLibData(entry LocLibEntry) error {
	if len(entry.Name) > LocLibNameSize {
		return fmt.Errorf("%w: %q is %d bytes (max %d)", ErrNameTooLong, entry.Name, len(entry.Name), LocLibNameSize)
	}

	var payload [locLibPayloadSize]byte
	wire := ToWireAddress(entry.Address)
	payload[0] = xLocLibData
	payload[1] = dbLocLibTransmit
	binary.BigEndian.PutUint16(payload[2:4], wire)
	payload[4] = entry.Index
	payload[5] = entry.Total
	copy(payload[6:], entry.Name)

	c.compose(GroupXBus, payload[:], true)
	return nil
}

func checkCV(cv uint16) error {
	if cv < MinCV || cv > MaxCV {
		return fmt.Errorf("%w: %d (valid %d-%d)", ErrCVOutOfRange, cv, MinCV, MaxCV)
	}
	return nil
}
