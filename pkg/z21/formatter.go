// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package z21

import (
	"fmt"
	"strings"
	"time"
)

// String returns the event name
func (k EventKind) String() string {
	switch k {
	case EventNone:
		return "NONE"
	case EventTrackPowerOn:
		return "TRACK_POWER_ON"
	case EventTrackPowerOff:
		return "TRACK_POWER_OFF"
	case EventProgrammingMode:
		return "PROGRAMMING_MODE"
	case EventProgrammingCVNack:
		return "CV_NACK"
	case EventProgrammingCVResult:
		return "CV_RESULT"
	case EventLocoInfo:
		return "LOCO_INFO"
	case EventVersionResponse:
		return "VERSION"
	case EventFirmwareVersionResponse:
		return "FIRMWARE_VERSION"
	case EventLocLibData:
		return "LOC_LIB_DATA"
	case EventUnknown:
		return "UNKNOWN"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// String returns the step mode label
func (s SpeedSteps) String() string {
	switch s {
	case Steps14:
		return "14 steps"
	case Steps28:
		return "28 steps"
	case Steps128:
		return "128 steps"
	default:
		return "unknown steps"
	}
}

// String returns "forward" or "reverse"
func (d Direction) String() string {
	if d == DirectionForward {
		return "forward"
	}
	return "reverse"
}

// String returns the function mode name
func (m FunctionMode) String() string {
	switch m {
	case FunctionOff:
		return "off"
	case FunctionOn:
		return "on"
	case FunctionToggle:
		return "toggle"
	default:
		return fmt.Sprintf("FunctionMode(%d)", int(m))
	}
}

// String returns the turnout direction name
func (t TurnoutDirection) String() string {
	switch t {
	case TurnoutOff:
		return "off"
	case TurnoutTurn:
		return "turn"
	case TurnoutForward:
		return "forward"
	default:
		return fmt.Sprintf("TurnoutDirection(%d)", int(t))
	}
}

// ParseSpeedSteps accepts 14, 28 or 128.
func ParseSpeedSteps(n int) (SpeedSteps, error) {
	switch n {
	case 14:
		return Steps14, nil
	case 28:
		return Steps28, nil
	case 128:
		return Steps128, nil
	}
	return StepsUnknown, fmt.Errorf("%w: %d (use 14, 28 or 128)", ErrUnknownSpeedSteps, n)
}

// FormatGroup returns the LAN command name for a command group byte
func FormatGroup(group byte) string {
	switch group {
	case GroupSerialNumber:
		return "LAN_GET_SERIAL_NUMBER"
	case GroupHardwareInfo:
		return "LAN_GET_HWINFO"
	case GroupLogOff:
		return "LAN_LOGOFF"
	case GroupXBus:
		return "LAN_X"
	case GroupSetBroadcastFlags:
		return "LAN_SET_BROADCASTFLAGS"
	case GroupGetBroadcastFlags:
		return "LAN_GET_BROADCASTFLAGS"
	case GroupGetLocoMode:
		return "LAN_GET_LOCOMODE"
	case GroupSetLocoMode:
		return "LAN_SET_LOCOMODE"
	case GroupGetTurnoutMode:
		return "LAN_GET_TURNOUTMODE"
	case GroupSetTurnoutMode:
		return "LAN_SET_TURNOUTMODE"
	case GroupRMBusData:
		return "LAN_RMBUS_DATACHANGED"
	case GroupRMBusGetData:
		return "LAN_RMBUS_GETDATA"
	case GroupRMBusProgramModule:
		return "LAN_RMBUS_PROGRAMMODULE"
	case GroupSystemStateData:
		return "LAN_SYSTEMSTATE_DATACHANGED"
	case GroupSystemStateGetData:
		return "LAN_SYSTEMSTATE_GETDATA"
	case GroupRailComData:
		return "LAN_RAILCOM_DATACHANGED"
	case GroupRailComGetData:
		return "LAN_RAILCOM_GETDATA"
	case GroupLocoNetFromLAN:
		return "LAN_LOCONET_FROM_LAN"
	case GroupLocoNetDispatch:
		return "LAN_LOCONET_DISPATCH_ADDR"
	case GroupLocoNetDetector:
		return "LAN_LOCONET_DETECTOR"
	default:
		return "UNKNOWN"
	}
}

// FormatXBusHeader returns the X-bus command name for an inbound X-header
func FormatXBusHeader(header byte) string {
	switch header {
	case XStatus:
		return "LAN_X_STATUS"
	case XStatusChanged:
		return "LAN_X_STATUS_CHANGED"
	case XVersion:
		return "LAN_X_GET_VERSION"
	case XCVResult:
		return "LAN_X_CV_RESULT"
	case XLocLibData:
		return "LAN_X_LOC_LIB_DATA"
	case XLocoInfo:
		return "LAN_X_LOCO_INFO"
	case XFirmware:
		return "LAN_X_GET_FIRMWARE_VERSION"
	default:
		return "LAN_X_UNKNOWN"
	}
}

// FormatFrame formats a raw frame into a human-readable string
func FormatFrame(timestamp time.Time, frame []byte) string {
	if len(frame) < 3 {
		return fmt.Sprintf("[%s] TRUNCATED len=%d\n%s", timestamp.Format("15:04:05.000"), len(frame), formatHex(frame))
	}

	name := FormatGroup(frame[2])
	code := fmt.Sprintf("0x%02X", frame[2])
	if frame[2] == GroupXBus && len(frame) >= MinInboundSize {
		name = FormatXBusHeader(frame[4])
		code = fmt.Sprintf("0x%02X/0x%02X", frame[2], frame[4])
	}

	result := fmt.Sprintf("[%s] %s (%s) len=%d\n", timestamp.Format("15:04:05.000"), name, code, len(frame))
	if len(frame) > HeaderSize {
		result += formatHex(frame[HeaderSize:])
	}
	return result
}

// FormatEvent describes a decoded event using the codec's cached state
func FormatEvent(kind EventKind, c *Codec) string {
	switch kind {
	case EventLocoInfo:
		return FormatLocoInfo(c.LocoInfo())
	case EventProgrammingCVResult:
		r := c.CVResult()
		return fmt.Sprintf("  CV%d = %d (0x%02X)\n", r.CV, r.Value, r.Value)
	case EventVersionResponse:
		return fmt.Sprintf("  X-Bus version: 0x%04X\n", c.XBusVersion())
	case EventFirmwareVersionResponse:
		return fmt.Sprintf("  Firmware: %s\n", FormatFirmwareVersion(c.FirmwareVersion()))
	case EventLocLibData:
		e := c.LocLibEntry()
		return fmt.Sprintf("  Loc %d %q (%d/%d)\n", e.Address, e.Name, e.Index, e.Total)
	case EventNone:
		return ""
	default:
		return fmt.Sprintf("  %s\n", kind)
	}
}

// FormatLocoInfo formats cached locomotive state
func FormatLocoInfo(l LocoInfo) string {
	light := "off"
	if l.Light {
		light = "on"
	}
	result := fmt.Sprintf("  Loco %d: speed %d/%d (%s), %s, light %s",
		l.Address, l.Speed, MaxSpeed(l.Steps), l.Steps, l.Direction, light)
	if l.Occupied {
		result += ", occupied"
	}
	result += "\n"

	var active []string
	for n := 1; n <= 28; n++ {
		if l.Function(n) {
			active = append(active, fmt.Sprintf("F%d", n))
		}
	}
	if len(active) > 0 {
		result += fmt.Sprintf("  Functions: %s\n", strings.Join(active, " "))
	}
	return result
}

// FormatFirmwareVersion renders a BCD version word as major.minor
func FormatFirmwareVersion(v uint16) string {
	return fmt.Sprintf("%x.%02x", v>>8, v&0xFF)
}

func formatHex(data []byte) string {
	result := "  Payload: "
	for i, b := range data {
		if i > 0 && i%16 == 0 {
			result += "\n           "
		}
		result += fmt.Sprintf("%02X ", b)
	}
	return result + "\n"
}
