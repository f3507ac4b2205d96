// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package z21

import "fmt"

// speed28ToDCC maps a normalized 0..28 speed to the DCC 28-step code.
var speed28ToDCC = [29]uint8{
	16, 2, 18, 3, 19, 4, 20, 5, 21, 6, 22, 7, 23, 8, 24, 9,
	25, 10, 26, 11, 27, 12, 28, 13, 29, 14, 30, 15, 31,
}

// speed28FromDCC maps a DCC 28-step code back to the normalized speed.
// Codes 0, 1, 16 and 17 are stop and emergency stop.
var speed28FromDCC = [32]uint8{
	0, 0, 1, 3, 5, 7, 9, 11, 13, 15, 17, 19, 21, 23, 25, 27,
	0, 0, 2, 4, 6, 8, 10, 12, 14, 16, 18, 20, 22, 24, 26, 28,
}

// MaxSpeed returns the highest normalized speed for a step mode,
// or 0 for StepsUnknown.
func MaxSpeed(steps SpeedSteps) uint8 {
	switch steps {
	case Steps14:
		return 14
	case Steps28:
		return 28
	case Steps128:
		return 127
	}
	return 0
}

// encodeDrive returns the step opcode and the direction|speed byte for
// LAN_X_SET_LOCO_DRIVE.
func encodeDrive(loco LocoInfo) (opcode, speed byte, err error) {
	if loco.Steps < Steps14 || loco.Steps >= StepsUnknown {
		return 0, 0, fmt.Errorf("%w: %d", ErrUnknownSpeedSteps, loco.Steps)
	}
	if loco.Speed > MaxSpeed(loco.Steps) {
		return 0, 0, fmt.Errorf("%w: %d > %d (%s)", ErrSpeedOutOfRange, loco.Speed, MaxSpeed(loco.Steps), loco.Steps)
	}

	switch loco.Steps {
	case Steps14:
		opcode = driveSteps14
		speed = loco.Speed
		// 1 is emergency stop on the wire
		if speed > 0 {
			speed++
		}
	case Steps28:
		opcode = driveSteps28
		speed = speed28ToDCC[loco.Speed]
	case Steps128:
		opcode = driveSteps128
		speed = loco.Speed & 0x7F
	}

	if loco.Direction == DirectionForward {
		speed |= 0x80
	}
	return opcode, speed, nil
}

// decodeSpeed unpacks the speed byte of a loco-info reply for the given
// step mode. The direction bit is ignored.
func decodeSpeed(steps SpeedSteps, raw byte) uint8 {
	raw &= 0x7F
	switch steps {
	case Steps14:
		if raw > 0 {
			raw--
		}
		return raw
	case Steps28:
		return speed28FromDCC[raw&0x1F]
	case Steps128:
		return raw
	}
	return 0
}

// stepsFromWire maps bits 0-2 of the loco-info mode byte.
func stepsFromWire(b byte) SpeedSteps {
	switch b & 0x07 {
	case 0:
		return Steps14
	case 2:
		return Steps28
	case 4:
		return Steps128
	}
	return StepsUnknown
}
