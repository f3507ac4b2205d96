// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package z21

import "errors"

var (
	ErrTruncatedFrame     = errors.New("z21: truncated frame")
	ErrUnrecognizedGroup  = errors.New("z21: unrecognized command group")
	ErrUnknownSpeedSteps  = errors.New("z21: unknown speed steps")
	ErrSpeedOutOfRange    = errors.New("z21: speed out of range")
	ErrFunctionOutOfRange = errors.New("z21: function number out of range")
	ErrCVOutOfRange       = errors.New("z21: cv number out of range")
	ErrNameTooLong        = errors.New("z21: loc library name too long")
	ErrFrameLength        = errors.New("z21: invalid frame length")
)
