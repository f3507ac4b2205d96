// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Thermoquad/signalbox/pkg/z21"
)

const (
	maxLocoAddress    = 9999
	maxTurnoutAddress = 2047
)

func parseLocoAddress(s string) (uint16, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	if err != nil || n < 1 || n > maxLocoAddress {
		return 0, fmt.Errorf("invalid loco address %q (1-%d)", s, maxLocoAddress)
	}
	return uint16(n), nil
}

func parseTurnoutAddress(s string) (uint16, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	if err != nil || n > maxTurnoutAddress {
		return 0, fmt.Errorf("invalid turnout address %q (0-%d)", s, maxTurnoutAddress)
	}
	return uint16(n), nil
}

func parseCV(s string) (uint16, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	if err != nil || n < z21.MinCV || n > z21.MaxCV {
		return 0, fmt.Errorf("invalid CV %q (%d-%d)", s, z21.MinCV, z21.MaxCV)
	}
	return uint16(n), nil
}

// parseByte accepts decimal, 0x hex or 0b binary
func parseByte(s string) (uint8, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q (0-255)", s)
	}
	return uint8(n), nil
}

func parseFunction(s string) (uint8, error) {
	digits := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "F")
	n, err := strconv.ParseUint(digits, 10, 8)
	if err != nil || n > z21.MaxFunction {
		return 0, fmt.Errorf("invalid function %q (F0-F%d)", s, z21.MaxFunction)
	}
	return uint8(n), nil
}

func parseFunctionMode(s string) (z21.FunctionMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on":
		return z21.FunctionOn, nil
	case "off":
		return z21.FunctionOff, nil
	case "toggle":
		return z21.FunctionToggle, nil
	}
	return 0, fmt.Errorf("invalid function mode %q (on, off or toggle)", s)
}

func parseTurnoutDirection(s string) (z21.TurnoutDirection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "turn", "diverging":
		return z21.TurnoutTurn, nil
	case "forward", "straight":
		return z21.TurnoutForward, nil
	case "off":
		return z21.TurnoutOff, nil
	}
	return 0, fmt.Errorf("invalid turnout direction %q (turn, forward or off)", s)
}
