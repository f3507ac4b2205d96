// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package z21

// CalculateChecksum computes the X-bus XOR byte over the payload.
// The first byte seeds the accumulator, so a single-byte payload yields
// that byte unchanged. An empty payload yields 0.
func CalculateChecksum(payload []byte) byte {
	if len(payload) == 0 {
		return 0
	}
	sum := payload[0]
	for _, b := range payload[1:] {
		sum ^= b
	}
	return sum
}
