// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package z21

// ToWireAddress converts a logical locomotive address to its wire form.
// Long addresses (>= 128) carry the 0xC000 marker in the top two bits.
func ToWireAddress(address uint16) uint16 {
	if address > maxShortAddress {
		return address | longAddressMarker
	}
	return address
}

// FromWireAddress converts a wire address back to the logical address.
// The marker is stripped only when present; other values pass through.
func FromWireAddress(wire uint16) uint16 {
	if wire > maxShortAddress && wire&longAddressMarker == longAddressMarker {
		return wire &^ longAddressMarker
	}
	return wire
}
