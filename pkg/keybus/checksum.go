// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package keybus

// CalculateChecksum sums every byte except the stop-bit byte, mod 256
func CalculateChecksum(data []byte) byte {
	var sum byte
	for i, b := range data {
		if i == 1 {
			continue
		}
		sum += b
	}
	return sum
}

// ValidChecksum reports whether the byte that closes the frame matches the
// checksum of every byte before it.
func ValidChecksum(f *Frame) bool {
	if f.Bits < minCheckBits {
		return false
	}
	n := (int(f.Bits) - 1) / 8
	if n >= int(f.Bytes) || n >= ReadSize {
		return false
	}
	return CalculateChecksum(f.Data[:n]) == f.Data[n]
}
