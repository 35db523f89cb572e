// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package keybus

// Frame is one captured bus transmission in a single direction.
//
// Byte 0 is the command, byte 1 holds only the stop bit and payload starts at
// byte 2. Bits counts every captured bit; Bytes counts completed bytes. Bits
// past the last completed byte sit right-aligned in Data[Bytes].
type Frame struct {
	Data  [ReadSize]byte
	Bits  uint8
	Bytes uint8
}

// DeviceFrame is a device reply captured during the same cycle as a panel
// command.
type DeviceFrame struct {
	Frame
	Panel byte // panel command byte of the cycle
}

// Command returns the first byte of the frame
func (f *Frame) Command() byte {
	return f.Data[0]
}

// Byte returns byte i, or 0 if the frame is too short to contain it
func (f *Frame) Byte(i int) byte {
	if i < 0 || i >= int(f.Bytes) {
		return 0
	}
	return f.Data[i]
}

// Len returns the number of completed bytes
func (f *Frame) Len() int {
	return int(f.Bytes)
}

// TrailingBits returns the number of bits captured past the last full byte
func (f *Frame) TrailingBits() int {
	return int(f.Bits) - bitsForBytes(int(f.Bytes))
}

// Equal reports whether two frames hold the same bits
func (f *Frame) Equal(o *Frame) bool {
	if f.Bits != o.Bits || f.Bytes != o.Bytes {
		return false
	}
	n := int(f.Bytes)
	if f.TrailingBits() > 0 && n < ReadSize {
		n++
	}
	for i := 0; i < n; i++ {
		if f.Data[i] != o.Data[i] {
			return false
		}
	}
	return true
}

// EqualSpan reports whether the first n bytes of two frames match. A span of
// zero, or one longer than either frame, compares the whole frame.
func (f *Frame) EqualSpan(o *Frame, n int) bool {
	if n <= 0 || n > int(f.Bytes) || n > int(o.Bytes) {
		return f.Equal(o)
	}
	for i := 0; i < n; i++ {
		if f.Data[i] != o.Data[i] {
			return false
		}
	}
	return true
}

// isIdle reports whether every data byte reads as a released line
func (f *Frame) isIdle() bool {
	for i := 0; i < int(f.Bytes); i++ {
		if i == 1 {
			continue
		}
		if f.Data[i] != 0xFF {
			return false
		}
	}
	return true
}

// bitsForBytes returns the bit count needed to complete n bytes
func bitsForBytes(n int) int {
	switch {
	case n <= 0:
		return 0
	case n == 1:
		return 8
	default:
		return stopBitIndex + (n-2)*8
	}
}

// assembler accumulates bits MSB first into a frame, placing the stop bit
// alone in byte 1.
type assembler struct {
	frame     Frame
	bitInByte uint8
}

// push appends one bit. It returns false once the frame is full.
func (a *assembler) push(bit bool) bool {
	f := &a.frame
	if int(f.Bytes) >= ReadSize {
		return false
	}

	f.Data[f.Bytes] <<= 1
	if bit {
		f.Data[f.Bytes] |= 1
	}
	f.Bits++
	a.bitInByte++

	if f.Bits == stopBitIndex || a.bitInByte == 8 {
		f.Bytes++
		a.bitInByte = 0
	}
	return true
}

// reset clears the frame for the next capture
func (a *assembler) reset() {
	a.frame = Frame{}
	a.bitInByte = 0
}

// FrameFromBits assembles a bit sequence the same way the bus capture does.
// Bits beyond ReadSize bytes are dropped and reported with ok=false.
func FrameFromBits(bits []bool) (f Frame, ok bool) {
	var a assembler
	ok = true
	for _, b := range bits {
		if !a.push(b) {
			ok = false
			break
		}
	}
	return a.frame, ok
}

// FrameBits expands complete bytes into the bit sequence sent on the wire.
// Only the low bit of data[1] is sent.
func FrameBits(data []byte) []bool {
	bits := make([]bool, 0, len(data)*8)
	for i, b := range data {
		if i == 1 {
			bits = append(bits, b&0x01 != 0)
			continue
		}
		for j := 7; j >= 0; j-- {
			bits = append(bits, (b>>uint(j))&0x01 != 0)
		}
	}
	return bits
}

// NewFrame builds a frame from complete bytes
func NewFrame(data ...byte) Frame {
	f, _ := FrameFromBits(FrameBits(data))
	return f
}
