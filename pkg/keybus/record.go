// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package keybus

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Direction identifies who sent a recorded frame
type Direction uint8

const (
	DirectionPanel Direction = iota
	DirectionDevice
)

// Record is one captured frame as stored in a CBOR capture file
type Record struct {
	Time  int64     `cbor:"1,keyasint"` // microseconds since capture start
	Dir   Direction `cbor:"2,keyasint"`
	Bits  uint8     `cbor:"3,keyasint"`
	Data  []byte    `cbor:"4,keyasint"`
	Panel byte      `cbor:"5,keyasint,omitempty"` // panel command of a device reply
}

// NewPanelRecord records a panel frame
func NewPanelRecord(at time.Duration, f *Frame) Record {
	return Record{
		Time: at.Microseconds(),
		Dir:  DirectionPanel,
		Bits: f.Bits,
		Data: frameBytes(f),
	}
}

// NewDeviceRecord records a device reply
func NewDeviceRecord(at time.Duration, d *DeviceFrame) Record {
	return Record{
		Time:  at.Microseconds(),
		Dir:   DirectionDevice,
		Bits:  d.Bits,
		Data:  frameBytes(&d.Frame),
		Panel: d.Panel,
	}
}

// frameBytes returns the completed bytes plus any partial trailing byte
func frameBytes(f *Frame) []byte {
	n := f.Len()
	if f.TrailingBits() > 0 {
		n++
	}
	out := make([]byte, n)
	copy(out, f.Data[:n])
	return out
}

// bytesForBits returns the completed byte count for a bit count
func bytesForBits(bits int) int {
	switch {
	case bits < 8:
		return 0
	case bits < stopBitIndex:
		return 1
	default:
		n := 2 + (bits-stopBitIndex)/8
		if n > ReadSize {
			n = ReadSize
		}
		return n
	}
}

// Frame rebuilds the captured frame
func (r *Record) Frame() (Frame, error) {
	var f Frame
	if len(r.Data) > ReadSize {
		return f, fmt.Errorf("record holds %d bytes (max %d)", len(r.Data), ReadSize)
	}
	n := bytesForBits(int(r.Bits))
	if n > len(r.Data) {
		return f, fmt.Errorf("record has %d bits but only %d bytes", r.Bits, len(r.Data))
	}
	copy(f.Data[:], r.Data)
	f.Bits = r.Bits
	f.Bytes = uint8(n)
	return f, nil
}

// DeviceFrame rebuilds a recorded device reply
func (r *Record) DeviceFrame() (DeviceFrame, error) {
	f, err := r.Frame()
	return DeviceFrame{Frame: f, Panel: r.Panel}, err
}

// RecordWriter appends records to a CBOR stream
type RecordWriter struct {
	enc *cbor.Encoder
}

// NewRecordWriter creates a writer on w
func NewRecordWriter(w io.Writer) *RecordWriter {
	return &RecordWriter{enc: cbor.NewEncoder(w)}
}

// Write encodes one record
func (w *RecordWriter) Write(r Record) error {
	if err := w.enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	return nil
}

// RecordReader reads records from a CBOR stream
type RecordReader struct {
	dec *cbor.Decoder
}

// NewRecordReader creates a reader on r
func NewRecordReader(r io.Reader) *RecordReader {
	return &RecordReader{dec: cbor.NewDecoder(r)}
}

// Read decodes the next record. It returns io.EOF at the end of the stream.
func (r *RecordReader) Read() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return rec, io.EOF
		}
		return rec, fmt.Errorf("failed to decode record: %w", err)
	}
	return rec, nil
}
