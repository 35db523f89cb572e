// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package keybus

import (
	"fmt"
	"time"
)

// Statistics tracks frame counts and error rates
type Statistics struct {
	StartTime time.Time

	// Panel frames
	TotalFrames     uint64
	ValidFrames     uint64
	ChecksumErrors  uint64
	ShortFrames     uint64
	RedundantFrames uint64
	UnknownCommands uint64

	// Device replies
	DeviceFrames uint64
	Keypresses   uint64

	// Overflows, counted once per ClearOverflow
	DataOverflows   uint64
	BufferOverflows uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	return &Statistics{StartTime: time.Now()}
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.ErrorRate = float64(s.ChecksumErrors+s.ShortFrames) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var validPercent, checksumPercent float64
	if s.TotalFrames > 0 {
		validPercent = float64(s.ValidFrames) * 100.0 / float64(s.TotalFrames)
		checksumPercent = float64(s.ChecksumErrors) * 100.0 / float64(s.TotalFrames)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Panel Frames:    %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Valid Frames:    %8d (%.1f%%)\n", s.ValidFrames, validPercent)

	if s.ChecksumErrors > 0 {
		result += fmt.Sprintf("Checksum Errors: %8d (%.1f%%)\n", s.ChecksumErrors, checksumPercent)
	}
	if s.ShortFrames > 0 {
		result += fmt.Sprintf("Short Frames:    %8d\n", s.ShortFrames)
	}
	if s.RedundantFrames > 0 {
		result += fmt.Sprintf("Redundant:       %8d\n", s.RedundantFrames)
	}
	if s.UnknownCommands > 0 {
		result += fmt.Sprintf("Unknown Cmds:    %8d\n", s.UnknownCommands)
	}
	if s.DeviceFrames > 0 {
		result += fmt.Sprintf("Device Frames:   %8d\n", s.DeviceFrames)
		result += fmt.Sprintf("  Keypresses:       %5d\n", s.Keypresses)
	}
	if s.DataOverflows > 0 || s.BufferOverflows > 0 {
		result += fmt.Sprintf("Overflows:       %8d data, %d buffer\n", s.DataOverflows, s.BufferOverflows)
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = Statistics{StartTime: time.Now()}
}
