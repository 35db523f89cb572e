// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package keybus

import "time"

// Board binds the driver to the clock, data and optional write lines and to
// the timers that stand in for hardware interrupts.
//
// Callbacks registered through OnClockEdge, After and StartTimer run in
// interrupt context: they must not block and must return quickly.
type Board interface {
	// ReadClock returns true while the clock line is high
	ReadClock() bool
	// ReadData returns true while the data line is high
	ReadData() bool
	// DriveData pulls the data line low while low is true and releases it
	// otherwise. Boards without a write line ignore it.
	DriveData(low bool)
	// CanWrite reports whether a write line is bound
	CanWrite() bool

	// Now returns a monotonic timestamp
	Now() time.Duration

	// OnClockEdge registers the clock edge handler. high is the new level.
	OnClockEdge(fn func(high bool)) error
	// After calls fn once, d from now
	After(d time.Duration, fn func())
	// StartTimer calls fn every period until Close
	StartTimer(period time.Duration, fn func()) error

	Close() error
}
