// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package keybus

import "time"

// Frame Size Limits
const (
	ReadSize     = 16 // bytes captured per frame, including the stop-bit byte
	ZoneGroups   = 8  // 8 zones per group
	MaxWriteKeys = 16 // keys accepted by a single write job

	stopBitIndex = 9 // the 9th bit of a frame sits alone in byte 1
	minFrameBits = 8 // shorter captures are line noise
	minCheckBits = 25
)

// Bus Timing
//
// The panel clocks the bus at a nominal 1kHz. It drives data while the clock
// is high and devices reply while the clock is low.
const (
	BitPeriod      = 1000 * time.Microsecond
	SampleDelay    = 250 * time.Microsecond  // data is stable this long after an edge
	ResetThreshold = 1000 * time.Microsecond // clock high longer than this ends a cycle
	IdleThreshold  = 2000 * time.Microsecond // no edge for this long ends a frame
	TimerPeriod    = 250 * time.Microsecond
)

// Writer Configuration
const (
	AsteriskHoldCycles = 10 // status frames to wait for the '*' menu prompt
)

// Panel Commands
const (
	CMD_STATUS             = 0x05
	CMD_STATUS_PROGRAMMING = 0x0A
	CMD_ZONES_1_8          = 0x27
	CMD_ZONES_9_16         = 0x2D
	CMD_ZONES_17_24        = 0x34
	CMD_ZONES_25_32        = 0x3E
	CMD_DATE_TIME          = 0xA5
)

// Keypad Commands (device byte 0)
const (
	KEYPAD_FIRE_ALARM  = 0x77
	KEYPAD_AUX_ALARM   = 0xBB
	KEYPAD_PANIC_ALARM = 0xDD
)

// Status Lights (panel byte 2)
const (
	LIGHT_READY     = 0x01
	LIGHT_ARMED     = 0x02
	LIGHT_MEMORY    = 0x04
	LIGHT_BYPASS    = 0x08
	LIGHT_TROUBLE   = 0x10
	LIGHT_PROGRAM   = 0x20
	LIGHT_FIRE      = 0x40
	LIGHT_BACKLIGHT = 0x80
)

// Partition Status Codes (panel byte 3)
const (
	STATUS_READY             = 0x01
	STATUS_STAY_ZONES_OPEN   = 0x02
	STATUS_ZONES_OPEN        = 0x03
	STATUS_ARMED_STAY        = 0x04
	STATUS_ARMED_AWAY        = 0x05
	STATUS_STAY_NO_DELAY     = 0x06
	STATUS_AWAY_NO_DELAY     = 0x07
	STATUS_EXIT_DELAY        = 0x08
	STATUS_ENTRY_DELAY       = 0x0C
	STATUS_ALARM             = 0x11
	STATUS_STAR_MENU         = 0x9E
	STATUS_ACCESS_CODE_ENTRY = 0x9F
)

// Date/time broadcast sub-types (panel byte 5, bits 0-1)
const (
	EVENT_PANEL   = 0x00
	EVENT_ARMING  = 0x02
	eventTypeMask = 0x03
)
