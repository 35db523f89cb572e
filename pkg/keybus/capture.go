// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package keybus

import "time"

// capture is the interrupt-side state. Every field is guarded by
// Interface.capMu.
type capture struct {
	panel  assembler
	device assembler

	synced bool // a cycle start has been seen since Begin

	lastEdge time.Duration
	risingAt time.Duration
	highTime time.Duration

	driving bool // data line held low for the current device bit
}

// inProgress reports whether any bit of the current cycle was captured
func (c *capture) inProgress() bool {
	return c.panel.frame.Bits > 0 || c.device.frame.Bits > 0
}

// clockEdge runs on every clock transition.
//
// A rising edge releases any bit the writer drove during the low phase. A
// falling edge that ends a long clock-high period starts a new cycle, and
// every falling edge opens the device reply slot for the writer. Both arm the
// one-shot sample.
func (i *Interface) clockEdge(high bool) {
	now := i.board.Now()

	i.capMu.Lock()
	c := &i.bus
	c.lastEdge = now
	if high {
		c.risingAt = now
		if c.driving {
			i.board.DriveData(false)
			c.driving = false
		}
	} else {
		c.highTime = now - c.risingAt
		if c.highTime > ResetThreshold {
			if c.synced {
				i.endFrameLocked()
			}
			c.synced = true
		}
		if c.synced {
			i.writeSlotLocked()
		}
	}
	synced := c.synced
	i.capMu.Unlock()

	if synced {
		i.board.After(SampleDelay, i.sample)
	}
}

// sample reads the data line once it has settled after an edge. Clock high
// means the panel is sending, clock low means a device is replying.
func (i *Interface) sample() {
	clock := i.board.ReadClock()
	data := i.board.ReadData()

	i.capMu.Lock()
	defer i.capMu.Unlock()

	c := &i.bus
	if clock {
		if !c.panel.push(data) {
			i.dataOverflow.Store(true)
		}
		return
	}
	if i.cfg.ProcessDeviceData && !c.device.push(data) {
		i.dataOverflow.Store(true)
	}
}

// writeSlotLocked drives the next bit of the pending key during the device
// reply slot. The slot is numbered by the panel bits sent so far: alarm keys
// occupy slots 0-7 and regular keys slots 9-16 of a status command. A zero
// bit is written by pulling the data line low until the next rising edge.
func (i *Interface) writeSlotLocked() {
	w := &i.w
	if !w.alarmRepeat && !w.ready.Load() {
		return
	}

	key := w.keys[w.next]
	slot := int(i.bus.panel.frame.Bits)

	if key.alarm {
		if slot > 7 {
			return
		}
		i.driveBitLocked(key.code, 7-slot)
		if slot == 7 {
			if w.alarmRepeat {
				w.alarmRepeat = false
				w.advance()
			} else {
				// Alarm keys are sent on two consecutive cycles
				w.alarmRepeat = true
				w.ready.Store(false)
			}
		}
		return
	}

	if slot < stopBitIndex || slot > 16 || i.bus.panel.frame.Data[0] != CMD_STATUS {
		return
	}
	i.driveBitLocked(key.code, 16-slot)
	if slot == 16 {
		w.ready.Store(false)
		if key.asterisk {
			w.wroteAsterisk.Store(true)
		}
		w.advance()
	}
}

func (i *Interface) driveBitLocked(code byte, bit int) {
	if (code>>uint(bit))&0x01 == 0 {
		i.board.DriveData(true)
		i.bus.driving = true
	}
}
