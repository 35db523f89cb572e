// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package keybus

// ZoneBitmap holds one bit per zone. Zone 1 is bit 0 of group 0.
type ZoneBitmap [ZoneGroups]byte

// MaxZones is the number of zones a bitmap can address
const MaxZones = ZoneGroups * 8

// Zone reports whether zone n (1-based) is set
func (b *ZoneBitmap) Zone(n int) bool {
	if n < 1 || n > MaxZones {
		return false
	}
	n--
	return b[n/8]&(1<<uint(n%8)) != 0
}

// Set sets or clears zone n (1-based)
func (b *ZoneBitmap) Set(n int, on bool) {
	if n < 1 || n > MaxZones {
		return
	}
	n--
	if on {
		b[n/8] |= 1 << uint(n%8)
	} else {
		b[n/8] &^= 1 << uint(n%8)
	}
}

// List returns the set zones in ascending order
func (b *ZoneBitmap) List() []int {
	var zones []int
	for n := 1; n <= MaxZones; n++ {
		if b.Zone(n) {
			zones = append(zones, n)
		}
	}
	return zones
}

// Any reports whether any zone is set
func (b *ZoneBitmap) Any() bool {
	for _, g := range b {
		if g != 0 {
			return true
		}
	}
	return false
}

// Zones tracks open and alarmed zones. The Changed bitmaps accumulate every
// bit that flipped until ClearChanged, so a zone that opens and closes again
// between two calls still reads as changed. Call ClearChanged after reading
// to see only the transitions of the next frame.
type Zones struct {
	Open         ZoneBitmap
	OpenChanged  ZoneBitmap
	Alarm        ZoneBitmap
	AlarmChanged ZoneBitmap
	Changed      bool
}

// setOpenGroup replaces one group of open zones
func (z *Zones) setOpenGroup(group int, bits byte) {
	if diff := z.Open[group] ^ bits; diff != 0 {
		z.OpenChanged[group] |= diff
		z.Open[group] = bits
		z.Changed = true
	}
}

// setAlarm sets or clears the alarm bit for zone n (1-based)
func (z *Zones) setAlarm(n int, on bool) {
	if z.Alarm.Zone(n) == on {
		return
	}
	z.Alarm.Set(n, on)
	z.AlarmChanged.Set(n, true)
	z.Changed = true
}

func (z *Zones) clearChanged() {
	z.OpenChanged = ZoneBitmap{}
	z.AlarmChanged = ZoneBitmap{}
	z.Changed = false
}
