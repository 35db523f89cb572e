// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package keybus

// Keypress is a key decoded from a device reply
type Keypress struct {
	Key  byte // keypad character, '?' when the code is unknown
	Code byte
}

// Keypad is the state decoded from device replies
type Keypad struct {
	Last    Keypress
	Changed bool
}

// HandleKeybus pops the next device reply. It returns true when a new reply
// that is neither idle nor a repeat was decoded.
func (i *Interface) HandleKeybus() bool {
	if !i.cfg.ProcessDeviceData {
		return false
	}

	var d DeviceFrame
	if !i.deviceQ.pop(&d) {
		return false
	}
	i.Stats.DeviceFrames++
	if d.isIdle() {
		return false
	}

	redundant := i.deviceSeen && d.Panel == i.device.Panel && d.Equal(&i.device.Frame)
	i.device = d
	i.deviceSeen = true
	if redundant && !i.cfg.ProcessRedundantData {
		return false
	}

	i.decodeDevice(&d)
	return true
}

// decodeDevice recognises keypad alarm keys in byte 0 and regular keys in
// byte 2 of a status cycle.
func (i *Interface) decodeDevice(d *DeviceFrame) {
	switch d.Byte(0) {
	case KEYPAD_FIRE_ALARM:
		i.keypress(Keypress{Key: 'F', Code: KEYPAD_FIRE_ALARM})
		return
	case KEYPAD_AUX_ALARM:
		i.keypress(Keypress{Key: 'A', Code: KEYPAD_AUX_ALARM})
		return
	case KEYPAD_PANIC_ALARM:
		i.keypress(Keypress{Key: 'P', Code: KEYPAD_PANIC_ALARM})
		return
	}

	if d.Panel != CMD_STATUS || d.Len() < 3 || d.Data[2] == 0xFF {
		return
	}
	code := d.Data[2]
	key, ok := keyForCode(code)
	if !ok {
		key = '?'
	}
	i.keypress(Keypress{Key: key, Code: code})
}

func (i *Interface) keypress(k Keypress) {
	i.Keypad.Last = k
	i.Keypad.Changed = true
	i.Stats.Keypresses++
}
