// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sim

import "github.com/Thermoquad/keybusstat/pkg/keybus"

// PanelFrame builds a panel frame: command, stop bit, payload and checksum
func PanelFrame(cmd byte, payload ...byte) []byte {
	data := make([]byte, 0, len(payload)+3)
	data = append(data, cmd, 0)
	data = append(data, payload...)
	return append(data, keybus.CalculateChecksum(data))
}

// StatusFrame builds a 0x05 status frame for partition 1
func StatusFrame(lights, status byte) []byte {
	return PanelFrame(keybus.CMD_STATUS, lights, status, 0x00, 0x00)
}

// ZoneFrame builds a status frame that carries one group of open zones
func ZoneFrame(cmd, lights, status, open byte) []byte {
	return PanelFrame(cmd, lights, status, 0x00, 0x00, open)
}

// DateTimeFrame builds a 0xA5 broadcast. An event code of 0 sends the time
// alone.
func DateTimeFrame(t keybus.PanelTime, eventType, event byte) []byte {
	y := t.Year % 100
	return PanelFrame(keybus.CMD_DATE_TIME,
		byte(y/10)<<4|byte(y%10),
		byte(t.Month)<<2|byte(t.Day>>3)&0x03,
		byte(t.Day&0x07)<<5|byte(t.Hour),
		byte(t.Minute)<<2|eventType&0x03,
		event,
		0x00,
	)
}

// KeyReply builds a keypad reply carrying a key code in byte 2
func KeyReply(code byte) []byte {
	return []byte{0xFF, 0x01, code}
}

// AlarmReply builds a keypad reply carrying an alarm key in byte 0
func AlarmReply(code byte) []byte {
	return []byte{code, 0x01, 0xFF}
}

// KeyPress builds the reply a keypad sends for a key, or nil for an
// unsupported key
func KeyPress(key byte) []byte {
	code, alarm, ok := keybus.KeyCode(key)
	switch {
	case !ok:
		return nil
	case alarm:
		return AlarmReply(code)
	}
	return KeyReply(code)
}
