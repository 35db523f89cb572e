// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package keybus

import (
	"fmt"
	"strings"
)

// Formatter renders frames for people
type Formatter struct {
	HideDigits       bool
	ShowTrailingBits bool
}

// FormatCommand returns the human-readable name for a panel command
func FormatCommand(cmd byte) string {
	switch cmd {
	case CMD_STATUS:
		return "STATUS"
	case CMD_STATUS_PROGRAMMING:
		return "STATUS_PROGRAMMING"
	case CMD_ZONES_1_8:
		return "ZONES_1_8"
	case CMD_ZONES_9_16:
		return "ZONES_9_16"
	case CMD_ZONES_17_24:
		return "ZONES_17_24"
	case CMD_ZONES_25_32:
		return "ZONES_25_32"
	case CMD_DATE_TIME:
		return "DATE_TIME"
	default:
		return "UNKNOWN"
	}
}

// FormatLights lists the lit keypad lights
func FormatLights(lights byte) string {
	names := []struct {
		bit  byte
		name string
	}{
		{LIGHT_READY, "Ready"},
		{LIGHT_ARMED, "Armed"},
		{LIGHT_MEMORY, "Memory"},
		{LIGHT_BYPASS, "Bypass"},
		{LIGHT_TROUBLE, "Trouble"},
		{LIGHT_PROGRAM, "Program"},
		{LIGHT_FIRE, "Fire"},
		{LIGHT_BACKLIGHT, "Backlight"},
	}

	var lit []string
	for _, n := range names {
		if lights&n.bit != 0 {
			lit = append(lit, n.name)
		}
	}
	if len(lit) == 0 {
		return "Off"
	}
	return strings.Join(lit, " ")
}

// FormatStatusCode returns the partition status message for a status byte
func FormatStatusCode(code byte) string {
	switch code {
	case STATUS_READY:
		return "Partition ready"
	case STATUS_STAY_ZONES_OPEN:
		return "Stay/away zones open"
	case STATUS_ZONES_OPEN:
		return "Zones open"
	case STATUS_ARMED_STAY:
		return "Armed stay"
	case STATUS_ARMED_AWAY:
		return "Armed away"
	case STATUS_STAY_NO_DELAY:
		return "Armed stay with no entry delay"
	case STATUS_AWAY_NO_DELAY:
		return "Armed away with no entry delay"
	case STATUS_EXIT_DELAY:
		return "Exit delay in progress"
	case STATUS_ENTRY_DELAY:
		return "Entry delay in progress"
	case STATUS_ALARM:
		return "Partition in alarm"
	case STATUS_STAR_MENU:
		return "* menu"
	case STATUS_ACCESS_CODE_ENTRY:
		return "Enter access code"
	default:
		return fmt.Sprintf("Unknown status 0x%02X", code)
	}
}

// FormatEvent describes an event carried by a date/time broadcast
func FormatEvent(e Event) string {
	code := e.Code
	switch e.Type {
	case EVENT_PANEL:
		switch {
		case code >= 0x09 && code <= 0x28:
			return fmt.Sprintf("Zone alarm: %d", code-0x08)
		case code >= 0x29 && code <= 0x48:
			return fmt.Sprintf("Zone alarm restored: %d", code-0x28)
		case code == 0x4B:
			return "Partition alarm"
		case code == 0x4E:
			return "Keypad fire alarm"
		case code == 0x4F:
			return "Keypad aux alarm"
		case code == 0x50:
			return "Keypad panic alarm"
		case code == 0x52:
			return "Keypad fire alarm restored"
		case code == 0x53:
			return "Keypad aux alarm restored"
		case code == 0x54:
			return "Keypad panic alarm restored"
		case code == 0xE7:
			return "Battery trouble"
		case code == 0xE8:
			return "AC power trouble"
		case code == 0xEF:
			return "Battery restored"
		case code == 0xF0:
			return "AC power restored"
		}
	case EVENT_ARMING:
		switch code {
		case 0x93:
			return "Armed by keyswitch"
		case 0x96:
			return "Disarmed by keyswitch"
		case 0x9A:
			return "Armed stay"
		case 0x9B:
			return "Armed away"
		case 0x9C:
			return "Armed with no entry delay"
		}
	}
	return fmt.Sprintf("Unknown event 0x%02X (type %d)", code, e.Type)
}

// FormatTime renders a panel timestamp
func FormatTime(t PanelTime) string {
	return fmt.Sprintf("%04d.%02d.%02d %02d:%02d", t.Year, t.Month, t.Day, t.Hour, t.Minute)
}

// FormatBinary renders a frame as the bits seen on the wire, one group per
// byte with the stop bit on its own
func FormatBinary(f *Frame, trailing bool) string {
	var sb strings.Builder
	for i := 0; i < f.Len(); i++ {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if i == 1 {
			fmt.Fprintf(&sb, "%d", f.Data[1]&0x01)
			continue
		}
		fmt.Fprintf(&sb, "%08b", f.Data[i])
	}

	if n := f.TrailingBits(); trailing && n > 0 {
		if f.Len() > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%0*b", n, f.Data[f.Len()])
	}
	return sb.String()
}

// FormatHex renders the completed bytes of a frame in hex
func FormatHex(f *Frame) string {
	parts := make([]string, 0, f.Len())
	for i := 0; i < f.Len(); i++ {
		parts = append(parts, fmt.Sprintf("%02X", f.Data[i]))
	}
	return strings.Join(parts, " ")
}

// ParseBinary reads a frame rendered by FormatBinary. Spaces are ignored.
func ParseBinary(s string) (Frame, error) {
	bits := make([]bool, 0, ReadSize*8)
	for _, r := range s {
		switch r {
		case '0':
			bits = append(bits, false)
		case '1':
			bits = append(bits, true)
		case ' ', '\t':
		default:
			return Frame{}, fmt.Errorf("invalid bit character %q", r)
		}
	}
	if len(bits) == 0 {
		return Frame{}, fmt.Errorf("empty frame")
	}
	f, ok := FrameFromBits(bits)
	if !ok {
		return f, fmt.Errorf("frame exceeds %d bytes", ReadSize)
	}
	return f, nil
}

// PanelMessage describes a panel frame
func (fm Formatter) PanelMessage(f *Frame) string {
	cmd := f.Command()
	result := fmt.Sprintf("[Panel] %s (0x%02X)", FormatCommand(cmd), cmd)

	h, known := panelHandlers[cmd]
	if !known || h.payloadBytes(f) < h.minBytes {
		return result + " " + fm.Binary(f)
	}

	switch cmd {
	case CMD_STATUS, CMD_STATUS_PROGRAMMING:
		result += fmt.Sprintf(" Lights: %s | %s", FormatLights(f.Data[2]), FormatStatusCode(f.Data[3]))
	case CMD_ZONES_1_8, CMD_ZONES_9_16, CMD_ZONES_17_24, CMD_ZONES_25_32:
		result += fmt.Sprintf(" Lights: %s | %s", FormatLights(f.Data[2]), FormatStatusCode(f.Data[3]))
		result += " | Open zones: " + formatZoneGroup(zoneGroupFor(cmd), f.Data[6])
	case CMD_DATE_TIME:
		t := decodePanelTime(f)
		result += " " + FormatTime(t)
		if f.Data[6] != 0 || f.Data[7] != 0 {
			result += " | " + FormatEvent(Event{Type: f.Data[5] & eventTypeMask, Code: f.Data[6], Time: t})
		}
	}
	return result
}

// KeybusMessage describes a device reply
func (fm Formatter) KeybusMessage(d *DeviceFrame) string {
	result := "[Keypad]"
	switch d.Byte(0) {
	case KEYPAD_FIRE_ALARM:
		return result + " Fire alarm"
	case KEYPAD_AUX_ALARM:
		return result + " Aux alarm"
	case KEYPAD_PANIC_ALARM:
		return result + " Panic alarm"
	}

	if d.Panel == CMD_STATUS && d.Len() >= 3 && d.Data[2] != 0xFF {
		key, ok := keyForCode(d.Data[2])
		switch {
		case !ok:
			return fmt.Sprintf("%s Unknown key 0x%02X", result, d.Data[2])
		case fm.HideDigits && key >= '0' && key <= '9':
			return result + " [Digit]"
		default:
			return fmt.Sprintf("%s %s", result, keyName(key))
		}
	}
	return result + " " + fm.Binary(&d.Frame)
}

// Binary renders a frame honouring ShowTrailingBits
func (fm Formatter) Binary(f *Frame) string {
	return FormatBinary(f, fm.ShowTrailingBits)
}

// Keys renders a key sequence honouring HideDigits
func (fm Formatter) Keys(keys string) string {
	if fm.HideDigits {
		return maskDigits(keys)
	}
	return keys
}

func keyName(key byte) string {
	switch key {
	case 's':
		return "Stay"
	case 'w':
		return "Away"
	case 'c':
		return "Chime"
	case 'r':
		return "Reset"
	case 'x':
		return "Exit"
	default:
		return string([]byte{key})
	}
}

func zoneGroupFor(cmd byte) int {
	switch cmd {
	case CMD_ZONES_9_16:
		return 1
	case CMD_ZONES_17_24:
		return 2
	case CMD_ZONES_25_32:
		return 3
	default:
		return 0
	}
}

func formatZoneGroup(group int, bits byte) string {
	var zones []string
	for b := 0; b < 8; b++ {
		if bits&(1<<uint(b)) != 0 {
			zones = append(zones, fmt.Sprintf("%d", group*8+b+1))
		}
	}
	if len(zones) == 0 {
		return "none"
	}
	return strings.Join(zones, " ")
}

func maskDigits(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= '0' && c <= '9' {
			b[i] = '*'
		}
	}
	return string(b)
}
