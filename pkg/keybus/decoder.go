// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package keybus

// panelHandler decodes one panel command
type panelHandler struct {
	// minBytes is the number of bytes the handler reads, not counting a
	// checksum byte
	minBytes int
	// checksum marks commands closed by a checksum byte. Status commands
	// carry none.
	checksum bool
	// span limits the redundancy comparison to the first span bytes. Zero
	// compares the whole frame.
	span int
	// alwaysSuppress drops repeats even when ProcessRedundantData is set
	alwaysSuppress bool
	decode         func(i *Interface, f *Frame)
}

var panelHandlers = map[byte]panelHandler{
	CMD_STATUS:             {minBytes: 4, decode: (*Interface).decodeStatus},
	CMD_STATUS_PROGRAMMING: {minBytes: 4, alwaysSuppress: true, decode: (*Interface).decodeStatus},
	CMD_ZONES_1_8:          {minBytes: 7, checksum: true, decode: zoneDecoder(0)},
	CMD_ZONES_9_16:         {minBytes: 7, checksum: true, decode: zoneDecoder(1)},
	CMD_ZONES_17_24:        {minBytes: 7, checksum: true, decode: zoneDecoder(2)},
	CMD_ZONES_25_32:        {minBytes: 7, checksum: true, decode: zoneDecoder(3)},
	CMD_DATE_TIME:          {minBytes: 8, checksum: true, decode: (*Interface).decodeDateTime},
}

// lookupHandler returns the handler for cmd. Unknown commands get a
// checksum-only handler.
func lookupHandler(cmd byte) (panelHandler, bool) {
	h, known := panelHandlers[cmd]
	if !known {
		return panelHandler{checksum: true}, false
	}
	return h, true
}

// checkedBytes returns the number of bytes ahead of the checksum byte
func checkedBytes(f *Frame) int {
	return (int(f.Bits) - 1) / 8
}

// payloadBytes returns the number of bytes h can read from f
func (h panelHandler) payloadBytes(f *Frame) int {
	if h.checksum {
		return checkedBytes(f)
	}
	return int(f.Bytes)
}

// redundantSpan returns the number of leading bytes compared against the
// last frame for cmd
func (i *Interface) redundantSpan(cmd byte, h panelHandler) int {
	if n, ok := i.cfg.RedundantSpan[cmd]; ok {
		return n
	}
	return h.span
}

// decodePanel applies a panel frame that passed integrity checks. It returns
// false for suppressed repeats and frames too short for their command.
func (i *Interface) decodePanel(f *Frame, h panelHandler, known bool) bool {
	cmd := f.Command()
	if known && h.payloadBytes(f) < h.minBytes {
		i.Stats.ShortFrames++
		return false
	}

	// The '*' latch counts every status frame, including repeats
	if cmd == CMD_STATUS {
		i.checkAsteriskPrompt(f)
	}

	prev, seen := i.last[cmd]
	i.last[cmd] = *f
	if seen && prev.EqualSpan(f, i.redundantSpan(cmd, h)) {
		i.Stats.RedundantFrames++
		if !i.cfg.ProcessRedundantData || h.alwaysSuppress {
			return false
		}
	}

	if !known {
		i.Stats.UnknownCommands++
		return true
	}
	h.decode(i, f)
	return true
}

// decodeStatus handles the lights and status bytes shared by every status
// command
func (i *Interface) decodeStatus(f *Frame) {
	i.Status.applyLights(f.Data[2])
	i.Status.applyCode(f.Data[3])
}

// zoneDecoder returns a handler for a status command that also carries one
// group of open zones in byte 6
func zoneDecoder(group int) func(i *Interface, f *Frame) {
	return func(i *Interface, f *Frame) {
		i.decodeStatus(f)
		i.Zones.setOpenGroup(group, f.Data[6])
	}
}

// decodeDateTime handles command 0xA5: the panel clock followed by an
// optional event.
func (i *Interface) decodeDateTime(f *Frame) {
	d := &f.Data
	t := decodePanelTime(f)
	valid := i.Status.setTime(t)

	if d[6] == 0 && d[7] == 0 {
		if valid {
			i.Status.TimeAvailable = true
		}
		return
	}

	e := Event{Type: d[5] & eventTypeMask, Code: d[6], Time: t}
	switch e.Type {
	case EVENT_PANEL:
		i.panelEvent(e.Code)
	case EVENT_ARMING:
		i.armingEvent(e.Code)
	}
	i.Status.setEvent(e)
}

// decodePanelTime unpacks the packed date in bytes 2-5 of command 0xA5
func decodePanelTime(f *Frame) PanelTime {
	d := &f.Data
	t := PanelTime{
		Year:   int(d[2]>>4)*10 + int(d[2]&0x0F),
		Month:  int((d[3] << 2) >> 4),
		Day:    int(((d[3] << 6) >> 3) | (d[4] >> 5)),
		Hour:   int(d[4] & 0x1F),
		Minute: int(d[5] >> 2),
	}
	if d[2]>>4 >= 7 {
		t.Year += 1900
	} else {
		t.Year += 2000
	}
	return t
}

func (i *Interface) panelEvent(code byte) {
	s := &i.Status
	switch {
	case code >= 0x09 && code <= 0x28:
		i.Zones.setAlarm(int(code-0x08), true)
	case code >= 0x29 && code <= 0x48:
		i.Zones.setAlarm(int(code-0x28), false)
	case code == 0x4B:
		s.set(&s.Alarm, true)
	case code == 0x4E:
		s.set(&s.KeypadFireAlarm, true)
	case code == 0x4F:
		s.set(&s.KeypadAuxAlarm, true)
	case code == 0x50:
		s.set(&s.KeypadPanicAlarm, true)
	case code == 0x52:
		s.set(&s.KeypadFireAlarm, false)
	case code == 0x53:
		s.set(&s.KeypadAuxAlarm, false)
	case code == 0x54:
		s.set(&s.KeypadPanicAlarm, false)
	case code == 0xE7:
		s.set(&s.BatteryTrouble, true)
	case code == 0xE8:
		s.set(&s.PowerTrouble, true)
	case code == 0xEF:
		s.set(&s.BatteryTrouble, false)
	case code == 0xF0:
		s.set(&s.PowerTrouble, false)
	}
}

func (i *Interface) armingEvent(code byte) {
	s := &i.Status
	switch code {
	case 0x9A:
		s.set(&s.Armed, true)
		s.set(&s.ArmedStay, true)
		s.set(&s.ArmedAway, false)
	case 0x9B:
		s.set(&s.Armed, true)
		s.set(&s.ArmedAway, true)
		s.set(&s.ArmedStay, false)
	case 0x9C:
		s.set(&s.NoEntryDelay, true)
	}
}
