// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/Thermoquad/keybusstat/pkg/keybus"
)

// printer writes capture events in one output format
type printer struct {
	w      io.Writer
	fm     keybus.Formatter
	format string
	rec    *keybus.RecordWriter
	err    error
}

func newPrinter(w io.Writer, format string, fm keybus.Formatter) (*printer, error) {
	p := &printer{w: w, fm: fm, format: format}
	switch format {
	case "text", "binary":
	case "cbor":
		p.rec = keybus.NewRecordWriter(w)
	default:
		return nil, fmt.Errorf("unknown format %q (use text, binary or cbor)", format)
	}
	return p, nil
}

// handle writes one event. The first write error is kept and later events
// are dropped.
func (p *printer) handle(ev Event) {
	if p.err != nil {
		return
	}
	switch p.format {
	case "cbor":
		p.err = p.writeRecord(ev)
	case "binary":
		p.err = p.writeBinary(ev)
	default:
		p.err = p.writeText(ev)
	}
}

func (p *printer) writeRecord(ev Event) error {
	switch ev.Kind {
	case EventPanel, EventRejected:
		return p.rec.Write(keybus.NewPanelRecord(ev.At, &ev.Panel))
	case EventDevice:
		return p.rec.Write(keybus.NewDeviceRecord(ev.At, &ev.Device))
	}
	return nil
}

// writeBinary prints frames as capture lines runFeed can read back
func (p *printer) writeBinary(ev Event) error {
	var err error
	switch ev.Kind {
	case EventPanel, EventRejected:
		_, err = fmt.Fprintf(p.w, "%s%s\n", feedPanelPrefix, p.fm.Binary(&ev.Panel))
	case EventDevice:
		_, err = fmt.Fprintf(p.w, "%s%s\n", feedDevicePrefix, p.fm.Binary(&ev.Device.Frame))
	}
	return err
}

func (p *printer) writeText(ev Event) error {
	for _, line := range p.lines(ev) {
		if _, err := fmt.Fprintf(p.w, "%10.3f %s\n", ev.At.Seconds(), line); err != nil {
			return err
		}
	}
	return nil
}

// lines renders an event as human-readable lines
func (p *printer) lines(ev Event) []string {
	switch ev.Kind {
	case EventPanel:
		lines := []string{p.fm.PanelMessage(&ev.Panel)}
		for _, c := range describeChanges(ev.Status, ev.Zones) {
			lines = append(lines, "  "+c)
		}
		return lines
	case EventRejected:
		return []string{rejectedMessage(&ev.Panel, p.fm)}
	case EventDevice:
		return []string{p.fm.KeybusMessage(&ev.Device)}
	case EventWrite:
		if ev.Err != nil {
			return []string{fmt.Sprintf("[Write] %s failed: %v", p.fm.Keys(ev.Keys), ev.Err)}
		}
		return []string{fmt.Sprintf("[Write] %s queued", p.fm.Keys(ev.Keys))}
	case EventOverflow:
		return []string{fmt.Sprintf("[Warning] %v", ev.Err)}
	}
	return nil
}

// rejectedMessage describes a frame that failed the checksum
func rejectedMessage(f *keybus.Frame, fm keybus.Formatter) string {
	msg := fmt.Sprintf("[Checksum] %s (0x%02X) %d bits", keybus.FormatCommand(f.Command()), f.Command(), f.Bits)
	if n := int(f.Bits-1) / 8; f.Bits >= 25 && n < keybus.ReadSize {
		msg += fmt.Sprintf(", expected 0x%02X got 0x%02X", keybus.CalculateChecksum(f.Data[:n]), f.Data[n])
	}
	return msg + ": " + fm.Binary(f)
}

// statusFlag names a status flag for change reports
type statusFlag struct {
	name string
	flag keybus.Flag
}

func statusFlags(s keybus.Status) []statusFlag {
	return []statusFlag{
		{"Ready", s.Ready},
		{"Armed", s.Armed},
		{"Armed away", s.ArmedAway},
		{"Armed stay", s.ArmedStay},
		{"No entry delay", s.NoEntryDelay},
		{"Exit delay", s.ExitDelay},
		{"Entry delay", s.EntryDelay},
		{"Alarm", s.Alarm},
		{"Fire", s.Fire},
		{"Trouble", s.Trouble},
		{"Battery trouble", s.BatteryTrouble},
		{"AC power trouble", s.PowerTrouble},
		{"Keypad fire alarm", s.KeypadFireAlarm},
		{"Keypad aux alarm", s.KeypadAuxAlarm},
		{"Keypad panic alarm", s.KeypadPanicAlarm},
		{"Access code prompt", s.AccessCodePrompt},
	}
}

// describeChanges lists every field flagged as changed
func describeChanges(s keybus.Status, z keybus.Zones) []string {
	var out []string
	for _, f := range statusFlags(s) {
		if !f.flag.Changed {
			continue
		}
		state := "off"
		if f.flag.On {
			state = "on"
		}
		out = append(out, fmt.Sprintf("%s: %s", f.name, state))
	}

	for _, n := range z.OpenChanged.List() {
		state := "closed"
		if z.Open.Zone(n) {
			state = "open"
		}
		out = append(out, fmt.Sprintf("Zone %d: %s", n, state))
	}
	for _, n := range z.AlarmChanged.List() {
		state := "restored"
		if z.Alarm.Zone(n) {
			state = "alarm"
		}
		out = append(out, fmt.Sprintf("Zone %d: %s", n, state))
	}

	if s.TimeChanged {
		out = append(out, "Time: "+keybus.FormatTime(s.Time))
	}
	if s.EventChanged {
		out = append(out, "Event: "+keybus.FormatEvent(s.LastEvent))
	}
	return out
}

// describeStatus summarises the decoded partition state
func describeStatus(s keybus.Status, z keybus.Zones) string {
	var sb strings.Builder
	sb.WriteString("=== Panel Status ===\n")
	fmt.Fprintf(&sb, "Lights:      %s\n", keybus.FormatLights(s.Lights))
	fmt.Fprintf(&sb, "Status:      %s\n", keybus.FormatStatusCode(s.Code))

	var on []string
	for _, f := range statusFlags(s) {
		if f.flag.On {
			on = append(on, f.name)
		}
	}
	fmt.Fprintf(&sb, "Flags:       %s\n", joinOrNone(on))
	fmt.Fprintf(&sb, "Open zones:  %s\n", joinZones(z.Open.List()))
	fmt.Fprintf(&sb, "Alarm zones: %s\n", joinZones(z.Alarm.List()))

	if s.TimeAvailable {
		fmt.Fprintf(&sb, "Panel time:  %s\n", keybus.FormatTime(s.Time))
	}
	if s.LastEvent.Code != 0 {
		fmt.Fprintf(&sb, "Last event:  %s\n", keybus.FormatEvent(s.LastEvent))
	}
	return sb.String()
}

func joinZones(zones []int) string {
	parts := make([]string, len(zones))
	for i, n := range zones {
		parts[i] = fmt.Sprint(n)
	}
	return joinOrNone(parts)
}

func joinOrNone(parts []string) string {
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}
