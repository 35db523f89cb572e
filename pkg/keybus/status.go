// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package keybus

// Flag is a decoded status bit with change tracking
type Flag struct {
	On      bool
	Changed bool
}

// PanelTime is the clock the panel broadcasts with command 0xA5
type PanelTime struct {
	Year   int
	Month  int
	Day    int
	Hour   int
	Minute int
}

// Event is the last event reported by the panel
type Event struct {
	Type byte // EVENT_PANEL or EVENT_ARMING
	Code byte
	Time PanelTime
}

// Status is the partition state decoded from panel frames. Changed flags stay
// set until ClearChanged.
type Status struct {
	Lights        byte
	LightsChanged bool
	Code          byte
	CodeChanged   bool

	Ready        Flag
	Armed        Flag
	ArmedAway    Flag
	ArmedStay    Flag
	NoEntryDelay Flag
	ExitDelay    Flag
	EntryDelay   Flag
	Alarm        Flag
	Fire         Flag
	Trouble      Flag

	BatteryTrouble   Flag
	PowerTrouble     Flag
	KeypadFireAlarm  Flag
	KeypadAuxAlarm   Flag
	KeypadPanicAlarm Flag
	AccessCodePrompt Flag

	Time          PanelTime
	TimeAvailable bool
	TimeChanged   bool

	LastEvent    Event
	EventChanged bool

	// Changed is set when any field above changes
	Changed bool
}

func (s *Status) flags() []*Flag {
	return []*Flag{
		&s.Ready, &s.Armed, &s.ArmedAway, &s.ArmedStay, &s.NoEntryDelay,
		&s.ExitDelay, &s.EntryDelay, &s.Alarm, &s.Fire, &s.Trouble,
		&s.BatteryTrouble, &s.PowerTrouble, &s.KeypadFireAlarm,
		&s.KeypadAuxAlarm, &s.KeypadPanicAlarm, &s.AccessCodePrompt,
	}
}

// set updates a flag, marking it and the status changed when the value differs
func (s *Status) set(f *Flag, on bool) {
	if f.On == on {
		return
	}
	f.On = on
	f.Changed = true
	s.Changed = true
}

func (s *Status) clearChanged() {
	for _, f := range s.flags() {
		f.Changed = false
	}
	s.LightsChanged = false
	s.CodeChanged = false
	s.TimeChanged = false
	s.EventChanged = false
	s.Changed = false
}

// applyLights decodes the keypad lights byte
func (s *Status) applyLights(lights byte) {
	if s.Lights != lights {
		s.Lights = lights
		s.LightsChanged = true
		s.Changed = true
	}
	s.set(&s.Ready, lights&LIGHT_READY != 0)
	s.set(&s.Armed, lights&LIGHT_ARMED != 0)
	s.set(&s.Trouble, lights&LIGHT_TROUBLE != 0)
	s.set(&s.Fire, lights&LIGHT_FIRE != 0)
}

// applyCode decodes the partition status byte. applyLights must run first.
func (s *Status) applyCode(code byte) {
	if s.Code != code {
		s.Code = code
		s.CodeChanged = true
		s.Changed = true
	}

	switch code {
	case STATUS_ARMED_STAY:
		s.set(&s.ArmedStay, true)
		s.set(&s.ArmedAway, false)
		s.set(&s.NoEntryDelay, false)
	case STATUS_ARMED_AWAY:
		s.set(&s.ArmedAway, true)
		s.set(&s.ArmedStay, false)
		s.set(&s.NoEntryDelay, false)
	case STATUS_STAY_NO_DELAY:
		s.set(&s.ArmedStay, true)
		s.set(&s.ArmedAway, false)
		s.set(&s.NoEntryDelay, true)
	case STATUS_AWAY_NO_DELAY:
		s.set(&s.ArmedAway, true)
		s.set(&s.ArmedStay, false)
		s.set(&s.NoEntryDelay, true)
	case STATUS_ALARM:
		s.set(&s.Alarm, true)
	}

	s.set(&s.ExitDelay, code == STATUS_EXIT_DELAY)
	s.set(&s.EntryDelay, code == STATUS_ENTRY_DELAY)
	s.set(&s.AccessCodePrompt, code == STATUS_ACCESS_CODE_ENTRY)

	if !s.Armed.On && code != STATUS_ALARM {
		s.set(&s.ArmedAway, false)
		s.set(&s.ArmedStay, false)
		s.set(&s.NoEntryDelay, false)
		s.set(&s.Alarm, false)
	}
}

// setTime records a broadcast time, ignoring out-of-range values
func (s *Status) setTime(t PanelTime) bool {
	if t.Month < 1 || t.Month > 12 || t.Day < 1 || t.Day > 31 || t.Hour > 23 || t.Minute > 59 {
		return false
	}
	if s.Time != t {
		s.Time = t
		s.TimeChanged = true
		s.Changed = true
	}
	return true
}

func (s *Status) setEvent(e Event) {
	s.LastEvent = e
	s.EventChanged = true
	s.Changed = true
}
