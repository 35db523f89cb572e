// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sim_test

import (
	"context"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/Thermoquad/keybusstat/pkg/keybus"
	"github.com/Thermoquad/keybusstat/pkg/keybus/sim"
)

func newInterface(c *qt.C, bus *sim.Bus, cfg keybus.Config) *keybus.Interface {
	cfg.Board = bus
	kb, err := keybus.New(cfg)
	c.Assert(err, qt.IsNil)
	c.Assert(kb.Begin(context.Background()), qt.IsNil)
	c.Cleanup(func() { kb.Stop() })
	return kb
}

// drain handles every queued panel frame
func drain(kb *keybus.Interface) {
	for kb.QueueLength() > 0 {
		kb.HandlePanel()
	}
}

func TestBusTiming(t *testing.T) {
	c := qt.New(t)

	bus := sim.New()
	var edges []time.Duration
	c.Assert(bus.OnClockEdge(func(high bool) { edges = append(edges, bus.Now()) }), qt.IsNil)

	bus.SendBits([]bool{true, false}, nil)
	bus.Flush()

	c.Assert(edges, qt.DeepEquals, []time.Duration{
		sim.DefaultGap,
		sim.DefaultGap + keybus.BitPeriod/2,
		sim.DefaultGap + keybus.BitPeriod,
		sim.DefaultGap + keybus.BitPeriod*3/2,
	})
	c.Assert(bus.ReadClock(), qt.IsTrue)
}

func TestStatusFrame(t *testing.T) {
	c := qt.New(t)
	bus := sim.New()
	kb := newInterface(c, bus, keybus.Config{})

	bus.Send(sim.StatusFrame(keybus.LIGHT_READY|keybus.LIGHT_BACKLIGHT, keybus.STATUS_READY))
	bus.Flush()

	c.Assert(kb.HandlePanel(), qt.IsTrue)
	c.Assert(kb.Status.Ready.On, qt.IsTrue)
	c.Assert(kb.Status.Armed.On, qt.IsFalse)
	c.Assert(kb.Status.Changed, qt.IsTrue)
	c.Assert(kb.PanelData().Bits, qt.Equals, uint8(49))
	c.Assert(kb.HandlePanel(), qt.IsFalse)
}

func TestArmingSequence(t *testing.T) {
	c := qt.New(t)
	bus := sim.New()
	kb := newInterface(c, bus, keybus.Config{})

	bus.Send(sim.StatusFrame(keybus.LIGHT_READY, keybus.STATUS_READY))
	bus.Flush()
	c.Assert(kb.HandlePanel(), qt.IsTrue)
	kb.ClearChanged()

	bus.Send(sim.StatusFrame(keybus.LIGHT_ARMED, keybus.STATUS_ARMED_AWAY))
	bus.Flush()
	c.Assert(kb.HandlePanel(), qt.IsTrue)
	c.Assert(kb.Status.Armed.On, qt.IsTrue)
	c.Assert(kb.Status.Armed.Changed, qt.IsTrue)
	c.Assert(kb.Status.ArmedAway.On, qt.IsTrue)

	// Same frame again is suppressed and marks nothing
	kb.ClearChanged()
	bus.Send(sim.StatusFrame(keybus.LIGHT_ARMED, keybus.STATUS_ARMED_AWAY))
	bus.Flush()
	c.Assert(kb.HandlePanel(), qt.IsFalse)
	c.Assert(kb.Status.Changed, qt.IsFalse)
	c.Assert(kb.Status.Armed.Changed, qt.IsFalse)
	c.Assert(kb.Status.Armed.On, qt.IsTrue)
	c.Assert(kb.Changed(), qt.IsFalse)
}

func TestZonesAndTime(t *testing.T) {
	c := qt.New(t)
	bus := sim.New()
	kb := newInterface(c, bus, keybus.Config{})

	when := keybus.PanelTime{Year: 2026, Month: 10, Day: 19, Hour: 7, Minute: 45}
	bus.Send(sim.ZoneFrame(keybus.CMD_ZONES_17_24, 0x80, 0x03, 0x02))
	bus.Send(sim.DateTimeFrame(when, keybus.EVENT_PANEL, 0))
	bus.Flush()

	c.Assert(kb.HandlePanel(), qt.IsTrue)
	c.Assert(kb.Zones.Open.List(), qt.DeepEquals, []int{18})
	c.Assert(kb.HandlePanel(), qt.IsTrue)
	c.Assert(kb.Status.Time, qt.Equals, when)
	c.Assert(kb.Status.TimeAvailable, qt.IsTrue)
}

func TestCorruptFrameRejected(t *testing.T) {
	c := qt.New(t)
	bus := sim.New()
	kb := newInterface(c, bus, keybus.Config{})

	frame := sim.ZoneFrame(keybus.CMD_ZONES_1_8, keybus.LIGHT_ARMED, keybus.STATUS_ARMED_AWAY, 0x01)
	frame[2] ^= 0x01
	bus.Send(frame)
	bus.Flush()

	c.Assert(kb.HandlePanel(), qt.IsFalse)
	c.Assert(kb.Status.Changed, qt.IsFalse)
	c.Assert(kb.Zones.Changed, qt.IsFalse)
	c.Assert(kb.Stats.ChecksumErrors, qt.Equals, uint64(1))

	rejected := kb.RejectedData()
	c.Assert(rejected.Command(), qt.Equals, byte(keybus.CMD_ZONES_1_8))
	c.Assert(rejected.Byte(2), qt.Equals, frame[2])
}

func TestBacklog(t *testing.T) {
	c := qt.New(t)
	bus := sim.New(sim.WithGap(5 * time.Millisecond))
	c.Assert(bus.Backlog(), qt.Equals, 5*time.Millisecond)

	bus.Send(sim.StatusFrame(keybus.LIGHT_READY, keybus.STATUS_READY))
	// 49 bits end half a period after the last falling edge, then the gap
	want := 5*time.Millisecond + 48*keybus.BitPeriod + keybus.BitPeriod/2 + 5*time.Millisecond
	c.Assert(bus.Backlog(), qt.Equals, want)

	bus.Flush()
	c.Assert(bus.Backlog(), qt.Equals, time.Duration(0))
}

func TestKeyPress(t *testing.T) {
	c := qt.New(t)
	c.Assert(sim.KeyPress('1'), qt.DeepEquals, sim.KeyReply(0x05))
	c.Assert(sim.KeyPress('F'), qt.DeepEquals, sim.AlarmReply(keybus.KEYPAD_FIRE_ALARM))
	c.Assert(sim.KeyPress('z'), qt.IsNil)
}

func TestQueueOverflow(t *testing.T) {
	c := qt.New(t)
	bus := sim.New()
	kb := newInterface(c, bus, keybus.Config{})

	for n := 0; n < keybus.QueueCapacity+3; n++ {
		bus.Send(sim.PanelFrame(0x40, byte(n)))
	}
	bus.Flush()

	c.Assert(kb.BufferOverflow(), qt.IsTrue)
	c.Assert(kb.QueueLength(), qt.Equals, keybus.QueueCapacity)

	// The oldest frames are kept
	c.Assert(kb.HandlePanel(), qt.IsTrue)
	c.Assert(kb.PanelData().Data[2], qt.Equals, byte(0))
}

func TestDataOverflow(t *testing.T) {
	c := qt.New(t)
	bus := sim.New()
	kb := newInterface(c, bus, keybus.Config{})

	long := make([]byte, keybus.ReadSize+4)
	long[0] = 0x05
	bus.Send(long)
	bus.Send(sim.StatusFrame(keybus.LIGHT_READY, keybus.STATUS_READY))
	bus.Flush()

	c.Assert(kb.DataOverflow(), qt.IsTrue)
	c.Assert(kb.QueueLength(), qt.Equals, 2)

	// Capture resumes with the next frame
	kb.HandlePanel()
	c.Assert(kb.HandlePanel(), qt.IsTrue)
	c.Assert(kb.Status.Ready.On, qt.IsTrue)
}

func TestKeypadReply(t *testing.T) {
	c := qt.New(t)
	bus := sim.New()
	kb := newInterface(c, bus, keybus.Config{ProcessDeviceData: true})

	bus.SendWithReply(sim.StatusFrame(0x81, 0x01), sim.KeyReply(0x22))
	bus.SendWithReply(sim.PanelFrame(0x11, 0xAA), sim.AlarmReply(keybus.KEYPAD_FIRE_ALARM))
	bus.Flush()

	c.Assert(kb.HandleKeybus(), qt.IsTrue)
	c.Assert(kb.Keypad.Last, qt.Equals, keybus.Keypress{Key: '8', Code: 0x22})
	c.Assert(kb.KeybusData().Panel, qt.Equals, byte(keybus.CMD_STATUS))

	c.Assert(kb.HandleKeybus(), qt.IsTrue)
	c.Assert(kb.Keypad.Last.Key, qt.Equals, byte('F'))
}

// ============================================================
// Writer
// ============================================================

func writer(c *qt.C) (*sim.Bus, *keybus.Interface) {
	bus := sim.New(sim.WithWriteLine())
	kb := newInterface(c, bus, keybus.Config{WriteEnabled: true, ProcessDeviceData: true})
	return bus, kb
}

func status() []byte {
	return sim.StatusFrame(keybus.LIGHT_READY, keybus.STATUS_READY)
}

func TestWriteRegularKey(t *testing.T) {
	c := qt.New(t)
	bus, kb := writer(c)

	c.Assert(kb.Write("1"), qt.IsNil)
	c.Assert(kb.WriteReady(), qt.IsFalse)

	// The first boundary arms the writer, the next status frame carries the key
	bus.Send(status())
	bus.Flush()
	c.Assert(kb.WriteReady(), qt.IsTrue)

	bus.Send(status())
	bus.Flush()
	c.Assert(kb.WritePending(), qt.IsFalse)
	c.Assert(kb.WriteReady(), qt.IsFalse)

	replies := bus.Replies()
	c.Assert(replies, qt.HasLen, 2)
	c.Assert(replies[0].Data[2], qt.Equals, byte(0xFF))
	c.Assert(replies[1].Data[2], qt.Equals, byte(0x05))
	c.Assert(replies[1].Data[0], qt.Equals, byte(0xFF))

	// The key is visible in the captured device reply as well
	c.Assert(kb.HandleKeybus(), qt.IsFalse)
	c.Assert(kb.HandleKeybus(), qt.IsTrue)
	c.Assert(kb.Keypad.Last.Key, qt.Equals, byte('1'))
}

func TestWriteWaitsForStatusCommand(t *testing.T) {
	c := qt.New(t)
	bus, kb := writer(c)

	c.Assert(kb.Write("2"), qt.IsNil)
	bus.Send(status())
	bus.Send(sim.ZoneFrame(keybus.CMD_ZONES_1_8, 0x81, 0x01, 0x00))
	bus.Send(status())
	bus.Flush()

	replies := bus.Replies()
	c.Assert(replies[1].Data[2], qt.Equals, byte(0xFF))
	c.Assert(replies[2].Data[2], qt.Equals, byte(0x0A))
	c.Assert(kb.WritePending(), qt.IsFalse)
}

func TestWriteSingleJob(t *testing.T) {
	c := qt.New(t)
	bus, kb := writer(c)

	c.Assert(kb.Write("12"), qt.IsNil)
	c.Assert(kb.Write("3"), qt.ErrorIs, keybus.ErrWriteBusy)

	for n := 0; n < 3; n++ {
		bus.Send(status())
	}
	bus.Flush()

	replies := bus.Replies()
	c.Assert(replies[1].Data[2], qt.Equals, byte(0x05))
	c.Assert(replies[2].Data[2], qt.Equals, byte(0x0A))
	c.Assert(kb.WritePending(), qt.IsFalse)
	c.Assert(kb.Write("3"), qt.IsNil)
}

func TestWriteAlarmKeyRepeats(t *testing.T) {
	c := qt.New(t)
	bus, kb := writer(c)

	c.Assert(kb.Write("P"), qt.IsNil)
	for n := 0; n < 4; n++ {
		bus.Send(sim.PanelFrame(0x11, 0xAA))
	}
	bus.Flush()

	replies := bus.Replies()
	c.Assert(replies[0].Data[0], qt.Equals, byte(0xFF))
	c.Assert(replies[1].Data[0], qt.Equals, byte(keybus.KEYPAD_PANIC_ALARM))
	c.Assert(replies[2].Data[0], qt.Equals, byte(keybus.KEYPAD_PANIC_ALARM))
	c.Assert(replies[3].Data[0], qt.Equals, byte(0xFF))
	c.Assert(kb.WritePending(), qt.IsFalse)
}

func TestWriteAsteriskWaitsForMenu(t *testing.T) {
	c := qt.New(t)
	bus, kb := writer(c)

	c.Assert(kb.Write("*1"), qt.IsNil)
	bus.Send(status())
	bus.Send(status())
	bus.Flush()
	drain(kb)

	replies := bus.Replies()
	c.Assert(replies[1].Data[2], qt.Equals, byte(0x28))
	c.Assert(kb.WritePending(), qt.IsTrue)

	// Nothing is sent until the panel shows the '*' menu
	bus.Send(sim.StatusFrame(keybus.LIGHT_READY, keybus.STATUS_STAR_MENU))
	bus.Flush()
	c.Assert(bus.Replies()[2].Data[2], qt.Equals, byte(0xFF))
	drain(kb)

	bus.Send(status())
	bus.Flush()
	c.Assert(bus.Replies()[3].Data[2], qt.Equals, byte(0x05))
	c.Assert(kb.WritePending(), qt.IsFalse)
}

func TestWriteAsteriskTimesOut(t *testing.T) {
	c := qt.New(t)
	bus, kb := writer(c)

	c.Assert(kb.Write("*1"), qt.IsNil)
	for n := 0; n < keybus.AsteriskHoldCycles+1; n++ {
		bus.Send(status())
	}
	bus.Flush()
	drain(kb)
	c.Assert(kb.WritePending(), qt.IsTrue)

	bus.Send(status())
	bus.Flush()

	replies := bus.Replies()
	for _, r := range replies[2 : len(replies)-1] {
		c.Assert(r.Data[2], qt.Equals, byte(0xFF))
	}
	c.Assert(replies[len(replies)-1].Data[2], qt.Equals, byte(0x05))
	c.Assert(kb.WritePending(), qt.IsFalse)
}

func TestWriteWithoutLine(t *testing.T) {
	c := qt.New(t)
	bus := sim.New()
	kb := newInterface(c, bus, keybus.Config{WriteEnabled: true})

	c.Assert(kb.Write("1"), qt.ErrorIs, keybus.ErrWriteDisabled)
}

func TestBeginTwice(t *testing.T) {
	c := qt.New(t)
	bus := sim.New()
	kb := newInterface(c, bus, keybus.Config{})

	c.Assert(kb.Begin(context.Background()), qt.ErrorIs, keybus.ErrAlreadyStarted)
}
