// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package sim provides a simulated Keybus for tests and demonstrations.
//
// Bus implements keybus.Board on a virtual clock. Frames are scheduled as
// clock edges and nothing happens until Run advances time, so every run is
// deterministic.
package sim

import (
	"container/heap"
	"time"

	"github.com/Thermoquad/keybusstat/pkg/keybus"
)

// DefaultGap is the clock-high period between frames
const DefaultGap = 10 * time.Millisecond

type event struct {
	at  time.Duration
	seq uint64
	fn  func()
}

type eventQueue []*event

func (q eventQueue) Len() int { return len(q) }
func (q eventQueue) Less(i, j int) bool {
	if q[i].at != q[j].at {
		return q[i].at < q[j].at
	}
	return q[i].seq < q[j].seq
}
func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *eventQueue) Push(x any)   { *q = append(*q, x.(*event)) }
func (q *eventQueue) Pop() any {
	old := *q
	e := old[len(old)-1]
	*q = old[:len(old)-1]
	return e
}

// Bus is a simulated panel, keypad and pair of bus lines
type Bus struct {
	now    time.Duration
	queue  eventQueue
	seq    uint64
	closed bool

	clock      bool
	panelLevel bool
	keypadLow  bool // simulated keypad pulling data low this slot
	driven     bool // the board owner pulling data low

	writeLine bool
	gap       time.Duration
	edge      func(high bool)

	cursor  time.Duration // start of the next free frame slot
	current []bool
	replies [][]bool
}

// Option configures a Bus
type Option func(*Bus)

// WithWriteLine gives the bus a write line so the driver can send keys
func WithWriteLine() Option {
	return func(b *Bus) { b.writeLine = true }
}

// WithGap sets the clock-high period between frames
func WithGap(d time.Duration) Option {
	return func(b *Bus) { b.gap = d }
}

// New creates an idle bus with the clock high
func New(opts ...Option) *Bus {
	b := &Bus{
		clock:      true,
		panelLevel: true,
		gap:        DefaultGap,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.cursor = b.gap
	return b
}

// ReadClock implements keybus.Board
func (b *Bus) ReadClock() bool {
	return b.clock
}

// ReadData implements keybus.Board. The line is wired-AND: any device
// pulling it low wins while the clock is low.
func (b *Bus) ReadData() bool {
	if b.clock {
		return b.panelLevel
	}
	return !b.driven && !b.keypadLow
}

// DriveData implements keybus.Board
func (b *Bus) DriveData(low bool) {
	if b.writeLine {
		b.driven = low
	}
}

// CanWrite implements keybus.Board
func (b *Bus) CanWrite() bool {
	return b.writeLine
}

// Now implements keybus.Board
func (b *Bus) Now() time.Duration {
	return b.now
}

// OnClockEdge implements keybus.Board
func (b *Bus) OnClockEdge(fn func(high bool)) error {
	b.edge = fn
	return nil
}

// After implements keybus.Board
func (b *Bus) After(d time.Duration, fn func()) {
	b.schedule(b.now+d, fn)
}

// StartTimer implements keybus.Board
func (b *Bus) StartTimer(period time.Duration, fn func()) error {
	var tick func()
	tick = func() {
		fn()
		b.schedule(b.now+period, tick)
	}
	b.schedule(b.now+period, tick)
	return nil
}

// Close implements keybus.Board. Pending events are discarded.
func (b *Bus) Close() error {
	b.closed = true
	b.queue = nil
	return nil
}

func (b *Bus) schedule(at time.Duration, fn func()) {
	if b.closed {
		return
	}
	b.seq++
	heap.Push(&b.queue, &event{at: at, seq: b.seq, fn: fn})
}

// Run advances the virtual clock by d, firing every event due on the way
func (b *Bus) Run(d time.Duration) {
	end := b.now + d
	for len(b.queue) > 0 && b.queue[0].at <= end {
		e := heap.Pop(&b.queue).(*event)
		b.now = e.at
		e.fn()
	}
	b.now = end
}

// Flush runs until every scheduled frame has been sent and the gap after the
// last one has passed
func (b *Bus) Flush() {
	if b.cursor > b.now {
		b.Run(b.cursor - b.now)
	}
}

// Backlog returns how far past the virtual clock frames are already
// scheduled
func (b *Bus) Backlog() time.Duration {
	if b.cursor <= b.now {
		return 0
	}
	return b.cursor - b.now
}

// Send schedules a panel frame with an idle keypad
func (b *Bus) Send(panel []byte) {
	b.SendBits(keybus.FrameBits(panel), nil)
}

// SendWithReply schedules a panel frame and the keypad reply sent alongside it
func (b *Bus) SendWithReply(panel, reply []byte) {
	b.SendBits(keybus.FrameBits(panel), keybus.FrameBits(reply))
}

// SendBits schedules raw bits. Reply bits past the end of the panel bits are
// ignored; missing reply bits leave the line released.
func (b *Bus) SendBits(panel, reply []bool) {
	if len(panel) == 0 {
		return
	}
	start := b.cursor
	if start < b.now {
		start = b.now
	}
	half := keybus.BitPeriod / 2

	for k := range panel {
		k := k
		fall := start + time.Duration(k)*keybus.BitPeriod
		last := k == len(panel)-1

		b.schedule(fall, func() {
			b.clock = false
			b.keypadLow = k < len(reply) && !reply[k]
			if k == 0 {
				b.current = make([]bool, 0, len(panel))
			}
			if b.edge != nil {
				b.edge(false)
			}
		})
		b.schedule(fall+half, func() {
			// The device slot ends with the rising edge
			b.current = append(b.current, b.ReadData())
			if last {
				b.replies = append(b.replies, b.current)
			}
			b.keypadLow = false
			b.clock = true
			b.panelLevel = panel[k]
			if b.edge != nil {
				b.edge(true)
			}
		})
	}

	end := start + time.Duration(len(panel)-1)*keybus.BitPeriod + half
	b.cursor = end + b.gap
}

// Replies returns the device slot of every completed frame as seen on the
// line, including bits written through DriveData
func (b *Bus) Replies() []keybus.Frame {
	frames := make([]keybus.Frame, 0, len(b.replies))
	for _, bits := range b.replies {
		f, _ := keybus.FrameFromBits(bits)
		frames = append(frames, f)
	}
	return frames
}
