// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

//go:build linux

// Package gpiodboard binds the Keybus driver to Linux GPIO character devices.
package gpiodboard

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/warthog618/gpiod"
)

// Config selects the chip and line offsets
type Config struct {
	Chip  string // e.g. "gpiochip0"
	Clock int
	Data  int
	Write int // offset of the write line, or -1 for read-only
}

// Board implements keybus.Board on gpiod lines. The clock edge handler runs
// on the gpiod event goroutine.
type Board struct {
	chip  *gpiod.Chip
	clock *gpiod.Line
	data  *gpiod.Line
	write *gpiod.Line

	cfg      Config
	start    time.Time
	level    atomic.Bool // last clock level reported by an edge event
	writeErr errLatch

	mu     sync.Mutex
	timers []*time.Ticker
	done   chan struct{}
	once   sync.Once
}

// Open requests the data and write lines. The clock line is requested when
// the edge handler is registered.
func Open(cfg Config) (*Board, error) {
	chip, err := gpiod.NewChip(cfg.Chip, gpiod.WithConsumer("keybusstat"))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", cfg.Chip, err)
	}

	b := &Board{chip: chip, cfg: cfg, start: time.Now(), done: make(chan struct{})}

	b.data, err = chip.RequestLine(cfg.Data, gpiod.AsInput)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("failed to request data line %d: %w", cfg.Data, err)
	}

	if cfg.Write >= 0 {
		// The write line drives a transistor that pulls data low
		b.write, err = chip.RequestLine(cfg.Write, gpiod.AsOutput(0))
		if err != nil {
			b.data.Close()
			chip.Close()
			return nil, fmt.Errorf("failed to request write line %d: %w", cfg.Write, err)
		}
	}
	return b, nil
}

// ReadClock implements keybus.Board
func (b *Board) ReadClock() bool {
	if b.clock == nil {
		return false
	}
	v, err := b.clock.Value()
	if err != nil {
		return b.level.Load()
	}
	return v == 1
}

// ReadData implements keybus.Board
func (b *Board) ReadData() bool {
	v, err := b.data.Value()
	return err == nil && v == 1
}

// DriveData implements keybus.Board
func (b *Board) DriveData(low bool) {
	if b.write == nil {
		return
	}
	v := 0
	if low {
		v = 1
	}
	if err := b.write.SetValue(v); err != nil {
		b.writeErr.set(err)
	}
}

// WriteErr returns the first error from driving the write line
func (b *Board) WriteErr() error {
	return b.writeErr.get()
}

// CanWrite implements keybus.Board
func (b *Board) CanWrite() bool {
	return b.write != nil
}

// Now implements keybus.Board
func (b *Board) Now() time.Duration {
	return time.Since(b.start)
}

// OnClockEdge implements keybus.Board
func (b *Board) OnClockEdge(fn func(high bool)) error {
	if b.clock != nil {
		return errors.New("clock edge handler already registered")
	}
	line, err := b.chip.RequestLine(b.cfg.Clock,
		gpiod.WithBothEdges,
		gpiod.WithEventHandler(func(evt gpiod.LineEvent) {
			high := evt.Type == gpiod.LineEventRisingEdge
			b.level.Store(high)
			fn(high)
		}))
	if err != nil {
		return fmt.Errorf("failed to request clock line %d: %w", b.cfg.Clock, err)
	}
	b.clock = line
	return nil
}

// After implements keybus.Board
func (b *Board) After(d time.Duration, fn func()) {
	time.AfterFunc(d, fn)
}

// StartTimer implements keybus.Board
func (b *Board) StartTimer(period time.Duration, fn func()) error {
	t := time.NewTicker(period)
	b.mu.Lock()
	b.timers = append(b.timers, t)
	b.mu.Unlock()

	go func() {
		for {
			select {
			case <-b.done:
				return
			case <-t.C:
				fn()
			}
		}
	}()
	return nil
}

// Close implements keybus.Board. It reports a write line that stopped
// responding.
func (b *Board) Close() error {
	var err error
	b.once.Do(func() {
		close(b.done)
		b.mu.Lock()
		for _, t := range b.timers {
			t.Stop()
		}
		b.mu.Unlock()

		if b.clock != nil {
			b.clock.Close()
		}
		if b.write != nil {
			if serr := b.write.SetValue(0); serr != nil {
				b.writeErr.set(serr)
			}
			b.write.Close()
		}
		b.data.Close()
		b.chip.Close()

		if werr := b.writeErr.get(); werr != nil {
			err = fmt.Errorf("write line %d: %w", b.cfg.Write, werr)
		}
	})
	return err
}

// errLatch keeps the first error stored from any goroutine
type errLatch struct {
	p atomic.Pointer[error]
}

func (l *errLatch) set(err error) {
	l.p.CompareAndSwap(nil, &err)
}

func (l *errLatch) get() error {
	if p := l.p.Load(); p != nil {
		return *p
	}
	return nil
}
