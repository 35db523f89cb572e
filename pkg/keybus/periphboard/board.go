// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package periphboard binds the Keybus driver to periph.io GPIO pins.
package periphboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Config names the pins, e.g. "GPIO17"
type Config struct {
	Clock string
	Data  string
	Write string // empty for read-only
}

// Board implements keybus.Board with periph.io. Edges are delivered from a
// goroutine blocked in WaitForEdge.
type Board struct {
	clock, data gpio.PinIO
	write       gpio.PinIO

	start  time.Time
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	edge   bool

	writeErr atomic.Pointer[error]
}

// levelTracker derives the clock level from edge alternation. WaitForEdge
// only reports that an edge happened; by the time the pin is read the clock
// may already have moved on.
type levelTracker struct {
	high bool
}

// edge returns the level after one more edge
func (t *levelTracker) edge() bool {
	t.high = !t.high
	return t.high
}

// sync resets the level from a pin read taken while the clock is quiet
func (t *levelTracker) sync(high bool) {
	t.high = high
}

// Open initialises the host drivers and configures the pins
func Open(cfg Config) (*Board, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}
	if cfg.Clock == "" || cfg.Data == "" {
		return nil, errors.New("clock and data pins must be specified")
	}

	b := &Board{
		clock: gpioreg.ByName(cfg.Clock),
		data:  gpioreg.ByName(cfg.Data),
		start: time.Now(),
	}
	if b.clock == nil || b.data == nil {
		return nil, fmt.Errorf("invalid GPIO pins: clock=%s, data=%s", cfg.Clock, cfg.Data)
	}

	if err := b.data.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("failed to configure data pin %s: %w", cfg.Data, err)
	}

	if cfg.Write != "" {
		b.write = gpioreg.ByName(cfg.Write)
		if b.write == nil {
			return nil, fmt.Errorf("invalid GPIO pin: write=%s", cfg.Write)
		}
		if err := b.write.Out(gpio.Low); err != nil {
			return nil, fmt.Errorf("failed to configure write pin %s: %w", cfg.Write, err)
		}
	}

	b.ctx, b.cancel = context.WithCancel(context.Background())
	return b, nil
}

// ReadClock implements keybus.Board
func (b *Board) ReadClock() bool {
	return b.clock.Read() == gpio.High
}

// ReadData implements keybus.Board
func (b *Board) ReadData() bool {
	return b.data.Read() == gpio.High
}

// DriveData implements keybus.Board
func (b *Board) DriveData(low bool) {
	if b.write == nil {
		return
	}
	// The write pin drives a transistor that pulls data low
	if err := b.write.Out(gpio.Level(low)); err != nil {
		b.writeErr.CompareAndSwap(nil, &err)
	}
}

// WriteErr returns the first error from driving the write pin
func (b *Board) WriteErr() error {
	if p := b.writeErr.Load(); p != nil {
		return *p
	}
	return nil
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
	if b.edge {
		return errors.New("clock edge handler already registered")
	}
	if err := b.clock.In(gpio.PullNoChange, gpio.BothEdges); err != nil {
		return fmt.Errorf("failed to configure clock pin: %w", err)
	}
	b.edge = true

	var level levelTracker
	level.sync(b.ReadClock())

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for b.ctx.Err() == nil {
			if b.clock.WaitForEdge(100 * time.Millisecond) {
				fn(level.edge())
				continue
			}
			// No edge for a while, so the pin level is settled
			level.sync(b.ReadClock())
		}
	}()
	return nil
}

// After implements keybus.Board
func (b *Board) After(d time.Duration, fn func()) {
	time.AfterFunc(d, fn)
}

// StartTimer implements keybus.Board
func (b *Board) StartTimer(period time.Duration, fn func()) error {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		t := time.NewTicker(period)
		defer t.Stop()
		for {
			select {
			case <-b.ctx.Done():
				return
			case <-t.C:
				fn()
			}
		}
	}()
	return nil
}

// Close implements keybus.Board
func (b *Board) Close() error {
	b.cancel()
	b.wg.Wait()
	if b.write == nil {
		return nil
	}
	if err := b.write.Out(gpio.Low); err != nil {
		return err
	}
	if err := b.WriteErr(); err != nil {
		return fmt.Errorf("write pin: %w", err)
	}
	return nil
}
