// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/Thermoquad/keybusstat/internal/config"
	"github.com/Thermoquad/keybusstat/pkg/keybus"
	"github.com/Thermoquad/keybusstat/pkg/keybus/periphboard"
	"github.com/Thermoquad/keybusstat/pkg/keybus/sim"
	"go.bug.st/serial"
	"go.uber.org/zap"
)

// pollInterval is how often the foreground drains the frame queue. It must
// stay well under QueueCapacity frames of bus time.
const pollInterval = 5 * time.Millisecond

// SerialConnection wraps a serial port
type SerialConnection struct {
	port serial.Port
}

func (s *SerialConnection) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialConnection) Close() error {
	return s.port.Close()
}

// OpenSerialConnection opens a serial port connection
func OpenSerialConnection(portName string, baudRate int) (io.ReadCloser, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	return &SerialConnection{port: port}, nil
}

// EventKind tells what a capture Event carries
type EventKind int

const (
	EventPanel EventKind = iota
	EventRejected
	EventDevice
	EventWrite
	EventOverflow
)

// Event is emitted by Capture.Poll for every reported frame. State fields are
// copies taken after the frame was decoded.
type Event struct {
	Kind   EventKind
	At     time.Duration
	Panel  keybus.Frame
	Device keybus.DeviceFrame
	Keys   string
	Err    error

	Status keybus.Status
	Zones  keybus.Zones
	Keypad keybus.Keypad
	Stats  keybus.Statistics
}

// Capture is a decoder plus the source feeding it. Poll and Write must be
// called from one goroutine.
type Capture struct {
	KB   *keybus.Interface
	Info string

	now   func() time.Duration
	sim   *simPanel
	feed  io.ReadCloser
	board keybus.Board
	log   *zap.Logger
}

// decoderConfig maps the decoder section onto keybus options
func decoderConfig(cfg *config.Config, log *zap.Logger) keybus.Config {
	return keybus.Config{
		Logger:               log,
		WriteEnabled:         cfg.Decoder.WriteEnabled,
		HideDigits:           cfg.Decoder.HideDigits,
		ProcessRedundantData: cfg.Decoder.ProcessRedundantData,
		ProcessDeviceData:    cfg.Decoder.ProcessDeviceData,
		ShowTrailingBits:     cfg.Decoder.ShowTrailingBits,
		RedundantSpan:        redundantSpans(cfg.Decoder.RedundantSpan, log),
	}
}

// redundantSpans parses command keys such as "0xa5". Bad entries are logged
// and skipped.
func redundantSpans(spans map[string]int, log *zap.Logger) map[byte]int {
	if len(spans) == 0 {
		return nil
	}
	out := make(map[byte]int, len(spans))
	for key, n := range spans {
		cmd, err := strconv.ParseUint(key, 0, 8)
		if err != nil || n < 0 {
			log.Warn("ignoring redundant span", zap.String("command", key), zap.Int("span", n))
			continue
		}
		out[byte(cmd)] = n
	}
	return out
}

// OpenCapture builds the decoder for the configured source
func OpenCapture(cfg *config.Config, log *zap.Logger) (*Capture, error) {
	kcfg := decoderConfig(cfg, log)
	c := &Capture{log: log}

	switch cfg.Board.Type {
	case "gpiod":
		b, err := openGPIOD(cfg.Board)
		if err != nil {
			return nil, err
		}
		c.board = b
		c.Info = fmt.Sprintf("gpiod: %s clock %d data %d", cfg.Board.Chip, cfg.Board.ClockLine, cfg.Board.DataLine)

	case "periph":
		b, err := periphboard.Open(periphboard.Config{
			Clock: cfg.Board.ClockPin,
			Data:  cfg.Board.DataPin,
			Write: cfg.Board.WritePin,
		})
		if err != nil {
			return nil, err
		}
		c.board = b
		c.Info = fmt.Sprintf("periph: clock %s data %s", cfg.Board.ClockPin, cfg.Board.DataPin)

	case "sim":
		var opts []sim.Option
		if cfg.Decoder.WriteEnabled {
			opts = append(opts, sim.WithWriteLine())
		}
		bus := sim.New(opts...)
		c.sim = newSimPanel(bus, simScript(), true)
		c.board = bus
		c.Info = "simulated panel"

	case "serial":
		if cfg.Serial.Port == "" {
			return nil, fmt.Errorf("--port is required for the serial source")
		}
		conn, err := OpenSerialConnection(cfg.Serial.Port, cfg.Serial.Baud)
		if err != nil {
			return nil, err
		}
		c.feed = conn
		c.Info = fmt.Sprintf("serial: %s @ %d baud", cfg.Serial.Port, cfg.Serial.Baud)

	default:
		return nil, fmt.Errorf("unknown board type %q", cfg.Board.Type)
	}

	kcfg.Board = c.board
	kb, err := keybus.New(kcfg)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.KB = kb

	if c.board != nil {
		c.now = c.board.Now
	} else {
		start := time.Now()
		c.now = func() time.Duration { return time.Since(start) }
	}
	return c, nil
}

// Start begins capturing. Serial lines are read on their own goroutine until
// ctx is done or the port closes.
func (c *Capture) Start(ctx context.Context) error {
	if c.feed != nil {
		go func() {
			if err := runFeed(c.feed, c.KB, c.log); err != nil && ctx.Err() == nil {
				c.log.Warn("serial feed stopped", zap.Error(err))
			}
		}()
		go func() {
			<-ctx.Done()
			c.feed.Close()
		}()
		return nil
	}
	// Close releases the board, so only this goroutine touches a simulator
	return c.KB.Begin(context.Background())
}

// Poll advances the simulator if there is one and reports every frame waiting
// in the queues
func (c *Capture) Poll(emit func(Event)) {
	if c.sim != nil {
		c.sim.step(pollInterval)
	}

	for {
		waiting := c.KB.QueueLength()
		rejected := c.KB.Stats.ChecksumErrors
		if c.KB.HandlePanel() {
			emit(c.event(EventPanel, func(e *Event) { e.Panel = c.KB.PanelData() }))
			c.KB.ClearChanged()
		} else if c.KB.Stats.ChecksumErrors != rejected {
			emit(c.event(EventRejected, func(e *Event) { e.Panel = c.KB.RejectedData() }))
		}
		if waiting <= 1 {
			break
		}
	}

	for n := 0; n < keybus.QueueCapacity; n++ {
		if c.KB.HandleKeybus() {
			emit(c.event(EventDevice, func(e *Event) { e.Device = c.KB.KeybusData() }))
			c.KB.ClearChanged()
		}
	}

	c.checkOverflow(emit)
}

// Write stages keys and reports the outcome as an event
func (c *Capture) Write(keys string, emit func(Event)) {
	err := c.KB.Write(keys)
	emit(c.event(EventWrite, func(e *Event) {
		e.Keys = keys
		e.Err = err
	}))
}

// Run polls until ctx is done, staging keys received on writes
func (c *Capture) Run(ctx context.Context, writes <-chan string, emit func(Event)) error {
	if err := c.Start(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case keys := <-writes:
			c.Write(keys, emit)
		case <-ticker.C:
			c.Poll(emit)
		}
	}
}

// Close releases the board or serial port
func (c *Capture) Close() error {
	if c.feed != nil {
		// The feed may already be closed by Start on cancellation
		return c.feed.Close()
	}
	var err error
	switch {
	case c.KB != nil:
		err = c.KB.Stop()
	case c.board != nil:
		err = c.board.Close()
	}
	if err != nil && c.log != nil {
		c.log.Warn("failed to close capture source", zap.Error(err))
	}
	return err
}

// checkOverflow reports a raised overflow flag once and re-arms it
func (c *Capture) checkOverflow(emit func(Event)) {
	var err error
	switch {
	case c.KB.BufferOverflow():
		err = fmt.Errorf("frame queue overflow, frames dropped")
	case c.KB.DataOverflow():
		err = fmt.Errorf("frame exceeded %d bytes, truncated", keybus.ReadSize)
	default:
		return
	}
	emit(c.event(EventOverflow, func(e *Event) { e.Err = err }))
	c.KB.ClearOverflow()
}

func (c *Capture) event(kind EventKind, fill func(*Event)) Event {
	e := Event{
		Kind:   kind,
		At:     c.now(),
		Status: c.KB.Status,
		Zones:  c.KB.Zones,
		Keypad: c.KB.Keypad,
		Stats:  *c.KB.Stats,
	}
	fill(&e)
	return e
}
