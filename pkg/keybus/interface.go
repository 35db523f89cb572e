// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package keybus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	ErrNoBoard        = errors.New("keybus: no board configured")
	ErrAlreadyStarted = errors.New("keybus: already started")
	ErrBoardAttached  = errors.New("keybus: frames are captured from the board")
)

// Config configures an Interface
type Config struct {
	// Board is the bus binding. Leave nil to supply frames with Feed.
	Board Board
	// Logger receives foreground diagnostics. Nil disables logging.
	Logger *zap.Logger

	// WriteEnabled allows Write when the board has a write line
	WriteEnabled bool
	// HideDigits masks keypad digits in logs and rendered output
	HideDigits bool
	// ProcessRedundantData reports repeated frames instead of suppressing them
	ProcessRedundantData bool
	// ProcessDeviceData captures device replies for HandleKeybus
	ProcessDeviceData bool
	// ShowTrailingBits renders bits past the last full byte
	ShowTrailingBits bool
	// RedundantSpan overrides, per command, how many leading bytes must
	// match the last frame for a repeat to count as redundant
	RedundantSpan map[byte]int
}

// Interface decodes one Keybus. Capture runs from board callbacks; everything
// else runs on the goroutine calling HandlePanel, HandleKeybus and Write.
type Interface struct {
	cfg     Config
	board   Board
	log     *zap.Logger
	limiter *rate.Limiter

	// Interrupt side
	capMu          sync.Mutex
	bus            capture
	panelQ         *ring[Frame]
	deviceQ        *ring[DeviceFrame]
	dataOverflow   atomic.Bool
	bufferOverflow atomic.Bool
	deviceDropped  atomic.Uint32

	w writer

	started  bool
	stopOnce sync.Once
	stopErr  error

	// Foreground side
	panel      Frame
	rejected   Frame
	device     DeviceFrame
	deviceSeen bool
	last       map[byte]Frame
	reported   struct{ data, buffer bool }

	Status Status
	Zones  Zones
	Keypad Keypad
	Stats  *Statistics
}

// New creates an Interface. Nothing is captured until Begin.
func New(cfg Config) (*Interface, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	i := &Interface{
		cfg:     cfg,
		board:   cfg.Board,
		log:     logger.Named("keybus"),
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
		panelQ:  newRing[Frame](QueueCapacity),
		deviceQ: newRing[DeviceFrame](QueueCapacity),
		last:    make(map[byte]Frame),
		Stats:   NewStatistics(),
	}
	i.w.enabled = cfg.WriteEnabled && cfg.Board != nil && cfg.Board.CanWrite()
	return i, nil
}

// Begin attaches the clock edge handler and the boundary timer. The board is
// closed when ctx is cancelled or Stop is called.
func (i *Interface) Begin(ctx context.Context) error {
	if i.board == nil {
		return ErrNoBoard
	}
	if i.started {
		return ErrAlreadyStarted
	}

	i.capMu.Lock()
	i.bus.risingAt = i.board.Now()
	i.capMu.Unlock()

	if err := i.board.OnClockEdge(i.clockEdge); err != nil {
		return err
	}
	if err := i.board.StartTimer(TimerPeriod, i.tick); err != nil {
		return err
	}
	i.started = true

	if done := ctx.Done(); done != nil {
		go func() {
			<-done
			i.Stop()
		}()
	}

	i.log.Info("capture started",
		zap.Bool("write_enabled", i.w.enabled),
		zap.Bool("device_data", i.cfg.ProcessDeviceData),
		zap.Int("queue_capacity", i.panelQ.capacity()))
	return nil
}

// Stop releases the board. Every call returns the error from closing it.
func (i *Interface) Stop() error {
	i.stopOnce.Do(func() {
		if i.board != nil {
			i.stopErr = i.board.Close()
		}
	})
	return i.stopErr
}

// Feed queues a panel frame captured elsewhere, such as a serial capture or a
// recording. It is only available without a board.
func (i *Interface) Feed(f Frame) error {
	if i.board != nil {
		return ErrBoardAttached
	}
	if !i.panelQ.push(&f) {
		i.bufferOverflow.Store(true)
	}
	return nil
}

// FeedDevice queues a device reply captured elsewhere
func (i *Interface) FeedDevice(d DeviceFrame) error {
	if i.board != nil {
		return ErrBoardAttached
	}
	if !i.deviceQ.push(&d) {
		i.deviceDropped.Add(1)
	}
	return nil
}

// HandlePanel pops the next panel frame. It returns true when a new frame
// passed its integrity check and was decoded into Status and Zones. Status
// commands carry no checksum and are checked for length only.
func (i *Interface) HandlePanel() bool {
	i.reportOverflow()

	var f Frame
	if !i.panelQ.pop(&f) {
		return false
	}
	i.Stats.TotalFrames++

	h, known := lookupHandler(f.Command())
	if h.checksum && !ValidChecksum(&f) {
		i.rejected = f
		i.Stats.ChecksumErrors++
		if i.limiter.Allow() {
			i.log.Warn("checksum mismatch",
				zap.String("command", FormatCommand(f.Command())),
				zap.Uint8("bits", f.Bits),
				zap.String("data", FormatBinary(&f, true)))
		}
		return false
	}
	i.Stats.ValidFrames++

	i.panel = f
	return i.decodePanel(&f, h, known)
}

// PanelData returns the last checksum-valid panel frame
func (i *Interface) PanelData() Frame {
	return i.panel
}

// RejectedData returns the last panel frame that failed the checksum
func (i *Interface) RejectedData() Frame {
	return i.rejected
}

// KeybusData returns the last device reply
func (i *Interface) KeybusData() DeviceFrame {
	return i.device
}

// QueueLength returns the number of panel frames waiting to be handled
func (i *Interface) QueueLength() int {
	return i.panelQ.len()
}

// DataOverflow reports whether a frame was truncated at ReadSize bytes
func (i *Interface) DataOverflow() bool {
	return i.dataOverflow.Load()
}

// BufferOverflow reports whether a frame was dropped because the queue was
// full
func (i *Interface) BufferOverflow() bool {
	return i.bufferOverflow.Load()
}

// ClearOverflow resets both overflow flags
func (i *Interface) ClearOverflow() {
	i.dataOverflow.Store(false)
	i.bufferOverflow.Store(false)
	i.reported.data = false
	i.reported.buffer = false
}

// Changed reports whether any status or zone field changed since
// ClearChanged
func (i *Interface) Changed() bool {
	return i.Status.Changed || i.Zones.Changed || i.Keypad.Changed
}

// ClearChanged resets every change flag
func (i *Interface) ClearChanged() {
	i.Status.clearChanged()
	i.Zones.clearChanged()
	i.Keypad.Changed = false
}

// Formatter returns a formatter using the configured rendering options
func (i *Interface) Formatter() Formatter {
	return Formatter{HideDigits: i.cfg.HideDigits, ShowTrailingBits: i.cfg.ShowTrailingBits}
}

// reportOverflow logs each overflow once until ClearOverflow
func (i *Interface) reportOverflow() {
	if i.dataOverflow.Load() && !i.reported.data {
		i.reported.data = true
		i.Stats.DataOverflows++
		i.log.Warn("frame exceeded capture buffer", zap.Int("read_size", ReadSize))
	}
	if i.bufferOverflow.Load() && !i.reported.buffer {
		i.reported.buffer = true
		i.Stats.BufferOverflows++
		i.log.Warn("frame queue full, dropping frames", zap.Int("capacity", i.panelQ.capacity()))
	}
	if n := i.deviceDropped.Swap(0); n > 0 {
		i.log.Debug("device replies dropped", zap.Uint32("count", n))
	}
}

// zapKeys logs a key sequence, masking digits when asked
func zapKeys(keys string, hideDigits bool) zap.Field {
	if hideDigits {
		keys = maskDigits(keys)
	}
	return zap.String("keys", keys)
}
