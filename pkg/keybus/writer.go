// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package keybus

import (
	"errors"
	"fmt"
	"sync/atomic"
)

var (
	ErrWriteDisabled = errors.New("keybus: write line not configured")
	ErrWriteBusy     = errors.New("keybus: write already in progress")
	ErrInvalidKey    = errors.New("keybus: unsupported key")
	ErrWriteTooLong  = errors.New("keybus: too many keys")
)

type writeKey struct {
	code     byte
	alarm    bool // sent in the command slot and repeated on the next cycle
	asterisk bool
}

// writer holds one key job. The foreground stages keys only while pending is
// false; the interrupt side owns next and alarmRepeat (under capMu) and clears
// pending when the last key is out.
type writer struct {
	enabled bool

	keys [MaxWriteKeys]writeKey
	n    int
	next int

	pending       atomic.Bool
	ready         atomic.Bool // set at a frame boundary, cleared once a key is sent
	wroteAsterisk atomic.Bool // held until the panel shows the '*' menu
	alarmRepeat   bool

	asteriskWait int // status frames seen while wroteAsterisk is held
}

// advance moves to the next key, finishing the job after the last one
func (w *writer) advance() {
	w.next++
	if w.next >= w.n {
		w.pending.Store(false)
	}
}

var regularKeys = map[byte]byte{
	'0': 0x00, '1': 0x05, '2': 0x0A, '3': 0x0F,
	'4': 0x11, '5': 0x16, '6': 0x1B, '7': 0x1C,
	'8': 0x22, '9': 0x27, '*': 0x28, '#': 0x2D,
	's': 0xAF, // arm stay
	'w': 0xB1, // arm away
	'c': 0xBB, // door chime
	'r': 0xDA, // reset
	'x': 0xE1, // exit
}

var alarmKeys = map[byte]byte{
	'F': KEYPAD_FIRE_ALARM,
	'A': KEYPAD_AUX_ALARM,
	'P': KEYPAD_PANIC_ALARM,
}

// lookupKey maps a keypad character to its bus encoding
func lookupKey(c byte) (writeKey, bool) {
	if code, ok := alarmKeys[upper(c)]; ok {
		return writeKey{code: code, alarm: true}, true
	}
	if code, ok := regularKeys[lower(c)]; ok {
		return writeKey{code: code, asterisk: c == '*'}, true
	}
	return writeKey{}, false
}

// KeyCode returns the code a keypad sends for c. Alarm keys are sent in the
// command byte instead of byte 2.
func KeyCode(c byte) (code byte, alarm bool, ok bool) {
	k, ok := lookupKey(c)
	return k.code, k.alarm, ok
}

// keyForCode maps a device key code back to its keypad character
func keyForCode(code byte) (byte, bool) {
	for k, v := range regularKeys {
		if v == code {
			return k, true
		}
	}
	return 0, false
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}

func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c - 'A' + 'a'
	}
	return c
}

// Write stages keys to be sent as a virtual keypad. Only one job may be
// pending; keys are emitted one per bus cycle as the panel allows.
func (i *Interface) Write(keys string) error {
	w := &i.w
	if !w.enabled {
		return ErrWriteDisabled
	}
	if w.pending.Load() {
		return ErrWriteBusy
	}
	if len(keys) == 0 {
		return nil
	}
	if len(keys) > MaxWriteKeys {
		return fmt.Errorf("%w: %d (max %d)", ErrWriteTooLong, len(keys), MaxWriteKeys)
	}

	var staged [MaxWriteKeys]writeKey
	for n := 0; n < len(keys); n++ {
		k, ok := lookupKey(keys[n])
		if !ok {
			return fmt.Errorf("%w: %q", ErrInvalidKey, keys[n])
		}
		staged[n] = k
	}

	w.keys = staged
	w.n = len(keys)
	w.next = 0
	w.pending.Store(true)

	i.log.Debug("write staged", zapKeys(keys, i.cfg.HideDigits))
	return nil
}

// WriteKey stages a single key
func (i *Interface) WriteKey(key byte) error {
	return i.Write(string([]byte{key}))
}

// WritePending reports whether a write job is still being sent
func (i *Interface) WritePending() bool {
	return i.w.pending.Load()
}

// WriteReady reports whether the next key will be sent on the coming cycle
func (i *Interface) WriteReady() bool {
	return i.w.ready.Load()
}

// checkAsteriskPrompt releases the '*' latch once the panel opens the '*'
// menu, or after AsteriskHoldCycles status frames without it.
func (i *Interface) checkAsteriskPrompt(f *Frame) {
	w := &i.w
	if !w.wroteAsterisk.Load() {
		return
	}
	w.asteriskWait++
	if f.Byte(3) == STATUS_STAR_MENU || w.asteriskWait >= AsteriskHoldCycles {
		w.asteriskWait = 0
		w.wroteAsterisk.Store(false)
	}
}
