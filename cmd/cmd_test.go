// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/keybusstat/internal/config"
	"github.com/Thermoquad/keybusstat/pkg/keybus"
	"github.com/Thermoquad/keybusstat/pkg/keybus/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func frameOf(t *testing.T, data []byte) keybus.Frame {
	t.Helper()
	f, ok := keybus.FrameFromBits(keybus.FrameBits(data))
	require.True(t, ok)
	return f
}

func feedCapture(t *testing.T) *Capture {
	t.Helper()
	cfg := &config.Config{}
	cfg.Decoder.ProcessDeviceData = true
	c, err := newReplayCapture(cfg)
	require.NoError(t, err)
	c.now = func() time.Duration { return 0 }
	return c
}

func collect(events *[]Event) func(Event) {
	return func(ev Event) { *events = append(*events, ev) }
}

// ============================================================================
// Capture line parsing
// ============================================================================

func TestParseFeedLine(t *testing.T) {
	status := frameOf(t, sim.StatusFrame(keybus.LIGHT_READY, keybus.STATUS_READY))
	line := keybus.FormatBinary(&status, false)

	tests := []struct {
		name   string
		line   string
		ok     bool
		device bool
		err    bool
	}{
		{"plain panel line", line, true, false, false},
		{"prefixed panel line", "P:" + line, true, false, false},
		{"device line", "K:11111111 1 00000101", true, true, false},
		{"blank", "   ", false, false, false},
		{"comment", "# capture started", false, false, false},
		{"garbage", "hello", false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fl, ok, err := parseFeedLine(tt.line)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.device, fl.device)
		})
	}

	fl, ok, err := parseFeedLine(line)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, fl.frame.Equal(&status))
}

func TestRunFeed(t *testing.T) {
	c := feedCapture(t)

	status := frameOf(t, sim.StatusFrame(keybus.LIGHT_READY, keybus.STATUS_READY))
	reply := frameOf(t, sim.KeyPress('5'))
	input := strings.Join([]string{
		"# test capture",
		"P:" + keybus.FormatBinary(&status, false),
		"K:" + keybus.FormatBinary(&reply, false),
		"not a frame",
	}, "\n")

	err := runFeed(strings.NewReader(input), c.KB, zap.NewNop())
	assert.ErrorIs(t, err, io.EOF)

	var events []Event
	c.Poll(collect(&events))

	require.Len(t, events, 2)
	assert.Equal(t, EventPanel, events[0].Kind)
	assert.True(t, events[0].Status.Ready.On)
	assert.Equal(t, EventDevice, events[1].Kind)
	assert.Equal(t, byte(keybus.CMD_STATUS), events[1].Device.Panel)
	assert.Equal(t, byte('5'), events[1].Keypad.Last.Key)
}

func TestRedundantSpans(t *testing.T) {
	spans := redundantSpans(map[string]int{
		"0xa5": 6,
		"39":   4,
		"zz":   2,
		"0x05": -1,
	}, zap.NewNop())
	assert.Equal(t, map[byte]int{keybus.CMD_DATE_TIME: 6, keybus.CMD_ZONES_1_8: 4}, spans)
	assert.Nil(t, redundantSpans(nil, zap.NewNop()))
}

// ============================================================================
// Output
// ============================================================================

func TestDescribeChanges(t *testing.T) {
	var s keybus.Status
	s.ArmedAway = keybus.Flag{On: true, Changed: true}
	s.Ready = keybus.Flag{On: false, Changed: true}
	s.Armed = keybus.Flag{On: true}

	var z keybus.Zones
	z.Open.Set(3, true)
	z.OpenChanged.Set(3, true)
	z.OpenChanged.Set(4, true)

	changes := describeChanges(s, z)
	assert.Equal(t, []string{
		"Ready: off",
		"Armed away: on",
		"Zone 3: open",
		"Zone 4: closed",
	}, changes)
}

func TestDescribeStatus(t *testing.T) {
	var s keybus.Status
	s.Ready.On = true
	s.TimeAvailable = true
	s.Time = keybus.PanelTime{Year: 2025, Month: 1, Day: 2, Hour: 3, Minute: 4}

	var z keybus.Zones
	z.Open.Set(1, true)
	z.Open.Set(9, true)

	out := describeStatus(s, z)
	assert.Contains(t, out, "Flags:       Ready\n")
	assert.Contains(t, out, "Open zones:  1, 9\n")
	assert.Contains(t, out, "Alarm zones: none\n")
	assert.Contains(t, out, "Panel time:  2025.01.02 03:04\n")
}

func TestRejectedMessage(t *testing.T) {
	data := sim.ZoneFrame(keybus.CMD_ZONES_1_8, keybus.LIGHT_READY, keybus.STATUS_READY, 0x01)
	good := data[len(data)-1]
	data[len(data)-1]++
	f := frameOf(t, data)

	msg := rejectedMessage(&f, keybus.Formatter{})
	assert.True(t, strings.HasPrefix(msg, "[Checksum] "))
	assert.Contains(t, msg, "57 bits")
	assert.Contains(t, msg, "expected 0x"+strings.ToUpper(hexByte(good)))
}

func hexByte(b byte) string {
	const digits = "0123456789abcdef"
	return string([]byte{digits[b>>4], digits[b&0x0F]})
}

func TestPrinterUnknownFormat(t *testing.T) {
	_, err := newPrinter(io.Discard, "xml", keybus.Formatter{})
	assert.Error(t, err)
}

func TestBinaryOutputFeedsBack(t *testing.T) {
	var buf bytes.Buffer
	p, err := newPrinter(&buf, "binary", keybus.Formatter{})
	require.NoError(t, err)

	zone := frameOf(t, sim.ZoneFrame(keybus.CMD_ZONES_1_8, 0, keybus.STATUS_ZONES_OPEN, 0x81))
	p.handle(Event{Kind: EventPanel, Panel: zone})
	require.NoError(t, p.err)

	c := feedCapture(t)
	require.ErrorIs(t, runFeed(&buf, c.KB, zap.NewNop()), io.EOF)

	var events []Event
	c.Poll(collect(&events))
	require.Len(t, events, 1)
	assert.Equal(t, []int{1, 8}, events[0].Zones.Open.List())
}

// ============================================================================
// Replay
// ============================================================================

func TestReplay(t *testing.T) {
	var buf bytes.Buffer
	rw := keybus.NewRecordWriter(&buf)

	status := frameOf(t, sim.StatusFrame(keybus.LIGHT_ARMED, keybus.STATUS_ARMED_AWAY))
	reply := keybus.DeviceFrame{Frame: frameOf(t, sim.KeyPress('P')), Panel: keybus.CMD_STATUS}
	bad := sim.ZoneFrame(keybus.CMD_ZONES_9_16, keybus.LIGHT_READY, keybus.STATUS_READY, 0x01)
	bad[len(bad)-1] ^= 0xFF
	corrupt := frameOf(t, bad)

	require.NoError(t, rw.Write(keybus.NewPanelRecord(10*time.Millisecond, &status)))
	require.NoError(t, rw.Write(keybus.NewDeviceRecord(10*time.Millisecond, &reply)))
	require.NoError(t, rw.Write(keybus.NewPanelRecord(80*time.Millisecond, &corrupt)))

	c := feedCapture(t)
	var events []Event
	n, err := replay(keybus.NewRecordReader(&buf), c, collect(&events))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.Len(t, events, 3)
	assert.Equal(t, EventPanel, events[0].Kind)
	assert.True(t, events[0].Status.ArmedAway.On)
	assert.Equal(t, 10*time.Millisecond, events[0].At)

	assert.Equal(t, EventDevice, events[1].Kind)
	assert.Equal(t, byte('P'), events[1].Keypad.Last.Key)

	assert.Equal(t, EventRejected, events[2].Kind)
	assert.Equal(t, 80*time.Millisecond, events[2].At)
	assert.Equal(t, uint64(1), c.KB.Stats.ChecksumErrors)
}

// ============================================================================
// Simulated panel
// ============================================================================

func TestSimPanelFinishes(t *testing.T) {
	bus := sim.New()
	steps := []simStep{{panel: sim.StatusFrame(keybus.LIGHT_READY, keybus.STATUS_READY), repeat: 3}}
	p := newSimPanel(bus, steps, false)

	for i := 0; i < 1000 && !p.done(); i++ {
		p.step(pollInterval)
	}
	assert.True(t, p.done())
	assert.Equal(t, 1, p.passes)
	assert.Len(t, bus.Replies(), 3)
}

func TestSimulateCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs([]string{"simulate", "--log-level", "error"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.Execute())

	got := out.String()
	assert.Contains(t, got, "Time: 2025.06.14 21:30")
	assert.Contains(t, got, "Zone 1: open")
	assert.Contains(t, got, "Zone 3: open")
	assert.Contains(t, got, "Zone 3: closed")
	assert.Contains(t, got, "[Keypad] 1")
	assert.Contains(t, got, "Exit delay: on")
	assert.Contains(t, got, "Armed away: on")
	assert.Contains(t, got, "Event: Armed away")
	assert.Contains(t, got, "Entry delay: on")
	assert.Contains(t, got, "=== Panel Status ===")
	assert.Contains(t, got, "Panel time:  2025.06.14 21:31")
	assert.NotContains(t, got, "[Checksum]")
}
