// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/keybusstat/pkg/keybus"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Event log entry
type logEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// TUI model
type model struct {
	info          string
	fm            keybus.Formatter
	state         Event
	haveState     bool
	eventLog      []logEntry
	maxLogEntries int

	// Virtual keypad
	writeEnabled bool
	keypad       textinput.Model
	writes       chan<- string

	width    int
	height   int
	quitting bool
	err      error
}

// Messages
type tickMsg time.Time
type captureMsg Event
type captureErrMsg struct{ err error }

func initialModel(info string, fm keybus.Formatter, writeEnabled bool, writes chan<- string) model {
	ti := textinput.New()
	ti.Placeholder = "1234#"
	ti.CharLimit = keybus.MaxWriteKeys
	ti.Width = keybus.MaxWriteKeys + 2
	ti.Prompt = "Keys: "
	if fm.HideDigits {
		ti.EchoMode = textinput.EchoPassword
	}

	return model{
		info:          info,
		fm:            fm,
		eventLog:      make([]logEntry, 0),
		maxLogEntries: 100,
		writeEnabled:  writeEnabled,
		keypad:        ti,
		writes:        writes,
		width:         80,
		height:        24,
	}
}

// runTUI shows the status view until the user quits or ctx is done
func runTUI(ctx context.Context, c *Capture, writeEnabled bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	writes := make(chan string, 1)
	p := tea.NewProgram(initialModel(c.Info, c.KB.Formatter(), writeEnabled, writes), tea.WithContext(ctx))

	done := make(chan error, 1)
	go func() {
		err := c.Run(ctx, writes, func(ev Event) { p.Send(captureMsg(ev)) })
		if err != nil {
			p.Send(captureErrMsg{err})
		}
		done <- err
	}()

	final, err := p.Run()
	cancel()
	<-done

	if err != nil && ctx.Err() == nil {
		return err
	}
	if m, ok := final.(model); ok && m.err != nil {
		return m.err
	}
	return nil
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		// Update statistics rates
		m.state.Stats.CalculateRates()
		return m, tickCmd()

	case captureErrMsg:
		m.err = msg.err
		m.quitting = true
		return m, tea.Quit

	case captureMsg:
		m.handleEvent(Event(msg))
	}

	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	if m.keypad.Focused() {
		switch msg.Type {
		case tea.KeyEnter:
			keys := m.keypad.Value()
			m.keypad.Reset()
			if keys == "" {
				return m, nil
			}
			select {
			case m.writes <- keys:
			default:
				m.addLogEntry("Previous keys not yet staged", true)
			}
			return m, nil
		case tea.KeyEsc:
			m.keypad.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.keypad, cmd = m.keypad.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "k":
		if m.writeEnabled {
			return m, m.keypad.Focus()
		}
		m.addLogEntry("Writing is disabled, start with --write", true)
	}
	return m, nil
}

func (m *model) handleEvent(ev Event) {
	if ev.Kind == EventPanel || ev.Kind == EventDevice {
		m.state = ev
		m.haveState = true
	} else {
		m.state.Stats = ev.Stats
	}

	switch ev.Kind {
	case EventPanel:
		m.addLogEntry(m.fm.PanelMessage(&ev.Panel), false)
		for _, c := range describeChanges(ev.Status, ev.Zones) {
			m.addLogEntry("  "+c, false)
		}
	case EventRejected:
		m.addLogEntry(rejectedMessage(&ev.Panel, m.fm), true)
	case EventDevice:
		m.addLogEntry(m.fm.KeybusMessage(&ev.Device), false)
	case EventWrite:
		if ev.Err != nil {
			m.addLogEntry(fmt.Sprintf("Write %s failed: %v", m.fm.Keys(ev.Keys), ev.Err), true)
		} else {
			m.addLogEntry(fmt.Sprintf("Write %s queued", m.fm.Keys(ev.Keys)), false)
		}
	case EventOverflow:
		m.addLogEntry(ev.Err.Error(), true)
	}
}

func (m *model) addLogEntry(message string, isError bool) {
	entry := logEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("KEYBUSSTAT - PANEL MONITOR"))
	s.WriteString("\n")
	help := "Press 'q' to quit"
	if m.writeEnabled {
		help += " | 'k' to enter keys"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("Source: %s | %s", m.info, help)))
	s.WriteString("\n\n")

	if !m.haveState {
		s.WriteString(warningStyle.Render("⏳ Waiting for panel data..."))
		s.WriteString("\n\n")
	}

	// Panel status
	st := m.state.Status
	status := strings.Builder{}
	status.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Lights:"), valueStyle.Render(keybus.FormatLights(st.Lights))))
	status.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Status:"), valueStyle.Render(keybus.FormatStatusCode(st.Code))))

	var flags []string
	for _, f := range statusFlags(st) {
		if !f.flag.On {
			continue
		}
		switch f.name {
		case "Alarm", "Fire", "Keypad fire alarm", "Keypad aux alarm", "Keypad panic alarm":
			flags = append(flags, errorStyle.Render(f.name))
		case "Trouble", "Battery trouble", "AC power trouble":
			flags = append(flags, warningStyle.Render(f.name))
		default:
			flags = append(flags, valueStyle.Render(f.name))
		}
	}
	status.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Flags:"), joinOrNone(flags)))

	z := m.state.Zones
	status.WriteString(fmt.Sprintf("%s %s   %s %s",
		labelStyle.Render("Open zones:"), valueStyle.Render(joinZones(z.Open.List())),
		labelStyle.Render("Alarm zones:"), func() string {
			if z.Alarm.Any() {
				return errorStyle.Render(joinZones(z.Alarm.List()))
			}
			return valueStyle.Render("none")
		}(),
	))
	if st.TimeAvailable {
		status.WriteString(fmt.Sprintf("\n%s %s", labelStyle.Render("Panel time:"), valueStyle.Render(keybus.FormatTime(st.Time))))
	}
	if st.LastEvent.Code != 0 {
		status.WriteString(fmt.Sprintf("\n%s %s", labelStyle.Render("Last event:"), valueStyle.Render(keybus.FormatEvent(st.LastEvent))))
	}
	if kp := m.state.Keypad.Last; kp.Code != 0 || kp.Key != 0 {
		key := m.fm.Keys(string(kp.Key))
		status.WriteString(fmt.Sprintf("\n%s %s", labelStyle.Render("Last key:"), valueStyle.Render(key)))
	}

	s.WriteString(boxStyle.Render(status.String()))
	s.WriteString("\n\n")

	// Statistics
	stats := m.state.Stats
	var validPercent float64
	if stats.TotalFrames > 0 {
		validPercent = float64(stats.ValidFrames) * 100.0 / float64(stats.TotalFrames)
	}
	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("Frames:"), valueStyle.Render(fmt.Sprintf("%d", stats.TotalFrames)),
		labelStyle.Render("Valid:"), valueStyle.Render(fmt.Sprintf("%d (%.1f%%)", stats.ValidFrames, validPercent)),
		labelStyle.Render("Checksum errors:"), func() string {
			if stats.ChecksumErrors > 0 {
				return errorStyle.Render(fmt.Sprintf("%d", stats.ChecksumErrors))
			}
			return valueStyle.Render("0")
		}(),
	))
	if stats.DataOverflows > 0 || stats.BufferOverflows > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s\n",
			labelStyle.Render("Overflows:"),
			errorStyle.Render(fmt.Sprintf("%d data, %d buffer", stats.DataOverflows, stats.BufferOverflows)),
		))
	}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		labelStyle.Render("Frame Rate:"), valueStyle.Render(fmt.Sprintf("%.1f frames/s", stats.FrameRate)),
		labelStyle.Render("Keypresses:"), valueStyle.Render(fmt.Sprintf("%d", stats.Keypresses)),
	))
	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	// Calculate how many log entries we can show
	logHeight := m.height - 20
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					entry.message,
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	if m.keypad.Focused() {
		s.WriteString("\n")
		s.WriteString(m.keypad.View())
		s.WriteString(headerStyle.Render("  (enter to send, esc to cancel)"))
	}

	return s.String()
}
