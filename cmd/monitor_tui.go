// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/rfbridge/pkg/bridge"
	"github.com/Thermoquad/rfbridge/pkg/pipes"
)

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// Messages
type monitorTickMsg time.Time
type bridgeEventMsg bridge.Event
type bridgeStoppedMsg struct {
	err error
}

// TUI model
type monitorModel struct {
	connInfo      string
	table         *pipes.Table
	stats         *bridge.Statistics
	counters      bridge.Counters
	submit        func(string)
	input         textinput.Model
	eventLog      []eventLogEntry
	maxLogEntries int
	stopped       error
	width         int
	height        int
	quitting      bool
}

func initialMonitorModel(connInfo string, table *pipes.Table, stats *bridge.Statistics, submit func(string)) monitorModel {
	ti := textinput.New()
	ti.Placeholder = "payload for the writing pipe"
	ti.Prompt = "> "
	ti.Width = 40
	ti.Focus()

	return monitorModel{
		connInfo:      connInfo,
		table:         table,
		stats:         stats,
		counters:      stats.Snapshot(),
		submit:        submit,
		input:         ti,
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(monitorTickCmd(), textinput.Blink)
}

func monitorTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			text := m.input.Value()
			if text == "" || m.stopped != nil {
				return m, nil
			}
			m.submit(text)
			m.addLogEntry(fmt.Sprintf("QUEUED %q", text), false)
			m.input.Reset()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(10, msg.Width-10)

	case monitorTickMsg:
		m.counters = m.stats.Snapshot()
		return m, monitorTickCmd()

	case bridgeEventMsg:
		e := bridge.Event(msg)
		m.addLogEntry(formatEvent(e), e.Kind.IsError())
		m.counters = m.stats.Snapshot()
		return m, nil

	case bridgeStoppedMsg:
		m.stopped = msg.err
		m.addLogEntry(fmt.Sprintf("Bridge stopped: %v", msg.err), true)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})

	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

// formatEvent renders one bridge event for the event log
func formatEvent(e bridge.Event) string {
	kind := e.Kind.String()
	switch e.Kind {
	case bridge.EventPublished:
		return fmt.Sprintf("%s pipe %d -> %s: %q", kind, e.Pipe, e.Topic, e.Payload)
	case bridge.EventSuppressed:
		return fmt.Sprintf("%s pipe %d (%s)", kind, e.Pipe, e.Address)
	case bridge.EventCorrupted:
		return fmt.Sprintf("%s pipe %d (%s) raw=%s", kind, e.Pipe, e.Address, hex.EncodeToString(e.Raw))
	case bridge.EventPublishError:
		return fmt.Sprintf("%s pipe %d -> %s: %v", kind, e.Pipe, e.Topic, e.Err)
	case bridge.EventTransmitted:
		return fmt.Sprintf("%s pipe %d (%s) <- %q", kind, e.Pipe, e.Address, e.Payload)
	case bridge.EventTransmitFailed:
		return fmt.Sprintf("%s %q: %v", kind, e.Payload, e.Err)
	case bridge.EventTruncated, bridge.EventWriteReplaced:
		return fmt.Sprintf("%s %q", kind, e.Payload)
	}
	return kind
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
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

	var s strings.Builder
	s.WriteString(titleStyle.Render("RFBRIDGE - MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Enter sends | Esc quits", m.connInfo)))
	s.WriteString("\n\n")

	if m.stopped != nil {
		s.WriteString(errorStyle.Render(fmt.Sprintf("✗ Bridge stopped: %v", m.stopped)))
		s.WriteString("\n\n")
	}

	// Pipes
	var pipesContent strings.Builder
	w := m.table.Writing()
	pipesContent.WriteString(fmt.Sprintf("%s %s <- %s\n",
		statsLabelStyle.Render("Pipe 0"), statsValueStyle.Render(w.Address.String()), w.Topic))
	for _, p := range m.table.ReadingPipes() {
		pipesContent.WriteString(fmt.Sprintf("%s %s -> %s\n",
			statsLabelStyle.Render(fmt.Sprintf("Pipe %d", p.Index)), statsValueStyle.Render(p.Address.String()), p.Topic))
	}
	s.WriteString(boxStyle.Render(strings.TrimSuffix(pipesContent.String(), "\n")))
	s.WriteString("\n")

	// Statistics
	c := m.counters
	errorValue := statsValueStyle
	if c.Errors() > 0 {
		errorValue = errorStyle
	}
	statsContent := fmt.Sprintf("%s %s   %s %s   %s %s   %s %s\n%s %s   %s %s   %s %s   %s %s\n%s %s   %s %s",
		statsLabelStyle.Render("Frames:"), statsValueStyle.Render(fmt.Sprintf("%d", c.Frames)),
		statsLabelStyle.Render("Published:"), statsValueStyle.Render(fmt.Sprintf("%d", c.Published)),
		statsLabelStyle.Render("Confirmed:"), statsValueStyle.Render(fmt.Sprintf("%d", c.Confirmations)),
		statsLabelStyle.Render("Corrupted:"), errorValue.Render(fmt.Sprintf("%d", c.Corrupted)),
		statsLabelStyle.Render("Sent:"), statsValueStyle.Render(fmt.Sprintf("%d", c.Transmitted)),
		statsLabelStyle.Render("Failed:"), errorValue.Render(fmt.Sprintf("%d", c.TransmitFailures)),
		statsLabelStyle.Render("Truncated:"), warningStyle.Render(fmt.Sprintf("%d", c.Truncated)),
		statsLabelStyle.Render("Replaced:"), warningStyle.Render(fmt.Sprintf("%d", c.ReplacedWrites)),
		statsLabelStyle.Render("Frame Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f frames/s", c.FrameRate)),
		statsLabelStyle.Render("Error Rate:"), errorValue.Render(fmt.Sprintf("%.1f err/s", c.ErrorRate)),
	)
	s.WriteString(boxStyle.Render(statsContent))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 20
	if logHeight < 5 {
		logHeight = 5
	}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	var logContent strings.Builder
	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message)))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message)))
			}
		}
	}
	s.WriteString(boxStyle.Width(max(20, m.width-4)).Render(logContent.String()))
	s.WriteString("\n")
	s.WriteString(m.input.View())

	return s.String()
}
