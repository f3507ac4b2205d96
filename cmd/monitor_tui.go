// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Thermoquad/signalbox/pkg/z21"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for information
}

// monitorModel is the monitor TUI
type monitorModel struct {
	connInfo      string
	statsInterval int
	showAll       bool
	stats         *z21.Statistics
	eventLog      []eventLogEntry
	maxLogEntries int
	tracker       syncTracker
	width         int
	height        int
	quitting      bool
	power         z21.EventKind
	locos         map[uint16]z21.LocoInfo
	disconnected  error
}

// Messages
type tickMsg time.Time
type disconnectedMsg struct {
	err error
}

// formatDuration formats a duration as a human-friendly string
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "0 seconds"
	}

	seconds := int64(d / time.Second)
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	parts := []string{}
	for _, p := range []struct {
		n    int64
		unit string
	}{
		{days, "day"},
		{hours, "hour"},
		{minutes, "minute"},
		{seconds, "second"},
	} {
		switch {
		case p.n == 1:
			parts = append(parts, "1 "+p.unit)
		case p.n > 1:
			parts = append(parts, fmt.Sprintf("%d %ss", p.n, p.unit))
		}
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}

func initialMonitorModel(connInfo string, statsInterval int, showAll bool) monitorModel {
	return monitorModel{
		connInfo:      connInfo,
		statsInterval: statsInterval,
		showAll:       showAll,
		stats:         z21.NewStatistics(),
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
		power:         z21.EventNone,
		locos:         make(map[uint16]z21.LocoInfo),
	}
}

func (m monitorModel) Init() tea.Cmd {
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

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.stats.Reset()
			m.addLogEntry("Statistics reset", false)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.stats.CalculateRates()
		return m, tickCmd()

	case disconnectedMsg:
		m.disconnected = msg.err
		m.addLogEntry(fmt.Sprintf("Disconnected: %v", msg.err), true)

	case frameMsg:
		m.handleFrame(msg)
	}

	return m, nil
}

func (m *monitorModel) handleFrame(msg frameMsg) {
	count, synced := m.tracker.accept(msg.frame, msg.err)
	if synced {
		if m.tracker.skipped > 0 {
			m.addLogEntry(fmt.Sprintf("Synchronized after skipping %d invalid frames", m.tracker.skipped), false)
		} else {
			m.addLogEntry("Synchronized", false)
		}
	}
	if !count {
		return
	}

	if msg.frame == nil {
		m.stats.RecordFramingError()
		m.addLogEntry(fmt.Sprintf("FRAMING ERROR: %v", msg.err), true)
		return
	}

	m.stats.Update(msg.kind, msg.err)
	group := z21.FormatGroup(msg.frame[2])

	switch {
	case msg.err != nil:
		m.addLogEntry(fmt.Sprintf("%s: %v", group, msg.err), true)
	case msg.kind == z21.EventUnknown:
		m.addLogEntry(fmt.Sprintf("Unknown X-bus header 0x%02X", msg.frame[4]), true)
	case msg.loco != nil:
		m.locos[msg.loco.Address] = *msg.loco
		if m.showAll {
			m.addLogEntry(fmt.Sprintf("Loco %d: speed %d, %s", msg.loco.Address, msg.loco.Speed, msg.loco.Direction), false)
		}
	case isPowerEvent(msg.kind):
		if msg.kind != m.power {
			m.addLogEntry(msg.kind.String(), false)
		}
		m.power = msg.kind
	case m.showAll:
		m.addLogEntry(fmt.Sprintf("%s (%s)", group, msg.kind), false)
	}
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	entry := eventLogEntry{
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

func (m monitorModel) View() string {
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

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("SIGNALBOX - MONITOR"))
	s.WriteString("\n")
	mode := "Errors and state changes"
	if m.showAll {
		mode = "All frames"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Mode: %s | Up %s | 'r' reset, 'q' quit",
		m.connInfo, mode, formatDuration(time.Since(m.stats.StartTime)))))
	s.WriteString("\n\n")

	// Sync status
	switch {
	case m.disconnected != nil:
		s.WriteString(errorStyle.Render("✗ Disconnected"))
		s.WriteString("\n\n")
	case !m.tracker.synchronized:
		s.WriteString(warningStyle.Render("⏳ Waiting for synchronization..."))
		s.WriteString("\n\n")
	default:
		s.WriteString(statsValueStyle.Render("✓ Synchronized"))
		if m.tracker.skipped > 0 {
			s.WriteString(headerStyle.Render(fmt.Sprintf(" (skipped %d invalid frames)", m.tracker.skipped)))
		}
		s.WriteString("\n\n")
	}

	// Statistics
	m.stats.CalculateRates()
	var decodedPercent, errorPercent float64
	if m.stats.TotalFrames > 0 {
		decodedPercent = float64(m.stats.DecodedEvents) * 100.0 / float64(m.stats.TotalFrames)
		errorPercent = float64(m.stats.Errors()) * 100.0 / float64(m.stats.TotalFrames)
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.TotalFrames)),
		statsLabelStyle.Render("Decoded:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", m.stats.DecodedEvents, decodedPercent)),
		statsLabelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", m.stats.Errors(), errorPercent)),
	))

	if m.stats.Errors() > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
			statsLabelStyle.Render("Unrecognized:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.Unrecognized)),
			statsLabelStyle.Render("Truncated:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.Truncated)),
			statsLabelStyle.Render("Framing:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.FramingErrors)),
		))
	}

	if m.stats.UnknownXBus > 0 || m.stats.Acknowledged > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			statsLabelStyle.Render("Acknowledged:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.Acknowledged)),
			statsLabelStyle.Render("Unknown X-Bus:"), warningStyle.Render(fmt.Sprintf("%d", m.stats.UnknownXBus)),
		))
	}

	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		statsLabelStyle.Render("Frame Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f frames/s", m.stats.FrameRate)),
		statsLabelStyle.Render("Error Rate:"), func() string {
			if m.stats.ErrorRate > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
			}
			return statsValueStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
		}(),
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Layout section (only shown once state is known)
	if m.power != z21.EventNone || len(m.locos) > 0 {
		s.WriteString(statsLabelStyle.Render("Layout:"))
		s.WriteString("\n")

		layoutContent := strings.Builder{}
		if m.power != z21.EventNone {
			powerStyle := statsValueStyle
			if m.power != z21.EventTrackPowerOn {
				powerStyle = warningStyle
			}
			layoutContent.WriteString(fmt.Sprintf("%s %s\n",
				statsLabelStyle.Render("Track:"), powerStyle.Render(m.power.String())))
		}

		addresses := make([]int, 0, len(m.locos))
		for addr := range m.locos {
			addresses = append(addresses, int(addr))
		}
		sort.Ints(addresses)
		for _, addr := range addresses {
			loco := m.locos[uint16(addr)]
			layoutContent.WriteString(fmt.Sprintf("%s %s (%s)\n",
				statsLabelStyle.Render(fmt.Sprintf("Loco %d:", addr)),
				statsValueStyle.Render(fmt.Sprintf("%d/%d %s", loco.Speed, z21.MaxSpeed(loco.Steps), loco.Direction)),
				loco.Steps,
			))
		}

		s.WriteString(boxStyle.Render(strings.TrimSuffix(layoutContent.String(), "\n")))
		s.WriteString("\n\n")
	}

	// Event log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	// Calculate how many log entries we can show
	logHeight := m.height - 15 - len(m.locos) // Reserve space for header and stats
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
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}
