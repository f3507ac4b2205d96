// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Thermoquad/signalbox/pkg/z21"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

// Focus states
const (
	focusLocoList = iota
	focusSpeedInput
	focusButton
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// locoItem is one controlled locomotive
type locoItem struct {
	info     z21.LocoInfo
	known    bool
	lastSeen time.Time
}

// Implement list.Item interface
func (l locoItem) Title() string { return fmt.Sprintf("Loco %d", l.info.Address) }
func (l locoItem) Description() string {
	if !l.known {
		return "waiting for state"
	}
	return fmt.Sprintf("%d/%d %s", l.info.Speed, z21.MaxSpeed(l.info.Steps), l.info.Direction)
}
func (l locoItem) FilterValue() string { return strconv.Itoa(int(l.info.Address)) }

// throttleModel is the Bubble Tea model for the throttle TUI
type throttleModel struct {
	// Connection manager (for sending commands and reconnection)
	connMgr  *connectionManager
	connInfo string

	// Loco tracking
	locos    []locoItem
	locoList list.Model

	// Monitoring (shared with the monitor TUI)
	stats         *z21.Statistics
	eventLog      []eventLogEntry
	maxLogEntries int
	tracker       syncTracker
	power         z21.EventKind

	// Control
	speedInput   textinput.Model
	focusedField int

	// UI state
	width          int
	height         int
	quitting       bool
	connectionLost bool

	// Poll state
	pollInterval time.Duration
	lastPollTime time.Time
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type throttleTickMsg time.Time

type throttleBatchMsg struct {
	messages []frameMsg
}

type connectionLostMsg struct{}

type reconnectedMsg struct {
	connInfo string
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialThrottleModel(connMgr *connectionManager, connInfo string, addresses []uint16, pollInterval time.Duration) throttleModel {
	// Initialize text input for speed
	ti := textinput.New()
	ti.Placeholder = "0"
	ti.CharLimit = 3
	ti.Width = 6

	locos := make([]locoItem, len(addresses))
	items := make([]list.Item, len(addresses))
	for i, addr := range addresses {
		locos[i] = locoItem{info: z21.LocoInfo{
			Address:   addr,
			Steps:     cfg.DefaultSteps,
			Direction: z21.DirectionForward,
		}}
		items[i] = locos[i]
	}

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	locoList := list.New(items, delegate, 30, 10)
	locoList.Title = "Locos"
	locoList.SetShowStatusBar(false)
	locoList.SetShowHelp(false)
	locoList.SetFilteringEnabled(false)

	return throttleModel{
		connMgr:       connMgr,
		connInfo:      connInfo,
		locos:         locos,
		locoList:      locoList,
		stats:         z21.NewStatistics(),
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		power:         z21.EventNone,
		speedInput:    ti,
		focusedField:  focusLocoList,
		width:         80,
		height:        24,
		pollInterval:  pollInterval,
		lastPollTime:  time.Now(),
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m throttleModel) Init() tea.Cmd {
	return throttleTickCmd()
}

func throttleTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return throttleTickMsg(t)
	})
}

func (m throttleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.MouseMsg:
		if msg.Action == tea.MouseActionRelease && msg.Button == tea.MouseButtonLeft {
			m.locoList, _ = m.locoList.Update(msg)
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateListSize()

	case throttleTickMsg:
		m.stats.CalculateRates()
		if m.pollInterval > 0 && !m.connectionLost && time.Since(m.lastPollTime) >= m.pollInterval {
			m.lastPollTime = time.Now()
			if err := m.connMgr.pollLocos(); err != nil {
				m.addLogEntry(fmt.Sprintf("Poll failed: %v", err), true)
			}
		}
		return m, throttleTickCmd()

	case throttleBatchMsg:
		for _, data := range msg.messages {
			m.processFrame(data)
		}

	case connectionLostMsg:
		m.connectionLost = true
		m.addLogEntry("Connection lost - reconnecting...", true)

	case reconnectedMsg:
		m.connectionLost = false
		m.connInfo = msg.connInfo
		m.tracker = syncTracker{}
		m.addLogEntry("Reconnected", false)
	}

	// Update child components
	var cmd tea.Cmd
	if m.focusedField == focusSpeedInput {
		m.speedInput, cmd = m.speedInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *throttleModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "tab":
		return m.cycleFocus(1), nil

	case "shift+tab":
		return m.cycleFocus(-1), nil

	case "enter":
		return m.handleEnter()

	case "esc":
		m.focusedField = focusLocoList
		m.speedInput.Blur()
		return m, nil
	}

	// Pass through to the speed input while it has focus
	if m.focusedField == focusSpeedInput {
		var cmd tea.Cmd
		m.speedInput, cmd = m.speedInput.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit

	case "up", "k", "down", "j":
		m.locoList, _ = m.locoList.Update(msg)

	case "+", "=":
		m.nudgeSpeed(1)

	case "-":
		m.nudgeSpeed(-1)

	case "d":
		m.toggleDirection()

	case "l":
		m.toggleLight()

	case " ", "s":
		m.stop()

	case "p":
		m.togglePower()
	}

	return m, nil
}

func (m *throttleModel) cycleFocus(delta int) *throttleModel {
	if m.getSelectedLoco() == nil {
		m.focusedField = focusLocoList
		return m
	}

	maxFocus := focusButton
	m.focusedField = (m.focusedField + delta + maxFocus + 1) % (maxFocus + 1)

	if m.focusedField == focusSpeedInput {
		m.speedInput.Focus()
	} else {
		m.speedInput.Blur()
	}

	return m
}

func (m *throttleModel) handleEnter() (tea.Model, tea.Cmd) {
	if m.focusedField == focusSpeedInput || m.focusedField == focusButton {
		m.sendSpeed()
	}
	return m, nil
}

func (m throttleModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

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

	focusedBoxStyle := boxStyle.
		BorderForeground(lipgloss.Color("12"))

	buttonStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("0")).
		Background(lipgloss.Color("12")).
		Padding(0, 2)

	focusedButtonStyle := buttonStyle.
		Background(lipgloss.Color("10"))

	// Header
	s.WriteString(titleStyle.Render("SIGNALBOX THROTTLE"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = warningStyle.Render("RECONNECTING...")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | Tab=switch d=dir l=light s=stop p=power q=quit", connStatus)))
	s.WriteString("\n")

	// Track power (below header)
	s.WriteString(fmt.Sprintf(" %s ", statsLabelStyle.Render("Track:")))
	switch m.power {
	case z21.EventNone:
		s.WriteString(headerStyle.Render("unknown"))
	case z21.EventTrackPowerOn:
		s.WriteString(statsValueStyle.Render("ON"))
	default:
		s.WriteString(errorStyle.Render(m.power.String()))
	}
	s.WriteString("\n\n")

	// Layout: left panel (locos) | right panel (control)
	leftWidth := 30
	rightWidth := m.width - leftWidth - 6

	listStyle := boxStyle.Width(leftWidth)
	if m.focusedField == focusLocoList {
		listStyle = focusedBoxStyle.Width(leftWidth)
	}
	locoPanel := listStyle.Render(m.locoList.View())

	controlContent := m.renderControlPanel(statsLabelStyle, statsValueStyle, headerStyle, buttonStyle, focusedButtonStyle)
	controlPanel := boxStyle.Width(rightWidth).Render(controlContent)

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, locoPanel, " ", controlPanel))
	s.WriteString("\n\n")

	// Statistics bar
	s.WriteString(m.renderStatisticsBar(statsLabelStyle, statsValueStyle, errorStyle, boxStyle))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(m.renderEventLog(statsLabelStyle, warningStyle, boxStyle))

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func (m throttleModel) renderControlPanel(statsLabelStyle, statsValueStyle, headerStyle, buttonStyle, focusedButtonStyle lipgloss.Style) string {
	var s strings.Builder

	selected := m.getSelectedLoco()
	if selected == nil {
		s.WriteString(headerStyle.Render("No loco selected"))
		return s.String()
	}

	info := selected.info
	s.WriteString(fmt.Sprintf("%s Loco %d (%s)\n", statsLabelStyle.Render("Selected:"), info.Address, info.Steps))
	if !selected.known {
		s.WriteString(headerStyle.Render("Waiting for loco state..."))
		s.WriteString("\n\n")
	} else {
		light := "off"
		if info.Light {
			light = "on"
		}
		s.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
			statsLabelStyle.Render("Speed:"), statsValueStyle.Render(fmt.Sprintf("%d/%d", info.Speed, z21.MaxSpeed(info.Steps))),
			statsLabelStyle.Render("Dir:"), statsValueStyle.Render(info.Direction.String()),
			statsLabelStyle.Render("Light:"), statsValueStyle.Render(light),
		))
		if info.Occupied {
			s.WriteString(headerStyle.Render("Controlled by another throttle"))
			s.WriteString("\n")
		}
		s.WriteString("\n")
	}

	s.WriteString(statsLabelStyle.Render("Speed: "))
	if m.focusedField == focusSpeedInput {
		s.WriteString(m.speedInput.View())
	} else {
		// Show as plain text when not focused
		val := m.speedInput.Value()
		if val == "" {
			val = m.speedInput.Placeholder
		}
		s.WriteString(fmt.Sprintf("[%s]", val))
	}
	s.WriteString("\n\n")

	btnText := "[ Drive ]"
	if m.focusedField == focusButton {
		s.WriteString(focusedButtonStyle.Render(btnText))
	} else {
		s.WriteString(buttonStyle.Render(btnText))
	}

	return s.String()
}

func (m throttleModel) renderStatisticsBar(statsLabelStyle, statsValueStyle, errorStyle, boxStyle lipgloss.Style) string {
	m.stats.CalculateRates()
	var decodedPercent, errorPercent float64
	if m.stats.TotalFrames > 0 {
		decodedPercent = float64(m.stats.DecodedEvents) * 100.0 / float64(m.stats.TotalFrames)
		errorPercent = float64(m.stats.Errors()) * 100.0 / float64(m.stats.TotalFrames)
	}

	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.TotalFrames)),
		statsLabelStyle.Render("Decoded:"), statsValueStyle.Render(fmt.Sprintf("%.1f%%", decodedPercent)),
		statsLabelStyle.Render("Errors:"), func() string {
			if errorPercent > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f%%", errorPercent))
			}
			return statsValueStyle.Render("0.0%")
		}(),
		statsLabelStyle.Render("Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f frames/s", m.stats.FrameRate)),
	)

	return boxStyle.Width(m.width - 4).Render(content)
}

func (m throttleModel) renderEventLog(statsLabelStyle, warningStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("EVENTS"))
	s.WriteString("\n")

	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyleLocal := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

	logHeight := 8
	if len(m.eventLog) < logHeight {
		logHeight = len(m.eventLog)
	}
	startIdx := len(m.eventLog) - logHeight

	if len(m.eventLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			icon := "i"
			style := warningStyle
			if entry.isError {
				icon = "x"
				style = errorStyleLocal
			}
			s.WriteString(fmt.Sprintf("%s %s %s\n",
				headerStyle.Render(timestamp),
				style.Render(icon),
				entry.message))
		}
	}

	return boxStyle.Width(m.width - 4).Render(s.String())
}

//////////////////////////////////////////////////////////////
// Data Processing
//////////////////////////////////////////////////////////////

func (m *throttleModel) processFrame(msg frameMsg) {
	count, synced := m.tracker.accept(msg.frame, msg.err)
	if synced && m.tracker.skipped > 0 {
		m.addLogEntry(fmt.Sprintf("Synchronized after skipping %d invalid frames", m.tracker.skipped), false)
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

	switch {
	case msg.err != nil:
		m.addLogEntry(fmt.Sprintf("%s: %v", z21.FormatGroup(msg.frame[2]), msg.err), true)

	case msg.loco != nil:
		m.updateLoco(*msg.loco)

	case isPowerEvent(msg.kind):
		if msg.kind != m.power {
			m.addLogEntry(fmt.Sprintf("Track: %s", msg.kind), false)
		}
		m.power = msg.kind
	}
}

// updateLoco applies a loco-info broadcast to a controlled loco
func (m *throttleModel) updateLoco(info z21.LocoInfo) {
	for i := range m.locos {
		if m.locos[i].info.Address != info.Address {
			continue
		}
		if !m.locos[i].known {
			m.addLogEntry(fmt.Sprintf("Loco %d: %s", info.Address, info.Steps), false)
		}
		m.locos[i].info = info
		m.locos[i].known = true
		m.locos[i].lastSeen = time.Now()
		m.locoList.SetItem(i, m.locos[i])
		return
	}
}

//////////////////////////////////////////////////////////////
// Commands
//////////////////////////////////////////////////////////////

// drive sends a new speed and direction for the selected loco
func (m *throttleModel) drive(speed uint8, direction z21.Direction) {
	selected := m.getSelectedLoco()
	if selected == nil {
		return
	}
	if m.connectionLost {
		m.addLogEntry("Cannot send command: connection lost", true)
		return
	}

	loco := selected.info
	loco.Speed = speed
	loco.Direction = direction

	err := m.connMgr.send(func(c *z21.Codec) error { return c.SetLocoDrive(loco) })
	if err != nil {
		m.addLogEntry(fmt.Sprintf("Failed to drive loco %d: %v", loco.Address, err), true)
		return
	}

	// Optimistic until the broadcast confirms
	selected.info.Speed = speed
	selected.info.Direction = direction
	m.locoList.SetItem(m.locoList.Index(), *selected)
	m.addLogEntry(fmt.Sprintf("Loco %d: speed %d, %s", loco.Address, speed, direction), false)
}

func (m *throttleModel) sendSpeed() {
	selected := m.getSelectedLoco()
	if selected == nil {
		return
	}

	speedStr := m.speedInput.Value()
	if speedStr == "" {
		speedStr = m.speedInput.Placeholder
	}

	speed, err := strconv.Atoi(speedStr)
	if err != nil {
		m.addLogEntry(fmt.Sprintf("Invalid speed value: %s", speedStr), true)
		return
	}

	maxSpeed := int(z21.MaxSpeed(selected.info.Steps))
	if speed < 0 || speed > maxSpeed {
		m.addLogEntry(fmt.Sprintf("Speed must be between 0 and %d", maxSpeed), true)
		return
	}

	m.drive(uint8(speed), selected.info.Direction)
}

func (m *throttleModel) nudgeSpeed(delta int) {
	selected := m.getSelectedLoco()
	if selected == nil {
		return
	}

	speed := int(selected.info.Speed) + delta
	maxSpeed := int(z21.MaxSpeed(selected.info.Steps))
	if speed < 0 || speed > maxSpeed {
		return
	}
	m.drive(uint8(speed), selected.info.Direction)
}

func (m *throttleModel) toggleDirection() {
	selected := m.getSelectedLoco()
	if selected == nil {
		return
	}

	direction := z21.DirectionForward
	if selected.info.Direction == z21.DirectionForward {
		direction = z21.DirectionReverse
	}
	m.drive(selected.info.Speed, direction)
}

func (m *throttleModel) stop() {
	selected := m.getSelectedLoco()
	if selected == nil {
		return
	}
	m.drive(0, selected.info.Direction)
}

func (m *throttleModel) toggleLight() {
	selected := m.getSelectedLoco()
	if selected == nil {
		return
	}

	address := selected.info.Address
	err := m.connMgr.send(func(c *z21.Codec) error { return c.SetLocoFunction(address, 0, z21.FunctionToggle) })
	if err != nil {
		m.addLogEntry(fmt.Sprintf("Failed to switch light: %v", err), true)
		return
	}
	m.addLogEntry(fmt.Sprintf("Loco %d: light toggled", address), false)
}

func (m *throttleModel) togglePower() {
	send := (*z21.Codec).SetTrackPowerOff
	label := "off"
	if m.power != z21.EventTrackPowerOn {
		send = (*z21.Codec).SetTrackPowerOn
		label = "on"
	}

	if err := m.connMgr.send(compose(send)); err != nil {
		m.addLogEntry(fmt.Sprintf("Failed to switch track power: %v", err), true)
		return
	}
	m.addLogEntry(fmt.Sprintf("Track power %s requested", label), false)
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

func (m *throttleModel) addLogEntry(message string, isError bool) {
	entry := eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m *throttleModel) getSelectedLoco() *locoItem {
	if len(m.locos) == 0 {
		return nil
	}

	idx := m.locoList.Index()
	if idx < 0 || idx >= len(m.locos) {
		return nil
	}

	return &m.locos[idx]
}

func (m *throttleModel) updateListSize() {
	listHeight := m.height / 3
	if listHeight < 5 {
		listHeight = 5
	}
	m.locoList.SetSize(28, listHeight)
}
