package monitor

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const reconnectDelay = 2 * time.Second

// --- STYLES ---
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#575B7E")).
			Padding(0, 1)

	paneStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("240"))

	keyStyle = lipgloss.NewStyle().Bold(true)

	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	reachingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	stableStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("45"))
	reachedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))

	heaterStyle = lipgloss.NewStyle().Width(12).Padding(0, 1)
	tempStyle   = lipgloss.NewStyle().Width(10).Align(lipgloss.Right).Padding(0, 1)
	phaseStyle  = lipgloss.NewStyle().Width(14).Padding(0, 1)
)

// Source yields status snapshots; *Stream implements it.
type Source interface {
	Next() (Snapshot, error)
	Close() error
}

// --- MODEL ---
type (
	connectedMsg struct{ src Source }
	snapshotMsg  Snapshot
	streamErrMsg struct{ err error }
	reconnectMsg struct{}
)

// Model renders the heater table and the active waits of one host.
type Model struct {
	dial      func() (Source, error)
	src       Source
	snap      Snapshot
	hasSnap   bool
	err       error
	width     int
	connected bool
}

// NewModel returns a monitor that connects through dial and reconnects after failures.
func NewModel(dial func() (Source, error)) Model {
	return Model{dial: dial}
}

func (m Model) Init() tea.Cmd {
	return m.connect()
}

func (m Model) connect() tea.Cmd {
	dial := m.dial
	return func() tea.Msg {
		src, err := dial()
		if err != nil {
			return streamErrMsg{err: err}
		}
		return connectedMsg{src: src}
	}
}

func listen(src Source) tea.Cmd {
	return func() tea.Msg {
		snap, err := src.Next()
		if err != nil {
			return streamErrMsg{err: err}
		}
		return snapshotMsg(snap)
	}
}

// --- UPDATE ---
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.src != nil {
				_ = m.src.Close()
			}
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case connectedMsg:
		m.src = msg.src
		m.connected = true
		m.err = nil
		return m, listen(m.src)

	case snapshotMsg:
		m.snap = Snapshot(msg)
		m.hasSnap = true
		return m, listen(m.src)

	case streamErrMsg:
		if m.src != nil {
			_ = m.src.Close()
			m.src = nil
		}
		m.connected = false
		m.err = msg.err
		return m, tea.Tick(reconnectDelay, func(time.Time) tea.Msg { return reconnectMsg{} })

	case reconnectMsg:
		return m, m.connect()
	}
	return m, nil
}

// --- VIEW ---
func (m Model) View() string {
	sections := []string{m.renderHeader()}
	if m.hasSnap {
		sections = append(sections, m.renderHeaters(), m.renderWaits())
	}
	sections = append(sections, "(q) to quit")
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader() string {
	conn := reachedStyle.Render("connected")
	if !m.connected {
		conn = errStyle.Render("disconnected")
	}
	lines := []string{
		titleStyle.Render("SetAndWait monitor"),
		keyStyle.Render("Link:    ") + conn,
	}
	if m.err != nil {
		lines = append(lines, errStyle.Render(m.err.Error()))
	}
	if m.hasSnap {
		job := m.snap.Job.State
		if m.snap.Job.Name != "" {
			job = fmt.Sprintf("%s (%s, %d lines)", m.snap.Job.Name, m.snap.Job.State, m.snap.Job.LinesSent)
		}
		lines = append(lines,
			keyStyle.Render("Printer: ")+transportLabel(m.snap.Transport),
			keyStyle.Render("Job:     ")+job,
		)
		if m.snap.Holding {
			lines = append(lines, reachingStyle.Render("holding for a wait"))
		}
	}
	return m.pane(strings.Join(lines, "\n"))
}

func (m Model) renderHeaters() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Heaters") + "\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Left,
		heaterStyle.Render("Heater"),
		tempStyle.Render("Actual"),
		tempStyle.Render("Target"),
	) + "\n")
	heaters := append([]Heater(nil), m.snap.Heaters...)
	sort.SliceStable(heaters, func(i, j int) bool {
		if heaters[i].Class != heaters[j].Class {
			return heaters[i].Class > heaters[j].Class
		}
		return heaters[i].Channel < heaters[j].Channel
	})
	for _, h := range heaters {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Left,
			heaterStyle.Render(heaterLabel(h.Class, h.Channel)),
			tempStyle.Render(fmt.Sprintf("%.1f", h.ActualC)),
			tempStyle.Render(fmt.Sprintf("%.1f", h.TargetC)),
		) + "\n")
	}
	return m.pane(strings.TrimRight(b.String(), "\n"))
}

func (m Model) renderWaits() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Waits") + "\n")
	if len(m.snap.Waits) == 0 {
		b.WriteString("none")
		return m.pane(b.String())
	}
	for _, w := range m.snap.Waits {
		channel := 0
		if w.Channel != nil {
			channel = *w.Channel
		}
		line := lipgloss.JoinHorizontal(lipgloss.Left,
			heaterStyle.Render(w.Identifier),
			heaterStyle.Render(heaterLabel(w.Class, channel)),
			phaseStyle.Render(phaseLabel(w.Phase)),
			tempStyle.Render(fmt.Sprintf("%.1f", w.LastActualC)),
			tempStyle.Render(fmt.Sprintf("%s%.1f", w.Mode, w.TargetC)),
		)
		if w.Restarts > 0 {
			line += fmt.Sprintf("  restarts %d", w.Restarts)
		}
		b.WriteString(line + "\n")
	}
	return m.pane(strings.TrimRight(b.String(), "\n"))
}

func (m Model) pane(content string) string {
	if m.width > 2 {
		return paneStyle.Width(m.width - 2).Render(content)
	}
	return paneStyle.Render(content)
}

func heaterLabel(class string, channel int) string {
	if class == "tool" {
		return fmt.Sprintf("tool%d", channel)
	}
	return class
}

func phaseLabel(phase string) string {
	switch phase {
	case "REACHING":
		return reachingStyle.Render(phase)
	case "STABILIZING":
		return stableStyle.Render(phase)
	case "REACHED":
		return reachedStyle.Render(phase)
	default:
		return phase
	}
}

func transportLabel(t Transport) string {
	switch {
	case t.Closing:
		return "closing"
	case !t.Operational:
		return errStyle.Render("offline")
	}
	var flags []string
	if t.Streaming {
		flags = append(flags, "streaming")
	}
	if t.AutoReporting {
		flags = append(flags, "auto-report")
	}
	if t.LongRunning {
		flags = append(flags, "long-running")
	}
	if t.HeatingBlocked {
		flags = append(flags, "heating")
	}
	if t.Dwelling {
		flags = append(flags, "dwell")
	}
	if len(flags) == 0 {
		return "operational"
	}
	return "operational, " + strings.Join(flags, ", ")
}
