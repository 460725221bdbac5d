package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"anyvoice/pipeline"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUI message types
type SessionMsg struct{ Session pipeline.Session }
type NoticeMsg struct{ Text string }
type OnTopMsg struct{ On bool }
type ModeLineMsg struct{ Text string }
type DeviceLineMsg struct{ Text string }
type tickMsg time.Time

// tuiActions are the calls a key press can make. Each runs off the UI
// goroutine.
type tuiActions struct {
	toggleRecording func()
	cancel          func()
	copyAgain       func()
	toggleOnTop     func()
}

type tuiModel struct {
	actions tuiActions

	session    pipeline.Session
	hasSession bool
	count      int
	frame      int
	notice     string
	onTop      bool
	modeLine   string
	deviceLine string
	shortcut   string
	width      int
	height     int
}

var (
	tuiProgram *tea.Program
	tuiMu      sync.Mutex
)

var (
	recStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	busyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	idleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	textStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	helpKeyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
)

var spinner = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

func NewTUIProgram(actions tuiActions, shortcut string) *tea.Program {
	m := tuiModel{actions: actions, shortcut: shortcut}
	return tea.NewProgram(m, tea.WithAltScreen())
}

// tuiSend is safe to call before the program exists.
func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// tuiSink adapts the running program to EventSink.
type tuiSink struct{}

func (tuiSink) SessionChanged(s pipeline.Session) { tuiSend(SessionMsg{Session: s}) }
func (tuiSink) AlwaysOnTop(on bool)               { tuiSend(OnTopMsg{On: on}) }
func (tuiSink) Notice(text string)                { tuiSend(NoticeMsg{Text: text}) }
func (tuiSink) ModeLine(text string)              { tuiSend(ModeLineMsg{Text: text}) }
func (tuiSink) DeviceLine(text string)            { tuiSend(DeviceLineMsg{Text: text}) }

func tuiTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

// actionCmd wraps an action as a command so it does not block Update.
func actionCmd(fn func()) tea.Cmd {
	if fn == nil {
		return nil
	}
	return func() tea.Msg {
		fn()
		return nil
	}
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r", " ":
			return m, actionCmd(m.actions.toggleRecording)
		case "esc":
			return m, actionCmd(m.actions.cancel)
		case "c":
			return m, actionCmd(m.actions.copyAgain)
		case "ctrl+t":
			return m, actionCmd(m.actions.toggleOnTop)
		}

	case tickMsg:
		m.frame++
		return m, tuiTick()

	case SessionMsg:
		if !m.hasSession || msg.Session.ID != m.session.ID {
			m.count++
			m.notice = ""
		}
		m.session = msg.Session
		m.hasSession = true

	case NoticeMsg:
		m.notice = msg.Text

	case OnTopMsg:
		m.onTop = msg.On

	case ModeLineMsg:
		m.modeLine = msg.Text

	case DeviceLineMsg:
		m.deviceLine = msg.Text
	}
	return m, nil
}

func (m tuiModel) statusLine() string {
	if !m.hasSession {
		return idleStyle.Render("○ STANDBY")
	}
	s := m.session
	switch s.State {
	case pipeline.Recording:
		return recStyle.Render(fmt.Sprintf("● REC %.1fs", time.Since(s.StartedAt).Seconds()))
	case pipeline.Stopping, pipeline.Transcribing, pipeline.Correcting:
		return busyStyle.Render(spinner[m.frame%len(spinner)] + " " + strings.ToUpper(s.State.String()))
	case pipeline.Completed:
		return doneStyle.Render("✓ DONE")
	case pipeline.Failed:
		return failStyle.Render("✗ FAILED")
	}
	return idleStyle.Render("○ STANDBY")
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	wrapWidth := m.width - 4
	if wrapWidth < 10 {
		wrapWidth = 10
	}

	var b strings.Builder
	b.WriteString(m.statusLine() + "\n")
	if m.modeLine != "" {
		b.WriteString(dimStyle.Render(m.modeLine) + "\n")
	}
	if m.deviceLine != "" {
		b.WriteString(idleStyle.Render(m.deviceLine) + "\n")
	}
	onTop := "off"
	if m.onTop {
		onTop = "on"
	}
	b.WriteString(idleStyle.Render("always on top: "+onTop) + "\n\n")

	s := m.session
	if m.hasSession && s.State.Terminal() {
		b.WriteString(dimStyle.Render(fmt.Sprintf("Session #%d", m.count)) + "\n\n")
		if s.Transcript != "" {
			b.WriteString(idleStyle.Render("transcript") + "\n")
			for _, line := range wrapText(s.Transcript, wrapWidth) {
				b.WriteString(dimStyle.Render(line) + "\n")
			}
			b.WriteString("\n")
		}
		if s.CorrectedText != "" {
			b.WriteString(idleStyle.Render("corrected") + "\n")
			lines := wrapText(s.CorrectedText, wrapWidth)
			for i, line := range lines {
				b.WriteString(textStyle.Render(line))
				if i == len(lines)-1 && s.Copied {
					b.WriteString(" " + doneStyle.Render("[✓ copied]"))
				}
				b.WriteString("\n")
			}
		}
		if s.State == pipeline.Failed && s.Err != nil {
			b.WriteString(failStyle.Render(pipeline.Message(s.Err)) + "\n")
		}
	} else if !m.hasSession {
		b.WriteString(idleStyle.Render("No recordings yet") + "\n")
	}

	if m.notice != "" {
		b.WriteString("\n" + busyStyle.Render(m.notice) + "\n")
	}

	b.WriteString("\n")
	help := []string{
		helpKeyStyle.Render(m.shortcut) + helpStyle.Render(" or ") + helpKeyStyle.Render("r") + helpStyle.Render(" record"),
		helpKeyStyle.Render("esc") + helpStyle.Render(" cancel"),
		helpKeyStyle.Render("c") + helpStyle.Render(" copy again"),
		helpKeyStyle.Render("ctrl+t") + helpStyle.Render(" on top"),
		helpKeyStyle.Render("q") + helpStyle.Render(" quit"),
	}
	b.WriteString(strings.Join(help, helpStyle.Render(" · ")) + "\n")
	b.WriteString(helpStyle.Render("anyvoice " + version))

	return lipgloss.NewStyle().Width(m.width).PaddingLeft(1).Render(b.String())
}

// wrapText breaks text at spaces, or anywhere for text without them.
// Widths count runes, so CJK text wraps at roughly double the cells.
func wrapText(text string, width int) []string {
	if text == "" {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for _, para := range strings.Split(text, "\n") {
		r := []rune(para)
		for len(r) > width {
			splitAt := width
			for i := width; i > 0; i-- {
				if r[i] == ' ' {
					splitAt = i
					break
				}
			}
			lines = append(lines, string(r[:splitAt]))
			r = []rune(strings.TrimLeft(string(r[splitAt:]), " "))
		}
		lines = append(lines, string(r))
	}
	return lines
}
