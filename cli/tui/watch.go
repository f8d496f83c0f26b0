package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/sluice/bridge"
)

// DefaultMaxRows is the number of recent values kept on screen.
const DefaultMaxRows = 20

// State is the lifecycle state shown in the header.
type State string

// Watch states.
const (
	StateStreaming State = "streaming"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Messages fed into the model by the stream goroutine.
type (
	// ValueMsg carries one rendered stream value.
	ValueMsg struct{ Text string }
	// DoneMsg reports that the stream ended; Err is nil on completion.
	DoneMsg struct{ Err error }
)

// WatchConfig configures a WatchModel.
type WatchConfig struct {
	// Title is shown above the values.
	Title string
	// MaxRows bounds the visible history (default DefaultMaxRows).
	MaxRows int
	// Stats, if set, is sampled on every update for the stat boxes.
	Stats func() bridge.Stats
}

// WatchModel is a Bubble Tea model that shows values as they arrive.
type WatchModel struct {
	cfg      WatchConfig
	spinner  spinner.Model
	rows     []string
	received int
	state    State
	err      error
	stats    bridge.Stats
	width    int
	height   int
	quitting bool
}

// NewWatchModel creates a watch model in the streaming state.
func NewWatchModel(cfg WatchConfig) WatchModel {
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = DefaultMaxRows
	}
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(primaryColor)
	return WatchModel{
		cfg:     cfg,
		spinner: s,
		state:   StateStreaming,
	}
}

// Init implements tea.Model.
func (m WatchModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case ValueMsg:
		m.received++
		m.rows = append(m.rows, msg.Text)
		if over := len(m.rows) - m.cfg.MaxRows; over > 0 {
			m.rows = m.rows[over:]
		}
		m.sample()
		return m, nil

	case DoneMsg:
		m.err = msg.Err
		if msg.Err != nil {
			m.state = StateFailed
		} else {
			m.state = StateCompleted
		}
		m.sample()
		return m, nil

	case spinner.TickMsg:
		if m.state != StateStreaming {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *WatchModel) sample() {
	if m.cfg.Stats != nil {
		m.stats = m.cfg.Stats()
	}
}

// Received returns the number of values shown so far.
func (m WatchModel) Received() int {
	return m.received
}

// State returns the current lifecycle state.
func (m WatchModel) State() State {
	return m.state
}

// Err returns the terminal stream error, if any.
func (m WatchModel) Err() error {
	return m.err
}

// View implements tea.Model.
func (m WatchModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(m.cfg.Title))
	b.WriteString("\n")

	status := StateStyle(m.state).Render(string(m.state))
	if m.state == StateStreaming {
		status = m.spinner.View() + " " + status
	}
	b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("State:"), status))
	if m.err != nil {
		b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Error:"), ErrorStyle.Render(m.err.Error())))
	}
	b.WriteString("\n")

	boxes := []string{renderStatBox("Received", m.received, highlightColor)}
	if m.cfg.Stats != nil {
		boxes = append(boxes,
			renderStatBox("Pending", int(m.stats.Pending), warningColor),
			renderStatBox("Discarded", int(m.stats.Discarded), errorColor),
		)
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))
	b.WriteString("\n\n")

	if len(m.rows) == 0 {
		b.WriteString(LabelStyle.Render("(waiting for values)"))
	} else {
		b.WriteString(strings.Join(m.truncated(), "\n"))
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return b.String() + "\n" + help
}

func (m WatchModel) truncated() []string {
	out := make([]string, len(m.rows))
	for i, row := range m.rows {
		if m.width > 0 && len(row) > m.width {
			row = row[:max(m.width-1, 0)] + "…"
		}
		out[i] = ValueStyle.Render(row)
	}
	return out
}

func renderStatBox(label string, value int, color lipgloss.Color) string {
	boxStyle := StatBoxStyle.BorderForeground(color)
	valueStr := StatValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value))
	labelStr := StatLabelStyle.Render(label)
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr))
}

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}
