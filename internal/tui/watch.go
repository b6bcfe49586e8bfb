package tui

import (
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"

	"github.com/devswarm/swarm/internal/swarm"
)

// refreshInterval is the fallback poll used when file events are missed.
const refreshInterval = 2 * time.Second

type tickMsg time.Time

type fileChangedMsg struct{}

type watchErrMsg struct{ err error }

// WatchModel is the bubbletea model behind `swarm watch`. It renders the
// active session and refreshes on session-file changes, with a slow tick
// as a safety net.
type WatchModel struct {
	sessions *swarm.Manager
	renderer *Renderer
	watcher  *fsnotify.Watcher

	session *swarm.Session
	spin    spinner.Model
	bar     progress.Model
	err     error
	width   int
}

// NewWatchModel creates the watch model and starts a watcher on the
// sessions directory.
func NewWatchModel(sessions *swarm.Manager, renderer *Renderer) (*WatchModel, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Join(sessions.StateDir(), "sessions")); err != nil {
		watcher.Close()
		return nil, err
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))

	return &WatchModel{
		sessions: sessions,
		renderer: renderer,
		watcher:  watcher,
		spin:     sp,
		bar:      progress.New(progress.WithDefaultGradient()),
	}, nil
}

// Close releases the file watcher.
func (m *WatchModel) Close() {
	if m.watcher != nil {
		m.watcher.Close()
	}
}

// Init implements tea.Model.
func (m *WatchModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.waitForChange(), tick(), m.reload())
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitForChange blocks on the next filesystem event.
func (m *WatchModel) waitForChange() tea.Cmd {
	return func() tea.Msg {
		for {
			select {
			case event, ok := <-m.watcher.Events:
				if !ok {
					return nil
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					return fileChangedMsg{}
				}
			case err, ok := <-m.watcher.Errors:
				if !ok {
					return nil
				}
				return watchErrMsg{err: err}
			}
		}
	}
}

// reload fetches the active session.
func (m *WatchModel) reload() tea.Cmd {
	return func() tea.Msg {
		session, err := m.sessions.ActiveSession()
		if err != nil {
			return watchErrMsg{err: err}
		}
		return sessionLoadedMsg{session: session}
	}
}

type sessionLoadedMsg struct{ session *swarm.Session }

// Update implements tea.Model.
func (m *WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = min(msg.Width-8, 50)

	case fileChangedMsg:
		return m, tea.Batch(m.reload(), m.waitForChange())

	case tickMsg:
		return m, tea.Batch(m.reload(), tick())

	case sessionLoadedMsg:
		m.session = msg.session
		m.err = nil

	case watchErrMsg:
		m.err = msg.err

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		m.bar = bar.(progress.Model)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m *WatchModel) View() string {
	if m.err != nil {
		return failStyle.Render("watch error: "+m.err.Error()) + "\n\nPress q to quit.\n"
	}
	if m.session == nil {
		return m.renderer.RenderNoSession() + "\n\nPress q to quit.\n"
	}

	view := m.renderer.RenderCompact(m.session) + "\n" +
		m.bar.ViewAs(float64(m.session.Progress)/100) + "\n\n" +
		m.renderer.RenderSession(m.session)

	if m.session.Status == swarm.SessionActive {
		view += "\n" + m.spin.View() + " watching for changes"
	}
	return view + dimStyle.Render("\n\nPress q to quit.\n")
}
