package tui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/kitsune-cli/kitsune/engine"
	"github.com/kitsune-cli/kitsune/internal/ui"
	"github.com/kitsune-cli/kitsune/log"
	"github.com/kitsune-cli/kitsune/player"
	"github.com/kitsune-cli/kitsune/session"
	"github.com/kitsune-cli/kitsune/skip"
)

// controls is the part of the controller the dashboard drives.
type controls interface {
	Submit(spec session.Spec) error
	SkipPressed() error
	SetMode(mode skip.Mode) error
}

// bubble is the dashboard model. The controller reports to it through host messages.
type bubble struct {
	options  *Options
	controls controls
	keymap   *keymap

	helpC     help.Model
	progressC progress.Model
	spinnerC  spinner.Model
	notifier  *ui.Notifier

	state     session.State
	mode      skip.Mode
	skipLabel string
	tracks    engine.TrackInfo

	position, duration float64
	width, height      int
}

func newBubble(options *Options) *bubble {
	b := &bubble{
		options:  options,
		keymap:   newKeymap(),
		helpC:    help.New(),
		notifier: &ui.Notifier{},
		mode:     options.Mode,
	}

	b.progressC = progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	b.spinnerC = spinner.New()
	b.spinnerC.Spinner = spinner.Dot
	b.spinnerC.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return b
}

func (b *bubble) Init() tea.Cmd {
	return tea.Batch(b.spinnerC.Tick, b.submit())
}

func (b *bubble) submit() tea.Cmd {
	spec := b.options.Spec
	return func() tea.Msg {
		if err := b.controls.Submit(spec); err != nil {
			return errorMsg{err: err}
		}
		return nil
	}
}

func (b *bubble) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		b.resize(msg.Width, msg.Height)
		return b, nil
	case tea.KeyMsg:
		return b, b.handleKey(msg)
	case skipControlMsg:
		b.setSkipLabel(msg.visible, msg.label)
		return b, nil
	case stateMsg:
		b.state = session.State(msg)
		return b, nil
	case tracksMsg:
		b.tracks = engine.TrackInfo(msg)
		return b, nil
	case surfaceMsg:
		return b, b.handleSurface(player.Event(msg))
	case errorMsg:
		log.Error(msg.err)
		return b, b.notifier.Update(ui.Notice(msg.err.Error()))
	case spinner.TickMsg:
		var cmd tea.Cmd
		b.spinnerC, cmd = b.spinnerC.Update(msg)
		return b, cmd
	}
	return b, b.notifier.Update(msg)
}

func (b *bubble) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, b.keymap.quit, b.keymap.forceQuit):
		return tea.Quit
	case key.Matches(msg, b.keymap.skip):
		if b.skipLabel == "" {
			return nil
		}
		return b.notifyErr(b.controls.SkipPressed())
	case key.Matches(msg, b.keymap.autoSkip):
		return b.toggleMode()
	case key.Matches(msg, b.keymap.showHelp):
		b.helpC.ShowAll = !b.helpC.ShowAll
	}
	return nil
}

func (b *bubble) handleSurface(e player.Event) tea.Cmd {
	if e.Position >= 0 {
		b.position = e.Position
	}
	if e.Duration > 0 {
		b.duration = e.Duration
	}
	if e.Kind == player.EventClosed {
		return tea.Quit
	}
	return nil
}

func (b *bubble) toggleMode() tea.Cmd {
	next := skip.Auto
	if b.mode == skip.Auto {
		next = skip.Manual
	}
	if err := b.controls.SetMode(next); err != nil {
		return b.notifyErr(err)
	}
	b.mode = next
	if next == skip.Auto {
		b.setSkipLabel(false, "")
	}

	notice := "Auto skip off"
	if next == skip.Auto {
		notice = "Auto skip on"
	}
	return tea.Batch(b.notifier.Update(ui.Notice(notice)), b.persistMode(next))
}

func (b *bubble) persistMode(mode skip.Mode) tea.Cmd {
	if b.options.ModeChanged == nil {
		return nil
	}
	return func() tea.Msg {
		if err := b.options.ModeChanged(mode); err != nil {
			return errorMsg{err: err}
		}
		return nil
	}
}

func (b *bubble) setSkipLabel(visible bool, label string) {
	if !visible {
		label = ""
	}
	b.skipLabel = label
	b.keymap.skip.SetEnabled(label != "")
}

func (b *bubble) notifyErr(err error) tea.Cmd {
	if err == nil {
		return nil
	}
	return func() tea.Msg { return errorMsg{err: err} }
}

func (b *bubble) resize(width, height int) {
	x, y := paddingStyle.GetFrameSize()
	b.width = width - x
	b.height = height - y
	b.helpC.Width = b.width
	b.progressC.Width = b.width
	b.notifier.SetWidth(b.width)
}
