// Package tui is the terminal dashboard shown while a session plays in the media surface.
package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/kitsune-cli/kitsune/player"
	"github.com/kitsune-cli/kitsune/session"
	"github.com/kitsune-cli/kitsune/skip"
	"github.com/kitsune-cli/kitsune/util"
)

const closeTimeout = 10 * time.Second

// Options configure the dashboard.
type Options struct {
	Spec    session.Spec
	Surface player.Surface
	Mode    skip.Mode

	// Start builds the controller that reports to host.
	Start func(host session.Host) (*session.Controller, error)
	// ModeChanged persists a skip mode chosen from the dashboard. Optional.
	ModeChanged func(skip.Mode) error
}

// Run plays options.Spec until the user quits or the surface closes.
func Run(ctx context.Context, options *Options) error {
	bubble := newBubble(options)
	if width, height, err := util.TerminalSize(); err == nil {
		bubble.resize(width, height)
	}
	program := tea.NewProgram(bubble, tea.WithAltScreen(), tea.WithContext(ctx))

	controller, err := options.Start(NewHost(program))
	if err != nil {
		return err
	}
	bubble.controls = controller

	events, unsubscribe := options.Surface.Subscribe()
	defer unsubscribe()
	go func() {
		for e := range events {
			program.Send(surfaceMsg(e))
		}
	}()

	_, runErr := program.Run()

	closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := controller.Close(closeCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
