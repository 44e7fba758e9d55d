package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/kitsune-cli/kitsune/color"
	"github.com/kitsune-cli/kitsune/engine"
	"github.com/kitsune-cli/kitsune/icon"
	"github.com/kitsune-cli/kitsune/skip"
	"github.com/kitsune-cli/kitsune/style"
	"github.com/kitsune-cli/kitsune/util"
	"github.com/muesli/reflow/truncate"
	"github.com/samber/lo"
)

var (
	paddingStyle    = lipgloss.NewStyle().Padding(1, 2)
	skipButtonStyle = lipgloss.NewStyle().Foreground(style.Base).Background(style.AccentColor).Bold(true).Padding(0, 2)
	noticeStyle     = lipgloss.NewStyle().Foreground(style.WarningColor)
	trackLabelStyle = lipgloss.NewStyle().Foreground(style.SecondaryColor)
)

func (b *bubble) View() string {
	lines := []string{
		style.Title(b.title()) + " " + stateTag(b.state),
		"",
		b.progressC.ViewAs(b.fraction()),
		style.Faint(util.Clock(b.position) + " / " + util.Clock(b.duration)),
		"",
	}

	if b.state.Active() && b.duration == 0 {
		lines = append(lines, b.spinnerC.View()+" Loading stream")
	}

	if b.skipLabel != "" {
		lines = append(lines, skipButtonStyle.Render(icon.Get(icon.Skip)+" Skip "+b.skipLabel), "")
	}

	lines = append(lines, b.viewTracks()...)
	lines = append(lines, style.Faint("Auto skip: "+lo.Ternary(b.mode == skip.Auto, "on", "off")))

	if notice := b.notifier.View(func(s string) string { return noticeStyle.Render(s) }); notice != "" {
		lines = append(lines, "", icon.Get(icon.Warn)+" "+notice)
	}

	return b.renderLines(lines)
}

func (b *bubble) title() string {
	spec := b.options.Spec
	title := lo.Ternary(spec.Title != "", spec.Title, spec.EpisodeID)
	if spec.EpisodeNumber > 0 {
		title = fmt.Sprintf("%s - Episode %d", title, spec.EpisodeNumber)
	}
	if b.width > 0 {
		title = truncate.StringWithTail(title, uint(b.width/2), "…")
	}
	return title
}

func (b *bubble) fraction() float64 {
	if b.duration <= 0 {
		return 0
	}
	return min(max(b.position/b.duration, 0), 1)
}

func (b *bubble) viewTracks() []string {
	var lines []string
	if len(b.tracks.Levels) > 0 {
		labels := lo.Map(b.tracks.Levels, func(l engine.Level, _ int) string { return l.Label })
		lines = append(lines, trackLabelStyle.Render("Quality ")+strings.Join(labels, ", "))
	}
	if len(b.tracks.Audio) > 0 {
		names := lo.Map(b.tracks.Audio, func(a engine.AudioTrack, _ int) string { return a.Name })
		lines = append(lines, trackLabelStyle.Render("Audio   ")+strings.Join(names, ", "))
	}
	if len(b.tracks.Subtitles) > 0 {
		var langs []string
		for _, s := range b.tracks.Subtitles {
			langs = append(langs, lo.Ternary(s.Default, style.Fg(color.Green)(s.Lang), s.Lang))
		}
		lines = append(lines, trackLabelStyle.Render(icon.Get(icon.Subtitles)+" ")+strings.Join(langs, ", "))
	}
	if len(lines) > 0 {
		lines = append(lines, "")
	}
	return lines
}

func (b *bubble) renderLines(lines []string) string {
	h := len(lines)
	l := strings.Join(lines, "\n")
	if b.height > h+1 {
		l += strings.Repeat("\n", b.height-h-1)
	}
	l += "\n" + b.helpC.View(b.keymap)
	return paddingStyle.Render(l)
}
