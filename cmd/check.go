package cmd

import (
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/charmbracelet/lipgloss"
	"github.com/kitsune-cli/kitsune/constant"
	"github.com/kitsune-cli/kitsune/icon"
	"github.com/kitsune-cli/kitsune/style"
)

var installers = map[string]string{
	constant.Darwin:  "brew install %s",
	constant.Linux:   "sudo apt install %s",
	constant.Windows: "scoop install %s",
}

// installHint suggests a package manager command for binary on goos, or "" when none is known.
func installHint(goos, binary string) string {
	format, ok := installers[goos]
	if !ok {
		return ""
	}
	return fmt.Sprintf(format, filepath.Base(binary))
}

// requirePlayer fails with a rendered help box when the media player binary is not on PATH.
func requirePlayer(binary string) error {
	if _, err := exec.LookPath(binary); err == nil {
		return nil
	}

	lines := []string{
		style.New().Bold(true).Foreground(style.HiRed).Render(icon.Get(icon.Fail) + " Media player not found"),
		"",
		style.New().Foreground(style.Text).Render(fmt.Sprintf("kitsune plays through %q, which is not in your PATH.", binary)),
		style.Faint("Set another one with: kitsune config set player.binary <path>"),
	}
	if hint := installHint(runtime.GOOS, binary); hint != "" {
		lines = append(lines, "", "Install it with:", "  "+style.New().Foreground(style.AccentColor).Bold(true).Render(hint))
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(style.HiRed).
		Padding(1, 2)
	return errors.New(box.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)))
}
