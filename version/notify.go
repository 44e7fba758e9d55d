package version

import (
	"context"
	"fmt"
	"time"

	"github.com/kitsune-cli/kitsune/color"
	"github.com/kitsune-cli/kitsune/constant"
	"github.com/kitsune-cli/kitsune/icon"
	"github.com/kitsune-cli/kitsune/key"
	"github.com/kitsune-cli/kitsune/network"
	"github.com/kitsune-cli/kitsune/style"
	"github.com/kitsune-cli/kitsune/util"
	"github.com/spf13/viper"
)

// Notify prints a notice when a newer release is available.
func Notify() {
	if !viper.GetBool(key.CliVersionCheck) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	erase := util.PrintErasable(fmt.Sprintf("%s Checking if new version is available...", icon.Get(icon.Progress)))
	latest, err := Latest(ctx, network.NewAPIClient(3*time.Second))
	erase()
	if err != nil {
		return
	}
	if comp, err := Compare(latest, constant.Version); err != nil || comp <= 0 {
		return
	}

	fmt.Printf(`
%s New version is available %s %s
%s

`,
		style.Fg(color.Green)("▇▇▇"),
		style.Bold(latest),
		style.Faint(fmt.Sprintf("(You're on %s)", constant.Version)),
		style.Faint("https://github.com/kitsune-cli/kitsune/releases/tag/v"+latest),
	)
}
