package cmd

import (
	"fmt"
	"strings"

	"github.com/kitsune-cli/kitsune/filesystem"
	"github.com/kitsune-cli/kitsune/icon"
	"github.com/kitsune-cli/kitsune/util"
	"github.com/kitsune-cli/kitsune/where"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

type clearTarget struct {
	flag, short string
	name        string
	path        func() string
}

var clearTargets = []clearTarget{
	{"cache", "c", "Cache directory", where.Cache},
	{"skips", "s", "Skip windows cache", where.Skips},
	{"progress", "p", "Watch progress file", where.Progress},
	{"bookmarks", "b", "Bookmarks file", where.Bookmarks},
	{"database", "d", "Progress database", where.Database},
}

func init() {
	rootCmd.AddCommand(clearCmd)

	for _, t := range clearTargets {
		clearCmd.Flags().BoolP(t.flag, t.short, false, "clear the "+strings.ToLower(t.name))
	}
	clearCmd.Flags().BoolP("all", "A", false, "clear every target")
}

var clearCmd = &cobra.Command{
	Use:     "clear",
	Short:   "Clear cached data and stored watch progress",
	Example: "  kitsune clear --skips\n  kitsune clear --all",
	Run: func(cmd *cobra.Command, args []string) {
		all := lo.Must(cmd.Flags().GetBool("all"))
		selected := lo.Filter(clearTargets, func(t clearTarget, _ int) bool {
			return all || lo.Must(cmd.Flags().GetBool(t.flag))
		})

		if len(selected) == 0 {
			handleErr(cmd.Help())
			return
		}

		for _, t := range selected {
			erase := util.PrintErasable(fmt.Sprintf("%s Clearing %s...", icon.Get(icon.Progress), t.name))
			err := filesystem.API().RemoveAll(t.path())
			erase()
			handleErr(err)
		}

		fmt.Printf("%s Cleared %s\n", icon.Get(icon.Success), util.Quantify(len(selected), "target", "targets"))
	},
}
