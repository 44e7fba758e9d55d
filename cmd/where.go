package cmd

import (
	"os"

	"github.com/kitsune-cli/kitsune/color"
	"github.com/kitsune-cli/kitsune/style"
	"github.com/kitsune-cli/kitsune/where"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

type whereTarget struct {
	flag, short string
	name        string
	path        func() string
	hidden      bool
}

var whereTargets = []whereTarget{
	{"config", "c", "Config", where.Config, false},
	{"logs", "l", "Logs", where.Logs, false},
	{"progress", "p", "Watch progress", where.Progress, false},
	{"bookmarks", "b", "Bookmarks", where.Bookmarks, false},
	{"database", "d", "Progress database", where.Database, false},
	{"cache", "", "Cache", where.Cache, true},
	{"skips", "", "Skip windows", where.Skips, true},
	{"temp", "", "Player sockets", where.Temp, true},
}

func init() {
	rootCmd.AddCommand(whereCmd)

	for _, t := range whereTargets {
		whereCmd.Flags().BoolP(t.flag, t.short, false, "print the "+t.flag+" path")
		if t.hidden {
			lo.Must0(whereCmd.Flags().MarkHidden(t.flag))
		}
	}

	whereCmd.MarkFlagsMutuallyExclusive(lo.Map(whereTargets, func(t whereTarget, _ int) string {
		return t.flag
	})...)

	whereCmd.SetOut(os.Stdout)
}

var whereCmd = &cobra.Command{
	Use:     "where",
	Short:   "Show where kitsune keeps its files",
	Example: "  kitsune where\n  cd \"$(kitsune where --config)\"",
	Run: func(cmd *cobra.Command, args []string) {
		if t, ok := lo.Find(whereTargets, func(t whereTarget) bool {
			return lo.Must(cmd.Flags().GetBool(t.flag))
		}); ok {
			cmd.Println(t.path())
			return
		}

		visible := lo.Reject(whereTargets, func(t whereTarget, _ int) bool { return t.hidden })
		width := lo.Max(lo.Map(visible, func(t whereTarget, _ int) int { return len(t.name) }))
		header := style.Renderer(style.New().Bold(true).Foreground(color.HiPurple).Width(width + 2))

		for _, t := range visible {
			cmd.Println(header(t.name) + t.path())
		}
	},
}
