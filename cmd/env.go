package cmd

import (
	"os"

	"github.com/kitsune-cli/kitsune/color"
	"github.com/kitsune-cli/kitsune/config"
	"github.com/kitsune-cli/kitsune/style"
	"github.com/kitsune-cli/kitsune/where"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"golang.org/x/exp/slices"
)

func init() {
	rootCmd.AddCommand(envCmd)
	envCmd.Flags().BoolP("set-only", "s", false, "Only show variables that are set")
	envCmd.Flags().BoolP("unset-only", "u", false, "Only show variables that are not set")
	envCmd.MarkFlagsMutuallyExclusive("set-only", "unset-only")
}

// envVariables lists every variable read at startup, sorted.
func envVariables() []string {
	vars := lo.MapToSlice(config.Default, func(_ string, f config.Field) string {
		return f.Env()
	})
	vars = append(vars, where.EnvConfigPath)
	slices.Sort(vars)
	return vars
}

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "List the environment variables kitsune reads",
	Long: `List the environment variables kitsune reads and their values in this shell.

Every setting can be overridden with its variable, e.g. KITSUNE_PLAYER_AUTO_SKIP=true.`,
	Run: func(cmd *cobra.Command, args []string) {
		setOnly := lo.Must(cmd.Flags().GetBool("set-only"))
		unsetOnly := lo.Must(cmd.Flags().GetBool("unset-only"))
		name := style.Renderer(style.New().Bold(true).Foreground(color.Purple))

		for _, env := range envVariables() {
			value, present := os.LookupEnv(env)
			if (setOnly && !present) || (unsetOnly && present) {
				continue
			}

			cmd.Print(name(env), "=")
			if present {
				cmd.Println(style.Fg(color.Green)(value))
			} else {
				cmd.Println(style.Faint("unset"))
			}
		}
	},
}
