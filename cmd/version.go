package cmd

import (
	"encoding/json"
	"os"
	"runtime"
	"strings"
	"text/template"

	"github.com/kitsune-cli/kitsune/color"
	"github.com/kitsune-cli/kitsune/constant"
	"github.com/kitsune-cli/kitsune/key"
	"github.com/kitsune-cli/kitsune/style"
	"github.com/kitsune-cli/kitsune/version"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.SetOut(os.Stdout)
	versionCmd.Flags().BoolP("short", "s", false, "Only print the version")
	versionCmd.Flags().BoolP("json", "j", false, "Print build information as JSON")
	versionCmd.MarkFlagsMutuallyExclusive("short", "json")
}

type buildInfo struct {
	Version  string `json:"version"`
	Revision string `json:"revision"`
	BuiltAt  string `json:"built_at"`
	BuiltBy  string `json:"built_by"`
	Platform string `json:"platform"`
	Player   string `json:"player"`
	Backend  string `json:"progress_backend"`
}

func currentBuild() buildInfo {
	return buildInfo{
		Version:  constant.Version,
		Revision: constant.Revision,
		BuiltAt:  strings.TrimSpace(constant.BuiltAt),
		BuiltBy:  constant.BuiltBy,
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
		Player:   viper.GetString(key.PlayerBinary),
		Backend:  viper.GetString(key.ProgressBackend),
	}
}

var versionTemplate = lo.Must(template.New("version").Funcs(template.FuncMap{
	"faint":  style.Faint,
	"bold":   style.Bold,
	"accent": style.Fg(color.Orange),
}).Parse(`{{ accent "▇▇▇ kitsune" }}

  {{ faint "Version " }}  {{ bold .Version }}
  {{ faint "Revision" }}  {{ bold .Revision }}
  {{ faint "Built   " }}  {{ bold .BuiltAt }} by {{ bold .BuiltBy }}
  {{ faint "Platform" }}  {{ bold .Platform }}
  {{ faint "Player  " }}  {{ bold .Player }}
  {{ faint "Progress" }}  {{ bold .Backend }}
`))

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and build information",
	Run: func(cmd *cobra.Command, args []string) {
		info := currentBuild()

		switch {
		case lo.Must(cmd.Flags().GetBool("short")):
			cmd.Println(info.Version)
		case lo.Must(cmd.Flags().GetBool("json")):
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			handleErr(encoder.Encode(info))
		default:
			defer version.Notify()
			handleErr(versionTemplate.Execute(cmd.OutOrStdout(), info))
		}
	},
}
