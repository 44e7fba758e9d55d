package cmd

import (
	"github.com/kitsune-cli/kitsune/auth"
	"github.com/kitsune-cli/kitsune/color"
	"github.com/kitsune-cli/kitsune/icon"
	"github.com/kitsune-cli/kitsune/style"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login <owner-id>",
	Short: "Sign in so watch progress is saved",
	Long:  "Store the owner id in the system keyring. Watch progress and bookmarks are recorded under it.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		handleErr(auth.SetOwner(args[0]))
		cmd.Printf("%s signed in as %s\n", style.Fg(color.Green)(icon.Get(icon.Success)), style.Fg(color.Purple)(args[0]))
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and stop saving watch progress",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		handleErr(auth.Logout())
		cmd.Printf("%s signed out\n", style.Fg(color.Green)(icon.Get(icon.Success)))
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Print the signed-in owner id",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		owner, err := signedIn()
		handleErr(err)
		cmd.Println(owner)
	},
}
