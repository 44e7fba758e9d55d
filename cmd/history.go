package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kitsune-cli/kitsune/auth"
	"github.com/kitsune-cli/kitsune/bookmark"
	"github.com/kitsune-cli/kitsune/color"
	"github.com/kitsune-cli/kitsune/icon"
	"github.com/kitsune-cli/kitsune/progress"
	"github.com/kitsune-cli/kitsune/style"
	"github.com/kitsune-cli/kitsune/util"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var errNotSignedIn = errors.New("nobody is signed in, run kitsune login <owner-id> first")

// entry is a progress record joined with the bookmark it belongs to.
type entry struct {
	Bookmark *bookmark.Bookmark `json:"bookmark"`
	Progress *progress.Record   `json:"progress"`
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().BoolP("json", "j", false, "Format the output as JSON")
	historyCmd.SetOut(os.Stdout)

	historyCmd.AddCommand(historyRemoveCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List watch progress of the signed-in owner",
	Run: func(cmd *cobra.Command, args []string) {
		entries, err := loadHistory(cmd.Context())
		handleErr(err)

		if lo.Must(cmd.Flags().GetBool("json")) {
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			handleErr(encoder.Encode(entries))
			return
		}

		if len(entries) == 0 {
			cmd.Println("No watch history yet")
			return
		}

		title := style.New().Bold(true).Foreground(color.HiPurple).Render
		for _, e := range entries {
			cmd.Printf(
				"%s %s\n  %s %s %s\n",
				title(e.Bookmark.Title),
				style.Fg(color.Yellow)(fmt.Sprintf("episode %d", e.Progress.EpisodeNumber)),
				style.Faint(util.Clock(e.Progress.Position)+" / "+util.Clock(e.Progress.Duration)),
				style.Fg(color.Green)(fmt.Sprintf("%d%%", e.Progress.Percentage())),
				style.Faint(e.Progress.UpdatedAt.Local().Format(time.DateTime)),
			)
		}
		cmd.Println()
		cmd.Println(util.Quantify(len(entries), "entry", "entries"))
	},
}

var historyRemoveCmd = &cobra.Command{
	Use:   "remove <content-id> <episode-id>",
	Short: "Forget the watch progress of one episode",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		owner, err := signedIn()
		handleErr(err)

		ctx := cmd.Context()
		store, closeStore, err := openBackend(ctx)
		handleErr(err)
		defer util.Ignore(closeStore)

		bookmarks, err := store.Bookmarks(ctx, owner)
		handleErr(err)

		found, ok := lo.Find(bookmarks, func(b *bookmark.Bookmark) bool {
			return b.ContentID == args[0]
		})
		if !ok {
			handleErr(fmt.Errorf("no bookmark for %s", args[0]))
		}

		handleErr(store.Remove(ctx, progress.Key{Owner: found.ID, Episode: args[1]}))
		cmd.Printf("%s removed progress of %s\n", style.Fg(color.Green)(icon.Get(icon.Success)), args[1])
	},
}

func signedIn() (string, error) {
	owner, err := auth.Owner()
	if err != nil {
		return "", err
	}
	if owner == "" {
		return "", errNotSignedIn
	}
	return owner, nil
}

// loadHistory returns the owner's records, newest first, joined with their bookmarks.
func loadHistory(ctx context.Context) ([]entry, error) {
	owner, err := signedIn()
	if err != nil {
		return nil, err
	}

	store, closeStore, err := openBackend(ctx)
	if err != nil {
		return nil, err
	}
	defer util.Ignore(closeStore)

	bookmarks, err := store.Bookmarks(ctx, owner)
	if err != nil {
		return nil, err
	}
	records, err := store.List(ctx)
	if err != nil {
		return nil, err
	}

	return joinHistory(bookmarks, records), nil
}

// joinHistory keeps the records hanging off one of bookmarks, in record order.
func joinHistory(bookmarks []*bookmark.Bookmark, records []*progress.Record) []entry {
	byID := lo.KeyBy(bookmarks, func(b *bookmark.Bookmark) string {
		return b.ID
	})

	return lo.FilterMap(records, func(r *progress.Record, _ int) (entry, bool) {
		b, ok := byID[r.Owner]
		return entry{Bookmark: b, Progress: r}, ok
	})
}
