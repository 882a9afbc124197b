package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/lorehq/lore/internal/db"
	"github.com/lorehq/lore/internal/display"
)

var tagRemove bool

var tagCmd = &cobra.Command{
	Use:   "tag <session-id> [label]",
	Short: "Tag a session, or list its tags",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		session, err := db.GetSession(store, args[0])
		if err != nil {
			return err
		}

		out := display.Default()

		if len(args) == 1 {
			labels, err := db.GetTags(store, session.ID)
			if err != nil {
				return err
			}
			if len(labels) == 0 {
				out.Info("no tags")
				return nil
			}
			out.Println(strings.Join(labels, ", "))
			return nil
		}

		label := args[1]
		if tagRemove {
			if err := db.RemoveTag(store, session.ID, label); err != nil {
				return err
			}
			out.Successf("untagged %s", label)
			return nil
		}

		added, err := db.AddTag(store, session.ID, label)
		if err != nil {
			return err
		}
		if added {
			out.Successf("tagged %s", label)
		} else {
			out.Info("already tagged")
		}
		return nil
	},
}

func init() {
	tagCmd.Flags().BoolVar(&tagRemove, "remove", false, "remove the label instead of adding it")
	rootCmd.AddCommand(tagCmd)
}
