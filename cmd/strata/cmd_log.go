package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/odvcencio/strata/pkg/object"
	"github.com/odvcencio/strata/pkg/repo"
)

func newLogCmd() *cobra.Command {
	var oneline bool
	var limit int
	var cursor string

	cmd := &cobra.Command{
		Use:   "log [revision]",
		Short: "Show commit history, one page at a time",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			r, err := openRepo(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeRepo(r, &err)

			rev := "HEAD"
			if len(args) > 0 {
				rev = args[0]
			}
			if cursor != "" {
				rev = cursor
			}
			start, err := r.ResolveRevision(rev)
			if err != nil {
				return fmt.Errorf("cannot resolve %s: %w", rev, err)
			}
			head, _ := r.HeadCommit()

			page, err := r.History().Page(start, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, e := range page.Entries {
				printLogEntry(out, e, decoration(e.ID, head, currentLabel(r)), oneline)
			}
			if page.HasMore() {
				fmt.Fprintf(out, "-- more: strata log --cursor %s\n", page.NextCursor)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&oneline, "oneline", false, "compact one-line format")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of commits to show")
	cmd.Flags().StringVar(&cursor, "cursor", "", "resume from a cursor printed by a previous page")
	return cmd
}

func printLogEntry(out io.Writer, e repo.HistoryEntry, deco string, oneline bool) {
	if oneline {
		if deco != "" {
			fmt.Fprintf(out, "%s %s %s\n", e.ID.Short(), deco, e.Message)
		} else {
			fmt.Fprintf(out, "%s %s\n", e.ID.Short(), e.Message)
		}
		return
	}
	if deco != "" {
		fmt.Fprintf(out, "commit %s %s\n", e.ID, deco)
	} else {
		fmt.Fprintf(out, "commit %s\n", e.ID)
	}
	if len(e.ParentIDs) > 1 {
		fmt.Fprint(out, "Merge:")
		for _, p := range e.ParentIDs {
			fmt.Fprintf(out, " %s", p.Short())
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "Author: %s\n", e.Author)
	fmt.Fprintf(out, "Date:   %s\n", time.Unix(int64(e.Timestamp), 0).Format("2006-01-02 15:04:05"))
	fmt.Fprintln(out)
	fmt.Fprintf(out, "    %s\n", e.Message)
	fmt.Fprintln(out)
}

// decoration returns "(HEAD -> main)" for the HEAD commit, or "".
func decoration(id, head object.CommitID, label string) string {
	if head.IsZero() || id != head {
		return ""
	}
	if label != "HEAD" {
		return "(HEAD -> " + label + ")"
	}
	return "(HEAD)"
}
