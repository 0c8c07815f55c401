package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/strata/pkg/repo"
)

func newMergeCmd() *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "merge <revision>",
		Short: "Merge a revision into HEAD at path level",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			r, err := openRepo(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeRepo(r, &err)

			ours, err := r.HeadCommit()
			if err != nil {
				return err
			}
			theirs, err := r.ResolveRevision(args[0])
			if err != nil {
				return err
			}

			res, err := r.Merge(ours, theirs, repo.MergeOptions{Author: authorFor(r), Message: message, Timestamp: commitTime()})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if res.Status == repo.MergeConflict {
				fmt.Fprintf(out, "merge base %s\n", res.Base.Short())
				for _, p := range res.ConflictingPaths {
					fmt.Fprintf(out, "CONFLICT %s\n", p)
				}
				return fmt.Errorf("merge: %d conflicting path(s); nothing was written", len(res.ConflictingPaths))
			}

			if err := resetIndex(r, res.CommitID); err != nil {
				return err
			}
			fmt.Fprintf(out, "merged %s into %s: %s\n", theirs.Short(), currentLabel(r), res.CommitID.Short())
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "merge commit message")
	return cmd
}
