package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/strata/pkg/diff"
)

func newDiffCmd() *cobra.Command {
	var patch bool

	cmd := &cobra.Command{
		Use:   "diff <from> <to>",
		Short: "Show path changes between two commits",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			r, err := openRepo(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeRepo(r, &err)

			from, err := r.ResolveRevision(args[0])
			if err != nil {
				return err
			}
			to, err := r.ResolveRevision(args[1])
			if err != nil {
				return err
			}

			d, err := diff.Compute(r.Store, from, to)
			if err != nil {
				return err
			}
			if !patch {
				fmt.Fprint(cmd.OutOrStdout(), diff.FormatSummary(d))
				return nil
			}
			text, err := diff.FormatPatch(r.Store, d)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), text)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&patch, "patch", "p", false, "show line-level changes")
	return cmd
}
