package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newBranchCmd() *cobra.Command {
	var del bool

	cmd := &cobra.Command{
		Use:   "branch [name [start]]",
		Short: "List, create, or delete branches",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			r, err := openRepo(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeRepo(r, &err)

			out := cmd.OutOrStdout()
			switch {
			case del:
				if len(args) != 1 {
					return fmt.Errorf("branch -d takes exactly one name")
				}
				if err := r.DeleteBranch(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(out, "deleted branch %s\n", args[0])
				return nil

			case len(args) == 0:
				current, err := r.CurrentBranch()
				if err != nil {
					return err
				}
				names, err := r.ListBranches()
				if err != nil {
					return err
				}
				for _, name := range names {
					marker := "  "
					if name == current {
						marker = "* "
					}
					fmt.Fprintf(out, "%s%s\n", marker, name)
				}
				return nil

			default:
				start := "HEAD"
				if len(args) == 2 {
					start = args[1]
				}
				id, err := r.ResolveRevision(start)
				if err != nil {
					return err
				}
				if err := r.CreateBranch(args[0], id); err != nil {
					return err
				}
				fmt.Fprintf(out, "created branch %s at %s\n", args[0], id.Short())
				return nil
			}
		},
	}

	cmd.Flags().BoolVarP(&del, "delete", "d", false, "delete the named branch")
	return cmd
}

func newSwitchCmd() *cobra.Command {
	var detach bool

	cmd := &cobra.Command{
		Use:   "switch <branch>",
		Short: "Point HEAD at a branch (or, with --detach, a revision) and reset the index to it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			r, err := openRepo(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeRepo(r, &err)

			if detach {
				id, err := r.ResolveRevision(args[0])
				if err != nil {
					return err
				}
				if err := r.Detach(id); err != nil {
					return err
				}
			} else if err := r.SwitchBranch(args[0]); err != nil {
				return err
			}

			head, err := r.HeadCommit()
			if err != nil {
				return err
			}
			if err := resetIndex(r, head); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "HEAD is now at %s (%s)\n", head.Short(), currentLabel(r))
			return nil
		},
	}

	cmd.Flags().BoolVar(&detach, "detach", false, "detach HEAD at the given revision")
	return cmd
}
