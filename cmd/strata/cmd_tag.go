package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTagCmd() *cobra.Command {
	var force, del bool

	cmd := &cobra.Command{
		Use:   "tag [name [revision]]",
		Short: "List, create, or delete tags",
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
					return fmt.Errorf("tag -d takes exactly one name")
				}
				return r.DeleteTag(args[0])

			case len(args) == 0:
				names, err := r.ListTags()
				if err != nil {
					return err
				}
				for _, name := range names {
					fmt.Fprintln(out, name)
				}
				return nil

			default:
				rev := "HEAD"
				if len(args) == 2 {
					rev = args[1]
				}
				id, err := r.ResolveRevision(rev)
				if err != nil {
					return err
				}
				return r.CreateTag(args[0], id, force)
			}
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "move an existing tag")
	cmd.Flags().BoolVarP(&del, "delete", "d", false, "delete the named tag")
	return cmd
}
