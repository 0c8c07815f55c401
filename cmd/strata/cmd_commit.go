package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/strata/pkg/repo"
)

func newCommitCmd() *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Record the staged snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if message == "" {
				return fmt.Errorf("commit message is required (-m)")
			}
			r, err := openRepo(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeRepo(r, &err)

			ix, err := loadIndex(r)
			if err != nil {
				return err
			}
			res, err := r.Commit(ix, repo.CommitOptions{Author: authorFor(r), Message: message, Timestamp: commitTime()})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[%s %s] %s\n", currentLabel(r), res.CommitID.Short(), message)
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	return cmd
}
