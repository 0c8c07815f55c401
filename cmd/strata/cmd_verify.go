package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/odvcencio/strata/pkg/refs"
	"github.com/odvcencio/strata/pkg/repo"
)

func newVerifyCmd() *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check every object reachable from the refs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			r, err := openRepo(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeRepo(r, &err)

			report, err := repo.Verify(r.Store, r.Refs, repo.VerifyOptions{Concurrency: workers})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, issue := range report.Issues {
				fmt.Fprintln(out, issue)
			}
			if !report.IsHealthy() {
				return fmt.Errorf("verify: %d issue(s) in %d object(s)", len(report.Issues), report.ObjectsChecked)
			}
			fmt.Fprintf(out, "ok: verified %d ref(s), %d object(s)\n", report.RefsChecked, report.ObjectsChecked)
			return nil
		},
	}

	cmd.Flags().IntVarP(&workers, "jobs", "j", 0, "parallel object reads (default: GOMAXPROCS)")
	return cmd
}

func newReflogCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "reflog [ref]",
		Short: "Show the update history of a ref",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			r, err := openRepo(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeRepo(r, &err)

			var name refs.Name
			if len(args) > 0 {
				name = refs.Name(args[0])
				if name.Validate() != nil {
					name = refs.BranchName(args[0])
				}
			} else {
				branch, err := r.CurrentBranch()
				if err != nil {
					return err
				}
				if branch == "" {
					return fmt.Errorf("reflog: HEAD is detached; name a ref")
				}
				name = refs.BranchName(branch)
			}

			entries, err := r.Reflog(name, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, e := range entries {
				fmt.Fprintf(out, "%s %s -> %s %s\n",
					time.Unix(e.Timestamp, 0).Format("2006-01-02 15:04:05"),
					shortTarget(e.Old), shortTarget(e.New), e.Reason)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of entries")
	return cmd
}

func shortTarget(t refs.Target) string {
	if t.IsZero() {
		return "(none)"
	}
	return t.Commit.Short()
}
