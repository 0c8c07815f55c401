package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/odvcencio/strata/pkg/repo"
)

func newAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <paths...>",
		Short: "Stage files for the next commit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			r, err := openRepo(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeRepo(r, &err)

			ix, err := loadIndex(r)
			if err != nil {
				return err
			}

			var files []string
			for _, arg := range args {
				found, err := collectFiles(resolveArg(arg))
				if err != nil {
					return err
				}
				files = append(files, found...)
			}

			for _, f := range files {
				p, err := repoPath(r, f)
				if err != nil {
					return fmt.Errorf("add %s: %w", f, err)
				}
				data, err := os.ReadFile(f)
				if err != nil {
					return fmt.Errorf("add %s: %w", f, err)
				}
				id, err := r.Store.WriteBlob(data)
				if err != nil {
					return fmt.Errorf("add %s: %w", f, err)
				}
				ix.Add(p, id)
			}
			return ix.Save(r.IndexPath())
		},
	}
}

// collectFiles expands a directory argument into its regular files, skipping
// the repository metadata directory.
func collectFiles(arg string) ([]string, error) {
	info, err := os.Stat(arg)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{arg}, nil
	}
	var out []string
	err = filepath.WalkDir(arg, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == repo.DirName {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			out = append(out, p)
		}
		return nil
	})
	return out, err
}

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <paths...>",
		Short: "Unstage paths so the next commit omits them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			r, err := openRepo(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeRepo(r, &err)

			ix, err := loadIndex(r)
			if err != nil {
				return err
			}
			for _, arg := range args {
				p, err := repoPath(r, resolveArg(arg))
				if err != nil {
					return fmt.Errorf("rm %s: %w", arg, err)
				}
				if !ix.Remove(p) {
					return fmt.Errorf("rm %s: not staged", arg)
				}
			}
			return ix.Save(r.IndexPath())
		},
	}
}
