package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/odvcencio/strata/pkg/repo"
)

func newInitCmd() *cobra.Command {
	var backend string
	var branch string
	var compress bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Create an empty strata repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			path := viper.GetString("repo")
			if len(args) > 0 {
				path = resolveArg(args[0])
			}
			abs, err := filepath.Abs(path)
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			if err := os.MkdirAll(abs, 0o755); err != nil {
				return fmt.Errorf("create directory: %w", err)
			}

			cfg := repo.DefaultConfig()
			cfg.Core.Backend = backend
			cfg.Core.DefaultBranch = branch
			cfg.Objects.Compression = compress

			r, err := repo.Init(abs, cfg, repo.WithLogger(newLogger(cmd.ErrOrStderr())))
			if err != nil {
				return err
			}
			defer closeRepo(r, &err)

			fmt.Fprintf(cmd.OutOrStdout(), "initialized empty strata repository (%s) in %s%c\n", backend, r.Dir, filepath.Separator)
			return nil
		},
	}

	cmd.Flags().StringVar(&backend, "backend", repo.BackendFS, "storage backend: fs or sqlite")
	cmd.Flags().StringVar(&branch, "default-branch", "main", "name of the initial branch")
	cmd.Flags().BoolVar(&compress, "compress", false, "zstd-compress loose objects (fs backend)")
	return cmd
}
