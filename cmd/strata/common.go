package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/odvcencio/strata/pkg/index"
	"github.com/odvcencio/strata/pkg/object"
	"github.com/odvcencio/strata/pkg/repo"
)

// newLogger picks the log sink: a rotating file when --log-file is set,
// stderr with --verbose, otherwise nothing.
func newLogger(stderr io.Writer) *log.Logger {
	if path := viper.GetString("log_file"); path != "" {
		return log.New(&lumberjack.Logger{
			Filename:   path,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}, "[strata] ", log.LstdFlags)
	}
	if viper.GetBool("verbose") {
		return log.New(stderr, "[strata] ", log.Ltime)
	}
	return log.New(io.Discard, "", 0)
}

func openRepo(stderr io.Writer) (*repo.Repo, error) {
	return repo.Open(viper.GetString("repo"), repo.WithLogger(newLogger(stderr)))
}

// workRoot is the directory that holds .strata/.
func workRoot(r *repo.Repo) string {
	return filepath.Dir(r.Dir)
}

func authorFor(r *repo.Repo) string {
	if a := strings.TrimSpace(viper.GetString("author")); a != "" {
		return a
	}
	if r.Config.User.Name != "" {
		return r.Config.User.Name
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "unknown"
}

func commitTime() uint64 { return uint64(time.Now().Unix()) }

// resolveArg interprets a relative command-line path against --repo.
func resolveArg(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(viper.GetString("repo"), p)
}

// repoPath converts a resolved path into a slash-separated path relative to
// the work root.
func repoPath(r *repo.Repo, p string) (index.SafePath, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(workRoot(r), abs)
	if err != nil {
		return "", err
	}
	return index.ParsePath(filepath.ToSlash(rel))
}

func loadIndex(r *repo.Repo) (*index.Index, error) {
	return index.Load(r.IndexPath())
}

// resetIndex replaces the working index with the tree of commit id.
func resetIndex(r *repo.Repo, id object.CommitID) error {
	c, err := r.Store.ReadCommit(id)
	if err != nil {
		return err
	}
	ix, err := repo.IndexFromTree(r.Store, c.TreeID)
	if err != nil {
		return err
	}
	return ix.Save(r.IndexPath())
}

func currentLabel(r *repo.Repo) string {
	branch, err := r.CurrentBranch()
	if err != nil || branch == "" {
		return "HEAD"
	}
	return branch
}

func closeRepo(r *repo.Repo, errp *error) {
	if err := r.Close(); err != nil && *errp == nil {
		*errp = fmt.Errorf("close repository: %w", err)
	}
}
