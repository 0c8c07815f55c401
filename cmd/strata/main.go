package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const version = "0.1.0-dev"

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "strata",
		Short:         "Embeddable content-addressed version control",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cobra.OnInitialize(initConfig)

	flags := root.PersistentFlags()
	flags.StringP("repo", "C", ".", "run as if started in this directory")
	flags.String("author", "", "commit author (default: user.name from config, then $USER)")
	flags.String("log-file", "", "append logs to this file, rotated by size")
	flags.BoolP("verbose", "v", false, "log repository events to stderr")

	mustBindFlag(flags, "repo", "repo")
	mustBindFlag(flags, "author", "author")
	mustBindFlag(flags, "log_file", "log-file")
	mustBindFlag(flags, "verbose", "verbose")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newAddCmd())
	root.AddCommand(newRmCmd())
	root.AddCommand(newCommitCmd())
	root.AddCommand(newLogCmd())
	root.AddCommand(newDiffCmd())
	root.AddCommand(newBranchCmd())
	root.AddCommand(newSwitchCmd())
	root.AddCommand(newTagCmd())
	root.AddCommand(newMergeCmd())
	root.AddCommand(newReflogCmd())
	root.AddCommand(newVerifyCmd())
	return root
}

// mustBindFlag binds a viper key to a registered flag. A failure means the
// flag name is misspelled, so it panics.
func mustBindFlag(flags *pflag.FlagSet, key, flag string) {
	if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
		panic(fmt.Sprintf("bind --%s to %s: %v", flag, key, err))
	}
}

func initConfig() {
	viper.SetEnvPrefix("STRATA")
	viper.AutomaticEnv()
	viper.SetDefault("repo", ".")
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "strata %s\n", version)
		},
	}
}
