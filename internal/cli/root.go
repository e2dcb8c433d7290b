package cli

import (
	"io"

	"github.com/spf13/cobra"
)

type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

// GlobalOptions carries the persistent flag values shared by every command.
type GlobalOptions struct {
	ConfigPath string
	DBPath     string
	Addr       string
	JSON       bool
	Quiet      bool
}

type commandDeps struct {
	out     io.Writer
	build   BuildInfo
	globals *GlobalOptions
}

func NewRootCommand(out io.Writer, build BuildInfo) *cobra.Command {
	globals := &GlobalOptions{}
	deps := commandDeps{
		out:     out,
		build:   build,
		globals: globals,
	}

	cmd := &cobra.Command{
		Use:           "userd",
		Short:         "User record HTTP service over embedded SQLite",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageErrorf("%v", err)
	})

	cmd.PersistentFlags().StringVar(&globals.ConfigPath, "config", "", "Path to TOML config file")
	cmd.PersistentFlags().StringVar(&globals.DBPath, "db-path", "", "Path to the SQLite database file")
	cmd.PersistentFlags().BoolVar(&globals.JSON, "json", false, "Print output as JSON")
	cmd.PersistentFlags().BoolVar(&globals.Quiet, "quiet", false, "Suppress non-essential output")

	cmd.AddCommand(newServeCommand(deps))
	cmd.AddCommand(newStatusCommand(deps))
	cmd.AddCommand(newVersionCommand(deps))
	cmd.InitDefaultCompletionCmd()
	return cmd
}
