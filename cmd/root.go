package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/hKV/cmd/db"
	"github.com/ValentinKolb/hKV/cmd/shell"
	"github.com/ValentinKolb/hKV/cmd/util"
	"github.com/ValentinKolb/hKV/lib/common"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "hkv",
		Short: "handle-brokered embedded key-value engine",
		Long: fmt.Sprintf(`hKV (v%s)

An embedded key-value engine whose databases, iterators, write batches
and snapshots are addressed through string handles, scripted from a
small command language.`, Version),
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of hKV and its engine",
		Run: func(cmd *cobra.Command, args []string) {
			engine := util.NewEngine(util.GetConfig())
			fmt.Fprintf(cmd.OutOrStdout(), "hKV v%s\nengine pebble v%s\n", Version, engine.Version())
		},
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(shell.ShellCmd)
	RootCmd.AddCommand(db.DBCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	defaults := common.DefaultConfig()
	key := "log-level"
	RootCmd.PersistentFlags().String(key, defaults.LogLevel, util.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
	key = "cache-size"
	RootCmd.PersistentFlags().Int64(key, defaults.CacheSizeMB, util.WrapString("Size of the block cache shared by all databases of a process in MB"))
	key = "strict-dependents"
	RootCmd.PersistentFlags().Bool(key, defaults.StrictDependents, util.WrapString("Refuse to close a database while iterators or snapshots created from it are open. Disable to let the engine close them together with the database"))
}

// setup binds the flags of the executed command and configures logging
func setup(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	common.SetOutput(cmd.ErrOrStderr())
	return common.InitLoggers(util.GetConfig())
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
