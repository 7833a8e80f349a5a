package db

import (
	"fmt"

	"github.com/ValentinKolb/hKV/cmd/util"
	libdb "github.com/ValentinKolb/hKV/lib/db"
	"github.com/ValentinKolb/hKV/lib/handle"
	"github.com/ValentinKolb/hKV/lib/lifecycle"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

var (
	// DBCommands groups the maintenance commands for databases that are not open
	DBCommands = &cobra.Command{
		Use:   "db",
		Short: "Repair, destroy or inspect a database on disk",
	}

	repairCmd = &cobra.Command{
		Use:   "repair [path]",
		Short: "Check the database at path and rewrite its metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withController(func(c *lifecycle.Controller) error {
				if err := c.Repair(args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "repaired successfully")
				return nil
			})
		},
	}
	destroyCmd = &cobra.Command{
		Use:   "destroy [path]",
		Short: "Remove the database at path and all of its files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withController(func(c *lifecycle.Controller) error {
				if err := c.Destroy(args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "destroyed successfully")
				return nil
			})
		},
	}
	statsCmd = &cobra.Command{
		Use:   "stats [path] [property...]",
		Short: "Open the database at path read-only and print engine properties",
		Long: `Open the database at path read-only and print the given engine
properties, pebble.stats if none are given.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			properties := args[1:]
			if len(properties) == 0 {
				properties = []string{"pebble.stats"}
			}
			return withController(func(c *lifecycle.Controller) error {
				h, err := c.Open(args[0], libdb.Options{ReadOnly: true})
				if err != nil {
					return err
				}
				for _, name := range properties {
					value, err := c.Property(h, name)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s:\n%s\n", name, value)
				}
				return nil
			})
		},
	}
)

func init() {
	DBCommands.AddCommand(repairCmd)
	DBCommands.AddCommand(destroyCmd)
	DBCommands.AddCommand(statsCmd)
}

// withController runs fn on a controller with a private context that is
// torn down afterward
func withController(fn func(c *lifecycle.Controller) error) (err error) {
	config := util.GetConfig()
	c := lifecycle.New(handle.NewContext(util.ContextOptions(config)), util.NewEngine(config))
	defer func() {
		err = multierr.Append(err, c.Teardown())
	}()
	return fn(c)
}
