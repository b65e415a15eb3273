package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(libraryCmd)
}

var libraryCmd = &cobra.Command{
	Use:   "library <name>",
	Short: "Scaffold a library project with the workspace's persisted choices",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, req, err := newEngine(cmd)
		if err != nil {
			return err
		}
		res, err := engine.Library(cmd.Context(), req, args[0])
		printResult(cmd.OutOrStdout(), res)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created library %s (%s).\n", args[0], describe(res.Options))
		return nil
	},
}
