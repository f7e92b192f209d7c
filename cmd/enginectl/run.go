package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentdb/core/pkg/mvstore"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Operate on the Run Index facade",
}

var runCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		id, err := e.Runs().CreateRun(args[0], mvstore.NowMicros())
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	},
}

var runListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every registered run",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		list, err := e.Runs().ListRuns()
		if err != nil {
			return err
		}
		for _, r := range list {
			fmt.Printf("%s\t%s\n", r.ID, r.Name)
		}
		return nil
	},
}

var runDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a run and cascade-delete its data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()
		return e.DeleteRun(args[0])
	},
}

func init() {
	runCmd.AddCommand(runCreateCmd, runListCmd, runDeleteCmd)
}
