package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Open the engine, report its configuration, and exit",
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
		fmt.Printf("data dir:   %s\n", e.Path())
		fmt.Printf("durability: %s\n", durabilityFlag)
		fmt.Printf("runs:       %d\n", len(list))
		return nil
	},
}
