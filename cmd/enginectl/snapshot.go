package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Trigger a manual disk snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		version, err := e.Snapshot()
		if err != nil {
			return err
		}
		fmt.Printf("snapshot written at version %d\n", version)
		return nil
	},
}
