package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentdb/core/pkg/runs"
	"github.com/agentdb/core/pkg/values"
)

var kvRunID string

var kvCmd = &cobra.Command{
	Use:   "kv",
	Short: "Operate on the KV Store facade",
}

var kvGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a key's value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		v, ok, err := e.KV().Get(nil, kvRunID, args[0])
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("(not found)")
			return nil
		}
		s, _ := v.AsString()
		fmt.Println(s)
		return nil
	},
}

var kvPutCmd = &cobra.Command{
	Use:   "put <key> <value>",
	Short: "Put a string value at key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()
		return e.KV().Put(nil, kvRunID, args[0], values.String(args[1]), 0)
	},
}

var kvDeleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Delete a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()
		return e.KV().Delete(nil, kvRunID, args[0])
	},
}

var kvListCmd = &cobra.Command{
	Use:   "list <prefix>",
	Short: "List keys under a prefix",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		out, err := e.KV().ListWithPrefix(nil, kvRunID, args[0])
		if err != nil {
			return err
		}
		for _, kv := range out {
			fmt.Printf("%s\t%s\n", kv.Key, kv.Value.Kind())
		}
		return nil
	},
}

func init() {
	kvCmd.PersistentFlags().StringVar(&kvRunID, "run", runs.DefaultRunID, "run id to operate within")
	kvCmd.AddCommand(kvGetCmd, kvPutCmd, kvDeleteCmd, kvListCmd)
}
