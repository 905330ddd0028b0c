package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var frameworkIDCmd = &cobra.Command{
	Use:   "framework-id",
	Short: "Manage the persisted scheduler identity",
}

var frameworkIDGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the persisted framework id",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, b, err := openRegistry(cmd)
		if err != nil {
			return err
		}
		defer b.Close()

		id, err := reg.FrameworkID()
		if err != nil {
			return err
		}
		if id == "" {
			fmt.Println("(none)")
			return nil
		}
		fmt.Println(id)
		return nil
	},
}

var frameworkIDRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove the persisted framework id",
	Long: `Remove the persisted framework id.

The next scheduler start registers as a brand new framework; the cluster
manager will not reconcile tasks launched under the old identity.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, b, err := openRegistry(cmd)
		if err != nil {
			return err
		}
		defer b.Close()

		return reg.RemoveFrameworkID()
	},
}

func init() {
	frameworkIDCmd.AddCommand(frameworkIDGetCmd)
	frameworkIDCmd.AddCommand(frameworkIDRemoveCmd)
}
