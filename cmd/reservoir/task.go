package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Inspect task records",
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List persisted task records",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, b, err := openRegistry(cmd)
		if err != nil {
			return err
		}
		defer b.Close()

		role, _ := cmd.Flags().GetString("role")
		tasks, err := reg.TasksByRole(role)
		if err != nil {
			return fmt.Errorf("failed to list tasks: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tROLE\tHOSTNAME\tSTATE")
		for _, task := range tasks {
			stateName := "-"
			if task.Status != nil {
				stateName = string(task.Status.State)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", task.ID, task.Role, task.Hostname, stateName)
		}
		return w.Flush()
	},
}

func init() {
	taskListCmd.Flags().String("role", "", "Filter by role-name containment")
	taskCmd.AddCommand(taskListCmd)
}
