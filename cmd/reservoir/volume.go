package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/cuemby/reservoir/pkg/types"
	"github.com/spf13/cobra"
)

var volumeCmd = &cobra.Command{
	Use:   "volume",
	Short: "Inspect volume records",
}

var volumeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List persisted volume records",
	Long: `List persisted volume records.

With --orphaned, only volumes whose owning task no longer exists are
shown. Orphan detection is a point-in-time snapshot intended for
advisory cleanup; a volume whose task is mid-launch may appear briefly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, b, err := openRegistry(cmd)
		if err != nil {
			return err
		}
		defer b.Close()

		orphaned, _ := cmd.Flags().GetBool("orphaned")
		prefix, _ := cmd.Flags().GetString("prefix")

		var volumes []*types.VolumeRecord
		if orphaned {
			volumes, err = reg.OrphanedVolumes(prefix)
		} else {
			volumes, err = reg.Volumes()
		}
		if err != nil {
			return fmt.Errorf("failed to list volumes: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PERSISTENCE ID\tHOSTNAME\tTASK ID")
		for _, vol := range volumes {
			taskID := vol.TaskID
			if taskID == "" {
				taskID = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", vol.PersistenceID, vol.Hostname, taskID)
		}
		return w.Flush()
	},
}

func init() {
	volumeListCmd.Flags().Bool("orphaned", false, "Show only orphaned volumes")
	volumeListCmd.Flags().String("prefix", "", "Filter by persistence-id prefix")
	volumeCmd.AddCommand(volumeListCmd)
}
