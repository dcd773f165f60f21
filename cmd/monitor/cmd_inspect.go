package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ielts-monitor/monitor/internal/inspect"
	"github.com/ielts-monitor/monitor/internal/store"
)

const inspectionDataFile = "data/inspection-data.json"

func newInspectCmd() *cobra.Command {
	var detailed bool
	var exportPath, format string
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show or export recorded parse diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, _, err := store.Load[[]inspect.Record](inspectionDataFile)
			if err != nil {
				return err
			}

			out := os.Stdout
			if exportPath != "" {
				f, err := os.Create(exportPath)
				if err != nil {
					return fmt.Errorf("creating %s: %w", exportPath, err)
				}
				defer f.Close()
				out = f
			}

			if detailed || exportPath != "" {
				return inspect.Export(out, records, inspect.Format(orDefault(format, "json")))
			}

			fmt.Fprintf(out, "%d inspection record(s)\n", len(records))
			return nil
		},
	}
	cmd.Flags().BoolVar(&detailed, "detailed", false, "print full records instead of a summary")
	cmd.Flags().StringVar(&exportPath, "export", "", "write records to this path")
	cmd.Flags().StringVar(&format, "format", "json", "export format: json|text|csv")
	return cmd
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func newClearCmd() *cobra.Command {
	var appointments, notifications, inspectionData, all, force bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove persisted state files",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("refusing to clear state without --force")
			}
			targets := map[string]bool{
				"data/appointment-tracking.json": all || appointments,
				"data/notified-appointments.json": all || appointments,
				"data/check-history.json":         all || appointments,
				"logs/notifications.log":          all || notifications,
				inspectionDataFile:                all || inspectionData,
			}
			for path, want := range targets {
				if !want {
					continue
				}
				if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("removing %s: %w", path, err)
				}
				fmt.Println("removed", path)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&appointments, "appointments", false, "clear tracked appointment state")
	cmd.Flags().BoolVar(&notifications, "notifications", false, "clear the notifications log")
	cmd.Flags().BoolVar(&inspectionData, "inspection", false, "clear inspection diagnostics")
	cmd.Flags().BoolVar(&all, "all", false, "clear every persisted state file")
	cmd.Flags().BoolVar(&force, "force", false, "required to actually delete anything")
	return cmd
}
