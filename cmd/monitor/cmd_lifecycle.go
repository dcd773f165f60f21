package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running monitor",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := dialControlSocket("stop")
			if err != nil {
				return err
			}
			fmt.Println(resp.State)
			return nil
		},
	}
}

func newPauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Pause the running monitor",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := dialControlSocket("pause")
			if err != nil {
				return err
			}
			fmt.Println(resp.State)
			return nil
		},
	}
}

func newResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume a paused monitor",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := dialControlSocket("resume")
			if err != nil {
				return err
			}
			fmt.Println(resp.State)
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	var asJSON, simple bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the monitor's current state",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := dialControlSocket("status")
			if err != nil {
				return err
			}
			if simple {
				fmt.Println(resp.State)
				return nil
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			fmt.Printf("state: %s\nstats: %+v\n", resp.State, resp.Stats)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	cmd.Flags().BoolVar(&simple, "simple", false, "print only the state name")
	cmd.Flags().Bool("watch", false, "poll status continuously (reserved; not yet implemented)")
	return cmd
}

func newServerStatusCmd() *cobra.Command {
	var asJSON, detailed bool
	cmd := &cobra.Command{
		Use:   "server-status",
		Short: "Show detailed monitor and session status",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := dialControlSocket("status")
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			fmt.Printf("state: %s\n", resp.State)
			if detailed {
				fmt.Printf("stats: %+v\n", resp.Stats)
				fmt.Printf("session: %+v\n", resp.Session)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "include tracker statistics")
	return cmd
}
