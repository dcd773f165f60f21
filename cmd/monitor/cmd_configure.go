package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ielts-monitor/monitor/internal/configfile"
	"github.com/ielts-monitor/monitor/internal/domain"
)

func newConfigureCmd() *cobra.Command {
	var reset, reload bool
	var file string
	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Display, or push to the running monitor, the active configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfgPath
			if file != "" {
				path = file
			}
			if reset {
				fmt.Println("reset is not destructive here: remove", path, "and rerun config-validate --fix to regenerate defaults")
				return nil
			}
			cfg, err := configfile.Load(path)
			if err != nil {
				return err
			}
			if reload {
				resp, err := dialControlSocketReconfigure(cfg)
				if err != nil {
					return err
				}
				if !resp.OK {
					return fmt.Errorf("reconfigure rejected: %s", resp.Message)
				}
				fmt.Println("reconfigured, state:", resp.State)
				return nil
			}
			fmt.Printf("%+v\n", cfg)
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "describe how to reset to defaults")
	cmd.Flags().BoolVar(&reload, "reload", false, "push this config to the running monitor via the control socket (spec.md §4.5 runtime reconfigure)")
	cmd.Flags().StringVar(&file, "file", "", "alternate config file path")
	return cmd
}

func newConfigValidateCmd() *cobra.Command {
	var fix bool
	cmd := &cobra.Command{
		Use:   "config-validate",
		Short: "Validate the config file, optionally normalizing it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configfile.Load(cfgPath)
			if err != nil {
				errs, ok := err.(domain.ValidationErrors)
				if !ok {
					return err
				}
				if !fix {
					for _, e := range errs {
						fmt.Fprintln(os.Stderr, e.Error())
					}
					os.Exit(2)
				}
				// Load already rejected this file outright; fall back to
				// the unvalidated decode so --fix has something to
				// normalize and write back.
				raw, loadErr := configfile.LoadUnvalidated(cfgPath)
				if loadErr != nil {
					return loadErr
				}
				cfg = raw
			} else if !fix {
				fmt.Println("config is valid")
				return nil
			}

			fixed := normalizeConfig(cfg)
			if err := configfile.Write(cfgPath, fixed); err != nil {
				return fmt.Errorf("writing normalized config: %w", err)
			}
			fmt.Printf("normalized and wrote config: %+v\n", fixed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&fix, "fix", false, "clamp/trim invalid fields and print the normalized config")
	return cmd
}

// normalizeConfig implements spec.md §5's supplemented config-validate
// --fix: drops unrecognized exam models and out-of-range months and clamps
// checkInterval into range. It applies its own checks rather than calling
// Validate, so other invalid fields (such as an empty cities list) are
// left unchanged.
func normalizeConfig(cfg domain.MonitorConfig) domain.MonitorConfig {
	if cfg.CheckInterval < domain.MinCheckInterval {
		cfg.CheckInterval = domain.MinCheckInterval
	}
	if cfg.CheckInterval > domain.MaxCheckInterval {
		cfg.CheckInterval = domain.MaxCheckInterval
	}

	validModels := map[string]bool{"IELTS": true, "CDIELTS": true, "UKVI": true}
	kept := cfg.ExamModels[:0]
	for _, m := range cfg.ExamModels {
		if validModels[m] {
			kept = append(kept, m)
		}
	}
	cfg.ExamModels = kept

	months := cfg.Months[:0]
	for _, m := range cfg.Months {
		if m >= 1 && m <= 12 {
			months = append(months, m)
		}
	}
	cfg.Months = months

	return cfg
}
