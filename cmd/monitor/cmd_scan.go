package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ielts-monitor/monitor/internal/configfile"
	"github.com/ielts-monitor/monitor/internal/dispatcher"
	"github.com/ielts-monitor/monitor/internal/domain"
	"github.com/ielts-monitor/monitor/internal/fetcher/webfetcher"
	"github.com/ielts-monitor/monitor/internal/obslog"
)

func newAppointmentScanCmd() *cobra.Command {
	var city, examModel, months string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "appointment-scan",
		Short: "Run one ad-hoc fetch against the timetable without touching tracker state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configfile.Load(cfgPath)
			if err != nil {
				return err
			}
			filters := cfg.Filters()
			if city != "" {
				filters.Cities = strings.Split(city, ",")
			}
			if examModel != "" {
				filters.ExamModels = strings.Split(examModel, ",")
			}
			if months != "" {
				filters.Months = parseIntList(months)
			}

			fetch := webfetcher.New(cfg.BaseURL, 0, obslog.Nop{})
			result, err := fetch.Fetch(cmd.Context(), filters)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			fmt.Printf("%s: %d appointment(s), %d available, %d filled\n",
				result.Type, result.AppointmentCount, result.AvailableCount, result.FilledCount)
			return nil
		},
	}
	cmd.Flags().StringVar(&city, "city", "", "comma-separated city override")
	cmd.Flags().StringVar(&examModel, "exam-model", "", "comma-separated exam model override")
	cmd.Flags().StringVar(&months, "months", "", "comma-separated month override")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full CheckResult as JSON")
	return cmd
}

func parseIntList(s string) []int {
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		if n, err := strconv.Atoi(strings.TrimSpace(p)); err == nil {
			out = append(out, n)
		}
	}
	return out
}

func newTelegramTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "telegram-test",
		Short: "Send a test message through the Telegram channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configfile.Load(cfgPath)
			if err != nil {
				return err
			}
			if cfg.Telegram.BotToken == "" || cfg.Telegram.ChatID == "" {
				return fmt.Errorf("telegram.botToken and telegram.chatId must be set; check your bot token with @BotFather")
			}

			application, err := buildAppFromConfig(cfg)
			if err != nil {
				return err
			}
			channel := dispatcher.NewTelegramChannel(
				cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MessageFormat,
				application.clock, application.log)

			probe := []domain.Appointment{{
				ID: "telegram-test", Date: "test", Time: "test",
				City: "test", ExamType: "test", Status: domain.StatusAvailable,
			}}
			if err := channel.Deliver(context.Background(), probe); err != nil {
				return fmt.Errorf("telegram delivery failed: %w (check your bot token with @BotFather)", err)
			}
			fmt.Println("telegram test message sent")
			return nil
		},
	}
}
