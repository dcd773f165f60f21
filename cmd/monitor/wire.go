package main

import (
	"fmt"
	"path/filepath"

	"github.com/ielts-monitor/monitor/internal/clock"
	"github.com/ielts-monitor/monitor/internal/configfile"
	"github.com/ielts-monitor/monitor/internal/controller"
	"github.com/ielts-monitor/monitor/internal/dispatcher"
	"github.com/ielts-monitor/monitor/internal/domain"
	"github.com/ielts-monitor/monitor/internal/events"
	"github.com/ielts-monitor/monitor/internal/fetcher/webfetcher"
	"github.com/ielts-monitor/monitor/internal/inspect"
	"github.com/ielts-monitor/monitor/internal/scheduler"
	"github.com/ielts-monitor/monitor/internal/statuslog"
	"github.com/ielts-monitor/monitor/internal/tracker"
)

// app bundles everything cmd/monitor wires together for a `start` run.
type app struct {
	cfg        domain.MonitorConfig
	clock      clock.Clock
	log        *statuslog.StatusLog
	tracker    *tracker.Tracker
	dispatcher *dispatcher.Dispatcher
	scheduler  *scheduler.Scheduler
	controller *controller.Controller
	bus        *events.Bus
}

const dataDir = "data"
const logsDir = "logs"

func buildApp(cfgPath string) (*app, error) {
	cfg, err := configfile.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return buildAppFromConfig(cfg)
}

func buildAppFromConfig(cfg domain.MonitorConfig) (*app, error) {
	clk := clock.New()
	bus := events.New()

	statusLog, err := statuslog.New(statuslog.Config{
		EventLogPath:         filepath.Join(logsDir, "monitor.log"),
		NotificationsLogPath: filepath.Join(logsDir, "notifications.log"),
		ErrorLogPath:         filepath.Join(logsDir, "errors.log"),
		Level:                cfg.Security.LogLevel,
	})
	if err != nil {
		return nil, fmt.Errorf("opening status log (fatal per error-log policy): %w", err)
	}

	trk := tracker.New(dataDir, cfg.MaxTrackingDays, clk, tracker.WithLogger(statusLog))
	trk.Load()

	var channels []dispatcher.Channel
	if cfg.NotificationSettings.Desktop {
		channels = append(channels, dispatcher.NewDesktopChannel())
	}
	if cfg.NotificationSettings.Audio {
		channels = append(channels, dispatcher.NewAudioChannel(""))
	}
	if cfg.NotificationSettings.LogFile {
		channels = append(channels, dispatcher.NewLogFileChannel(statusLog, clk))
	}
	if cfg.NotificationSettings.Telegram {
		channels = append(channels, dispatcher.NewTelegramChannel(
			cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MessageFormat, clk, statusLog))
	}
	disp := dispatcher.New(clk, statusLog, channels...)

	fetch := webfetcher.New(cfg.BaseURL, 0, statusLog)
	recorder := inspect.NewRecorder(inspectionDataFile, statusLog)

	sched := scheduler.New(fetch, trk, disp, bus, clk, statusLog, cfg, scheduler.WithInspectionRecorder(recorder))
	ctrl := controller.New(sched, cfg, bus, statusLog, trk, statusLog)

	return &app{
		cfg:        cfg,
		clock:      clk,
		log:        statusLog,
		tracker:    trk,
		dispatcher: disp,
		scheduler:  sched,
		controller: ctrl,
		bus:        bus,
	}, nil
}
